package forge

import "strconv"

// Reserved Properties key prefixes/names, written exclusively by the
// engine. User operations should treat these as read-only outputs.
const (
	keyCurrentIndex      = "Operation.CurrentIndex"
	keyLastCompletedIdx  = "Operation.LastCompletedIndex"
	keyLastCompletedName = "Operation.LastCompletedName"
	keyLastCompletedID   = "Operation.LastCompletedId"
	keyLastFailedIdx     = "Operation.LastFailedIndex"
	keyLastFailedName    = "Operation.LastFailedName"
	keyLastFailedID      = "Operation.LastFailedId"
)

func keyOutputAt(i int, name string) string {
	return "Operation.Output." + strconv.Itoa(i) + "." + name
}

func keyOperationOutput(opID string) string {
	return "Operation." + opID + ".Output"
}
