// Package llmmodel defines the ChatModel seam that extensions/llmops
// wraps as a forge Operation, plus the provider-neutral message types
// that cross it.
package llmmodel

import "context"

// ChatModel abstracts a single LLM provider's chat completion call
// behind a provider-neutral signature so a chat Operation can be built
// against it without the engine knowing which provider is behind the
// seam.
type ChatModel interface {
	// Chat sends messages to the LLM and returns its response. Tools
	// may be nil. Implementations must respect ctx cancellation.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is a single turn in an LLM conversation.
type Message struct {
	Role    string
	Content string
}

// Standard roles, shared across providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the LLM may call, with Schema following
// JSON Schema conventions for the tool's input parameters.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ChatOut is an LLM's response: generated text, tool calls, or both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is a request from the LLM to invoke a specific tool by
// name, with Input matching that tool's ToolSpec.Schema.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}
