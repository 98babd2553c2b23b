package forge

import (
	"time"

	"github.com/google/uuid"
)

// Builder assembles a Workflow from operations and metadata, with
// validation deferred to Build. It is a standalone, side-effect-free
// builder that produces an immutable value instead of mutating a
// long-lived engine.
type Builder struct {
	id          string
	name        string
	description string
	version     string
	operations  []Operation
	properties  map[string]any
	clock       Clock
}

// NewBuilder starts building a Workflow with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:       name,
		version:    "1.0.0",
		properties: make(map[string]any),
		clock:      SystemClock{},
	}
}

// WithID overrides the generated workflow id.
func (b *Builder) WithID(id string) *Builder {
	b.id = id
	return b
}

// WithDescription sets the workflow's description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.description = desc
	return b
}

// WithVersion overrides the default version ("1.0.0").
func (b *Builder) WithVersion(version string) *Builder {
	b.version = version
	return b
}

// WithProperty attaches a build-time metadata value.
func (b *Builder) WithProperty(key string, val any) *Builder {
	b.properties[key] = val
	return b
}

// WithClock overrides the Clock used to stamp CreatedAt (defaults to
// SystemClock{}); primarily useful in tests.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// AddOperation appends an operation to the workflow under construction.
// Ownership of op transfers to the eventual Workflow: it will be
// disposed exactly once, by the Workflow, never by the caller.
func (b *Builder) AddOperation(op Operation) *Builder {
	b.operations = append(b.operations, op)
	return b
}

// AddOperations appends several operations in order.
func (b *Builder) AddOperations(ops ...Operation) *Builder {
	b.operations = append(b.operations, ops...)
	return b
}

// Build validates and constructs the Workflow: it requires a
// non-empty name and at least one operation.
func (b *Builder) Build() (*Workflow, error) {
	if b.name == "" {
		return nil, newError(KindInvalidState, "workflow must have a non-empty name")
	}
	if len(b.operations) == 0 {
		return nil, newError(KindInvalidState, "workflow must have at least one operation")
	}

	id := b.id
	if id == "" {
		id = uuid.NewString()
	}
	version := b.version
	if version == "" {
		version = "1.0.0"
	}

	props := make(map[string]any, len(b.properties))
	for k, v := range b.properties {
		props[k] = v
	}

	ops := make([]Operation, len(b.operations))
	copy(ops, b.operations)

	return &Workflow{
		id:          id,
		name:        b.name,
		description: b.description,
		version:     version,
		operations:  ops,
		properties:  props,
		createdAt:   b.clock.Now(),
	}, nil
}
