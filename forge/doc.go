// Package forge provides an in-process workflow orchestration engine.
//
// A Workflow is an immutable, ordered sequence of Operations. A Smith
// drives a Workflow against a Foundry: the Foundry carries a concurrent
// property store and an operation-level middleware pipeline, runs the
// operations in declared order, and records bookkeeping as it goes. On
// failure the Smith compensates by calling Restore on every completed,
// restore-capable operation in reverse order (a Saga).
//
// Conditional and ForEach are built-in composite operations: Conditional
// branches to one of two child operations, ForEach fans input out to a
// bounded-parallel set of children.
package forge
