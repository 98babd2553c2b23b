package forge

import "context"

// OperationNext is the continuation an OperationMiddleware invokes to
// run the next frame of the operation-level pipeline, terminating at
// the operation's own Execute (via runWithHooks).
type OperationNext func(ctx context.Context, input any, f *Foundry) (any, error)

// OperationMiddleware wraps a single operation's execution. Middlewares
// are folded Russian-doll style: the first one added to a Foundry is
// the outermost frame, and the last one added runs immediately before
// the operation itself.
type OperationMiddleware func(op Operation, next OperationNext) OperationNext

// chainOperationMiddleware folds mws around terminal, outermost first,
// matching the order middlewares were registered in.
func chainOperationMiddleware(op Operation, terminal OperationNext, mws []OperationMiddleware) OperationNext {
	next := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		next = mws[i](op, next)
	}
	return next
}

// WorkflowNext is the continuation a WorkflowMiddleware invokes to run
// the next frame of the workflow-level pipeline, terminating at
// Smith's own step-by-step drive of the Workflow.
type WorkflowNext func(ctx context.Context, w *Workflow, f *Foundry, input any) (any, error)

// WorkflowMiddleware wraps an entire Workflow run on a Smith, the
// workflow-level analogue of OperationMiddleware.
type WorkflowMiddleware func(w *Workflow, next WorkflowNext) WorkflowNext

// chainWorkflowMiddleware folds mws around terminal, outermost first.
func chainWorkflowMiddleware(w *Workflow, terminal WorkflowNext, mws []WorkflowMiddleware) WorkflowNext {
	next := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		next = mws[i](w, next)
	}
	return next
}
