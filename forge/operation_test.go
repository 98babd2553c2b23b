package forge

import (
	"context"
	"errors"
	"testing"
)

func TestTypedOperationCastsInputAndOutput(t *testing.T) {
	op := NewTypedOperation[string, int]("t", "len",
		func(_ context.Context, in string, _ *Foundry) (int, error) { return len(in), nil },
		nil, nil,
	)
	out, err := op.Execute(context.Background(), "hello", NewFoundry())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.(int) != 5 {
		t.Fatalf("expected 5, got %v", out)
	}
}

func TestTypedOperationRejectsWrongInputType(t *testing.T) {
	op := NewTypedOperation[string, int]("t", "len",
		func(_ context.Context, in string, _ *Foundry) (int, error) { return len(in), nil },
		nil, nil,
	)
	_, err := op.Execute(context.Background(), 42, NewFoundry())
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestTypedOperationAdmitsNilForPointerLikeTypes(t *testing.T) {
	op := NewTypedOperation[[]int, int]("t", "sum",
		func(_ context.Context, in []int, _ *Foundry) (int, error) {
			sum := 0
			for _, v := range in {
				sum += v
			}
			return sum, nil
		},
		nil, nil,
	)
	out, err := op.Execute(context.Background(), nil, NewFoundry())
	if err != nil {
		t.Fatalf("expected nil slice input to be admitted, got error: %v", err)
	}
	if out.(int) != 0 {
		t.Fatalf("expected 0, got %v", out)
	}
}

func TestTypedOperationRejectsNilForValueTypes(t *testing.T) {
	op := NewTypedOperation[int, int]("t", "identity",
		func(_ context.Context, in int, _ *Foundry) (int, error) { return in, nil },
		nil, nil,
	)
	_, err := op.Execute(context.Background(), nil, NewFoundry())
	if err == nil {
		t.Fatal("expected nil input to be rejected for a non-nilable declared type")
	}
}

func TestTypedOperationSupportsRestoreReflectsRestoreFunc(t *testing.T) {
	withRestore := NewTypedOperation[string, string]("a", "a",
		func(_ context.Context, in string, _ *Foundry) (string, error) { return in, nil },
		func(context.Context, string, *Foundry) error { return nil },
		nil,
	)
	withoutRestore := NewTypedOperation[string, string]("b", "b",
		func(_ context.Context, in string, _ *Foundry) (string, error) { return in, nil },
		nil, nil,
	)
	if !withRestore.SupportsRestore() {
		t.Fatal("expected SupportsRestore=true when a restore function is given")
	}
	if withoutRestore.SupportsRestore() {
		t.Fatal("expected SupportsRestore=false when restore is nil")
	}
	if err := withoutRestore.Restore(context.Background(), "x", NewFoundry()); err == nil {
		t.Fatal("expected Restore to fail with NotSupported when no restore func was given")
	}
}

func TestOperationFuncNeverSupportsRestore(t *testing.T) {
	op := NewOperationFunc("f", "f", func(_ context.Context, in any, _ *Foundry) (any, error) { return in, nil })
	if op.SupportsRestore() {
		t.Fatal("expected OperationFunc.SupportsRestore()=false")
	}
	if err := op.Restore(context.Background(), nil, NewFoundry()); err == nil {
		t.Fatal("expected Restore to fail with NotSupported")
	}
}

func TestDisposeOperationRecoversFromPanic(t *testing.T) {
	panics := NewOperationFunc("p", "p", nil)
	op := &panicOnDisposeOp{OperationFunc: panics}
	recovered := disposeOperation(op)
	if recovered == nil {
		t.Fatal("expected a recovered panic value")
	}
}

type panicOnDisposeOp struct {
	*OperationFunc
}

func (p *panicOnDisposeOp) Dispose() { panic("boom") }

func TestBeforeAndAfterExecutorHooksRunAroundExecute(t *testing.T) {
	var order []string
	op := &hookedOp{
		baseOperation: newBaseOperation("h", "h", false),
		before:        func() { order = append(order, "before") },
		exec:          func() { order = append(order, "execute") },
		after:         func() { order = append(order, "after") },
	}
	out, err := runWithHooks(context.Background(), op, "x", NewFoundry())
	if err != nil {
		t.Fatalf("runWithHooks: %v", err)
	}
	if out != "x" {
		t.Fatalf("expected passthrough output, got %v", out)
	}
	want := []string{"before", "execute", "after"}
	if len(order) != len(want) {
		t.Fatalf("unexpected hook order %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected hook order %v, want %v", order, want)
		}
	}
}

type hookedOp struct {
	baseOperation
	before, exec, after func()
}

func (h *hookedOp) OnBeforeExecute(context.Context, any, *Foundry) error {
	h.before()
	return nil
}

func (h *hookedOp) Execute(_ context.Context, input any, _ *Foundry) (any, error) {
	h.exec()
	return input, nil
}

func (h *hookedOp) OnAfterExecute(context.Context, any, any, *Foundry) error {
	h.after()
	return nil
}

func (h *hookedOp) Restore(context.Context, any, *Foundry) error { return nil }
func (h *hookedOp) Dispose()                                     {}
