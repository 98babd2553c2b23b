package forge

import "testing"

func TestDefaultOptionsEnablesOutputChainingOnly(t *testing.T) {
	o := DefaultOptions()
	if !o.EnableOutputChaining {
		t.Fatal("expected output chaining on by default")
	}
	if o.ContinueOnError || o.MaxConcurrentWorkflows != 0 || o.FailFastCompensation || o.ThrowOnCompensationError {
		t.Fatalf("expected every other option off by default, got %+v", o)
	}
}

func TestApplyOptionsFoldsOntoDefaults(t *testing.T) {
	o := ApplyOptions(
		WithContinueOnError(true),
		WithOutputChaining(false),
		WithMaxConcurrentWorkflows(4),
		WithFailFastCompensation(true),
		WithThrowOnCompensationError(true),
	)
	want := Options{
		ContinueOnError:          true,
		EnableOutputChaining:     false,
		MaxConcurrentWorkflows:   4,
		FailFastCompensation:     true,
		ThrowOnCompensationError: true,
	}
	if o != want {
		t.Fatalf("got %+v, want %+v", o, want)
	}
}

func TestApplyOptionsWithNoOptionsReturnsDefaults(t *testing.T) {
	if ApplyOptions() != DefaultOptions() {
		t.Fatal("expected ApplyOptions with no options to equal DefaultOptions")
	}
}
