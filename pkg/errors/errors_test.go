package errors

import (
	"errors"
	"testing"
)

func TestError_Is(t *testing.T) {
	err := Wrap(RoleMissing, "targets.json not found", nil)
	if !errors.Is(err, ErrRoleMissing) {
		t.Error("expected errors.Is to match by kind")
	}
	if errors.Is(err, ErrIoFailure) {
		t.Error("expected errors.Is to reject a different kind")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IoFailure, "writing root.json", cause)
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap chain to reach the cause")
	}
}

func TestInvariant_NamesInvariant(t *testing.T) {
	err := Invariant("I3", "version must increment by exactly one")
	if err.Kind != InvariantViolation {
		t.Errorf("expected InvariantViolation, got %s", err.Kind)
	}
	want := "invariant I3: version must increment by exactly one"
	if err.Message != want {
		t.Errorf("expected message %q, got %q", want, err.Message)
	}
}
