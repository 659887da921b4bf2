package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassString(t *testing.T) {
	tests := []struct {
		class Class
		want  string
	}{
		{ClassValidation, "validation"},
		{ClassNotFound, "not_found"},
		{ClassConflict, "conflict"},
		{ClassDependency, "dependency_resolution"},
		{ClassCorruptState, "corrupt_state"},
		{ClassCancelled, "cancelled"},
		{Class(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.class.String())
	}
}

func TestNewCarriesSentinel(t *testing.T) {
	err := New(ClassNotFound, "registry", "Get", "project proj-123")

	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "registry.Get: project proj-123: not found", err.Error())
}

func TestWrapPreservesClass(t *testing.T) {
	inner := New(ClassConflict, "registry", "Register", "duplicate path")
	outer := Wrap(fmt.Errorf("saving: %w", inner), "registry", "Register", "")

	assert.True(t, IsConflict(outer))
	assert.True(t, stderrors.Is(outer, ErrConflict))
}

func TestClassifyContextErrors(t *testing.T) {
	assert.Equal(t, ClassCancelled, Classify(context.Canceled))
	assert.Equal(t, ClassCancelled, Classify(context.DeadlineExceeded))
	assert.True(t, IsCancelled(fmt.Errorf("computing: %w", context.DeadlineExceeded)))
}

func TestConfirmationRequiredIsDependency(t *testing.T) {
	// Withheld confirmation must be handled exactly like a dependency
	// resolution failure.
	err := fmt.Errorf("update blocked: %w", ErrConfirmationRequired)
	assert.True(t, IsDependency(err))
}

func TestChecksumMismatchIsCorruptState(t *testing.T) {
	err := fmt.Errorf("loading registry: %w", ErrChecksumMismatch)
	require.True(t, IsCorruptState(err))
	assert.False(t, IsNotFound(err))
}

func TestErrorsAsExtractsClassified(t *testing.T) {
	err := Newf(ClassDependency, "component", "Install",
		"no version of %s satisfies %q and %q", "comp-1", ">=2.0.0", "<2.0.0")

	var ce *Error
	require.True(t, stderrors.As(fmt.Errorf("install: %w", err), &ce))
	assert.Equal(t, ClassDependency, ce.Class)
	assert.Equal(t, "component", ce.Component)
}
