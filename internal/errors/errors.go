// Package errors provides the error taxonomy shared by the registry,
// pattern library, component library, and knowledge graph. It includes
// error classification, standard error variables, and helper functions for
// consistent error wrapping and checking across the system.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Class represents the classification of errors for handling purposes
type Class int

const (
	// ClassValidation represents malformed input to an operation
	ClassValidation Class = iota
	// ClassNotFound represents an unknown id referenced by a caller
	ClassNotFound
	// ClassConflict represents duplicate registration or version collision
	ClassConflict
	// ClassDependency represents an unsatisfiable dependency constraint set
	ClassDependency
	// ClassCorruptState represents a persisted store failing checksum or parse on load
	ClassCorruptState
	// ClassCancelled represents an operation aborted via context cancellation or deadline
	ClassCancelled
)

// String returns the string representation of Class
func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNotFound:
		return "not_found"
	case ClassConflict:
		return "conflict"
	case ClassDependency:
		return "dependency_resolution"
	case ClassCorruptState:
		return "corrupt_state"
	case ClassCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrDependencyResolution = errors.New("dependency resolution failed")
	ErrCorruptState         = errors.New("persisted state is corrupt")
	ErrCancelled            = errors.New("operation cancelled")

	// ErrChecksumMismatch is a corrupt-state condition where the stored
	// checksum does not match the payload.
	ErrChecksumMismatch = errors.New("checksum validation failed")

	// ErrConfirmationRequired is reported when a breaking component update
	// is attempted without explicit confirmation. It is a design guard, not
	// a failure, but callers handle it exactly like a dependency error.
	ErrConfirmationRequired = errors.New("breaking update requires explicit confirmation")
)

// Error wraps an underlying error with its classification and the
// component/operation where it arose. It supports errors.Is and errors.As
// through Unwrap.
type Error struct {
	Class     Class
	Err       error
	Component string
	Operation string
	Detail    string
}

// Error implements the error interface using the standardized
// "component.operation: detail: cause" format.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Component != "" {
		b.WriteString(e.Component)
		if e.Operation != "" {
			b.WriteString(".")
			b.WriteString(e.Operation)
		}
		b.WriteString(": ")
	}
	if e.Detail != "" {
		b.WriteString(e.Detail)
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a classified error rooted at the sentinel for its class.
func New(class Class, component, operation, detail string) *Error {
	return &Error{
		Class:     class,
		Err:       sentinel(class),
		Component: component,
		Operation: operation,
		Detail:    detail,
	}
}

// Newf is New with a formatted detail string.
func Newf(class Class, component, operation, format string, args ...interface{}) *Error {
	return New(class, component, operation, fmt.Sprintf(format, args...))
}

// Wrap attaches component/operation context to err, preserving its class
// if it already carries one.
func Wrap(err error, component, operation, detail string) *Error {
	class := Classify(err)
	return &Error{
		Class:     class,
		Err:       err,
		Component: component,
		Operation: operation,
		Detail:    detail,
	}
}

func sentinel(class Class) error {
	switch class {
	case ClassValidation:
		return ErrValidation
	case ClassNotFound:
		return ErrNotFound
	case ClassConflict:
		return ErrConflict
	case ClassDependency:
		return ErrDependencyResolution
	case ClassCorruptState:
		return ErrCorruptState
	case ClassCancelled:
		return ErrCancelled
	default:
		return errors.New("unknown error")
	}
}

// Classify determines the class of an arbitrary error chain. Unrecognized
// errors classify as validation, the least destructive handling path.
func Classify(err error) Class {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrConflict):
		return ClassConflict
	case errors.Is(err, ErrDependencyResolution), errors.Is(err, ErrConfirmationRequired):
		return ClassDependency
	case errors.Is(err, ErrCorruptState), errors.Is(err, ErrChecksumMismatch):
		return ClassCorruptState
	case errors.Is(err, ErrCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ClassCancelled
	default:
		return ClassValidation
	}
}

// IsNotFound checks if an error is a not-found condition
func IsNotFound(err error) bool {
	return err != nil && Classify(err) == ClassNotFound
}

// IsConflict checks if an error is a conflict condition
func IsConflict(err error) bool {
	return err != nil && Classify(err) == ClassConflict
}

// IsDependency checks if an error is a dependency-resolution failure,
// including a withheld breaking-update confirmation.
func IsDependency(err error) bool {
	return err != nil && Classify(err) == ClassDependency
}

// IsCorruptState checks if an error indicates corrupted persisted state.
// Corrupt-state errors are fail-fast at load time but carry an explicit
// recovery path rather than silently discarding data.
func IsCorruptState(err error) bool {
	return err != nil && Classify(err) == ClassCorruptState
}

// IsCancelled checks if an error came from a cancelled or expired context.
func IsCancelled(err error) bool {
	return err != nil && Classify(err) == ClassCancelled
}

// IsValidation checks if an error is a validation failure
func IsValidation(err error) bool {
	return err != nil && Classify(err) == ClassValidation
}
