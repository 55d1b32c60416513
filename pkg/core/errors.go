package core

import (
	"errors"
	"fmt"
	"strings"
)

// ResolutionFailure means no rung of the locator ladder produced an element.
type ResolutionFailure struct {
	Target   string   // human-readable primary locator
	Attempts []string // every locator or strategy tried, in order
	Last     error    // underlying error of the final attempt
}

func (e *ResolutionFailure) Error() string {
	msg := fmt.Sprintf("could not resolve element %s", e.Target)
	if len(e.Attempts) > 0 {
		msg += " (tried " + strings.Join(e.Attempts, ", ") + ")"
	}
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ResolutionFailure) Unwrap() error { return e.Last }

// InteractionFailure means the element resolved but the operation failed.
// Intercepted is set when the driver reported that another element received
// the pointer event.
type InteractionFailure struct {
	Op          string
	Intercepted bool
	Cause       error
}

func (e *InteractionFailure) Error() string {
	if e.Intercepted {
		return fmt.Sprintf("%s intercepted by another element: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *InteractionFailure) Unwrap() error { return e.Cause }

// PlatformInitFailure means the driver or session could not be established.
type PlatformInitFailure struct {
	Platform string
	Cause    error
}

func (e *PlatformInitFailure) Error() string {
	return fmt.Sprintf("failed to initialize %s platform: %v", e.Platform, e.Cause)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *PlatformInitFailure) Unwrap() error { return e.Cause }

// AssertionMismatch means a resolved value differs from the expectation.
type AssertionMismatch struct {
	Expected string
	Actual   string
}

func (e *AssertionMismatch) Error() string {
	return fmt.Sprintf("expected %q, got %q", e.Expected, e.Actual)
}

// UnsupportedAction means a platform has no handler for an action kind.
// It is logged and skipped rather than failing the run.
type UnsupportedAction struct {
	Platform string
	Kind     string
}

func (e *UnsupportedAction) Error() string {
	return fmt.Sprintf("action %q is not supported on %s", e.Kind, e.Platform)
}

// IsIntercepted reports whether err carries a pointer-interception failure.
func IsIntercepted(err error) bool {
	var ie *InteractionFailure
	return errors.As(err, &ie) && ie.Intercepted
}

// Categorize maps an error to its reporting category.
func Categorize(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var ee *ExecutionError
	if errors.As(err, &ee) && ee.Category != ErrCategoryNone {
		return ee.Category
	}
	var (
		rf *ResolutionFailure
		ie *InteractionFailure
		pf *PlatformInitFailure
		am *AssertionMismatch
		ua *UnsupportedAction
	)
	switch {
	case errors.As(err, &pf):
		return ErrCategoryPlatformInit
	case errors.As(err, &am):
		return ErrCategoryAssertion
	case errors.As(err, &rf):
		return ErrCategoryResolution
	case errors.As(err, &ie):
		return ErrCategoryInteraction
	case errors.As(err, &ua):
		return ErrCategoryUnsupported
	default:
		return ErrCategoryConfig
	}
}

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string // Machine-readable code: element_not_found, timeout, etc.
	Message  string // Human-readable message
	Cause    error  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{Category: e.Category, Code: e.Code, Message: e.Message, Cause: cause}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{Category: e.Category, Code: e.Code, Message: msg, Cause: e.Cause}
}

// Predefined errors
var (
	ErrMissingTarget = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_target",
		Message:  "action requires a target element",
	}
	ErrInvalidValue = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_value",
		Message:  "invalid action value",
	}
	ErrNoPage = &ExecutionError{
		Category: ErrCategoryPlatformInit,
		Code:     "no_page",
		Message:  "no browser page is open",
	}
	ErrNoSession = &ExecutionError{
		Category: ErrCategoryPlatformInit,
		Code:     "no_session",
		Message:  "no mobile session",
	}
)
