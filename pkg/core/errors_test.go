package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := ErrInvalidValue.WithCause(cause)

	got := err.Error()
	if !strings.Contains(got, "invalid action value") {
		t.Errorf("Error() = %q, should contain 'invalid action value'", got)
	}
	if !strings.Contains(got, "underlying error") {
		t.Errorf("Error() = %q, should contain 'underlying error'", got)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if ErrInvalidValue.Cause != nil {
		t.Error("WithCause mutated the predefined error")
	}
}

func TestResolutionFailure_Error(t *testing.T) {
	last := errors.New("timeout")
	err := &ResolutionFailure{
		Target:   "css=#go",
		Attempts: []string{"css=#go", "xpath=//button"},
		Last:     last,
	}
	got := err.Error()
	for _, want := range []string{"css=#go", "xpath=//button", "timeout"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, should contain %q", got, want)
		}
	}
	if !errors.Is(err, last) {
		t.Error("errors.Is(err, last) = false, want true")
	}
}

func TestIsIntercepted(t *testing.T) {
	wrapped := fmt.Errorf("click: %w", &InteractionFailure{Op: "click", Intercepted: true, Cause: errors.New("covered")})
	if !IsIntercepted(wrapped) {
		t.Error("IsIntercepted(wrapped) = false, want true")
	}
	if IsIntercepted(&InteractionFailure{Op: "click", Cause: errors.New("detached")}) {
		t.Error("IsIntercepted(non-intercepted) = true, want false")
	}
	if IsIntercepted(nil) {
		t.Error("IsIntercepted(nil) = true, want false")
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{nil, ErrCategoryNone},
		{&ResolutionFailure{Target: "x"}, ErrCategoryResolution},
		{&InteractionFailure{Op: "click", Cause: errors.New("x")}, ErrCategoryInteraction},
		{&PlatformInitFailure{Platform: "web", Cause: errors.New("x")}, ErrCategoryPlatformInit},
		{&AssertionMismatch{Expected: "a", Actual: "b"}, ErrCategoryAssertion},
		{&UnsupportedAction{Platform: "mobile", Kind: "hover"}, ErrCategoryUnsupported},
		{fmt.Errorf("wrap: %w", &AssertionMismatch{}), ErrCategoryAssertion},
		{ErrNoPage, ErrCategoryPlatformInit},
		{errors.New("plain"), ErrCategoryConfig},
	}
	for _, tt := range tests {
		if got := Categorize(tt.err); got != tt.want {
			t.Errorf("Categorize(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
