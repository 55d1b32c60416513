package core

import "fmt"

// StepStatus represents the execution status of a step or run.
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Operation or assertion failed
	StatusSkipped                   // Not executed (marker action, unsupported kind)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name so reports stay readable.
func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *StepStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = StatusPending
	case "running":
		*s = StatusRunning
	case "passed":
		*s = StatusPassed
	case "failed":
		*s = StatusFailed
	case "skipped":
		*s = StatusSkipped
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// HaltsRun reports whether a step with this status stops the run.
func (s StepStatus) HaltsRun() bool {
	return s == StatusFailed
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone         ErrorCategory = iota // No error
	ErrCategoryResolution                        // No locator rung matched
	ErrCategoryInteraction                       // Element found, operation failed
	ErrCategoryAssertion                         // Resolved value differs from expectation
	ErrCategoryPlatformInit                      // Driver/session could not be established
	ErrCategoryUnsupported                       // No handler for kind on platform
	ErrCategoryConfig                            // Invalid action value or configuration
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryResolution:
		return "resolution"
	case ErrCategoryInteraction:
		return "interaction"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryPlatformInit:
		return "platform_init"
	case ErrCategoryUnsupported:
		return "unsupported"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// MarshalText encodes the category by name.
func (c ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *ErrorCategory) UnmarshalText(text []byte) error {
	for cat := ErrCategoryNone; cat <= ErrCategoryConfig; cat++ {
		if cat.String() == string(text) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown error category %q", text)
}
