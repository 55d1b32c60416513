package core

import (
	"context"
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// Executor reproduces abstract actions against one live UI platform.
// Implementations: web (rod), desktop (xdotool), mobile (Appium).
// The Controller handles run logic; Executor just executes individual actions.
type Executor interface {
	// Platform returns the platform this executor serves
	Platform() testcase.Platform

	// Init establishes the driver session. Called once per run.
	Init(ctx context.Context) error

	// Execute runs a single action and returns the result
	Execute(ctx context.Context, action *testcase.TestAction) *CommandResult

	// Teardown releases per-run state. It must not close long-lived sessions.
	Teardown(ctx context.Context) error
}

// CommandResult represents the outcome of executing a single action
type CommandResult struct {
	// Core outcome
	Success  bool          `json:"success"`
	Skipped  bool          `json:"skipped,omitempty"` // Not executed, does not halt the run
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`

	// Human-readable output
	Message string `json:"message,omitempty"`

	// Element information (for click, assert, etc.)
	Element *ElementInfo `json:"element,omitempty"`

	// Generic data for action-specific results
	// Examples: screenshot path, custom script return value
	Data interface{} `json:"data,omitempty"`
}

// ElementInfo describes the element an action resolved to
type ElementInfo struct {
	Locator string `json:"locator"`        // Locator that matched
	Rung    string `json:"rung,omitempty"` // Ladder rung that produced the match
	Text    string `json:"text,omitempty"`
}

// Status maps the command outcome to a step status.
func (r *CommandResult) Status() StepStatus {
	switch {
	case r == nil:
		return StatusFailed
	case r.Skipped:
		return StatusSkipped
	case r.Success:
		return StatusPassed
	default:
		return StatusFailed
	}
}

// Passed builds a successful result.
func Passed(msg string) *CommandResult {
	return &CommandResult{Success: true, Message: msg}
}

// Skipped builds a non-halting skipped result.
func Skipped(msg string) *CommandResult {
	return &CommandResult{Success: true, Skipped: true, Message: msg}
}

// Failed builds a failed result carrying err.
func Failed(err error) *CommandResult {
	return &CommandResult{Error: err, Message: err.Error()}
}
