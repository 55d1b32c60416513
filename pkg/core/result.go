package core

import (
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// StepResult captures the outcome of executing a single action
type StepResult struct {
	// Identity
	Action   testcase.TestAction `json:"-"`
	ActionID string              `json:"actionId"`
	Index    int                 `json:"index"` // 0-based position in the case
	Kind     string              `json:"kind"`

	// Status
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string       `json:"message,omitempty"`
	Element *ElementInfo `json:"element,omitempty"`
	Data    interface{}  `json:"data,omitempty"`

	// Error Details
	Error string `json:"error,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// ExecutionResult captures the outcome of one run of a test case
type ExecutionResult struct {
	// Identity
	TestCaseID   string            `json:"testCaseId"`
	TestCaseName string            `json:"testCaseName"`
	FilePath     string            `json:"filePath,omitempty"`
	Platform     testcase.Platform `json:"platform"`
	Iteration    int               `json:"iteration,omitempty"` // 1-based loop iteration

	Status StepStatus `json:"status"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps []StepResult `json:"steps"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`

	// Error info (first failing step or init failure)
	Error    string        `json:"error,omitempty"`
	Category ErrorCategory `json:"errorCategory,omitempty"`
}

// Success reports whether the run passed.
func (r *ExecutionResult) Success() bool {
	return r.Status == StatusPassed
}

// ComputeSummary calculates step counts from the Steps slice
func (r *ExecutionResult) ComputeSummary() {
	r.TotalSteps = len(r.Steps)
	r.PassedSteps = 0
	r.FailedSteps = 0
	r.SkippedSteps = 0

	for _, step := range r.Steps {
		switch step.Status {
		case StatusPassed:
			r.PassedSteps++
		case StatusFailed:
			r.FailedSteps++
		case StatusSkipped:
			r.SkippedSteps++
		}
	}
}

// AggregateStatus determines the run status from step results.
// An init failure (Error set with no failed step) also fails the run.
func (r *ExecutionResult) AggregateStatus() StepStatus {
	for _, step := range r.Steps {
		if step.Status.HaltsRun() {
			return StatusFailed
		}
	}
	if r.Error != "" {
		return StatusFailed
	}
	return StatusPassed
}

// FirstFailure returns the first failed step, or nil.
func (r *ExecutionResult) FirstFailure() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Status == StatusFailed {
			return &r.Steps[i]
		}
	}
	return nil
}
