// Package report writes the JSON execution report.
//
// Layout:
//   - report.json: run summary plus per-run and per-step detail
//   - report.html: optional static view of the same data
package report

import (
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// Version is the report schema version.
const Version = "1.0.0"

// FileName is the report file written into the output directory.
const FileName = "report.json"

// Report is the externally visible execution artifact.
type Report struct {
	Version     string      `json:"version"`
	RunID       string      `json:"runId"`
	GeneratedAt time.Time   `json:"generatedAt"`
	Summary     Summary     `json:"summary"`
	Runs        []RunDetail `json:"runs"`
}

// Summary contains aggregate counts over all runs.
type Summary struct {
	Total           int   `json:"total"`
	Passed          int   `json:"passed"`
	Failed          int   `json:"failed"`
	Skipped         int   `json:"skipped"`
	TotalDurationMs int64 `json:"totalDurationMs"`
}

// RunDetail is one ExecutionResult.
type RunDetail struct {
	TestCaseID   string             `json:"testCaseId"`
	TestCaseName string             `json:"testCaseName"`
	FilePath     string             `json:"filePath,omitempty"`
	Platform     testcase.Platform  `json:"platform"`
	Iteration    int                `json:"iteration,omitempty"`
	Status       core.StepStatus    `json:"status"`
	StartTime    time.Time          `json:"startTime"`
	DurationMs   int64              `json:"durationMs"`
	TotalSteps   int                `json:"totalSteps"`
	PassedSteps  int                `json:"passedSteps"`
	FailedSteps  int                `json:"failedSteps"`
	SkippedSteps int                `json:"skippedSteps"`
	Error        string             `json:"error,omitempty"`
	Category     core.ErrorCategory `json:"errorCategory,omitempty"`
	Steps        []StepDetail       `json:"steps"`
}

// StepDetail is one StepResult.
type StepDetail struct {
	Index       int                `json:"index"`
	ActionID    string             `json:"actionId,omitempty"`
	Kind        string             `json:"kind"`
	Description string             `json:"description,omitempty"`
	Status      core.StepStatus    `json:"status"`
	StartTime   time.Time          `json:"startTime"`
	DurationMs  int64              `json:"durationMs"`
	Message     string             `json:"message,omitempty"`
	Error       string             `json:"error,omitempty"`
	Category    core.ErrorCategory `json:"errorCategory,omitempty"`
	Element     *core.ElementInfo  `json:"element,omitempty"`
	Attachments []core.Attachment  `json:"attachments,omitempty"`
}

// Passed reports whether every run passed.
func (r *Report) Passed() bool {
	return r.Summary.Failed == 0
}
