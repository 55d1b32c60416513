package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/replay-runner/pkg/core"
)

// Build assembles a report from execution results.
func Build(results []*core.ExecutionResult) *Report {
	rep := &Report{
		Version:     Version,
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Runs:        make([]RunDetail, 0, len(results)),
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		run := buildRun(res)
		rep.Runs = append(rep.Runs, run)

		rep.Summary.Total++
		rep.Summary.TotalDurationMs += run.DurationMs
		switch run.Status {
		case core.StatusPassed:
			rep.Summary.Passed++
		case core.StatusFailed:
			rep.Summary.Failed++
		case core.StatusSkipped:
			rep.Summary.Skipped++
		}
	}
	return rep
}

func buildRun(res *core.ExecutionResult) RunDetail {
	run := RunDetail{
		TestCaseID:   res.TestCaseID,
		TestCaseName: res.TestCaseName,
		FilePath:     res.FilePath,
		Platform:     res.Platform,
		Iteration:    res.Iteration,
		Status:       res.Status,
		StartTime:    res.StartTime,
		DurationMs:   res.Duration.Milliseconds(),
		TotalSteps:   res.TotalSteps,
		PassedSteps:  res.PassedSteps,
		FailedSteps:  res.FailedSteps,
		SkippedSteps: res.SkippedSteps,
		Error:        res.Error,
		Category:     res.Category,
		Steps:        make([]StepDetail, 0, len(res.Steps)),
	}
	for _, s := range res.Steps {
		run.Steps = append(run.Steps, StepDetail{
			Index:       s.Index,
			ActionID:    s.ActionID,
			Kind:        s.Kind,
			Description: s.Action.Describe(),
			Status:      s.Status,
			StartTime:   s.StartTime,
			DurationMs:  s.Duration.Milliseconds(),
			Message:     s.Message,
			Error:       s.Error,
			Category:    s.Category,
			Element:     s.Element,
			Attachments: s.Attachments,
		})
	}
	return run
}

// Write stores rep as <dir>/report.json and returns the file path.
func Write(dir string, rep *Report) (string, error) {
	if err := ensureDir(dir); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := atomicWriteJSON(path, rep); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Read loads a report written by Write.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided report path
	if err != nil {
		return nil, err
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &rep, nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes v to a temp file in the same directory and renames
// it over path, so readers never see a partial file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
