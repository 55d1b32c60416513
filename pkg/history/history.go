// Package history keeps an optional SQLite record of past runs.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/devicelab-dev/replay-runner/pkg/core"
)

// Store handles database operations
type Store struct {
	db *sql.DB
}

// Run is one recorded execution of a test case.
type Run struct {
	ID           string    `json:"id"`
	BatchID      string    `json:"batch_id"`
	TestCaseID   string    `json:"test_case_id"`
	TestCaseName string    `json:"test_case_name"`
	FilePath     string    `json:"file_path"`
	Platform     string    `json:"platform"`
	Iteration    int       `json:"iteration"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Category     string    `json:"category,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   int64     `json:"duration_ms"`
	TotalSteps   int       `json:"total_steps"`
	PassedSteps  int       `json:"passed_steps"`
	FailedSteps  int       `json:"failed_steps"`
	SkippedSteps int       `json:"skipped_steps"`
}

// StepResult is one recorded step of a run.
type StepResult struct {
	ID         int       `json:"id"`
	RunID      string    `json:"run_id"`
	Index      int       `json:"index"`
	ActionID   string    `json:"action_id"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Category   string    `json:"category,omitempty"`
	Locator    string    `json:"locator,omitempty"`
	Rung       string    `json:"rung,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			batch_id TEXT NOT NULL DEFAULT '',
			test_case_id TEXT NOT NULL,
			test_case_name TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT '',
			platform TEXT NOT NULL,
			iteration INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			total_steps INTEGER NOT NULL DEFAULT 0,
			passed_steps INTEGER NOT NULL DEFAULT 0,
			failed_steps INTEGER NOT NULL DEFAULT 0,
			skipped_steps INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS step_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			action_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			locator TEXT NOT NULL DEFAULT '',
			rung TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_test_case_id ON runs(test_case_id)`,
		`CREATE INDEX IF NOT EXISTS idx_step_results_run_id ON step_results(run_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

// RecordRun stores result and its steps in one transaction. batchID groups
// runs of one invocation, normally the report's run id.
func (s *Store) RecordRun(batchID string, result *core.ExecutionResult) (*Run, error) {
	run := &Run{
		ID:           uuid.NewString(),
		BatchID:      batchID,
		TestCaseID:   result.TestCaseID,
		TestCaseName: result.TestCaseName,
		FilePath:     result.FilePath,
		Platform:     string(result.Platform),
		Iteration:    result.Iteration,
		Status:       result.Status.String(),
		Error:        result.Error,
		StartedAt:    result.StartTime.UTC(),
		DurationMs:   result.Duration.Milliseconds(),
		TotalSteps:   result.TotalSteps,
		PassedSteps:  result.PassedSteps,
		FailedSteps:  result.FailedSteps,
		SkippedSteps: result.SkippedSteps,
	}
	if result.Category != core.ErrCategoryNone {
		run.Category = result.Category.String()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(
		`INSERT INTO runs (id, batch_id, test_case_id, test_case_name, file_path, platform, iteration, status, error, category,
			started_at, duration_ms, total_steps, passed_steps, failed_steps, skipped_steps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.BatchID, run.TestCaseID, run.TestCaseName, run.FilePath, run.Platform, run.Iteration, run.Status,
		run.Error, run.Category, run.StartedAt, run.DurationMs, run.TotalSteps, run.PassedSteps, run.FailedSteps,
		run.SkippedSteps,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	for _, step := range result.Steps {
		var locator, rung, category string
		if step.Element != nil {
			locator, rung = step.Element.Locator, step.Element.Rung
		}
		if step.Category != core.ErrCategoryNone {
			category = step.Category.String()
		}
		_, err := tx.Exec(
			`INSERT INTO step_results (run_id, step_index, action_id, kind, status, message, error, category, locator, rung,
				started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, step.Index, step.ActionID, step.Kind, step.Status.String(), step.Message, step.Error, category,
			locator, rung, step.StartTime.UTC(), step.Duration.Milliseconds(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to record step %d: %w", step.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

const runColumns = `id, batch_id, test_case_id, test_case_name, file_path, platform, iteration, status, error, category,
	started_at, duration_ms, total_steps, passed_steps, failed_steps, skipped_steps`

// ListRuns retrieves runs, most recent first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query("SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun retrieves a single run by ID
func (s *Store) GetRun(runID string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.BatchID, &r.TestCaseID, &r.TestCaseName, &r.FilePath, &r.Platform, &r.Iteration,
		&r.Status, &r.Error, &r.Category, &r.StartedAt, &r.DurationMs, &r.TotalSteps, &r.PassedSteps,
		&r.FailedSteps, &r.SkippedSteps)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return &r, nil
}

// Steps retrieves the steps of a run in execution order.
func (s *Store) Steps(runID string) ([]*StepResult, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, step_index, action_id, kind, status, message, error, category, locator, rung, started_at, duration_ms
		FROM step_results WHERE run_id = ? ORDER BY step_index ASC, id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query step results: %w", err)
	}
	defer rows.Close()

	var steps []*StepResult
	for rows.Next() {
		var st StepResult
		if err := rows.Scan(&st.ID, &st.RunID, &st.Index, &st.ActionID, &st.Kind, &st.Status, &st.Message, &st.Error,
			&st.Category, &st.Locator, &st.Rung, &st.StartedAt, &st.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}
		steps = append(steps, &st)
	}
	return steps, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
