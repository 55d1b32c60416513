// Package mock provides a scripted executor for testing runs without a live UI.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// Driver is a mock implementation of core.Executor for testing.
type Driver struct {
	// Configuration
	Config Config

	mu        sync.Mutex
	stepCount int
	executed  []testcase.TestAction
	inits     int
	teardowns int
}

var _ core.Executor = (*Driver)(nil)

// Config configures mock driver behavior.
type Config struct {
	// Platform to report. Defaults to web.
	Platform testcase.Platform
	// FailOnStep makes step N fail (1-indexed, counted across runs). 0 = never fail.
	FailOnStep int
	// FailOnIDs fails any action whose ID is listed.
	FailOnIDs map[string]bool
	// SkipKinds reports these kinds as skipped.
	SkipKinds map[testcase.ActionKind]bool
	// InitErr is returned from Init.
	InitErr error
	// StepDelay adds artificial delay per step
	StepDelay time.Duration
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	if cfg.Platform == "" {
		cfg.Platform = testcase.PlatformWeb
	}
	return &Driver{Config: cfg}
}

// Platform returns the configured platform.
func (d *Driver) Platform() testcase.Platform { return d.Config.Platform }

// Init counts the call and returns Config.InitErr.
func (d *Driver) Init(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inits++
	return d.Config.InitErr
}

// Teardown counts the call.
func (d *Driver) Teardown(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teardowns++
	return nil
}

// Execute simulates executing an action.
func (d *Driver) Execute(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	d.mu.Lock()
	d.stepCount++
	n := d.stepCount
	d.executed = append(d.executed, *action)
	d.mu.Unlock()

	start := time.Now()
	if d.Config.StepDelay > 0 {
		select {
		case <-time.After(d.Config.StepDelay):
		case <-ctx.Done():
			return core.Failed(ctx.Err())
		}
	}

	var result *core.CommandResult
	switch {
	case d.Config.SkipKinds[action.Type]:
		result = core.Skipped(fmt.Sprintf("mock skipped: %s", action.Type))
	case (d.Config.FailOnStep > 0 && n == d.Config.FailOnStep) || d.Config.FailOnIDs[action.ID]:
		result = core.Failed(fmt.Errorf("mock failure on step %d (%s)", n, action.Type))
	default:
		result = core.Passed(fmt.Sprintf("Mock executed: %s", action.Type))
		if action.Target != nil {
			result.Element = &core.ElementInfo{Locator: action.Target.Describe(), Rung: "primary", Text: "Mock Element"}
		}
	}
	result.Duration = time.Since(start)
	return result
}

// Executed returns copies of every action executed so far.
func (d *Driver) Executed() []testcase.TestAction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]testcase.TestAction(nil), d.executed...)
}

// Calls returns the number of Init and Teardown calls.
func (d *Driver) Calls() (inits, teardowns int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inits, d.teardowns
}
