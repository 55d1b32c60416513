// Package executor sequences test case actions through platform executors
// and aggregates their results.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/logger"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// ErrContinueOnFailure is returned by New when ContinueOnFailure is set.
// Runs always stop on the first failing step.
var ErrContinueOnFailure = errors.New("continue-on-failure is not supported: runs stop on the first failing step")

// Config configures the controller.
type Config struct {
	// ContinueOnFailure is reserved. New rejects it.
	ContinueOnFailure bool

	// Env holds the declared variables, expanded as ${NAME} and $NAME.
	Env map[string]string
	// ProcessEnv is reachable only as ${env.NAME}. Nil means os.Environ.
	ProcessEnv map[string]string

	// Live progress callbacks
	OnRunStart     func(runIdx, totalRuns int, name, file string)
	OnStepComplete func(idx int, desc string, status core.StepStatus, durationMs int64, err string)
	OnRunEnd       func(name string, passed bool, durationMs int64)
}

// Controller runs test cases against injected platform executors.
type Controller struct {
	executors map[testcase.Platform]core.Executor
	config    Config

	now func() time.Time
}

// New creates a controller. Executors are owned by the caller.
func New(executors map[testcase.Platform]core.Executor, cfg Config) (*Controller, error) {
	if cfg.ContinueOnFailure {
		return nil, ErrContinueOnFailure
	}
	return &Controller{
		executors: executors,
		config:    cfg,
		now:       time.Now,
	}, nil
}

func (c *Controller) processEnv() map[string]string {
	if c.config.ProcessEnv != nil {
		return c.config.ProcessEnv
	}
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// ExecuteTestCase runs every action of tc in order and stops at the first
// failing step. Teardown always runs once Init has been attempted.
func (c *Controller) ExecuteTestCase(ctx context.Context, tc *testcase.TestCase) *core.ExecutionResult {
	return c.run(ctx, tc, 0, 0, 1)
}

// ExecuteBatch runs cases sequentially. A failing case does not stop the batch.
func (c *Controller) ExecuteBatch(ctx context.Context, cases []*testcase.TestCase) []*core.ExecutionResult {
	results := make([]*core.ExecutionResult, 0, len(cases))
	for i, tc := range cases {
		if ctx.Err() != nil {
			logger.Warn("batch cancelled before %s", tc.DisplayName())
			break
		}
		results = append(results, c.run(ctx, tc, 0, i, len(cases)))
	}
	return results
}

// run executes one iteration of tc. iteration is 0 outside of loops.
func (c *Controller) run(ctx context.Context, tc *testcase.TestCase, iteration, runIdx, totalRuns int) *core.ExecutionResult {
	start := c.now()
	result := &core.ExecutionResult{
		TestCaseID:   tc.ID,
		TestCaseName: tc.DisplayName(),
		FilePath:     tc.SourcePath,
		Platform:     tc.Platform,
		Iteration:    iteration,
		StartTime:    start,
		Steps:        []core.StepResult{},
	}

	if c.config.OnRunStart != nil {
		c.config.OnRunStart(runIdx, totalRuns, result.TestCaseName, tc.SourcePath)
	}
	logger.Info("run %q on %s: %d actions", result.TestCaseName, tc.Platform, len(tc.Actions))

	defer func() {
		result.ComputeSummary()
		result.Status = result.AggregateStatus()
		result.Duration = time.Since(start)
		logger.Info("run %q %s in %s", result.TestCaseName, result.Status, result.Duration)
		if c.config.OnRunEnd != nil {
			c.config.OnRunEnd(result.TestCaseName, result.Success(), result.Duration.Milliseconds())
		}
	}()

	exec, ok := c.executors[tc.Platform]
	if !ok {
		c.fail(result, &core.PlatformInitFailure{
			Platform: string(tc.Platform),
			Cause:    fmt.Errorf("no executor registered"),
		})
		return result
	}

	if err := exec.Init(ctx); err != nil {
		c.fail(result, &core.PlatformInitFailure{Platform: string(tc.Platform), Cause: err})
		if tdErr := exec.Teardown(ctx); tdErr != nil {
			logger.Warn("teardown %s: %v", tc.Platform, tdErr)
		}
		return result
	}
	defer func() {
		if err := exec.Teardown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("teardown %s: %v", tc.Platform, err)
		}
	}()

	scripts := NewScriptEngine()
	scripts.SetVariables(c.config.Env)
	scripts.SetEnv(c.processEnv())
	scripts.SetPlatform(tc.Platform)

	for i := range tc.Actions {
		if err := ctx.Err(); err != nil {
			c.fail(result, fmt.Errorf("run cancelled: %w", err))
			return result
		}

		step := c.executeStep(ctx, exec, scripts, &tc.Actions[i], i)
		result.Steps = append(result.Steps, step)

		if c.config.OnStepComplete != nil {
			c.config.OnStepComplete(i, step.Action.Describe(), step.Status, step.Duration.Milliseconds(), step.Error)
		}
		if step.Status.HaltsRun() {
			result.Error = step.Message
			result.Category = step.Category
			logger.Info("halting %q at step %d: %s", result.TestCaseName, i+1, step.Message)
			return result
		}
	}
	return result
}

func (c *Controller) executeStep(ctx context.Context, exec core.Executor, scripts *ScriptEngine, original *testcase.TestAction, idx int) core.StepResult {
	action := scripts.ExpandAction(original)
	step := core.StepResult{
		Action:    *original,
		ActionID:  action.ID,
		Index:     idx,
		Kind:      string(action.Type),
		Status:    core.StatusRunning,
		StartTime: c.now(),
	}
	logger.Debug("step %d: %s %s", idx+1, action.Type, action.Describe())

	res := exec.Execute(ctx, action)
	if res == nil {
		res = core.Failed(fmt.Errorf("executor returned no result for %s", action.Type))
	}

	step.Status = res.Status()
	step.Duration = res.Duration
	step.Message = res.Message
	step.Element = res.Element
	step.Data = res.Data
	if att, ok := res.Data.(core.Attachment); ok {
		step.Attachments = append(step.Attachments, att)
	}
	if res.Error != nil {
		step.Error = res.Error.Error()
		if step.Status == core.StatusFailed {
			step.Category = core.Categorize(res.Error)
		}
	}
	if step.Status == core.StatusFailed && step.Message == "" {
		step.Message = fmt.Sprintf("%s failed", action.Type)
	}
	return step
}

// fail records a run-level error that occurred outside any step.
func (c *Controller) fail(result *core.ExecutionResult, err error) {
	result.Error = err.Error()
	result.Category = core.Categorize(err)
	logger.Error("run %q: %v", result.TestCaseName, err)
}
