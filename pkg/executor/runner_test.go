package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/driver/mock"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

func newCase(platform testcase.Platform, n int) *testcase.TestCase {
	tc := &testcase.TestCase{ID: "tc-1", Name: "Checkout", Platform: platform}
	for i := 0; i < n; i++ {
		tc.Actions = append(tc.Actions, testcase.TestAction{
			ID:       fmt.Sprintf("a%d", i+1),
			Platform: platform,
			Type:     testcase.ActionClick,
			Target:   &testcase.ElementLocator{Type: testcase.LocatorCSS, Value: fmt.Sprintf("#b%d", i+1)},
		})
	}
	return tc
}

func newController(t *testing.T, drivers ...*mock.Driver) *Controller {
	t.Helper()
	execs := make(map[testcase.Platform]core.Executor)
	for _, d := range drivers {
		execs[d.Platform()] = d
	}
	c, err := New(execs, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_RejectsContinueOnFailure(t *testing.T) {
	_, err := New(nil, Config{ContinueOnFailure: true})
	if !errors.Is(err, ErrContinueOnFailure) {
		t.Errorf("New() error = %v, want ErrContinueOnFailure", err)
	}
}

func TestExecuteTestCase_AllPassed(t *testing.T) {
	d := mock.New(mock.Config{})
	c := newController(t, d)

	result := c.ExecuteTestCase(context.Background(), newCase(testcase.PlatformWeb, 3))

	if result.Status != core.StatusPassed {
		t.Errorf("Status = %v, want passed", result.Status)
	}
	if result.TotalSteps != 3 || result.PassedSteps != 3 {
		t.Errorf("steps = %d total, %d passed; want 3, 3", result.TotalSteps, result.PassedSteps)
	}
	if inits, teardowns := d.Calls(); inits != 1 || teardowns != 1 {
		t.Errorf("Init/Teardown = %d/%d, want 1/1", inits, teardowns)
	}
}

func TestExecuteTestCase_StopsAtFirstFailure(t *testing.T) {
	d := mock.New(mock.Config{FailOnStep: 3})
	c := newController(t, d)

	result := c.ExecuteTestCase(context.Background(), newCase(testcase.PlatformWeb, 5))

	if result.Status != core.StatusFailed {
		t.Errorf("Status = %v, want failed", result.Status)
	}
	if len(result.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(result.Steps))
	}
	if got := len(d.Executed()); got != 3 {
		t.Errorf("executed %d actions, want 3", got)
	}
	if result.Steps[2].Status != core.StatusFailed {
		t.Errorf("step 3 status = %v, want failed", result.Steps[2].Status)
	}
	if result.Error == "" || result.Error != result.Steps[2].Message {
		t.Errorf("Error = %q, want first failing message %q", result.Error, result.Steps[2].Message)
	}
	if _, teardowns := d.Calls(); teardowns != 1 {
		t.Errorf("Teardown called %d times after failure, want 1", teardowns)
	}
}

func TestExecuteTestCase_Empty(t *testing.T) {
	c := newController(t, mock.New(mock.Config{}))

	result := c.ExecuteTestCase(context.Background(), newCase(testcase.PlatformWeb, 0))

	if result.Status != core.StatusPassed {
		t.Errorf("Status = %v, want passed", result.Status)
	}
	if result.TotalSteps != 0 || result.Steps == nil {
		t.Errorf("Steps = %v, want empty non-nil", result.Steps)
	}
}

func TestExecuteTestCase_InitFailure(t *testing.T) {
	d := mock.New(mock.Config{Platform: testcase.PlatformMobile, InitErr: errors.New("no device")})
	c := newController(t, d)

	result := c.ExecuteTestCase(context.Background(), newCase(testcase.PlatformMobile, 2))

	if result.Status != core.StatusFailed {
		t.Errorf("Status = %v, want failed", result.Status)
	}
	if len(result.Steps) != 0 {
		t.Errorf("got %d steps, want 0", len(result.Steps))
	}
	if result.Category != core.ErrCategoryPlatformInit {
		t.Errorf("Category = %v, want platform_init", result.Category)
	}
	if len(d.Executed()) != 0 {
		t.Error("actions executed after init failure")
	}
}

func TestExecuteTestCase_NoExecutor(t *testing.T) {
	c := newController(t, mock.New(mock.Config{}))

	result := c.ExecuteTestCase(context.Background(), newCase(testcase.PlatformDesktop, 1))

	if result.Status != core.StatusFailed || result.Category != core.ErrCategoryPlatformInit {
		t.Errorf("result = %v/%v, want failed/platform_init", result.Status, result.Category)
	}
}

func TestExecuteTestCase_SkippedDoesNotHalt(t *testing.T) {
	d := mock.New(mock.Config{
		Platform:  testcase.PlatformMobile,
		SkipKinds: map[testcase.ActionKind]bool{testcase.ActionHover: true},
	})
	c := newController(t, d)
	tc := newCase(testcase.PlatformMobile, 3)
	tc.Actions[1].Type = testcase.ActionHover

	result := c.ExecuteTestCase(context.Background(), tc)

	if result.Status != core.StatusPassed {
		t.Errorf("Status = %v, want passed", result.Status)
	}
	if result.SkippedSteps != 1 || result.PassedSteps != 2 {
		t.Errorf("passed/skipped = %d/%d, want 2/1", result.PassedSteps, result.SkippedSteps)
	}
}

func TestExecuteTestCase_Callbacks(t *testing.T) {
	d := mock.New(mock.Config{FailOnStep: 2})
	var started, ended int
	var statuses []core.StepStatus
	var endPassed bool

	c, err := New(map[testcase.Platform]core.Executor{testcase.PlatformWeb: d}, Config{
		OnRunStart: func(_, _ int, _, _ string) { started++ },
		OnStepComplete: func(_ int, _ string, status core.StepStatus, _ int64, _ string) {
			statuses = append(statuses, status)
		},
		OnRunEnd: func(_ string, passed bool, _ int64) {
			ended++
			endPassed = passed
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	c.ExecuteTestCase(context.Background(), newCase(testcase.PlatformWeb, 4))

	if started != 1 || ended != 1 {
		t.Errorf("start/end callbacks = %d/%d, want 1/1", started, ended)
	}
	if len(statuses) != 2 || statuses[1] != core.StatusFailed {
		t.Errorf("step statuses = %v", statuses)
	}
	if endPassed {
		t.Error("OnRunEnd reported passed for a failed run")
	}
}

func TestExecuteTestCase_ExpandsVariablesWithoutMutating(t *testing.T) {
	d := mock.New(mock.Config{})
	c, err := New(map[testcase.Platform]core.Executor{testcase.PlatformWeb: d}, Config{
		Env: map[string]string{"USER_EMAIL": "qa@example.com"},
	})
	if err != nil {
		t.Fatal(err)
	}
	tc := newCase(testcase.PlatformWeb, 1)
	tc.Actions[0].Type = testcase.ActionType
	tc.Actions[0].Value = "${USER_EMAIL}"
	tc.Actions[0].Target.Value = "#email-${1 + 1}"

	result := c.ExecuteTestCase(context.Background(), tc)
	if !result.Success() {
		t.Fatalf("run failed: %s", result.Error)
	}

	got := d.Executed()[0]
	if got.Value != "qa@example.com" {
		t.Errorf("executed value = %v, want expanded email", got.Value)
	}
	if got.Target.Value != "#email-2" {
		t.Errorf("executed target = %q, want #email-2", got.Target.Value)
	}
	if tc.Actions[0].Value != "${USER_EMAIL}" || tc.Actions[0].Target.Value != "#email-${1 + 1}" {
		t.Error("test case was mutated by expansion")
	}
}

func TestExecuteTestCase_ScreenshotAttachment(t *testing.T) {
	shot := core.NewScreenshotAttachment("/tmp/screenshot-1.png")
	exec := &funcExecutor{
		platform: testcase.PlatformWeb,
		execute: func(*testcase.TestAction) *core.CommandResult {
			res := core.Passed("saved")
			res.Data = shot
			return res
		},
	}
	c, err := New(map[testcase.Platform]core.Executor{testcase.PlatformWeb: exec}, Config{})
	if err != nil {
		t.Fatal(err)
	}
	tc := &testcase.TestCase{ID: "s", Platform: testcase.PlatformWeb, Actions: []testcase.TestAction{{Type: testcase.ActionScreenshot}}}

	result := c.ExecuteTestCase(context.Background(), tc)

	if len(result.Steps) != 1 || len(result.Steps[0].Attachments) != 1 {
		t.Fatalf("steps = %+v, want one attachment", result.Steps)
	}
	if result.Steps[0].Attachments[0].Path != shot.Path {
		t.Errorf("attachment path = %q", result.Steps[0].Attachments[0].Path)
	}
}

func TestExecuteTestCase_CategorizesFailure(t *testing.T) {
	exec := &funcExecutor{
		platform: testcase.PlatformWeb,
		execute: func(*testcase.TestAction) *core.CommandResult {
			return core.Failed(&core.AssertionMismatch{Expected: "a", Actual: "b"})
		},
	}
	c, err := New(map[testcase.Platform]core.Executor{testcase.PlatformWeb: exec}, Config{})
	if err != nil {
		t.Fatal(err)
	}

	result := c.ExecuteTestCase(context.Background(), newCase(testcase.PlatformWeb, 2))

	if result.Category != core.ErrCategoryAssertion {
		t.Errorf("Category = %v, want assertion", result.Category)
	}
	if result.Steps[0].Category != core.ErrCategoryAssertion {
		t.Errorf("step Category = %v, want assertion", result.Steps[0].Category)
	}
}

func TestExecuteTestCase_Cancelled(t *testing.T) {
	d := mock.New(mock.Config{})
	c := newController(t, d)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.ExecuteTestCase(ctx, newCase(testcase.PlatformWeb, 3))

	if result.Status != core.StatusFailed {
		t.Errorf("Status = %v, want failed", result.Status)
	}
	if len(d.Executed()) != 0 {
		t.Errorf("executed %d actions after cancel", len(d.Executed()))
	}
}

func TestExecuteBatch_ContinuesAfterFailure(t *testing.T) {
	d := mock.New(mock.Config{FailOnIDs: map[string]bool{"a2": true}})
	c := newController(t, d)

	first := newCase(testcase.PlatformWeb, 2)
	second := newCase(testcase.PlatformWeb, 1)
	second.ID = "tc-2"

	results := c.ExecuteBatch(context.Background(), []*testcase.TestCase{first, second})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Status != core.StatusFailed {
		t.Errorf("first status = %v, want failed", results[0].Status)
	}
	if results[1].Status != core.StatusPassed {
		t.Errorf("second status = %v, want passed", results[1].Status)
	}
}

// funcExecutor is a core.Executor backed by a function.
type funcExecutor struct {
	platform testcase.Platform
	execute  func(*testcase.TestAction) *core.CommandResult
}

func (f *funcExecutor) Platform() testcase.Platform { return f.platform }
func (f *funcExecutor) Init(context.Context) error { return nil }
func (f *funcExecutor) Teardown(context.Context) error { return nil }
func (f *funcExecutor) Execute(_ context.Context, a *testcase.TestAction) *core.CommandResult {
	return f.execute(a)
}

func TestExecuteTestCase_ProcessEnvNotBareExpanded(t *testing.T) {
	d := mock.New(mock.Config{})
	c, err := New(map[testcase.Platform]core.Executor{testcase.PlatformWeb: d}, Config{
		ProcessEnv: map[string]string{"HOME": "/home/runner"},
	})
	if err != nil {
		t.Fatal(err)
	}
	tc := newCase(testcase.PlatformWeb, 2)
	tc.Actions[0].Type = testcase.ActionType
	tc.Actions[0].Value = "echo $HOME"
	tc.Actions[1].Type = testcase.ActionType
	tc.Actions[1].Value = "${env.HOME}"

	if result := c.ExecuteTestCase(context.Background(), tc); !result.Success() {
		t.Fatalf("run failed: %s", result.Error)
	}
	got := d.Executed()
	if got[0].Value != "echo $HOME" {
		t.Errorf("literal value = %v, want unchanged", got[0].Value)
	}
	if got[1].Value != "/home/runner" {
		t.Errorf("env value = %v, want /home/runner", got[1].Value)
	}
}
