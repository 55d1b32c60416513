package appium

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/config"
	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/logger"
	"github.com/devicelab-dev/replay-runner/pkg/resolver"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// DefaultSwipeDuration is used when a swipe payload omits its duration.
const DefaultSwipeDuration = 300

// Driver implements core.Executor for the mobile platform.
type Driver struct {
	client       *Client
	capabilities map[string]interface{}
	cfg          *config.Config

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

var _ core.Executor = (*Driver)(nil)

// NewDriver creates a mobile driver. The session is created on Init.
func NewDriver(cfg *config.Config) *Driver {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Driver{
		client:       NewClient(cfg.AppiumURL, cfg.Timeouts.MobileCommand.Std()),
		capabilities: cfg.Capabilities,
		cfg:          cfg,
		sleep:        resolver.Sleep,
		now:          time.Now,
	}
}

// Platform returns mobile.
func (d *Driver) Platform() testcase.Platform { return testcase.PlatformMobile }

// Init creates the Appium session unless one is already open.
func (d *Driver) Init(ctx context.Context) error {
	if d.client.Connected() {
		return nil
	}
	caps := d.capabilities
	if caps == nil {
		caps = map[string]interface{}{}
	}
	if err := d.client.Connect(ctx, caps); err != nil {
		return err
	}
	logger.Info("appium session %s created (%s)", d.client.sessionID, d.client.Platform())
	return nil
}

// Teardown keeps the session for later runs. Close ends it.
func (d *Driver) Teardown(context.Context) error { return nil }

// Close deletes the Appium session.
func (d *Driver) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Execute runs a single action.
func (d *Driver) Execute(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	start := d.now()
	result := d.execute(ctx, action)
	result.Duration = time.Since(start)
	return result
}

func (d *Driver) execute(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	if !d.client.Connected() {
		return core.Failed(core.ErrNoSession)
	}

	switch action.Type {
	case testcase.ActionTap, testcase.ActionClick:
		return d.tap(ctx, action)
	case testcase.ActionType:
		return d.typeText(ctx, action)
	case testcase.ActionSwipe:
		return d.swipe(ctx, action)
	case testcase.ActionWait:
		ms, err := action.ValueMillis()
		if err != nil {
			return core.Failed(core.ErrInvalidValue.WithCause(err))
		}
		if err := d.sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
			return core.Failed(err)
		}
		return core.Passed(fmt.Sprintf("waited %dms", ms))
	case testcase.ActionScreenshot:
		return d.screenshot(ctx)
	case testcase.ActionAssert:
		return d.assert(ctx, action)
	default:
		ua := &core.UnsupportedAction{Platform: string(testcase.PlatformMobile), Kind: string(action.Type)}
		logger.Warn("skipping: %v", ua)
		res := core.Skipped(ua.Error())
		res.Error = ua
		return res
	}
}

// strategyFor maps a locator kind to a W3C/Appium lookup strategy.
func strategyFor(kind testcase.LocatorKind) (string, bool) {
	switch kind {
	case testcase.LocatorID:
		return "id", true
	case testcase.LocatorXPath:
		return "xpath", true
	case testcase.LocatorAccessibilityID:
		return "accessibility id", true
	default:
		return "", false
	}
}

// find performs one direct lookup; mobile has no fallback ladder.
func (d *Driver) find(ctx context.Context, target *testcase.ElementLocator) (string, error) {
	if target == nil {
		return "", core.ErrMissingTarget
	}
	strategy, ok := strategyFor(target.Type)
	if !ok {
		return "", &core.ResolutionFailure{
			Target: target.Describe(),
			Last:   fmt.Errorf("locator type %q has no mobile lookup", target.Type),
		}
	}
	id, err := d.client.FindElement(ctx, strategy, target.Value)
	if err != nil {
		return "", &core.ResolutionFailure{
			Target:   target.Describe(),
			Attempts: []string{strategy + "=" + target.Value},
			Last:     err,
		}
	}
	return id, nil
}

func (d *Driver) tap(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	if action.Target != nil && action.Target.Type == testcase.LocatorCoordinates {
		p, err := testcase.ParsePoint(action.Target.Value)
		if err != nil {
			return core.Failed(core.ErrInvalidValue.WithCause(err))
		}
		if err := d.client.Tap(ctx, p.X, p.Y); err != nil {
			return core.Failed(&core.InteractionFailure{Op: "tap", Cause: err})
		}
		return core.Passed(fmt.Sprintf("tapped %d,%d", p.X, p.Y))
	}

	id, err := d.find(ctx, action.Target)
	if err != nil {
		return core.Failed(err)
	}
	if err := d.client.ClickElement(ctx, id); err != nil {
		return core.Failed(&core.InteractionFailure{Op: "tap", Cause: err})
	}
	res := core.Passed("tapped " + action.Describe())
	res.Element = &core.ElementInfo{Locator: action.Target.Describe()}
	return res
}

func (d *Driver) typeText(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	id, err := d.find(ctx, action.Target)
	if err != nil {
		return core.Failed(err)
	}
	if err := d.client.ClearElement(ctx, id); err != nil {
		logger.Debug("clear %s: %v", action.Target.Describe(), err)
	}
	if err := d.client.SendElementKeys(ctx, id, action.ValueString()); err != nil {
		return core.Failed(&core.InteractionFailure{Op: "type", Cause: err})
	}
	res := core.Passed("typed into " + action.Describe())
	res.Element = &core.ElementInfo{Locator: action.Target.Describe()}
	return res
}

func (d *Driver) swipe(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	p, err := action.SwipePayload()
	if err != nil {
		return core.Failed(core.ErrInvalidValue.WithCause(err))
	}
	if p.DurationMs <= 0 {
		p.DurationMs = DefaultSwipeDuration
	}
	if err := d.client.Swipe(ctx, p.StartX, p.StartY, p.EndX, p.EndY, p.DurationMs); err != nil {
		return core.Failed(&core.InteractionFailure{Op: "swipe", Cause: err})
	}
	return core.Passed(fmt.Sprintf("swiped %d,%d to %d,%d", p.StartX, p.StartY, p.EndX, p.EndY))
}

func (d *Driver) assert(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	id, err := d.find(ctx, action.Target)
	if err != nil {
		return core.Failed(err)
	}
	actual, err := d.client.GetElementText(ctx, id)
	if err != nil {
		return core.Failed(&core.InteractionFailure{Op: "read text", Cause: err})
	}
	expected := strings.TrimSpace(action.ValueString())
	info := &core.ElementInfo{Locator: action.Target.Describe(), Text: actual}
	if strings.TrimSpace(actual) != expected {
		res := core.Failed(&core.AssertionMismatch{Expected: expected, Actual: strings.TrimSpace(actual)})
		res.Element = info
		return res
	}
	res := core.Passed(fmt.Sprintf("text is %q", expected))
	res.Element = info
	return res
}

// screenshot never fails the step; a capture error is only logged.
func (d *Driver) screenshot(ctx context.Context) *core.CommandResult {
	path := core.ScreenshotPath(d.cfg.ScreenshotDir, d.now())
	err := func() error {
		data, err := d.client.Screenshot(ctx)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return core.Failed(err)
		}
		logger.Warn("screenshot failed: %v", err)
		return core.Passed("screenshot failed: " + err.Error())
	}
	res := core.Passed("saved " + path)
	res.Data = core.NewScreenshotAttachment(path)
	return res
}
