// Package desktop replays actions as absolute-coordinate input events.
package desktop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/config"
	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/logger"
	"github.com/devicelab-dev/replay-runner/pkg/resolver"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// InputDriver synthesizes OS-level input.
type InputDriver interface {
	Check(ctx context.Context) error
	MoveMouse(ctx context.Context, p testcase.Point) error
	Click(ctx context.Context, p testcase.Point) error
	TypeText(ctx context.Context, text string) error
	KeyTap(ctx context.Context, key string) error
	Drag(ctx context.Context, from, to testcase.Point) error
	Screenshot(ctx context.Context, path string) error
}

// Driver implements core.Executor for the desktop platform.
type Driver struct {
	input InputDriver
	cfg   *config.Config

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

var _ core.Executor = (*Driver)(nil)

// New creates a desktop driver.
func New(input InputDriver, cfg *config.Config) *Driver {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Driver{input: input, cfg: cfg, sleep: resolver.Sleep, now: time.Now}
}

// Platform returns desktop.
func (d *Driver) Platform() testcase.Platform { return testcase.PlatformDesktop }

// Init checks the input driver can reach the display.
func (d *Driver) Init(ctx context.Context) error {
	return d.input.Check(ctx)
}

// Teardown is a no-op; input drivers hold no per-run state.
func (d *Driver) Teardown(context.Context) error { return nil }

// Execute runs a single action.
func (d *Driver) Execute(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	start := d.now()
	result := d.execute(ctx, action)
	result.Duration = time.Since(start)
	return result
}

func (d *Driver) execute(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	switch action.Type {
	case testcase.ActionClick, testcase.ActionTap:
		p, res := d.point(action)
		if res != nil {
			return res
		}
		if err := d.input.Click(ctx, p); err != nil {
			return core.Failed(&core.InteractionFailure{Op: "click", Cause: err})
		}
		return core.Passed(fmt.Sprintf("clicked %d,%d", p.X, p.Y))

	case testcase.ActionHover:
		p, res := d.point(action)
		if res != nil {
			return res
		}
		if err := d.input.MoveMouse(ctx, p); err != nil {
			return core.Failed(&core.InteractionFailure{Op: "hover", Cause: err})
		}
		return core.Passed(fmt.Sprintf("moved to %d,%d", p.X, p.Y))

	case testcase.ActionType:
		if action.Target != nil {
			p, res := d.point(action)
			if res != nil {
				return res
			}
			if err := d.input.Click(ctx, p); err != nil {
				return core.Failed(&core.InteractionFailure{Op: "focus", Cause: err})
			}
		}
		if err := d.input.TypeText(ctx, action.ValueString()); err != nil {
			return core.Failed(&core.InteractionFailure{Op: "type", Cause: err})
		}
		return core.Passed("typed text")

	case testcase.ActionPressKey:
		key := strings.TrimSpace(action.ValueString())
		if key == "" {
			return core.Failed(core.ErrInvalidValue.WithMessage("press-key requires a key name"))
		}
		if err := d.input.KeyTap(ctx, key); err != nil {
			return core.Failed(&core.InteractionFailure{Op: "press " + key, Cause: err})
		}
		return core.Passed("pressed " + key)

	case testcase.ActionDragDrop:
		drag, err := action.DragPayload()
		if err != nil {
			return core.Failed(core.ErrInvalidValue.WithCause(err))
		}
		if err := d.input.Drag(ctx, drag.From, drag.To); err != nil {
			return core.Failed(&core.InteractionFailure{Op: "drag", Cause: err})
		}
		return core.Passed(fmt.Sprintf("dragged %d,%d to %d,%d", drag.From.X, drag.From.Y, drag.To.X, drag.To.Y))

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
		path := core.ScreenshotPath(d.cfg.ScreenshotDir, d.now())
		if err := d.input.Screenshot(ctx, path); err != nil {
			logger.Warn("screenshot failed: %v", err)
			return core.Passed("screenshot failed: " + err.Error())
		}
		res := core.Passed("saved " + path)
		res.Data = core.NewScreenshotAttachment(path)
		return res

	default:
		ua := &core.UnsupportedAction{Platform: string(testcase.PlatformDesktop), Kind: string(action.Type)}
		logger.Warn("skipping: %v", ua)
		res := core.Skipped(ua.Error())
		res.Error = ua
		return res
	}
}

// point returns the action's coordinates. Non-coordinate locators cannot
// be resolved on the desktop, so those actions are skipped.
func (d *Driver) point(action *testcase.TestAction) (testcase.Point, *core.CommandResult) {
	if action.Target == nil {
		return testcase.Point{}, core.Failed(core.ErrMissingTarget)
	}
	if action.Target.Type != testcase.LocatorCoordinates {
		msg := fmt.Sprintf("locator %s cannot be resolved on desktop", action.Target.Describe())
		logger.Warn("skipping %s: %s", action.Type, msg)
		return testcase.Point{}, core.Skipped(msg)
	}
	p, err := testcase.ParsePoint(action.Target.Value)
	if err != nil {
		return testcase.Point{}, core.Failed(core.ErrInvalidValue.WithCause(err))
	}
	return p, nil
}
