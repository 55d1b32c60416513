// Package web replays actions in a browser.
package web

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/config"
	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/logger"
	"github.com/devicelab-dev/replay-runner/pkg/resolver"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// Browser owns the browser process and its active page.
// Implemented by browser.Session.
type Browser interface {
	// Open starts the browser if needed and returns the active page.
	Open(ctx context.Context) (resolver.Page, error)
	// Current returns the active page, or nil when no browser is open.
	Current() resolver.Page
	Close() error
}

// Driver implements core.Executor for the web platform.
type Driver struct {
	browser  Browser
	resolver *resolver.Resolver
	cfg      *config.Config

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

var _ core.Executor = (*Driver)(nil)

// New creates a web driver over b.
func New(b Browser, cfg *config.Config) *Driver {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Driver{
		browser:  b,
		resolver: resolver.New(cfg.Timeouts, cfg.Heuristics),
		cfg:      cfg,
		sleep:    resolver.Sleep,
		now:      time.Now,
	}
}

// Platform returns web.
func (d *Driver) Platform() testcase.Platform { return testcase.PlatformWeb }

// Init makes sure a page is open.
func (d *Driver) Init(ctx context.Context) error {
	_, err := d.browser.Open(ctx)
	return err
}

// Teardown keeps the browser open so later runs can reuse it.
func (d *Driver) Teardown(context.Context) error { return nil }

// Page returns the active page, opening the browser if needed.
func (d *Driver) Page(ctx context.Context) (resolver.Page, error) {
	return d.browser.Open(ctx)
}

// Execute runs a single action.
func (d *Driver) Execute(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	start := d.now()
	result := d.execute(ctx, action)
	result.Duration = time.Since(start)
	return result
}

func (d *Driver) execute(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	if marker, ok := lifecycleMarker(action); ok {
		return d.lifecycle(ctx, action, marker)
	}
	if action.Type == testcase.ActionNavigate {
		return d.navigate(ctx, action)
	}

	page := d.browser.Current()
	if page == nil {
		return core.Failed(core.ErrNoPage)
	}

	if action.Target != nil || action.Type.RequiresTarget() {
		if err := page.RemoveAll(d.cfg.Heuristics.RecordingOverlaySelector); err != nil {
			logger.Debug("remove recording overlay: %v", err)
		}
	}

	switch action.Type {
	case testcase.ActionClick:
		return d.act(ctx, page, action, func(el resolver.Element, force bool) error {
			return el.Click(force)
		})
	case testcase.ActionHover:
		return d.act(ctx, page, action, func(el resolver.Element, _ bool) error {
			return el.Hover()
		})
	case testcase.ActionSelect:
		value := action.ValueString()
		return d.act(ctx, page, action, func(el resolver.Element, _ bool) error {
			return el.SelectOption(value)
		})
	case testcase.ActionType:
		return d.typeText(ctx, page, action)
	case testcase.ActionWait:
		return d.wait(ctx, action)
	case testcase.ActionWaitForElement:
		return d.waitForElement(ctx, page, action)
	case testcase.ActionAssert:
		return d.assert(ctx, page, action)
	case testcase.ActionPressKey:
		return d.pressKey(ctx, page, action)
	case testcase.ActionScroll:
		return d.scroll(ctx, page, action)
	case testcase.ActionScreenshot:
		return d.screenshot(page)
	case testcase.ActionCustom:
		return d.script(page, action)
	default:
		return core.Failed(&core.UnsupportedAction{Platform: string(testcase.PlatformWeb), Kind: string(action.Type)})
	}
}

// lifecycleMarker reports whether the action is a browser start or close
// marker. Markers ride on custom actions and, in older recordings, on
// navigate actions. A custom action whose value is an absolute URL is a
// start that opens that URL.
func lifecycleMarker(action *testcase.TestAction) (string, bool) {
	if action.Type != testcase.ActionCustom && action.Type != testcase.ActionNavigate {
		return "", false
	}
	v := strings.TrimSpace(action.ValueString())
	switch v {
	case testcase.MarkerStartBrowser, testcase.MarkerCloseBrowser:
		return v, true
	}
	if action.Type == testcase.ActionCustom && isAbsoluteURL(v) {
		return testcase.MarkerStartBrowser, true
	}
	return "", false
}

// isAbsoluteURL accepts http, https and file URLs.
func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	case "file":
		return u.Path != ""
	}
	return false
}

// startURL is the URL a start action should open, if any.
func startURL(action *testcase.TestAction) string {
	if u, ok := action.Metadata["url"].(string); ok && strings.TrimSpace(u) != "" {
		return strings.TrimSpace(u)
	}
	if v := strings.TrimSpace(action.ValueString()); isAbsoluteURL(v) {
		return v
	}
	return ""
}

// sameURL compares two URLs after normalisation, so "https://a.test" and
// "https://a.test/" are equal.
func sameURL(a, b string) bool {
	if a == b {
		return true
	}
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	for _, u := range []*url.URL{ua, ub} {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		if u.Path == "" && u.Host != "" {
			u.Path = "/"
		}
	}
	return ua.String() == ub.String()
}

func (d *Driver) lifecycle(ctx context.Context, action *testcase.TestAction, marker string) *core.CommandResult {
	if marker == testcase.MarkerCloseBrowser {
		if err := d.browser.Close(); err != nil {
			return core.Failed(fmt.Errorf("close browser: %w", err))
		}
		return core.Passed("browser closed")
	}

	alreadyOpen := d.browser.Current() != nil
	if _, err := d.browser.Open(ctx); err != nil {
		return core.Failed(&core.PlatformInitFailure{Platform: string(testcase.PlatformWeb), Cause: err})
	}

	// A start may carry the URL to open
	if u := startURL(action); u != "" {
		return d.navigate(ctx, &testcase.TestAction{Type: testcase.ActionNavigate, Value: u})
	}
	if alreadyOpen {
		return core.Passed("browser already open")
	}
	return core.Passed("browser started")
}

func (d *Driver) navigate(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	target := strings.TrimSpace(action.ValueString())
	if target == "" {
		// Recorded tab switches carry no URL
		return core.Passed("tab switch, nothing to navigate")
	}

	page, err := d.browser.Open(ctx)
	if err != nil {
		return core.Failed(&core.PlatformInitFailure{Platform: string(testcase.PlatformWeb), Cause: err})
	}

	if current, err := page.URL(); err == nil && sameURL(current, target) {
		return core.Passed("already at " + target)
	}

	if err := page.Navigate(ctx, target); err != nil {
		return core.Failed(fmt.Errorf("navigate to %s: %w", target, err))
	}
	if err := page.WaitDOMContentLoaded(ctx, d.cfg.Timeouts.Navigation.Std()); err != nil {
		logger.Warn("DOMContentLoaded not reached for %s: %v", target, err)
	}
	if err := d.sleep(ctx, d.cfg.Timeouts.PostNavigateDelay.Std()); err != nil {
		return core.Failed(err)
	}

	res := core.Passed("navigated to " + target)
	res.Data = target
	return res
}

// act runs the full resolution ladder with op.
func (d *Driver) act(ctx context.Context, page resolver.Page, action *testcase.TestAction, op resolver.Op) *core.CommandResult {
	m, err := d.resolver.ResolveAndAct(ctx, page, action, op)
	if err != nil {
		return core.Failed(err)
	}
	res := core.Passed(fmt.Sprintf("%s %s", action.Type, action.Describe()))
	res.Element = m.Info()
	return res
}

func (d *Driver) typeText(ctx context.Context, page resolver.Page, action *testcase.TestAction) *core.CommandResult {
	m, err := d.resolver.ResolvePrimaryOrCSS(ctx, page, action.Target)
	if err != nil {
		return core.Failed(err)
	}
	if err := m.Element.WaitVisible(d.cfg.Timeouts.Element.Std()); err != nil {
		return core.Failed(&core.InteractionFailure{Op: "type", Cause: err})
	}
	if err := m.Element.Fill(action.ValueString()); err != nil {
		return core.Failed(err)
	}
	res := core.Passed("typed into " + action.Describe())
	res.Element = m.Info()
	return res
}

func (d *Driver) wait(ctx context.Context, action *testcase.TestAction) *core.CommandResult {
	ms, err := action.ValueMillis()
	if err != nil {
		return core.Failed(core.ErrInvalidValue.WithCause(err))
	}
	if err := d.sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
		return core.Failed(err)
	}
	return core.Passed(fmt.Sprintf("waited %dms", ms))
}

func (d *Driver) waitForElement(ctx context.Context, page resolver.Page, action *testcase.TestAction) *core.CommandResult {
	m, err := d.resolver.ResolvePresence(ctx, page, action.Target, d.cfg.Timeouts.WaitForElement.Std())
	if err != nil {
		return core.Failed(err)
	}
	res := core.Passed(action.Describe() + " is present")
	res.Element = m.Info()
	return res
}

func (d *Driver) assert(ctx context.Context, page resolver.Page, action *testcase.TestAction) *core.CommandResult {
	m, err := d.resolver.Resolve(ctx, page, action)
	if err != nil {
		return core.Failed(err)
	}
	actual, err := m.Element.Text()
	if err != nil {
		return core.Failed(&core.InteractionFailure{Op: "read text", Cause: err})
	}

	info := m.Info()
	info.Text = actual
	expected := strings.TrimSpace(action.ValueString())
	if strings.TrimSpace(actual) != expected {
		res := core.Failed(&core.AssertionMismatch{Expected: expected, Actual: strings.TrimSpace(actual)})
		res.Element = info
		return res
	}
	res := core.Passed(fmt.Sprintf("text is %q", expected))
	res.Element = info
	return res
}

func (d *Driver) pressKey(ctx context.Context, page resolver.Page, action *testcase.TestAction) *core.CommandResult {
	key := strings.TrimSpace(action.ValueString())
	if key == "" {
		return core.Failed(core.ErrInvalidValue.WithMessage("press-key requires a key name"))
	}
	if action.Target != nil {
		if m, err := d.resolver.ResolvePrimaryOrCSS(ctx, page, action.Target); err != nil {
			logger.Warn("press-key target %s not found, pressing on current focus: %v", action.Target.Describe(), err)
		} else if err := m.Element.Focus(); err != nil {
			logger.Warn("focus %s: %v", action.Target.Describe(), err)
		}
	}
	if err := page.PressKey(key); err != nil {
		return core.Failed(&core.InteractionFailure{Op: "press " + key, Cause: err})
	}
	return core.Passed("pressed " + key)
}

func (d *Driver) scroll(ctx context.Context, page resolver.Page, action *testcase.TestAction) *core.CommandResult {
	if action.Target != nil {
		m, err := d.resolver.ResolvePrimaryOrCSS(ctx, page, action.Target)
		if err != nil {
			return core.Failed(err)
		}
		if err := m.Element.ScrollIntoView(); err != nil {
			return core.Failed(&core.InteractionFailure{Op: "scroll", Cause: err})
		}
		res := core.Passed("scrolled to " + action.Describe())
		res.Element = m.Info()
		return res
	}

	delta, err := testcase.PointValue(action.Value)
	if err != nil {
		return core.Failed(core.ErrInvalidValue.WithCause(err))
	}
	if err := page.Scroll(float64(delta.X), float64(delta.Y)); err != nil {
		return core.Failed(&core.InteractionFailure{Op: "scroll", Cause: err})
	}
	return core.Passed(fmt.Sprintf("scrolled by %d,%d", delta.X, delta.Y))
}

// screenshot never fails the step; a capture error is only logged.
func (d *Driver) screenshot(page resolver.Page) *core.CommandResult {
	path := core.ScreenshotPath(d.cfg.ScreenshotDir, d.now())
	if err := page.Screenshot(path); err != nil {
		logger.Warn("screenshot failed: %v", err)
		return core.Passed("screenshot failed: " + err.Error())
	}
	res := core.Passed("saved " + path)
	res.Data = core.NewScreenshotAttachment(path)
	return res
}

func (d *Driver) script(page resolver.Page, action *testcase.TestAction) *core.CommandResult {
	src := strings.TrimSpace(action.ValueString())
	if src == "" {
		return core.Failed(core.ErrInvalidValue.WithMessage("custom action requires a script"))
	}
	out, err := page.Eval(src)
	if err != nil {
		return core.Failed(fmt.Errorf("custom script: %w", err))
	}
	res := core.Passed("custom script ran")
	res.Data = out
	return res
}
