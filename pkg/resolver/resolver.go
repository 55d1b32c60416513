package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/config"
	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/logger"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// Rung names the ladder step that produced a match.
type Rung string

// Ladder rungs, in the order they are attempted.
const (
	RungPrimary     Rung = "primary"
	RungFallback    Rung = "fallback"
	RungDescription Rung = "description"
	RungForced      Rung = "forced"
)

// Op is performed on a candidate element. force is true only on the forced
// rung. A returned error moves the ladder to the next candidate.
type Op func(el Element, force bool) error

// Match is a successfully resolved element.
type Match struct {
	Element Element
	Locator string
	Rung    Rung
}

// Info converts the match for command results.
func (m *Match) Info() *core.ElementInfo {
	if m == nil {
		return nil
	}
	return &core.ElementInfo{Locator: m.Locator, Rung: string(m.Rung)}
}

// Resolver walks the locator ladder. It holds no page state and is safe
// for concurrent use.
type Resolver struct {
	timeouts   config.Timeouts
	heuristics config.Heuristics
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a resolver with the given waits and heuristics.
func New(timeouts config.Timeouts, heuristics config.Heuristics) *Resolver {
	return &Resolver{
		timeouts:   timeouts,
		heuristics: heuristics,
		sleep:      Sleep,
	}
}

// WithSleep replaces the function used for settle delays and returns r.
func (r *Resolver) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Resolver {
	r.sleep = sleep
	return r
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attempt tracks what the ladder has tried.
type attempt struct {
	tried       []string
	last        error
	intercepted bool
}

func (a *attempt) fail(label string, err error) {
	a.tried = append(a.tried, label)
	a.last = err
	if core.IsIntercepted(err) {
		a.intercepted = true
	}
}

// Resolve runs the ladder without an operation and returns the first
// element found.
func (r *Resolver) Resolve(ctx context.Context, page Page, action *testcase.TestAction) (*Match, error) {
	return r.ResolveAndAct(ctx, page, action, func(Element, bool) error { return nil })
}

// ResolveAndAct resolves the action's target and performs op on it,
// trying in order: the primary locator, the declared fallbacks, text
// quoted in the description, then a forced operation on the primary and
// the first css fallback. The first success wins.
func (r *Resolver) ResolveAndAct(ctx context.Context, page Page, action *testcase.TestAction, op Op) (*Match, error) {
	target := action.Target
	if target == nil {
		return nil, core.ErrMissingTarget
	}

	if action.Type == testcase.ActionClick {
		r.dismissBackdrop(ctx, page)
	}
	if LooksLikeModal(target) {
		logger.Debug("target %s looks like modal content, waiting for navigation to settle", target.Describe())
		if err := page.WaitNavigationSettled(ctx, r.timeouts.NavigationSettle.Std()); err != nil {
			logger.Debug("navigation settle: %v", err)
		}
	}

	att := &attempt{}
	primary, primaryErr := ToSelector(*target)

	// 1. primary
	if primaryErr == nil {
		m, err := r.tryWait(ctx, page, primary, RungPrimary, op)
		if err == nil {
			return m, nil
		}
		att.fail("primary "+primary.String(), err)
	} else {
		att.fail("primary "+target.Describe(), primaryErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. declared fallbacks
	for _, fb := range target.Chain() {
		sel, err := ToSelector(fb)
		if err != nil {
			att.fail("fallback "+fb.Describe(), err)
			continue
		}
		m, err := r.tryFallback(ctx, page, target, sel, op)
		if err == nil {
			logger.Info("resolved %s via fallback %s", target.Describe(), sel)
			return m, nil
		}
		att.fail("fallback "+sel.String(), err)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	// 3. description text
	if text, ok := QuotedDescriptionText(action.Description, r.heuristics.StyleTokens); ok {
		m, err := r.tryDescriptionText(page, text, op)
		if err == nil {
			logger.Info("resolved %s via description text %q", target.Describe(), text)
			return m, nil
		}
		att.fail(fmt.Sprintf("description text %q", text), err)
	}

	// 4. forced
	if primaryErr == nil {
		if !att.intercepted {
			if err := r.sleep(ctx, r.timeouts.ForceSettleDelay.Std()); err != nil {
				return nil, err
			}
		}
		m, err := r.tryForced(page, primary, op)
		if err == nil {
			logger.Info("resolved %s with forced interaction", target.Describe())
			return m, nil
		}
		att.fail("forced "+primary.String(), err)
	}
	if fb, ok := target.FirstFallback(testcase.LocatorCSS); ok {
		sel := CSS(fb.Value)
		m, err := r.tryForced(page, sel, op)
		if err == nil {
			logger.Info("resolved %s with forced interaction on %s", target.Describe(), sel)
			return m, nil
		}
		att.fail("forced "+sel.String(), err)
	}

	return nil, &core.ResolutionFailure{
		Target:   target.Describe(),
		Attempts: att.tried,
		Last:     att.last,
	}
}

// ResolvePrimaryOrCSS waits for the primary locator, then for the first
// css fallback. No other rungs apply.
func (r *Resolver) ResolvePrimaryOrCSS(ctx context.Context, page Page, target *testcase.ElementLocator) (*Match, error) {
	if target == nil {
		return nil, core.ErrMissingTarget
	}
	att := &attempt{}
	timeout := r.timeouts.Element.Std()

	if sel, err := ToSelector(*target); err == nil {
		el, err := page.WaitFor(ctx, sel, timeout)
		if err == nil {
			return &Match{Element: el, Locator: sel.String(), Rung: RungPrimary}, nil
		}
		att.fail("primary "+sel.String(), err)
	} else {
		att.fail("primary "+target.Describe(), err)
	}

	if fb, ok := target.FirstFallback(testcase.LocatorCSS); ok {
		sel := CSS(fb.Value)
		el, err := page.WaitFor(ctx, sel, timeout)
		if err == nil {
			return &Match{Element: el, Locator: sel.String(), Rung: RungFallback}, nil
		}
		att.fail("fallback "+sel.String(), err)
	}

	return nil, &core.ResolutionFailure{Target: target.Describe(), Attempts: att.tried, Last: att.last}
}

// ResolvePresence waits up to timeout for the primary locator only.
func (r *Resolver) ResolvePresence(ctx context.Context, page Page, target *testcase.ElementLocator, timeout time.Duration) (*Match, error) {
	if target == nil {
		return nil, core.ErrMissingTarget
	}
	sel, err := ToSelector(*target)
	if err != nil {
		return nil, &core.ResolutionFailure{Target: target.Describe(), Last: err}
	}
	el, err := page.WaitFor(ctx, sel, timeout)
	if err != nil {
		return nil, &core.ResolutionFailure{
			Target:   target.Describe(),
			Attempts: []string{"primary " + sel.String()},
			Last:     err,
		}
	}
	return &Match{Element: el, Locator: sel.String(), Rung: RungPrimary}, nil
}

func (r *Resolver) tryWait(ctx context.Context, page Page, sel Selector, rung Rung, op Op) (*Match, error) {
	el, err := page.WaitFor(ctx, sel, r.timeouts.Element.Std())
	if err != nil {
		return nil, err
	}
	if err := op(el, false); err != nil {
		return nil, err
	}
	return &Match{Element: el, Locator: sel.String(), Rung: rung}, nil
}

// tryFallback resolves one declared fallback. When a css fallback matches
// several elements and the primary xpath names a row index, the match at
// that index is used.
func (r *Resolver) tryFallback(ctx context.Context, page Page, target *testcase.ElementLocator, sel Selector, op Op) (*Match, error) {
	el, err := page.WaitFor(ctx, sel, r.timeouts.Element.Std())
	if err != nil {
		return nil, err
	}
	if sel.Engine == EngineCSS && target.Type == testcase.LocatorXPath {
		if idx, ok := RowIndex(target.Value); ok {
			if all, err := page.Query(sel); err == nil && len(all) > 1 && idx <= len(all) {
				logger.Debug("retargeting %s to match %d of %d", sel, idx, len(all))
				el = all[idx-1]
			}
		}
	}
	if err := op(el, false); err != nil {
		return nil, err
	}
	return &Match{Element: el, Locator: sel.String(), Rung: RungFallback}, nil
}

// tryDescriptionText looks for option-like elements whose normalized text
// contains the wanted text first, then for any element whose normalized own
// text equals it.
func (r *Resolver) tryDescriptionText(page Page, text string, op Op) (*Match, error) {
	want := normalizeText(text)
	var lastErr error = fmt.Errorf("no element with text %q", text)
	if want == "" {
		return nil, lastErr
	}

	for _, css := range r.heuristics.OptionSelectors {
		els, err := page.Query(CSS(css))
		if err != nil {
			lastErr = err
			continue
		}
		for _, el := range els {
			got, err := el.Text()
			if err != nil || !strings.Contains(normalizeText(got), want) {
				continue
			}
			if err := op(el, false); err != nil {
				lastErr = err
				continue
			}
			return &Match{Element: el, Locator: fmt.Sprintf("%s text=%q", css, text), Rung: RungDescription}, nil
		}
	}

	sel := XPath(fmt.Sprintf("//*[normalize-space(text())=%s]", XPathLiteral(want)))
	els, err := page.Query(sel)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if err := op(el, false); err != nil {
			lastErr = err
			continue
		}
		return &Match{Element: el, Locator: sel.String(), Rung: RungDescription}, nil
	}
	return nil, lastErr
}

func (r *Resolver) tryForced(page Page, sel Selector, op Op) (*Match, error) {
	els, err := page.Query(sel)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, errors.New("no match for " + sel.String())
	}
	if err := op(els[0], true); err != nil {
		return nil, err
	}
	return &Match{Element: els[0], Locator: sel.String(), Rung: RungForced}, nil
}

// dismissBackdrop force-clicks a visible modal backdrop so the click that
// follows is not swallowed by it.
func (r *Resolver) dismissBackdrop(ctx context.Context, page Page) {
	if r.heuristics.BackdropSelector == "" {
		return
	}
	els, err := page.Query(CSS(r.heuristics.BackdropSelector))
	if err != nil || len(els) == 0 {
		return
	}
	for _, el := range els {
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		if err := el.Click(true); err != nil {
			logger.Debug("backdrop dismiss failed: %v", err)
			return
		}
		logger.Info("dismissed modal backdrop")
		_ = r.sleep(ctx, r.timeouts.BackdropSettleDelay.Std())
		return
	}
}
