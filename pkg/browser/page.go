package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/resolver"
)

// clickTimeout bounds how long a click waits for its element to become
// interactable before reporting why it is not.
const clickTimeout = 2 * time.Second

const (
	domContentLoadedJS = `() => new Promise(resolve => {
		if (document.readyState !== 'loading') return resolve();
		document.addEventListener('DOMContentLoaded', () => resolve(), { once: true });
	})`
	removeAllJS  = `(sel) => document.querySelectorAll(sel).forEach(e => e.remove())`
	evalJS       = `(src) => (0, eval)(src)`
	forceClickJS = `() => this.click()`
	clearJS      = `() => {
		this.value = '';
		this.dispatchEvent(new Event('input', { bubbles: true }));
		this.dispatchEvent(new Event('change', { bubbles: true }));
	}`
)

// Page adapts a rod page to resolver.Page.
type Page struct {
	page *rod.Page
}

var _ resolver.Page = (*Page)(nil)

func (p *Page) URL() (string, error) {
	info, err := p.page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.page.Context(ctx).Navigate(url)
}

func (p *Page) WaitDOMContentLoaded(ctx context.Context, timeout time.Duration) error {
	_, err := p.page.Context(ctx).Timeout(timeout).Eval(domContentLoadedJS)
	return err
}

// WaitNavigationSettled waits for the network to go idle. Pages that keep
// long-lived connections open simply run into the timeout.
func (p *Page) WaitNavigationSettled(ctx context.Context, timeout time.Duration) error {
	timed := p.page.Context(ctx).Timeout(timeout)
	if err := timed.WaitLoad(); err != nil {
		return err
	}
	timed.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return nil
}

func (p *Page) Query(sel resolver.Selector) ([]resolver.Element, error) {
	var (
		els rod.Elements
		err error
	)
	switch sel.Engine {
	case resolver.EngineXPath:
		els, err = p.page.ElementsX(sel.Value)
	default:
		els, err = p.page.Elements(sel.Value)
	}
	if err != nil {
		return nil, err
	}
	out := make([]resolver.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &Element{el: el})
	}
	return out, nil
}

func (p *Page) WaitFor(ctx context.Context, sel resolver.Selector, timeout time.Duration) (resolver.Element, error) {
	timed := p.page.Context(ctx).Timeout(timeout)

	var (
		el  *rod.Element
		err error
	)
	switch sel.Engine {
	case resolver.EngineXPath:
		el, err = timed.ElementX(sel.Value)
	default:
		el, err = timed.Element(sel.Value)
	}
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", sel, err)
	}
	if err := el.WaitVisible(); err != nil {
		return nil, fmt.Errorf("waiting for %s to be visible: %w", sel, err)
	}
	return &Element{el: el.CancelTimeout()}, nil
}

func (p *Page) PressKey(key string) error {
	k, err := keyFor(key)
	if err != nil {
		return err
	}
	return p.page.Keyboard.Type(k)
}

func (p *Page) Scroll(dx, dy float64) error {
	return p.page.Mouse.Scroll(dx, dy, 4)
}

func (p *Page) Screenshot(path string) error {
	data, err := p.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (p *Page) RemoveAll(css string) error {
	_, err := p.page.Eval(removeAllJS, css)
	return err
}

func (p *Page) Eval(js string) (interface{}, error) {
	res, err := p.page.Eval(evalJS, js)
	if err != nil {
		return nil, err
	}
	return res.Value.Val(), nil
}

// Element adapts a rod element to resolver.Element.
type Element struct {
	el *rod.Element
}

func (e *Element) Click(force bool) error {
	if force {
		if _, err := e.el.Eval(forceClickJS); err != nil {
			return &core.InteractionFailure{Op: "forced click", Cause: err}
		}
		return nil
	}

	err := e.el.Timeout(clickTimeout).Click(proto.InputMouseButtonLeft, 1)
	if err == nil {
		return nil
	}
	// Click reports a timeout when the element never became
	// interactable; ask why so occlusion can be told apart.
	_, ierr := e.el.Interactable()
	var covered *rod.CoveredError
	if errors.As(ierr, &covered) {
		return &core.InteractionFailure{Op: "click", Intercepted: true, Cause: ierr}
	}
	return &core.InteractionFailure{Op: "click", Cause: err}
}

func (e *Element) Fill(text string) error {
	if text == "" {
		if _, err := e.el.Eval(clearJS); err != nil {
			return &core.InteractionFailure{Op: "clear", Cause: err}
		}
		return nil
	}
	if err := e.el.SelectAllText(); err != nil {
		return &core.InteractionFailure{Op: "type", Cause: err}
	}
	if err := e.el.Input(text); err != nil {
		return &core.InteractionFailure{Op: "type", Cause: err}
	}
	return nil
}

func (e *Element) Hover() error {
	if err := e.el.Hover(); err != nil {
		return &core.InteractionFailure{Op: "hover", Cause: err}
	}
	return nil
}

// SelectOption selects by visible text, then by option value.
func (e *Element) SelectOption(value string) error {
	err := e.el.Select([]string{value}, true, rod.SelectorTypeText)
	if err == nil {
		return nil
	}
	css := fmt.Sprintf(`option[value=%q]`, value)
	if err2 := e.el.Select([]string{css}, true, rod.SelectorTypeCSSSector); err2 != nil {
		return &core.InteractionFailure{Op: "select", Cause: err}
	}
	return nil
}

func (e *Element) Text() (string, error) { return e.el.Text() }

func (e *Element) Focus() error { return e.el.Focus() }

func (e *Element) ScrollIntoView() error { return e.el.ScrollIntoView() }

func (e *Element) Visible() (bool, error) { return e.el.Visible() }

func (e *Element) WaitVisible(timeout time.Duration) error {
	return e.el.Timeout(timeout).WaitVisible()
}

// keyFor maps a logical key name, or a single character, to a rod key.
func keyFor(name string) (input.Key, error) {
	if k, ok := namedKeys[name]; ok {
		return k, nil
	}
	if r := []rune(name); len(r) == 1 {
		return input.Key(r[0]), nil
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

var namedKeys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"Space":      input.Space,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
}
