// Package resolvertest provides an in-memory resolver.Page for tests.
package resolvertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/resolver"
)

// Page is a scripted page. Elements are registered per selector; every
// call is recorded for assertions.
type Page struct {
	mu sync.Mutex

	CurrentURL string
	elements   map[string][]*Element

	// Errors returned by the corresponding calls when set
	DOMErr        error
	ScreenshotErr error
	NavigateErr   error
	EvalFunc      func(js string) (interface{}, error)

	// Recorded calls
	Navigations  []string
	Keys         []string
	Removed      []string
	Scripts      []string
	Shots        []string
	Scrolls      [][2]float64
	WaitForCalls []string
	SettleCalls  int
}

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	return &Page{CurrentURL: "about:blank", elements: make(map[string][]*Element)}
}

// Add registers els as the matches of sel.
func (p *Page) Add(sel resolver.Selector, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[sel.String()] = append(p.elements[sel.String()], els...)
}

func (p *Page) URL() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.CurrentURL = url
	return nil
}

func (p *Page) WaitDOMContentLoaded(context.Context, time.Duration) error {
	return p.DOMErr
}

func (p *Page) WaitNavigationSettled(context.Context, time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SettleCalls++
	return nil
}

func (p *Page) Query(sel resolver.Selector) ([]resolver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []resolver.Element
	for _, el := range p.elements[sel.String()] {
		out = append(out, el)
	}
	return out, nil
}

// WaitFor returns the first visible match immediately, or a timeout error.
func (p *Page) WaitFor(ctx context.Context, sel resolver.Selector, timeout time.Duration) (resolver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.WaitForCalls = append(p.WaitForCalls, sel.String())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, el := range p.elements[sel.String()] {
		if !el.Hidden {
			return el, nil
		}
	}
	return nil, fmt.Errorf("timed out after %s waiting for %s", timeout, sel)
}

func (p *Page) PressKey(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, key)
	return nil
}

func (p *Page) Scroll(dx, dy float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Scrolls = append(p.Scrolls, [2]float64{dx, dy})
	return nil
}

func (p *Page) Screenshot(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return p.ScreenshotErr
	}
	p.Shots = append(p.Shots, path)
	return nil
}

func (p *Page) RemoveAll(css string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Removed = append(p.Removed, css)
	delete(p.elements, resolver.CSS(css).String())
	return nil
}

func (p *Page) Eval(js string) (interface{}, error) {
	p.mu.Lock()
	p.Scripts = append(p.Scripts, js)
	fn := p.EvalFunc
	p.mu.Unlock()
	if fn != nil {
		return fn(js)
	}
	return nil, nil
}

// Element is a scripted element.
type Element struct {
	Name     string
	TextVal  string
	Hidden   bool
	ClickErr func(force bool) error
	FillErr  error

	Clicks   []bool // force flag of each click
	Filled   []string
	Hovers   int
	Selected []string
	Focuses  int
	Scrolled int
}

// NewElement returns a visible element with the given text.
func NewElement(name, text string) *Element {
	return &Element{Name: name, TextVal: text}
}

func (e *Element) Click(force bool) error {
	if e.ClickErr != nil {
		if err := e.ClickErr(force); err != nil {
			return err
		}
	}
	e.Clicks = append(e.Clicks, force)
	return nil
}

func (e *Element) Fill(text string) error {
	if e.FillErr != nil {
		return e.FillErr
	}
	e.Filled = append(e.Filled, text)
	e.TextVal = text
	return nil
}

func (e *Element) Hover() error {
	e.Hovers++
	return nil
}

func (e *Element) SelectOption(value string) error {
	e.Selected = append(e.Selected, value)
	return nil
}

func (e *Element) Text() (string, error) { return e.TextVal, nil }

func (e *Element) Focus() error {
	e.Focuses++
	return nil
}

func (e *Element) ScrollIntoView() error {
	e.Scrolled++
	return nil
}

func (e *Element) Visible() (bool, error) { return !e.Hidden, nil }

func (e *Element) WaitVisible(time.Duration) error {
	if e.Hidden {
		return fmt.Errorf("%s is not visible", e.Name)
	}
	return nil
}
