// Package resolver locates web elements for recorded actions, walking a
// fallback ladder when the recorded locator has gone stale.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// Engine is the query language of a Selector.
type Engine string

// Selector engines
const (
	EngineCSS   Engine = "css"
	EngineXPath Engine = "xpath"
)

// Selector is a concrete query against a page.
type Selector struct {
	Engine Engine
	Value  string
}

func (s Selector) String() string {
	return string(s.Engine) + "=" + s.Value
}

// CSS returns a css selector.
func CSS(v string) Selector { return Selector{Engine: EngineCSS, Value: v} }

// XPath returns an xpath selector.
func XPath(v string) Selector { return Selector{Engine: EngineXPath, Value: v} }

// Page is the slice of a browser page the web executor needs.
type Page interface {
	URL() (string, error)
	Navigate(ctx context.Context, url string) error
	WaitDOMContentLoaded(ctx context.Context, timeout time.Duration) error
	// WaitNavigationSettled waits until no navigation or network activity
	// is pending, or timeout elapses.
	WaitNavigationSettled(ctx context.Context, timeout time.Duration) error

	// Query returns every current match without waiting.
	Query(sel Selector) ([]Element, error)
	// WaitFor returns the first match once it is present and visible.
	WaitFor(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)

	PressKey(key string) error
	Scroll(dx, dy float64) error
	Screenshot(path string) error
	// RemoveAll deletes every element matching css from the DOM.
	RemoveAll(css string) error
	Eval(js string) (interface{}, error)
}

// Element is a resolved DOM element.
type Element interface {
	// Click clicks the element. With force, the click is dispatched from
	// script and bypasses hit-testing.
	Click(force bool) error
	// Fill replaces the element's content with text.
	Fill(text string) error
	Hover() error
	SelectOption(value string) error
	Text() (string, error)
	Focus() error
	ScrollIntoView() error
	Visible() (bool, error)
	WaitVisible(timeout time.Duration) error
}

// ToSelector maps a recorded locator to a page selector.
// Coordinates have no selector form on the web.
func ToSelector(loc testcase.ElementLocator) (Selector, error) {
	v := loc.Value
	switch loc.Type {
	case testcase.LocatorXPath:
		return XPath(v), nil
	case testcase.LocatorCSS:
		return CSS(v), nil
	case testcase.LocatorID:
		return CSS(attrSelector("id", v)), nil
	case testcase.LocatorName:
		return CSS(attrSelector("name", v)), nil
	case testcase.LocatorPlaceholder:
		return CSS(attrSelector("placeholder", v)), nil
	case testcase.LocatorAccessibilityID:
		return CSS(attrSelector("aria-label", v)), nil
	case testcase.LocatorRole:
		return CSS(attrSelector("role", v)), nil
	case testcase.LocatorText:
		return XPath(fmt.Sprintf("//*[text()[contains(normalize-space(.), %s)]]", XPathLiteral(strings.TrimSpace(v)))), nil
	default:
		return Selector{}, fmt.Errorf("locator type %q has no web selector", loc.Type)
	}
}

// attrSelector builds [name="value"], escaping the value for a css string.
func attrSelector(name, value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return fmt.Sprintf(`[%s="%s"]`, name, r.Replace(value))
}

// XPathLiteral quotes s as an xpath string literal.
func XPathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
