// Package testcase defines the persisted, replayable description of a UI test:
// test cases, their ordered actions, and the element locators actions target.
package testcase

import "fmt"

// Platform identifies the kind of UI a test case targets.
type Platform string

// Platform values.
const (
	PlatformWeb     Platform = "web"
	PlatformDesktop Platform = "desktop"
	PlatformMobile  Platform = "mobile"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformWeb, PlatformDesktop, PlatformMobile:
		return true
	}
	return false
}

// ActionKind is the type of a recorded action.
type ActionKind string

// Action kinds.
const (
	ActionClick          ActionKind = "click"
	ActionType           ActionKind = "type"
	ActionSelect         ActionKind = "select"
	ActionHover          ActionKind = "hover"
	ActionNavigate       ActionKind = "navigate"
	ActionWait           ActionKind = "wait"
	ActionWaitForElement ActionKind = "wait-for-element"
	ActionAssert         ActionKind = "assert"
	ActionScreenshot     ActionKind = "screenshot"
	ActionDragDrop       ActionKind = "drag-drop"
	ActionSwipe          ActionKind = "swipe"
	ActionTap            ActionKind = "tap"
	ActionScroll         ActionKind = "scroll"
	ActionPressKey       ActionKind = "press-key"
	ActionCustom         ActionKind = "custom"
)

// ActionKinds lists every action kind in declaration order.
var ActionKinds = []ActionKind{
	ActionClick, ActionType, ActionSelect, ActionHover, ActionNavigate,
	ActionWait, ActionWaitForElement, ActionAssert, ActionScreenshot,
	ActionDragDrop, ActionSwipe, ActionTap, ActionScroll, ActionPressKey,
	ActionCustom,
}

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	for _, known := range ActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// RequiresTarget reports whether actions of this kind address a UI element
// and therefore must carry a target locator.
func (k ActionKind) RequiresTarget() bool {
	switch k {
	case ActionClick, ActionType, ActionHover, ActionSelect, ActionTap, ActionAssert:
		return true
	}
	return false
}

// Lifecycle markers carried in the value of custom (or navigate) actions.
const (
	MarkerStartBrowser = "start-browser"
	MarkerCloseBrowser = "close-browser"
)

// LocatorKind is the strategy used to find an element.
type LocatorKind string

// Locator kinds.
const (
	LocatorXPath           LocatorKind = "xpath"
	LocatorCSS             LocatorKind = "css"
	LocatorID              LocatorKind = "id"
	LocatorName            LocatorKind = "name"
	LocatorText            LocatorKind = "text"
	LocatorAccessibilityID LocatorKind = "accessibility-id"
	LocatorCoordinates     LocatorKind = "coordinates"
	LocatorPlaceholder     LocatorKind = "placeholder"
	LocatorRole            LocatorKind = "role"
)

// Valid reports whether k is a known locator kind.
func (k LocatorKind) Valid() bool {
	switch k {
	case LocatorXPath, LocatorCSS, LocatorID, LocatorName, LocatorText,
		LocatorAccessibilityID, LocatorCoordinates, LocatorPlaceholder, LocatorRole:
		return true
	}
	return false
}

// MaxLocatorDepth bounds how deeply fallback chains may nest.
const MaxLocatorDepth = 8

// ElementLocator is a resolvable reference to a UI element.
// Fallbacks are tried in list order when the primary fails; first match wins.
type ElementLocator struct {
	Type      LocatorKind      `json:"type" yaml:"type" jsonschema:"enum=xpath,enum=css,enum=id,enum=name,enum=text,enum=accessibility-id,enum=coordinates,enum=placeholder,enum=role"`
	Value     string           `json:"value" yaml:"value"`
	Fallbacks []ElementLocator `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
}

// Describe returns a short human-readable form such as css=".btn".
func (l *ElementLocator) Describe() string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s=%q", l.Type, l.Value)
}

// Chain flattens the fallback tree depth first, excluding the receiver.
func (l *ElementLocator) Chain() []ElementLocator {
	if l == nil {
		return nil
	}
	var out []ElementLocator
	var walk func(ls []ElementLocator, depth int)
	walk = func(ls []ElementLocator, depth int) {
		if depth > MaxLocatorDepth {
			return
		}
		for _, fb := range ls {
			out = append(out, ElementLocator{Type: fb.Type, Value: fb.Value})
			walk(fb.Fallbacks, depth+1)
		}
	}
	walk(l.Fallbacks, 1)
	return out
}

// FirstFallback returns the first fallback of the given kind in chain order.
func (l *ElementLocator) FirstFallback(kind LocatorKind) (ElementLocator, bool) {
	for _, fb := range l.Chain() {
		if fb.Type == kind {
			return fb, true
		}
	}
	return ElementLocator{}, false
}

// depth returns the nesting depth of the fallback tree (1 for a bare locator).
func (l *ElementLocator) depth() int {
	deepest := 0
	for i := range l.Fallbacks {
		if d := l.Fallbacks[i].depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// TestAction is one recorded operation.
type TestAction struct {
	ID          string          `json:"id" yaml:"id"`
	Timestamp   int64           `json:"timestamp" yaml:"timestamp"` // capture time, ms since epoch
	Platform    Platform        `json:"platform" yaml:"platform" jsonschema:"enum=web,enum=desktop,enum=mobile"`
	Type        ActionKind      `json:"type" yaml:"type" jsonschema:"enum=click,enum=type,enum=select,enum=hover,enum=navigate,enum=wait,enum=wait-for-element,enum=assert,enum=screenshot,enum=drag-drop,enum=swipe,enum=tap,enum=scroll,enum=press-key,enum=custom"`
	Target      *ElementLocator `json:"target,omitempty" yaml:"target,omitempty"`
	Value       any             `json:"value,omitempty" yaml:"value,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Describe returns a human-readable description of the action's target.
func (a *TestAction) Describe() string {
	switch {
	case a.Description != "":
		return a.Description
	case a.Target != nil:
		return a.Target.Describe()
	case a.ValueString() != "":
		return string(a.Type) + " " + a.ValueString()
	default:
		return string(a.Type)
	}
}

// TestCase is an ordered sequence of actions plus identity. It is never
// mutated during execution.
type TestCase struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Platform    Platform     `json:"platform" yaml:"platform" jsonschema:"enum=web,enum=desktop,enum=mobile"`
	Actions     []TestAction `json:"actions" yaml:"actions"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags,omitempty"`

	SourcePath string `json:"-" yaml:"-"` // file the case was loaded from
}

// DisplayName returns the case name, falling back to its ID.
func (tc *TestCase) DisplayName() string {
	if tc.Name != "" {
		return tc.Name
	}
	return tc.ID
}
