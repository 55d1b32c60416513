package executor

import (
	"sort"
	"strings"

	"github.com/devicelab-dev/replay-runner/pkg/jsengine"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// ScriptEngine expands variables in action values before dispatch.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// SetEnv makes vars reachable as ${env.NAME} without bare $NAME
// substitution.
func (se *ScriptEngine) SetEnv(vars map[string]string) {
	se.js.SetEnv(vars)
}

// SetPlatform sets the platform in the JS engine.
func (se *ScriptEngine) SetPlatform(platform testcase.Platform) {
	se.js.SetPlatform(string(platform))
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
func (se *ScriptEngine) ExpandVariables(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}

	// First pass: JS engine for ${expression} syntax
	text = se.js.ExpandVariables(text)

	// Second pass: declared $VAR without braces, longest names first
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})
	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// ExpandAction returns a copy of action with string values, metadata and
// locator values expanded. The original is not modified.
func (se *ScriptEngine) ExpandAction(action *testcase.TestAction) *testcase.TestAction {
	out := *action
	if s, ok := action.Value.(string); ok {
		out.Value = se.ExpandVariables(s)
	}
	if action.Target != nil {
		out.Target = se.expandLocator(action.Target)
	}
	if len(action.Metadata) > 0 {
		out.Metadata = make(map[string]any, len(action.Metadata))
		for k, v := range action.Metadata {
			if s, ok := v.(string); ok {
				v = se.ExpandVariables(s)
			}
			out.Metadata[k] = v
		}
	}
	return &out
}

func (se *ScriptEngine) expandLocator(l *testcase.ElementLocator) *testcase.ElementLocator {
	out := *l
	out.Value = se.ExpandVariables(l.Value)
	if len(l.Fallbacks) > 0 {
		out.Fallbacks = make([]testcase.ElementLocator, len(l.Fallbacks))
		for i := range l.Fallbacks {
			out.Fallbacks[i] = *se.expandLocator(&l.Fallbacks[i])
		}
	}
	return &out
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Followed by a word character means a different variable
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}
