package testcase

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const loginCaseJSON = `{
  "id": "tc-login",
  "name": "Login",
  "platform": "web",
  "tags": ["smoke"],
  "actions": [
    {"id": "a1", "timestamp": 1700000000000, "platform": "web", "type": "navigate", "value": "https://example.com/login"},
    {"id": "a2", "timestamp": 1700000000100, "platform": "web", "type": "type",
     "target": {"type": "xpath", "value": "//form/input[1]", "fallbacks": [{"type": "css", "value": "input.user"}]},
     "value": "alice"},
    {"id": "a3", "timestamp": 1700000000200, "platform": "web", "type": "wait", "value": 250},
    {"id": "a4", "timestamp": 1700000000300, "platform": "web", "type": "click",
     "target": {"type": "css", "value": "button.submit"}, "description": "Click \"Sign in\""}
  ]
}`

func TestParse_JSON(t *testing.T) {
	tc, err := Parse([]byte(loginCaseJSON), "login.json")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tc.ID != "tc-login" {
		t.Errorf("ID = %q, want %q", tc.ID, "tc-login")
	}
	if tc.Platform != PlatformWeb {
		t.Errorf("Platform = %q, want %q", tc.Platform, PlatformWeb)
	}
	if len(tc.Actions) != 4 {
		t.Fatalf("len(Actions) = %d, want 4", len(tc.Actions))
	}
	if got := tc.Actions[1].Target.Fallbacks[0].Type; got != LocatorCSS {
		t.Errorf("fallback type = %q, want %q", got, LocatorCSS)
	}
	ms, err := tc.Actions[2].ValueMillis()
	if err != nil || ms != 250 {
		t.Errorf("ValueMillis() = %d, %v, want 250, nil", ms, err)
	}
	if tc.SourcePath != "login.json" {
		t.Errorf("SourcePath = %q", tc.SourcePath)
	}
}

func TestParse_YAML(t *testing.T) {
	data := `
id: tc-swipe
name: Swipe gallery
platform: mobile
actions:
  - id: s1
    platform: mobile
    type: swipe
    value:
      startX: 500
      startY: 1200
      endX: 500
      endY: 300
      duration: 400
  - id: s2
    platform: mobile
    type: tap
    target:
      type: accessibility-id
      value: next
`
	tc, err := Parse([]byte(data), "swipe.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p, err := tc.Actions[0].SwipePayload()
	if err != nil {
		t.Fatalf("SwipePayload() error = %v", err)
	}
	want := SwipePayload{StartX: 500, StartY: 1200, EndX: 500, EndY: 300, DurationMs: 400}
	if p != want {
		t.Errorf("SwipePayload() = %+v, want %+v", p, want)
	}
	if tc.Actions[1].Target.Type != LocatorAccessibilityID {
		t.Errorf("target type = %q", tc.Actions[1].Target.Type)
	}
}

func TestParse_EmptyFile(t *testing.T) {
	_, err := Parse([]byte("  \n"), "empty.json")
	if err == nil {
		t.Fatal("expected error for empty file")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("error type = %T, want *ParseError", err)
	}
}

func TestParse_ZeroActions(t *testing.T) {
	tc, err := Parse([]byte(`{"id":"x","name":"x","platform":"web"}`), "x.json")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tc.Actions == nil || len(tc.Actions) != 0 {
		t.Errorf("Actions = %v, want empty non-nil slice", tc.Actions)
	}
}

func TestSaveLoad(t *testing.T) {
	tc, err := Parse([]byte(loginCaseJSON), "login.json")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "cases", "login.json")
	if err := Save(path, tc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded.Actions) != len(tc.Actions) {
		t.Errorf("len(Actions) = %d, want %d", len(loaded.Actions), len(tc.Actions))
	}
	if loaded.Actions[3].Description != `Click "Sign in"` {
		t.Errorf("Description = %q", loaded.Actions[3].Description)
	}
}

func TestValidate_TargetRequired(t *testing.T) {
	tc := &TestCase{
		ID:       "tc",
		Platform: PlatformWeb,
		Actions: []TestAction{
			{ID: "a1", Type: ActionClick},
			{ID: "a2", Type: ActionWait, Value: float64(100)},
			{ID: "a3", Type: ActionNavigate, Value: ""},
		},
	}
	errs := tc.Validate()
	if len(errs) != 1 {
		t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0].Path != "actions[0].target" {
		t.Errorf("Path = %q, want actions[0].target", errs[0].Path)
	}
}

func TestValidate_LocatorChain(t *testing.T) {
	deep := ElementLocator{Type: LocatorCSS, Value: ".x"}
	for i := 0; i < MaxLocatorDepth+1; i++ {
		deep = ElementLocator{Type: LocatorCSS, Value: ".x", Fallbacks: []ElementLocator{deep}}
	}
	tc := &TestCase{
		ID:       "tc",
		Platform: PlatformDesktop,
		Actions: []TestAction{
			{ID: "a1", Type: ActionClick, Target: &ElementLocator{Type: LocatorCoordinates, Value: "10;20"}},
			{ID: "a2", Type: ActionClick, Target: &deep},
		},
	}
	errs := tc.Validate()
	if len(errs) != 2 {
		t.Fatalf("Validate() returned %d errors, want 2: %v", len(errs), errs)
	}
	if !strings.Contains(errs[1].Message, "nests") {
		t.Errorf("Message = %q, want nesting error", errs[1].Message)
	}
}

func TestChain_DepthFirstOrder(t *testing.T) {
	l := ElementLocator{
		Type:  LocatorXPath,
		Value: "//a",
		Fallbacks: []ElementLocator{
			{Type: LocatorCSS, Value: ".a", Fallbacks: []ElementLocator{{Type: LocatorText, Value: "A"}}},
			{Type: LocatorID, Value: "a"},
		},
	}
	chain := l.Chain()
	got := make([]string, len(chain))
	for i, c := range chain {
		got[i] = c.Value
	}
	if strings.Join(got, ",") != ".a,A,a" {
		t.Errorf("Chain() = %v, want [.a A a]", got)
	}
	if fb, ok := l.FirstFallback(LocatorID); !ok || fb.Value != "a" {
		t.Errorf("FirstFallback(id) = %v, %v", fb, ok)
	}
}

func TestDragPayload(t *testing.T) {
	a := TestAction{Value: map[string]any{"from": "10,20", "to": map[string]any{"x": float64(30), "y": float64(40)}}}
	p, err := a.DragPayload()
	if err != nil {
		t.Fatalf("DragPayload() error = %v", err)
	}
	if p.From != (Point{10, 20}) || p.To != (Point{30, 40}) {
		t.Errorf("DragPayload() = %+v", p)
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(loginCaseJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, errs := ValidateFile(good); len(errs) != 0 {
		t.Errorf("ValidateFile(good) = %v, want no errors", errs)
	}

	bad := filepath.Join(dir, "bad.json")
	content := `{"id":"b","name":"b","platform":"web","actions":[{"id":"x","timestamp":0,"platform":"web","type":"teleport"}]}`
	if err := os.WriteFile(bad, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	_, errs := ValidateFile(bad)
	var semantic, domain bool
	for _, e := range errs {
		switch e.Phase {
		case "semantic":
			semantic = true
		case "domain":
			domain = true
		}
	}
	if !semantic || !domain {
		t.Errorf("ValidateFile(bad) phases semantic=%v domain=%v, want both: %v", semantic, domain, errs)
	}

	unknown := filepath.Join(dir, "unknown.json")
	if err := os.WriteFile(unknown, []byte(`{"id":"u","platform":"web","actions":[],"bogus":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, errs = ValidateFile(unknown)
	if len(errs) != 1 || errs[0].Phase != "structural" {
		t.Errorf("ValidateFile(unknown) = %v, want one structural error", errs)
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatalf("GenerateJSONSchema() error = %v", err)
	}
	for _, want := range []string{"wait-for-element", "accessibility-id", schemaID} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
