package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

func caseJSON(id string, tags ...string) string {
	tagJSON := ""
	if len(tags) > 0 {
		tagJSON = `"tags": ["` + strings.Join(tags, `", "`) + `"],`
	}
	return `{"id": "` + id + `", "name": "` + id + `", "platform": "web", ` + tagJSON + `
  "actions": [{"id": "a1", "timestamp": 1700000000000, "platform": "web", "type": "wait", "value": 100}]}`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestValidate_SingleFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "login.json")
	writeFile(t, file, caseJSON("tc-login"))

	result := New(nil, nil).Validate(file)

	if !result.IsValid() {
		t.Errorf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Cases) != 1 || result.Cases[0].ID != "tc-login" {
		t.Errorf("Cases = %v, want tc-login", result.Cases)
	}
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.json"), caseJSON("tc-b"))
	writeFile(t, filepath.Join(dir, "a.json"), caseJSON("tc-a"))
	writeFile(t, filepath.Join(dir, "nested", "c.json"), caseJSON("tc-c"))
	writeFile(t, filepath.Join(dir, "config.json"), `{"url": "https://example.com"}`)
	writeFile(t, filepath.Join(dir, "replay.yaml"), "headless: true\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	result := New(nil, nil).Validate(dir)

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	var ids []string
	for _, tc := range result.Cases {
		ids = append(ids, tc.ID)
	}
	if got := strings.Join(ids, ","); got != "tc-a,tc-b,tc-c" {
		t.Errorf("case order = %s, want tc-a,tc-b,tc-c", got)
	}
}

func TestValidate_DuplicatePathsCollapsed(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.json")
	writeFile(t, file, caseJSON("tc-a"))

	result := New(nil, nil).Validate(file, file)
	if len(result.Files) != 1 {
		t.Errorf("len(Files) = %d, want 1", len(result.Files))
	}
}

func TestValidate_InvalidCase(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, file, `{"id": "b", "name": "b", "platform": "web", "actions": [{"id": "x", "timestamp": 0, "platform": "web", "type": "teleport"}]}`)

	result := New(nil, nil).Validate(file)

	if result.IsValid() {
		t.Fatal("expected validation errors")
	}
	if len(result.Cases) != 0 {
		t.Errorf("invalid case must not be collected")
	}
	if !strings.Contains(result.Errors[0].Error(), "bad.json") {
		t.Errorf("error should name the file: %v", result.Errors[0])
	}
}

func TestValidate_MissingPath(t *testing.T) {
	result := New(nil, nil).Validate(filepath.Join(t.TempDir(), "nope.json"))
	if result.IsValid() {
		t.Fatal("expected error for missing path")
	}
	if !strings.Contains(result.Errors[0].Error(), "cannot access") {
		t.Errorf("unexpected error: %v", result.Errors[0])
	}
}

func TestValidate_DuplicateActionIDIsWarning(t *testing.T) {
	file := filepath.Join(t.TempDir(), "dup.json")
	writeFile(t, file, `{"id": "d", "name": "d", "platform": "web", "actions": [
  {"id": "a1", "timestamp": 1, "platform": "web", "type": "wait", "value": 10},
  {"id": "a1", "timestamp": 2, "platform": "web", "type": "wait", "value": 10}]}`)

	result := New(nil, nil).Validate(file)

	if !result.IsValid() {
		t.Fatalf("duplicate ids should not block: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("len(Warnings) = %d, want 1", len(result.Warnings))
	}
	if len(result.Cases) != 1 {
		t.Errorf("case with warnings should still be collected")
	}
}

func TestValidate_TagFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "smoke.json"), caseJSON("tc-smoke", "smoke"))
	writeFile(t, filepath.Join(dir, "slow.json"), caseJSON("tc-slow", "smoke", "slow"))
	writeFile(t, filepath.Join(dir, "plain.json"), caseJSON("tc-plain"))

	tests := []struct {
		name    string
		include []string
		exclude []string
		want    string
	}{
		{"no filters", nil, nil, "tc-plain,tc-slow,tc-smoke"},
		{"include", []string{"smoke"}, nil, "tc-slow,tc-smoke"},
		{"exclude", nil, []string{"slow"}, "tc-plain,tc-smoke"},
		{"include and exclude", []string{"SMOKE"}, []string{"slow"}, "tc-smoke"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New(tt.include, tt.exclude).Validate(dir)
			var ids []string
			for _, tc := range result.Cases {
				ids = append(ids, tc.ID)
			}
			if got := strings.Join(ids, ","); got != tt.want {
				t.Errorf("cases = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestShouldInclude_NoTags(t *testing.T) {
	tc := &testcase.TestCase{ID: "x"}
	if !ShouldInclude(tc, nil, []string{"slow"}) {
		t.Error("untagged case should pass an exclude-only filter")
	}
	if ShouldInclude(tc, []string{"smoke"}, nil) {
		t.Error("untagged case should fail an include filter")
	}
}
