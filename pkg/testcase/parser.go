package testcase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Load reads and parses a test case file.
func Load(path string) (*TestCase, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided test case file
	if err != nil {
		return nil, fmt.Errorf("failed to read test case: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes a test case. Files ending in .yaml/.yml are decoded as YAML,
// everything else as JSON.
func Parse(data []byte, sourcePath string) (*TestCase, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty test case file"}
	}

	var tc TestCase
	if isYAML(sourcePath) {
		if err := yaml.Unmarshal(data, &tc); err != nil {
			return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid yaml: %v", err)}
		}
	} else {
		if err := json.Unmarshal(data, &tc); err != nil {
			pe := &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid json: %v", err)}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				pe.Line = lineOf(data, syntaxErr.Offset)
			}
			return nil, pe
		}
	}

	if tc.Actions == nil {
		tc.Actions = []TestAction{}
	}
	tc.SourcePath = sourcePath
	return &tc, nil
}

// Save writes the test case as indented JSON.
func Save(path string, tc *TestCase) error {
	data, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode test case: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644) //#nosec G306 -- test cases are not secret
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func lineOf(data []byte, offset int64) int {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}
