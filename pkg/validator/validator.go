// Package validator collects and validates test case files before execution.
// Directories are scanned for case files and tag filters are applied.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/replay-runner/pkg/config"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of case file paths in execution order.
	Files []string
	// Cases holds the parsed case of each entry in Files.
	Cases []*testcase.TestCase
	// Errors contains all validation errors found.
	Errors []error
	// Warnings contains findings that do not block execution.
	Warnings []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates test case files.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates files and directories. Each file goes through the
// structural, semantic and domain checks of testcase.ValidateFile.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	seen := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("cannot access: %v", err),
			})
			continue
		}

		files := []string{path}
		if info.IsDir() {
			files, err = collectCaseFiles(path)
			if err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    path,
					Message: fmt.Sprintf("failed to scan directory: %v", err),
				})
				continue
			}
		}

		for _, file := range files {
			if seen[file] {
				continue
			}
			seen[file] = true
			v.validateFile(file, result)
		}
	}
	return result
}

func (v *Validator) validateFile(file string, result *Result) {
	tc, findings := testcase.ValidateFile(file)
	failed := false
	for _, f := range findings {
		err := &ValidationError{File: file, Message: f.Error()}
		if f.Severity == "warning" {
			result.Warnings = append(result.Warnings, err)
			continue
		}
		failed = true
		result.Errors = append(result.Errors, err)
	}
	if failed || tc == nil {
		return
	}
	if !ShouldInclude(tc, v.includeTags, v.excludeTags) {
		return
	}
	result.Files = append(result.Files, file)
	result.Cases = append(result.Cases, tc)
}

// ShouldInclude applies tag filters. A case is included when it carries at
// least one include tag (or none are given) and no exclude tag.
func ShouldInclude(tc *testcase.TestCase, includeTags, excludeTags []string) bool {
	has := func(tag string) bool {
		for _, t := range tc.Tags {
			if strings.EqualFold(t, tag) {
				return true
			}
		}
		return false
	}
	for _, tag := range excludeTags {
		if has(tag) {
			return false
		}
	}
	if len(includeTags) == 0 {
		return true
	}
	for _, tag := range includeTags {
		if has(tag) {
			return true
		}
	}
	return false
}

// collectCaseFiles finds .json, .yaml and .yml case files in a directory,
// skipping suite and run config files.
func collectCaseFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(info.Name()) {
		case config.SuiteFile, "replay.yaml", "replay.yml":
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".json" || ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}
