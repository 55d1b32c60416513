package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SuiteFile is the companion config that sits one directory above a
// suite's test cases.
const SuiteFile = "config.json"

// Suite is the companion suite configuration of a web test case.
type Suite struct {
	URL       string `json:"url,omitempty"`
	Path      string `json:"path,omitempty"`
	URLOrPath string `json:"urlOrPath,omitempty"`
}

// StartURL returns the first non-empty of url, urlOrPath and path.
func (s *Suite) StartURL() string {
	for _, v := range []string{s.URL, s.URLOrPath, s.Path} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// SuitePath returns the companion config path for a test case file.
func SuitePath(casePath string) string {
	return filepath.Join(filepath.Dir(casePath), "..", SuiteFile)
}

// LoadSuite reads the companion suite config of casePath. A missing file
// is not an error; it returns (nil, nil).
func LoadSuite(casePath string) (*Suite, error) {
	path := SuitePath(casePath)
	data, err := os.ReadFile(path) //#nosec G304 -- sibling of user-provided case
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var s Suite
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &s, nil
}
