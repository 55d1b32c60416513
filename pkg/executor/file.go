package executor

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/replay-runner/pkg/config"
	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/logger"
	"github.com/devicelab-dev/replay-runner/pkg/resolver"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

// PageProvider is implemented by web executors that expose their page.
type PageProvider interface {
	// Page returns the active page, opening the browser if needed.
	Page(ctx context.Context) (resolver.Page, error)
}

// ExecuteFromFile loads the test case at path and runs it up to loopCount
// times, stopping after the first failing iteration. Web cases are first
// brought to the suite's start URL.
func (c *Controller) ExecuteFromFile(ctx context.Context, path string, loopCount int) ([]*core.ExecutionResult, error) {
	tc, err := testcase.Load(path)
	if err != nil {
		return nil, err
	}
	if loopCount < 1 {
		loopCount = 1
	}

	if tc.Platform == testcase.PlatformWeb {
		if err := c.preflight(ctx, path); err != nil {
			result := &core.ExecutionResult{
				TestCaseID:   tc.ID,
				TestCaseName: tc.DisplayName(),
				FilePath:     tc.SourcePath,
				Platform:     tc.Platform,
				StartTime:    c.now(),
				Steps:        []core.StepResult{},
				Status:       core.StatusFailed,
			}
			c.fail(result, err)
			return []*core.ExecutionResult{result}, nil
		}
	}

	results := make([]*core.ExecutionResult, 0, loopCount)
	for i := 1; i <= loopCount; i++ {
		iteration := 0
		if loopCount > 1 {
			iteration = i
			logger.Info("iteration %d/%d of %s", i, loopCount, tc.DisplayName())
		}
		result := c.run(ctx, tc, iteration, i-1, loopCount)
		results = append(results, result)
		if !result.Success() {
			break
		}
	}
	return results, nil
}

// preflight makes sure the browser is on the suite's origin. A page already
// on that origin is left untouched.
func (c *Controller) preflight(ctx context.Context, casePath string) error {
	suite, err := config.LoadSuite(casePath)
	if err != nil {
		return &core.PlatformInitFailure{Platform: string(testcase.PlatformWeb), Cause: err}
	}
	if suite == nil || suite.StartURL() == "" {
		logger.Debug("no suite start URL for %s", casePath)
		return nil
	}

	provider, ok := c.executors[testcase.PlatformWeb].(PageProvider)
	if !ok {
		return nil
	}
	page, err := provider.Page(ctx)
	if err != nil {
		return &core.PlatformInitFailure{Platform: string(testcase.PlatformWeb), Cause: err}
	}

	current, err := page.URL()
	if err != nil {
		return &core.PlatformInitFailure{Platform: string(testcase.PlatformWeb), Cause: err}
	}
	target, err := startURL(suite.StartURL(), current, filepath.Dir(config.SuitePath(casePath)))
	if err != nil {
		return &core.PlatformInitFailure{Platform: string(testcase.PlatformWeb), Cause: err}
	}
	if target == "" {
		logger.Warn("suite path %q has no origin to resolve against; skipping pre-flight", suite.StartURL())
		return nil
	}
	if current == target || (!isBlank(current) && sameOrigin(current, target)) {
		logger.Debug("page already on %s", origin(target))
		return nil
	}

	logger.Info("pre-flight: navigating to %s", target)
	if err := page.Navigate(ctx, target); err != nil {
		return &core.PlatformInitFailure{Platform: string(testcase.PlatformWeb), Cause: err}
	}
	return nil
}

// startURL resolves a suite URL or path. A path naming an existing local
// file, absolute or relative to suiteDir, becomes a file:// URL. Any other
// path is resolved against the current page, and is "" when the page has
// no origin.
func startURL(raw, current, suiteDir string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid suite url %q: %w", raw, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if file, ok := localFile(raw, suiteDir); ok {
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(file)}).String(), nil
	}
	if isBlank(current) {
		return "", nil
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", nil
	}
	return base.ResolveReference(u).String(), nil
}

// localFile reports the absolute path of raw when it names a regular file.
func localFile(raw, suiteDir string) (string, bool) {
	path := raw
	if !filepath.IsAbs(path) {
		path = filepath.Join(suiteDir, path)
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	return abs, true
}

func isBlank(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || strings.HasPrefix(raw, "about:blank") || raw == "about:srcdoc"
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

func sameOrigin(a, b string) bool {
	oa := origin(a)
	return oa != "" && oa == origin(b)
}
