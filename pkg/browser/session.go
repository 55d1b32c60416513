// Package browser drives Chrome through go-rod and adapts it to the
// resolver's page contract.
package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/devicelab-dev/replay-runner/pkg/config"
	"github.com/devicelab-dev/replay-runner/pkg/logger"
	"github.com/devicelab-dev/replay-runner/pkg/resolver"
)

// Options configures the browser launch.
type Options struct {
	Headless bool
	Bin      string // browser binary; empty looks up a local install, then downloads
}

// Session owns one browser and its single active page. It outlives test
// runs; only Close tears the browser down.
type Session struct {
	mu       sync.Mutex
	opts     Options
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *Page
}

// NewSession creates a session. No browser is started until Open.
func NewSession(opts Options) *Session {
	return &Session{opts: opts}
}

// Open starts the browser if needed and returns the active page.
// Calling Open on an open session returns the existing page.
func (s *Session) Open(ctx context.Context) (resolver.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		return s.page, nil
	}

	bin, err := s.resolveBin()
	if err != nil {
		return nil, err
	}

	l := launcher.New().Context(ctx).Bin(bin).Headless(s.opts.Headless)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	logger.Info("browser launched: %s (headless=%v)", bin, s.opts.Headless)

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	p, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}

	s.launcher = l
	s.browser = b
	s.page = &Page{page: p}
	return s.page, nil
}

// Current returns the active page, or nil when the browser is closed.
func (s *Session) Current() resolver.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil
	}
	return s.page
}

// Close closes the browser. Safe to call on a closed session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	if s.launcher != nil {
		s.launcher.Kill()
	}
	s.browser = nil
	s.launcher = nil
	s.page = nil
	logger.Info("browser closed")
	return err
}

func (s *Session) resolveBin() (string, error) {
	if s.opts.Bin != "" {
		return s.opts.Bin, nil
	}
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}

	logger.Info("no local browser found, downloading")
	b := launcher.NewBrowser()
	b.RootDir = filepath.Join(config.GetCacheDir(), "browser")
	path, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("download browser: %w", err)
	}
	return path, nil
}
