// Package config handles configuration for replay-runner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the run configuration (replay.yaml).
type Config struct {
	Timeouts   Timeouts   `yaml:"timeouts"`
	Heuristics Heuristics `yaml:"heuristics"`

	// Web settings
	Headless      bool   `yaml:"headless"`
	BrowserBin    string `yaml:"browserBin"`    // Chrome/Chromium binary, empty = auto-download
	ScreenshotDir string `yaml:"screenshotDir"` // Where screenshot actions write

	// Mobile settings
	AppiumURL    string                 `yaml:"appiumUrl"`
	Capabilities map[string]interface{} `yaml:"capabilities"`

	// Desktop settings
	XdotoolBin string `yaml:"xdotoolBin"`

	// Execution settings
	Env map[string]string `yaml:"env"` // Variables for ${...} expansion
}

// Timeouts holds every wait and delay used during replay.
type Timeouts struct {
	Element             Duration `yaml:"elementTimeout"`
	WaitForElement      Duration `yaml:"waitForElementTimeout"`
	Navigation          Duration `yaml:"navigationTimeout"`
	PostNavigateDelay   Duration `yaml:"postNavigateDelay"`
	NavigationSettle    Duration `yaml:"navigationSettleTimeout"`
	ForceSettleDelay    Duration `yaml:"forceSettleDelay"`
	BackdropSettleDelay Duration `yaml:"backdropSettleDelay"`
	MobileCommand       Duration `yaml:"mobileCommandTimeout"`
}

// Heuristics holds the selectors and token lists the resolver uses to
// recover from stale locators.
type Heuristics struct {
	BackdropSelector         string   `yaml:"backdropSelector"`
	RecordingOverlaySelector string   `yaml:"recordingOverlaySelector"`
	OptionSelectors          []string `yaml:"optionSelectors"`
	StyleTokens              []string `yaml:"styleTokens"`
}

// Defaults
const (
	DefaultAppiumURL  = "http://127.0.0.1:4723"
	DefaultXdotoolBin = "xdotool"
)

// DefaultTimeouts returns the stock waits.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Element:             Duration(5 * time.Second),
		WaitForElement:      Duration(30 * time.Second),
		Navigation:          Duration(30 * time.Second),
		PostNavigateDelay:   Duration(1 * time.Second),
		NavigationSettle:    Duration(3 * time.Second),
		ForceSettleDelay:    Duration(500 * time.Millisecond),
		BackdropSettleDelay: Duration(300 * time.Millisecond),
		MobileCommand:       Duration(60 * time.Second),
	}
}

// DefaultHeuristics returns the stock resolver heuristics.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		BackdropSelector:         ".MuiBackdrop-root, .ant-modal-mask, .modal-backdrop, .cdk-overlay-backdrop",
		RecordingOverlaySelector: "#__replay_recorder_overlay__",
		OptionSelectors:          []string{`[role="option"]`, `[role="menuitem"]`, `[role="treeitem"]`, "li", "option"},
		StyleTokens:              []string{"ant-", "css-", "Mui", "sc-", "jsx-"},
	}
}

// Default returns a configuration with every field set.
func Default() *Config {
	cfg := &Config{Timeouts: DefaultTimeouts()}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills unset fields so partial files only override what
// they name. Timeouts must be positive. Delays may be 0 to disable them;
// a key left out of the file keeps its default because Load decodes over
// DefaultTimeouts.
func (c *Config) applyDefaults() {
	d := DefaultTimeouts()
	timeout := func(v *Duration, def Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	delay := func(v *Duration, def Duration) {
		if *v < 0 {
			*v = def
		}
	}
	timeout(&c.Timeouts.Element, d.Element)
	timeout(&c.Timeouts.WaitForElement, d.WaitForElement)
	timeout(&c.Timeouts.Navigation, d.Navigation)
	timeout(&c.Timeouts.NavigationSettle, d.NavigationSettle)
	timeout(&c.Timeouts.MobileCommand, d.MobileCommand)
	delay(&c.Timeouts.PostNavigateDelay, d.PostNavigateDelay)
	delay(&c.Timeouts.ForceSettleDelay, d.ForceSettleDelay)
	delay(&c.Timeouts.BackdropSettleDelay, d.BackdropSettleDelay)

	h := DefaultHeuristics()
	if c.Heuristics.BackdropSelector == "" {
		c.Heuristics.BackdropSelector = h.BackdropSelector
	}
	if c.Heuristics.RecordingOverlaySelector == "" {
		c.Heuristics.RecordingOverlaySelector = h.RecordingOverlaySelector
	}
	if len(c.Heuristics.OptionSelectors) == 0 {
		c.Heuristics.OptionSelectors = h.OptionSelectors
	}
	if len(c.Heuristics.StyleTokens) == 0 {
		c.Heuristics.StyleTokens = h.StyleTokens
	}

	if c.AppiumURL == "" {
		c.AppiumURL = DefaultAppiumURL
	}
	if c.XdotoolBin == "" {
		c.XdotoolBin = DefaultXdotoolBin
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = GetScreenshotDir()
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Config{Timeouts: DefaultTimeouts()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromDir looks for replay.yaml or replay.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"replay.yaml", "replay.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, use defaults
	return Default(), nil
}
