package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "replay.yaml")

	content := `
timeouts:
  elementTimeout: 2s
  forceSettleDelay: 250
heuristics:
  backdropSelector: ".my-backdrop"
  styleTokens: ["tw-"]
headless: true
appiumUrl: http://grid:4444
capabilities:
  platformName: Android
env:
  USER: test
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cfg.Timeouts.Element.Std(); got != 2*time.Second {
		t.Errorf("Element = %v, want 2s", got)
	}
	if got := cfg.Timeouts.ForceSettleDelay.Std(); got != 250*time.Millisecond {
		t.Errorf("ForceSettleDelay = %v, want 250ms", got)
	}
	// Unset fields keep their defaults
	if got := cfg.Timeouts.WaitForElement.Std(); got != 30*time.Second {
		t.Errorf("WaitForElement = %v, want 30s", got)
	}
	if cfg.Heuristics.BackdropSelector != ".my-backdrop" {
		t.Errorf("BackdropSelector = %q, want %q", cfg.Heuristics.BackdropSelector, ".my-backdrop")
	}
	if len(cfg.Heuristics.StyleTokens) != 1 || cfg.Heuristics.StyleTokens[0] != "tw-" {
		t.Errorf("StyleTokens = %v, want [tw-]", cfg.Heuristics.StyleTokens)
	}
	if cfg.Heuristics.RecordingOverlaySelector != "#__replay_recorder_overlay__" {
		t.Errorf("RecordingOverlaySelector = %q", cfg.Heuristics.RecordingOverlaySelector)
	}
	if !cfg.Headless {
		t.Error("Headless = false, want true")
	}
	if cfg.AppiumURL != "http://grid:4444" {
		t.Errorf("AppiumURL = %q, want %q", cfg.AppiumURL, "http://grid:4444")
	}
	if cfg.Capabilities["platformName"] != "Android" {
		t.Errorf("Capabilities = %v", cfg.Capabilities)
	}
	if cfg.Env["USER"] != "test" {
		t.Errorf("Env = %v", cfg.Env)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/replay.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "replay.yaml")
	if err := os.WriteFile(configPath, []byte("timeouts:\n  elementTimeout: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "replay.yaml")
	if err := os.WriteFile(configPath, []byte(`timeouts: [invalid yaml`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	want := DefaultTimeouts()
	if cfg.Timeouts != want {
		t.Errorf("Timeouts = %+v, want %+v", cfg.Timeouts, want)
	}
	if cfg.Timeouts.BackdropSettleDelay.Std() != 300*time.Millisecond {
		t.Errorf("BackdropSettleDelay = %v, want 300ms", cfg.Timeouts.BackdropSettleDelay.Std())
	}
	if cfg.AppiumURL != DefaultAppiumURL {
		t.Errorf("AppiumURL = %q, want %q", cfg.AppiumURL, DefaultAppiumURL)
	}
	if len(cfg.Heuristics.OptionSelectors) != 5 {
		t.Errorf("OptionSelectors = %v, want 5 entries", cfg.Heuristics.OptionSelectors)
	}
}

func TestLoadFromDir_PrefersYamlOverYml(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "replay.yaml"), []byte("headless: true"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "replay.yml"), []byte("headless: false"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Headless {
		t.Error("expected headless true (from replay.yaml)")
	}
}

func TestLoadFromDir_NoConfig(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timeouts.Element.Std() != 5*time.Second {
		t.Errorf("Element = %v, want 5s", cfg.Timeouts.Element.Std())
	}
}

func TestLoadSuite(t *testing.T) {
	root := t.TempDir()
	casesDir := filepath.Join(root, "cases")
	if err := os.MkdirAll(casesDir, 0755); err != nil {
		t.Fatal(err)
	}
	casePath := filepath.Join(casesDir, "login.json")

	// Missing suite config is not an error
	s, err := LoadSuite(casePath)
	if err != nil || s != nil {
		t.Fatalf("LoadSuite() = %v, %v; want nil, nil", s, err)
	}

	if err := os.WriteFile(filepath.Join(root, SuiteFile), []byte(`{"urlOrPath":"https://app.test/login"}`), 0644); err != nil {
		t.Fatal(err)
	}
	s, err = LoadSuite(casePath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.StartURL(); got != "https://app.test/login" {
		t.Errorf("StartURL() = %q, want %q", got, "https://app.test/login")
	}
}

func TestSuite_StartURLPrecedence(t *testing.T) {
	s := &Suite{URL: " ", Path: "/p", URLOrPath: "https://x.test"}
	if got := s.StartURL(); got != "https://x.test" {
		t.Errorf("StartURL() = %q, want %q", got, "https://x.test")
	}
	s = &Suite{Path: "/p"}
	if got := s.StartURL(); got != "/p" {
		t.Errorf("StartURL() = %q, want %q", got, "/p")
	}
}

func TestEnv_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "REPLAY_TEST_A=from-file\nREPLAY_TEST_B=from-file\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REPLAY_TEST_D", "from-process")

	env, err := Env(map[string]string{"REPLAY_TEST_A": "base", "REPLAY_TEST_C": "base"}, envFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env["REPLAY_TEST_A"] != "from-file" {
		t.Errorf("A = %q, want from-file", env["REPLAY_TEST_A"])
	}
	if env["REPLAY_TEST_B"] != "from-file" {
		t.Errorf("B = %q, want from-file", env["REPLAY_TEST_B"])
	}
	if _, ok := env["REPLAY_TEST_D"]; ok {
		t.Error("process environment must not be a declared variable")
	}
	if env["REPLAY_TEST_C"] != "base" {
		t.Errorf("C = %q, want base", env["REPLAY_TEST_C"])
	}
}

func TestEnv_MissingFile(t *testing.T) {
	if _, err := Env(nil, "/nonexistent/.env"); err == nil {
		t.Error("expected error for missing env file")
	}
}

func TestLoad_ZeroDelaysDisableWaits(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "replay.yaml")
	content := `
timeouts:
  forceSettleDelay: 0
  backdropSettleDelay: 0s
  postNavigateDelay: -5
  elementTimeout: 0
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := DefaultTimeouts()
	if cfg.Timeouts.ForceSettleDelay != 0 {
		t.Errorf("ForceSettleDelay = %v, want 0", cfg.Timeouts.ForceSettleDelay.Std())
	}
	if cfg.Timeouts.BackdropSettleDelay != 0 {
		t.Errorf("BackdropSettleDelay = %v, want 0", cfg.Timeouts.BackdropSettleDelay.Std())
	}
	if cfg.Timeouts.PostNavigateDelay != d.PostNavigateDelay {
		t.Errorf("PostNavigateDelay = %v, want default for a negative value", cfg.Timeouts.PostNavigateDelay.Std())
	}
	if cfg.Timeouts.Element != d.Element {
		t.Errorf("Element = %v, want default for a zero timeout", cfg.Timeouts.Element.Std())
	}
	if cfg.Timeouts.NavigationSettle != d.NavigationSettle {
		t.Errorf("NavigationSettle = %v, want default when omitted", cfg.Timeouts.NavigationSettle.Std())
	}
}
