package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/replay-runner/pkg/browser"
	"github.com/devicelab-dev/replay-runner/pkg/config"
	"github.com/devicelab-dev/replay-runner/pkg/core"
	"github.com/devicelab-dev/replay-runner/pkg/driver/appium"
	"github.com/devicelab-dev/replay-runner/pkg/driver/desktop"
	"github.com/devicelab-dev/replay-runner/pkg/driver/web"
	"github.com/devicelab-dev/replay-runner/pkg/executor"
	"github.com/devicelab-dev/replay-runner/pkg/history"
	"github.com/devicelab-dev/replay-runner/pkg/logger"
	"github.com/devicelab-dev/replay-runner/pkg/report"
	"github.com/devicelab-dev/replay-runner/pkg/testcase"
	"github.com/devicelab-dev/replay-runner/pkg/validator"
)

// runFlags are shared by run and batch.
var runFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:    "env",
		Aliases: []string{"e"},
		Usage:   "Variables for ${...} expansion (KEY=VALUE)",
	},
	&cli.BoolFlag{
		Name:  "headless",
		Usage: "Run the browser headless (web only)",
	},
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL (mobile only)",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:  "caps",
		Usage: "Appium capabilities JSON file (mobile only)",
	},
	&cli.StringFlag{
		Name:  "output",
		Usage: "Output directory for reports (default: $REPLAY_RUNNER_HOME/reports)",
	},
	&cli.BoolFlag{
		Name:  "flatten",
		Usage: "Don't create timestamp subfolder (requires --output)",
	},
	&cli.StringFlag{
		Name:    "history",
		Usage:   "Record runs into this SQLite database",
		EnvVars: []string{"REPLAY_HISTORY"},
	},
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Replay one test case",
	ArgsUsage: "<testcase>",
	Description: `Replay a test case file and write a JSON and HTML report.

Web cases are first brought to the start URL of the suite's config.json,
one directory above the case. With --loop N the case is repeated up to N
times and stops after the first failing iteration.

Examples:
  replay-runner run cases/login.json
  replay-runner run cases/login.json --loop 5 -e USER=qa`,
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "loop",
			Usage: "Repeat the case up to N times, stopping at the first failure",
			Value: 1,
		},
	}, runFlags...),
	Action: runTestCase,
}

// tagFlags filter the cases collected from directories.
var tagFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:  "include-tags",
		Usage: "Only include cases with these tags",
	},
	&cli.StringSliceFlag{
		Name:  "exclude-tags",
		Usage: "Exclude cases with these tags",
	},
}

var batchCommand = &cli.Command{
	Name:      "batch",
	Usage:     "Replay several test cases sequentially",
	ArgsUsage: "<testcase|dir>...",
	Description: `Replay test cases one after another. A failing case does not stop
the batch. Directories are scanned for .json, .yaml and .yml cases and every
case is validated before the first one runs.

Examples:
  replay-runner batch cases/
  replay-runner batch cases/ --include-tags smoke --exclude-tags slow`,
	Flags:  append(append([]cli.Flag{}, runFlags...), tagFlags...),
	Action: runBatch,
}

// RunConfig holds the complete replay configuration.
type RunConfig struct {
	Paths       []string
	Loop        int
	OutputDir   string
	HistoryPath string
	Env         map[string]string
	Config      *config.Config
}

// executorFactory builds the platform executors and their cleanup.
// Tests replace it.
var executorFactory = newExecutors

func newExecutors(cfg *config.Config) (map[testcase.Platform]core.Executor, func()) {
	session := browser.NewSession(browser.Options{Headless: cfg.Headless, Bin: cfg.BrowserBin})
	mobile := appium.NewDriver(cfg)

	execs := map[testcase.Platform]core.Executor{
		testcase.PlatformWeb:     web.New(session, cfg),
		testcase.PlatformDesktop: desktop.New(desktop.NewXdotool(cfg.XdotoolBin), cfg),
		testcase.PlatformMobile:  mobile,
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mobile.Close(ctx); err != nil {
			logger.Warn("close appium session: %v", err)
		}
		if err := session.Close(); err != nil {
			logger.Warn("close browser: %v", err)
		}
	}
	return execs, cleanup
}

func runTestCase(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one test case file is required")
	}
	if c.Int("loop") < 1 {
		return fmt.Errorf("--loop must be at least 1")
	}
	cfg, err := buildRunConfig(c)
	if err != nil {
		return err
	}
	return execute(c.Context, cfg, func(ctx context.Context, ctl *executor.Controller) ([]*core.ExecutionResult, error) {
		return ctl.ExecuteFromFile(ctx, cfg.Paths[0], cfg.Loop)
	})
}

func runBatch(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one test case file is required")
	}
	cfg, err := buildRunConfig(c)
	if err != nil {
		return err
	}

	v := validator.New(c.StringSlice("include-tags"), c.StringSlice("exclude-tags"))
	result := v.Validate(cfg.Paths...)
	if !result.IsValid() {
		printValidation(result)
		return fmt.Errorf("%d validation error(s)", len(result.Errors))
	}
	if len(result.Cases) == 0 {
		return fmt.Errorf("no test cases matched")
	}
	cases := result.Cases
	return execute(c.Context, cfg, func(ctx context.Context, ctl *executor.Controller) ([]*core.ExecutionResult, error) {
		return ctl.ExecuteBatch(ctx, cases), nil
	})
}

// buildRunConfig merges run config file, flags and env sources.
func buildRunConfig(c *cli.Context) (*RunConfig, error) {
	paths := c.Args().Slice()

	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(configDir(paths[0]))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("headless") {
		cfg.Headless = c.Bool("headless")
	}
	if url := c.String("appium-url"); url != "" {
		cfg.AppiumURL = url
	}
	if capsFile := c.String("caps"); capsFile != "" {
		caps, err := loadCapabilities(capsFile)
		if err != nil {
			return nil, err
		}
		cfg.Capabilities = caps
	}

	env, err := config.Env(cfg.Env, c.StringSlice("env-file")...)
	if err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v // CLI overrides every other source
	}

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return nil, err
	}

	return &RunConfig{
		Paths:       paths,
		Loop:        c.Int("loop"),
		OutputDir:   outputDir,
		HistoryPath: c.String("history"),
		Env:         env,
		Config:      cfg,
	}, nil
}

type runFunc func(ctx context.Context, ctl *executor.Controller) ([]*core.ExecutionResult, error)

// execute wires executors into a controller, runs fn and writes the reports.
func execute(parent context.Context, cfg *RunConfig, fn runFunc) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	execs, cleanup := executorFactory(cfg.Config)
	defer cleanup()

	ctl, err := executor.New(execs, executor.Config{
		Env:            cfg.Env,
		OnRunStart:     onRunStart,
		OnStepComplete: onStepComplete,
		OnRunEnd:       onRunEnd,
	})
	if err != nil {
		return err
	}

	logger.Info("replay-runner %s: %s", Version, strings.Join(cfg.Paths, ", "))
	results, err := fn(ctx, ctl)
	if err != nil {
		return err
	}

	rep := report.Build(results)
	reportPath, err := report.Write(cfg.OutputDir, rep)
	if err != nil {
		return err
	}
	if _, err := report.GenerateHTML(rep, report.HTMLConfig{
		OutputPath: filepath.Join(cfg.OutputDir, "report.html"),
	}); err != nil {
		logger.Warn("html report: %v", err)
	}

	if cfg.HistoryPath != "" {
		if err := recordHistory(cfg.HistoryPath, rep.RunID, results); err != nil {
			logger.Warn("history: %v", err)
			fmt.Fprintf(os.Stderr, "  warning: history not recorded: %v\n", err)
		}
	}

	printSummary(rep)
	fmt.Printf("  Report: %s\n\n", reportPath)

	if !rep.Passed() {
		return ErrRunFailed
	}
	return nil
}

// configDir is the directory searched for replay.yaml: the path itself for
// a directory, its parent for a file.
func configDir(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

func recordHistory(path, batchID string, results []*core.ExecutionResult) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, res := range results {
		if _, err := store.RecordRun(batchID, res); err != nil {
			return err
		}
	}
	return nil
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: <home>/reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}
	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// loadCapabilities loads Appium capabilities from a JSON file.
func loadCapabilities(capsFile string) (map[string]interface{}, error) {
	data, err := os.ReadFile(capsFile) //#nosec G304 -- user-provided caps file
	if err != nil {
		return nil, fmt.Errorf("failed to read caps file: %w", err)
	}

	var caps map[string]interface{}
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse caps JSON: %w", err)
	}
	return caps, nil
}
