// Package cli provides the command-line interface for replay-runner.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/replay-runner/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// ErrRunFailed is returned when at least one test case run failed.
var ErrRunFailed = errors.New("one or more runs failed")

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Mirror the log to stderr",
		EnvVars: []string{"REPLAY_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write the run log to this file",
		EnvVars: []string{"REPLAY_LOG_FILE"},
	},
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Run config YAML (default: replay.yaml next to the test case)",
		EnvVars: []string{"REPLAY_CONFIG"},
	},
	&cli.StringSliceFlag{
		Name:    "env-file",
		Usage:   "Load variables for ${...} expansion from a .env file",
		EnvVars: []string{"REPLAY_ENV_FILE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "replay-runner",
		Usage:   "Replay recorded UI test cases on web, desktop and mobile",
		Version: Version,
		Description: `replay-runner reproduces recorded test cases against a live UI and
reports per-step pass/fail.

Examples:
  replay-runner run cases/login.json
  replay-runner run cases/login.json --loop 3 --headless
  replay-runner batch cases/*.json --output ./reports
  replay-runner validate cases/login.json`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			if path := c.String("log-file"); path != "" {
				if err := logger.Init(path); err != nil {
					return err
				}
			}
			logger.SetVerbose(c.Bool("verbose"))
			return nil
		},
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			batchCommand,
			validateCommand,
			schemaCommand,
		},
	}
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		if !errors.Is(err, ErrRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
