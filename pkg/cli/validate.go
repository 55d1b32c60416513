package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/replay-runner/pkg/testcase"
	"github.com/devicelab-dev/replay-runner/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check test case files without running them",
	ArgsUsage: "<testcase|dir>...",
	Description: `Decode each case strictly, validate it against the test case JSON
Schema and apply the domain rules (known action kinds, required targets,
unique action ids).`,
	Flags: tagFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return fmt.Errorf("at least one test case file or directory is required")
		}
		v := validator.New(c.StringSlice("include-tags"), c.StringSlice("exclude-tags"))
		result := v.Validate(c.Args().Slice()...)
		printValidation(result)
		if !result.IsValid() {
			return fmt.Errorf("%d validation error(s)", len(result.Errors))
		}
		return nil
	},
}

var schemaCommand = &cli.Command{
	Name:  "schema",
	Usage: "Print the test case JSON Schema",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the schema to this file instead of stdout",
		},
	},
	Action: func(c *cli.Context) error {
		data, err := testcase.GenerateJSONSchema()
		if err != nil {
			return err
		}
		if path := c.String("output"); path != "" {
			return os.WriteFile(path, append(data, '\n'), 0o644)
		}
		_, err = fmt.Fprintln(c.App.Writer, string(data))
		return err
	},
}

func printValidation(result *validator.Result) {
	for _, file := range result.Files {
		fmt.Printf("  %s✓%s %s\n", color(colorGreen), color(colorReset), file)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  %s!%s %s\n", color(colorYellow), color(colorReset), w)
	}
	for _, e := range result.Errors {
		fmt.Printf("  %s✗%s %s\n", color(colorRed), color(colorReset), e)
	}
}
