// Package cli provides the command-line interface for pageflow.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Workspace directory or config file",
		Value:   ".",
		EnvVars: []string{"PAGEFLOW_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Browser driver (playwright, cdp, mock); overrides browser.driver",
		EnvVars: []string{"PAGEFLOW_DRIVER"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"PAGEFLOW_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write JSON logs to this file; overrides log.file",
		EnvVars: []string{"PAGEFLOW_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "pageflow",
		Usage:   "Resilient page-object flows for web apps",
		Version: Version,
		Description: `pageflow runs YAML flows against a browser. Each case opens a fresh
session, chains its flows on it and gates every transition on a
page condition.

Examples:
  pageflow run
  pageflow --config examples/booking run --case "book a trip"
  pageflow --driver cdp run flows/login.yaml
  pageflow validate`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
