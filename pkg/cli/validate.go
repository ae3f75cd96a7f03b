package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/pageflow/pkg/config"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check config, flows, cases and fixtures without opening a browser",
	ArgsUsage: "[flow-file-or-folder]...",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c.String("config"))
		if err != nil {
			return err
		}
		applyFlags(c, cfg)
		return validateWorkspace(cfg, c.Args().Slice(), os.Stdout)
	},
}

// validateWorkspace reports every configuration and flow problem to out.
func validateWorkspace(cfg *config.Config, paths []string, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	ws, err := loadWorkspace(cfg, paths)
	if err != nil {
		return err
	}
	if !ws.result.IsValid() {
		printValidationErrors(out, ws.result.Errors)
		return fmt.Errorf("validation failed: %d error(s)", len(ws.result.Errors))
	}

	for i, f := range ws.result.Flows {
		fmt.Fprintf(out, "  %s✓%s %s %s(%s)%s\n", color(colorGreen), color(colorReset),
			f.Name(), color(colorGray), ws.result.Files[i], color(colorReset))
	}
	if ws.useCases {
		for _, c := range cfg.Cases {
			fmt.Fprintf(out, "  %s✓%s case %s: %d flow(s)\n", color(colorGreen), color(colorReset), c.Name, len(c.Flows))
		}
	}
	fmt.Fprintf(out, "\n  %d flow(s) valid\n", len(ws.result.Flows))
	return nil
}
