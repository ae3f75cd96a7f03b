package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/config"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/driver/cdp"
	"github.com/devicelab-dev/pageflow/pkg/driver/mock"
	"github.com/devicelab-dev/pageflow/pkg/driver/playwright"
	"github.com/devicelab-dev/pageflow/pkg/executor"
	"github.com/devicelab-dev/pageflow/pkg/logger"
	"github.com/devicelab-dev/pageflow/pkg/report"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run flows against a browser",
	ArgsUsage: "[flow-file-or-folder]...",
	Description: `Run the workspace's cases, or every selected flow as its own case.

Flow files given as arguments replace the configured flow globs and cases.

Reports are generated in the output directory:
  - Default: <output>/<timestamp>/ where output comes from config.yaml
  - With --flatten: <output>/ (no timestamp subfolder)

Examples:
  pageflow run
  pageflow run --case "book a trip" --case "locked account"
  pageflow run flows/login.yaml -e BASE_USER=ada
  pageflow --driver mock run --include-tags smoke`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "case",
			Usage: "Only run these cases (or flows, without cases)",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variables (KEY=VALUE) available as $KEY",
		},
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "Base URL for relative navigation; overrides baseUrl",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports; overrides output",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Run up to N cases concurrently",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining cases after the first failure",
		},
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the browser without a window (default true)",
		},
		&cli.BoolFlag{
			Name:    "install",
			Usage:   "Install the Playwright driver and chromium when missing",
			EnvVars: []string{"PAGEFLOW_INSTALL"},
		},
	},
	Action: runFlows,
}

// RunConfig holds everything one run needs.
type RunConfig struct {
	Config    *config.Config
	Paths     []string          // explicit flow files or folders
	Cases     []string          // case filter
	Env       map[string]string // merged over config env
	OutputDir string            // resolved report directory
	Install   bool
	Verbose   bool
	LogFile   string
}

func runFlows(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	output := cfg.ResolvePath(cfg.Output)
	if c.IsSet("output") {
		output = c.String("output")
	}
	outputDir := resolveOutputDir(output, c.Bool("flatten"))

	rc := &RunConfig{
		Config:    cfg,
		Paths:     c.Args().Slice(),
		Cases:     c.StringSlice("case"),
		Env:       parseEnvVars(c.StringSlice("env")),
		OutputDir: outputDir,
		Install:   c.Bool("install"),
		Verbose:   c.Bool("verbose"),
		LogFile:   c.String("log-file"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := executeRun(ctx, rc, os.Stdout)
	if err != nil {
		return err
	}
	if !result.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// applyFlags layers command-line overrides onto the loaded configuration.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("driver") {
		cfg.Browser.Driver = c.String("driver")
	}
	if c.IsSet("base-url") {
		cfg.BaseURL = c.String("base-url")
	}
	if c.IsSet("include-tags") {
		cfg.IncludeTags = c.StringSlice("include-tags")
	}
	if c.IsSet("exclude-tags") {
		cfg.ExcludeTags = c.StringSlice("exclude-tags")
	}
	if c.IsSet("parallel") {
		cfg.Parallelism = c.Int("parallel")
	}
	if c.IsSet("stop-on-fail") {
		cfg.StopOnFail = c.Bool("stop-on-fail")
	}
	if c.IsSet("headless") {
		headless := c.Bool("headless")
		cfg.Browser.Headless = &headless
	}
}

// executeRun validates the workspace, runs every selected case and writes
// the report. Progress goes to out.
func executeRun(ctx context.Context, rc *RunConfig, out io.Writer) (*executor.RunResult, error) {
	cfg := rc.Config

	// 1. Logging
	if err := initLogging(rc); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	defer logger.Close()
	log := logger.L()

	logger.Info("=== Run started ===")
	logger.Info("Workspace: %s", cfg.Dir())
	logger.Info("Output directory: %s", rc.OutputDir)

	// 2. Validate flows before anything opens a browser
	ws, err := loadWorkspace(cfg, rc.Paths)
	if err != nil {
		logger.Error("Workspace failed to load: %v", err)
		return nil, err
	}
	if !ws.result.IsValid() {
		for _, verr := range ws.result.Errors {
			logger.Error("Validation: %v", verr)
		}
		printValidationErrors(out, ws.result.Errors)
		return nil, fmt.Errorf("validation failed: %d error(s)", len(ws.result.Errors))
	}
	cases, err := ws.cases(rc.Cases)
	if err != nil {
		return nil, err
	}
	log.Info("flows validated",
		zap.Int("flows", len(ws.result.Flows)),
		zap.Int("cases", len(cases)),
		zap.String("driver", cfg.Browser.Driver))

	// 3. Browser
	provider, closeProvider, err := createProvider(ctx, cfg, rc.Install, log)
	if err != nil {
		return nil, err
	}
	defer closeProvider()

	// 4. Run
	opts := ws.sessionOptions()
	opts.Variables = mergeVars(cfg.Env, rc.Env)
	opts.Logger = log

	p := newPrinter(out, cfg.Parallelism > 1)
	p.banner(cfg)

	start := time.Now()
	runner := executor.New(provider, executor.RunnerConfig{
		Parallelism: cfg.Parallelism,
		StopOnFail:  cfg.StopOnFail,
		Session:     opts,
		OnCaseStart: p.caseStart,
		OnFlowEnd:   p.flowEnd,
		OnCaseEnd:   p.caseEnd,
	})
	result := runner.Run(ctx, cases)
	log.Info("run finished",
		zap.Int("passed", result.PassedCases),
		zap.Int("failed", result.FailedCases),
		zap.Int("skipped", result.SkippedCases),
		zap.Duration("duration", result.Duration))

	p.summary(result)

	// 5. Report
	index, details := report.Build(result, report.BuilderConfig{
		RunnerVersion: Version,
		DriverName:    cfg.Browser.Driver,
		BaseURL:       cfg.BaseURL,
		StartTime:     start,
	})
	if err := report.Write(rc.OutputDir, index, details); err != nil {
		logger.Error("Report failed: %v", err)
		p.warnf("failed to write report: %v", err)
	} else {
		p.reports(rc.OutputDir)
	}
	return result, nil
}

func initLogging(rc *RunConfig) error {
	cfg := rc.Config
	opts := logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.ResolvePath(cfg.Log.File),
	}
	if rc.LogFile != "" {
		opts.File = rc.LogFile
	}
	if rc.Verbose {
		opts.Level = "debug"
		opts.Console = os.Stderr
	}
	return logger.Init(opts)
}

// createProvider starts the configured browser driver. The returned func
// shuts it down.
func createProvider(ctx context.Context, cfg *config.Config, install bool, log *zap.Logger) (core.Provider, func(), error) {
	b := cfg.Browser
	logger.Debug("Starting %s driver (headless=%v)", b.Driver, b.IsHeadless())
	switch b.Driver {
	case config.DriverMock:
		return mock.New(mock.BookingSite(), mock.Config{BaseURL: cfg.BaseURL}), func() {}, nil

	case config.DriverCDP:
		opts := cdp.Options{
			Headless:    b.IsHeadless(),
			SlowMo:      b.SlowMo.D(),
			Permissions: b.Permissions,
			Logger:      log,
		}
		if g := b.Geolocation; g != nil {
			opts.Geolocation = &cdp.Geolocation{Latitude: g.Latitude, Longitude: g.Longitude, Accuracy: g.Accuracy}
		}
		if v := b.Viewport; v != nil {
			opts.Viewport = &cdp.Viewport{Width: v.Width, Height: v.Height}
		}
		p, err := cdp.Launch(ctx, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("launch chrome: %w", err)
		}
		return p, closer(p), nil

	default:
		dir, needInstall := playwrightInstall(install)
		opts := playwright.Options{
			Headless:    b.IsHeadless(),
			SlowMo:      b.SlowMo.D(),
			BaseURL:     cfg.BaseURL,
			Permissions: b.Permissions,
			DriverDir:   dir,
			Install:     needInstall,
			Logger:      log,
		}
		if g := b.Geolocation; g != nil {
			opts.Geolocation = &playwright.Geolocation{Latitude: g.Latitude, Longitude: g.Longitude, Accuracy: g.Accuracy}
		}
		if v := b.Viewport; v != nil {
			opts.Viewport = &playwright.Viewport{Width: v.Width, Height: v.Height}
		}
		p, err := playwright.Launch(ctx, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("launch playwright: %w", err)
		}
		if needInstall {
			if err := config.MarkInstalled(dir, moduleVersion(playwrightModule)); err != nil {
				logger.Warn("Install not recorded: %v", err)
			}
		}
		return p, closer(p), nil
	}
}

const playwrightModule = "github.com/playwright-community/playwright-go"

// playwrightInstall returns the cached chromium directory and whether an
// install is still needed. A recorded install is reused unless the binary
// now links a different playwright-go.
func playwrightInstall(install bool) (string, bool) {
	dir := config.BrowserDir(config.DriverPlaywright, "chromium")
	if !install {
		return dir, false
	}
	if config.Installed(dir) && config.InstalledVersion(dir) == moduleVersion(playwrightModule) {
		logger.Debug("Using cached chromium in %s", dir)
		return dir, false
	}
	return dir, true
}

// moduleVersion returns the version of a dependency linked into the binary.
func moduleVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == path {
			return dep.Version
		}
	}
	return "unknown"
}

func closer(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Warn("Browser shutdown failed: %v", err)
		}
	}
}

// resolveOutputDir determines the report directory.
// - default: <output>/<timestamp>/
// - --flatten: <output>/
func resolveOutputDir(output string, flatten bool) string {
	if output == "" {
		output = "./reports"
	}
	if flatten {
		return filepath.Clean(output)
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(output, timestamp)
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, env := range envs {
		if k, v, ok := strings.Cut(env, "="); ok {
			result[k] = v
		}
	}
	return result
}

func mergeVars(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
