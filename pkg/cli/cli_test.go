package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/pageflow/pkg/config"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/driver/mock"
	"github.com/devicelab-dev/pageflow/pkg/executor"
	"github.com/devicelab-dev/pageflow/pkg/fixture"
)

const bookingWorkspace = "../../examples/booking"

func init() {
	colorsEnabled = false
}

func loadBooking(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := loadConfig(bookingWorkspace)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestResolveOutputDir_Default(t *testing.T) {
	dir := resolveOutputDir("", false)

	if !strings.HasPrefix(dir, "reports"+string(filepath.Separator)) {
		t.Errorf("expected dir to start with reports/, got %s", dir)
	}
	// Should have timestamp subfolder
	if parts := strings.Split(filepath.ToSlash(dir), "/"); len(parts) != 2 {
		t.Errorf("expected reports/<timestamp>, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	if dir := resolveOutputDir("./my-reports", true); dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestParseEnvVars(t *testing.T) {
	got := parseEnvVars([]string{"USER=ada", "QUERY=a=b", "BROKEN"})

	if len(got) != 2 {
		t.Fatalf("expected 2 vars, got %v", got)
	}
	if got["USER"] != "ada" || got["QUERY"] != "a=b" {
		t.Errorf("unexpected vars: %v", got)
	}
}

func TestMergeVars(t *testing.T) {
	got := mergeVars(map[string]string{"A": "1", "B": "2"}, map[string]string{"B": "3"})
	if got["A"] != "1" || got["B"] != "3" {
		t.Errorf("unexpected merge: %v", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{61 * time.Second, "1m 1s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	cfg := loadBooking(t)
	if cfg.Browser.Driver != config.DriverMock {
		t.Errorf("expected mock driver, got %s", cfg.Browser.Driver)
	}
	if len(cfg.Cases) != 3 {
		t.Errorf("expected 3 cases, got %d", len(cfg.Cases))
	}

	file, err := loadConfig(filepath.Join(bookingWorkspace, "config.yaml"))
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if file.BaseURL != cfg.BaseURL {
		t.Errorf("file and directory loads differ: %q vs %q", file.BaseURL, cfg.BaseURL)
	}

	if _, err := loadConfig("/nonexistent/workspace"); err == nil {
		t.Error("expected error for missing workspace")
	}
}

func TestWorkspaceCases(t *testing.T) {
	ws, err := loadWorkspace(loadBooking(t), nil)
	if err != nil {
		t.Fatalf("load workspace: %v", err)
	}
	if !ws.result.IsValid() {
		t.Fatalf("unexpected errors: %v", ws.result.Errors)
	}

	cases, err := ws.cases(nil)
	if err != nil {
		t.Fatalf("cases: %v", err)
	}
	if len(cases) != 3 {
		t.Fatalf("expected 3 cases, got %d", len(cases))
	}
	book := cases[0]
	if book.Name != "book a trip" || book.Start != "/login" || len(book.Flows) != 3 {
		t.Errorf("unexpected first case: %+v", book)
	}
	if book.Flows[2].Name() != "book_trip" {
		t.Errorf("flows out of order: %s", book.Flows[2].Name())
	}
	if cases[2].Fixtures["trip"]["id"] != "LIS-OPO-0900" {
		t.Errorf("case fixtures not carried: %v", cases[2].Fixtures)
	}

	filtered, err := ws.cases([]string{"sign in"})
	if err != nil {
		t.Fatalf("filtered cases: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Name != "sign in" {
		t.Errorf("unexpected filter result: %+v", filtered)
	}

	if _, err := ws.cases([]string{"checkout"}); err == nil {
		t.Error("expected error for unknown case")
	}
}

func TestWorkspaceCases_ExplicitPaths(t *testing.T) {
	path := filepath.Join(bookingWorkspace, "flows", "login.yaml")
	ws, err := loadWorkspace(loadBooking(t), []string{path})
	if err != nil {
		t.Fatalf("load workspace: %v", err)
	}
	if ws.useCases {
		t.Error("explicit paths must replace configured cases")
	}

	cases, err := ws.cases(nil)
	if err != nil {
		t.Fatalf("cases: %v", err)
	}
	if len(cases) != 1 || cases[0].Name != "login" {
		t.Errorf("expected one login case, got %+v", cases)
	}
}

func TestSessionOptions(t *testing.T) {
	ws, err := loadWorkspace(loadBooking(t), nil)
	if err != nil {
		t.Fatalf("load workspace: %v", err)
	}
	opts := ws.sessionOptions()

	if opts.BaseURL != "http://app.test" {
		t.Errorf("unexpected base URL: %s", opts.BaseURL)
	}
	if opts.GateTimeout != 5*time.Second || opts.PollInterval != 50*time.Millisecond {
		t.Errorf("timeouts not mapped: gate=%v poll=%v", opts.GateTimeout, opts.PollInterval)
	}
	if opts.Fixtures["credentials"]["email"] != "ada@example.com" {
		t.Errorf("fixtures not loaded: %v", opts.Fixtures)
	}
}

func TestExecuteRun_Booking(t *testing.T) {
	var out bytes.Buffer
	rc := &RunConfig{Config: loadBooking(t), OutputDir: t.TempDir()}

	result, err := executeRun(context.Background(), rc, &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	if !result.Success() || result.PassedCases != 3 {
		t.Fatalf("expected 3 passing cases, got %+v\n%s", result, out.String())
	}

	text := out.String()
	for _, want := range []string{"[1/3]", "book a trip", "select trip", "TOTAL", "report.html"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	for _, name := range []string{"report.json", "report.html", filepath.Join("cases", "case-000.json")} {
		if _, err := os.Stat(filepath.Join(rc.OutputDir, name)); err != nil {
			t.Errorf("missing report file %s: %v", name, err)
		}
	}
}

func TestExecuteRun_LockedAccount(t *testing.T) {
	cfg := loadBooking(t)
	cfg.Timeouts.Gate = config.Duration(300 * time.Millisecond)
	cfg.Cases = []config.Case{{
		Name:     "locked",
		Start:    "/login",
		Flows:    []string{"login"},
		Fixtures: fixture.Set{"credentials": {"email": mock.LockedEmail}},
	}}

	var out bytes.Buffer
	result, err := executeRun(context.Background(), &RunConfig{Config: cfg, OutputDir: t.TempDir()}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Success() || result.FailedCases != 1 {
		t.Fatalf("expected the case to fail, got %+v", result)
	}
	flows := result.Cases[0].Flows
	if len(flows) != 1 || flows[0].FailedStep != 3 {
		t.Errorf("expected login to fail at the dashboard gate, got %+v", flows)
	}
	if !strings.Contains(out.String(), "✗") {
		t.Errorf("failure not printed:\n%s", out.String())
	}
}

func TestExecuteRun_ValidationError(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"config.yaml": "browser:\n  driver: mock\n",
		"bad.yaml":    "- click:\n    testId: x\n    timeout: -1\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	_, err = executeRun(context.Background(), &RunConfig{Config: cfg, OutputDir: t.TempDir()}, &out)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(out.String(), "Validation failed") {
		t.Errorf("errors not printed:\n%s", out.String())
	}
}

func TestValidateWorkspace(t *testing.T) {
	var out bytes.Buffer
	if err := validateWorkspace(loadBooking(t), nil, &out); err != nil {
		t.Fatalf("validate: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "3 flow(s) valid") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "case morning trip") {
		t.Errorf("cases not listed:\n%s", out.String())
	}
}

func TestValidateWorkspace_BadDriver(t *testing.T) {
	cfg := loadBooking(t)
	cfg.Browser.Driver = "selenium"

	err := validateWorkspace(cfg, nil, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Errorf("expected unknown driver error, got %v", err)
	}
}

func TestApp_Validate(t *testing.T) {
	app := newApp()
	if len(app.Commands) != 2 {
		t.Fatalf("expected run and validate commands, got %d", len(app.Commands))
	}
	if err := app.Run([]string{"pageflow", "--config", bookingWorkspace, "--no-ansi", "validate"}); err != nil {
		t.Errorf("validate command: %v", err)
	}
}

func TestPlaywrightInstall_Cached(t *testing.T) {
	t.Setenv(config.CacheEnv, t.TempDir())

	dir, need := playwrightInstall(false)
	if need {
		t.Error("install requested without --install")
	}
	if filepath.Base(dir) != "chromium" {
		t.Errorf("unexpected browser dir %s", dir)
	}

	if _, need := playwrightInstall(true); !need {
		t.Error("empty cache must need an install")
	}
	if err := config.MarkInstalled(dir, moduleVersion(playwrightModule)); err != nil {
		t.Fatal(err)
	}
	if _, need := playwrightInstall(true); need {
		t.Error("recorded install must be reused")
	}

	if err := config.MarkInstalled(dir, "v0.0.1-stale"); err != nil {
		t.Fatal(err)
	}
	if _, need := playwrightInstall(true); !need {
		t.Error("install from another playwright-go version must be redone")
	}
}

func TestPrinter_Parallel(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, true)

	p.caseStart(0, 2, "book a trip")
	p.flowEnd("book a trip", core.ExecutionResult{Flow: "login", State: core.FlowCompleted, FailedStep: -1})
	p.flowEnd("locked", core.ExecutionResult{Flow: "login", State: core.FlowFailed, FailedStep: 3, Error: "gate timed out"})
	p.caseEnd(executor.CaseResult{Name: "book a trip", Status: core.StatusPassed})

	text := out.String()
	if strings.Contains(text, "[1/2]") {
		t.Error("parallel runs must not print case headers")
	}
	if !strings.Contains(text, "✓ book a trip › login") {
		t.Errorf("missing success line:\n%s", text)
	}
	if !strings.Contains(text, "╰─ gate timed out") {
		t.Errorf("missing failure detail:\n%s", text)
	}
}
