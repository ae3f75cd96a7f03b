package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/pageflow/pkg/config"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/executor"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold
const slowThreshold = 3 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// printer renders live progress. Runner callbacks may arrive from several
// goroutines; parallel runs print one line per flow instead of step trees.
type printer struct {
	mu       sync.Mutex
	w        io.Writer
	parallel bool
}

func newPrinter(w io.Writer, parallel bool) *printer {
	return &printer{w: w, parallel: parallel}
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) banner(cfg *config.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\n  %spageflow %s%s  driver=%s", color(colorBold), Version, color(colorReset), cfg.Browser.Driver)
	if cfg.BaseURL != "" {
		p.printf("  baseUrl=%s", cfg.BaseURL)
	}
	p.printf("\n")
}

func (p *printer) caseStart(idx, total int, name string) {
	if p.parallel {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\n  %s[%d/%d]%s %s%s%s\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), name, color(colorReset))
	p.printf("%s\n", strings.Repeat("─", 60))
}

func (p *printer) flowEnd(caseName string, r core.ExecutionResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.parallel {
		p.printf("  %s %s › %s %s%s%s\n", p.mark(r.Success()), caseName, r.Flow,
			color(colorGray), formatDuration(r.Duration), color(colorReset))
		if !r.Success() {
			p.printf("      %s╰─%s %s\n", color(colorGray), color(colorReset), r.Error)
		}
		return
	}

	p.printf("  %s%s%s\n", color(colorBold), r.Flow, color(colorReset))
	for _, s := range r.Steps {
		p.step(s)
	}
	if !r.Success() && r.FailedStep >= len(r.Steps) {
		// post-condition failures have no step row
		p.printf("    %s✗%s %s\n", color(colorRed), color(colorReset), r.StepName)
		p.printf("      %s╰─%s %s\n", color(colorGray), color(colorReset), r.Error)
	}
}

func (p *printer) step(s core.StepResult) {
	desc := s.Label
	if desc == "" {
		desc = s.Command
	}
	dur := formatDuration(s.Duration)

	switch s.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if s.Duration >= slowThreshold {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		p.printf("    %s%s%s %s %s(%s)%s\n", symbolColor, symbol, color(colorReset), desc, durColor, dur, color(colorReset))
	case core.StatusWarned:
		p.printf("    %s⚠%s %s (%s, optional)\n", color(colorYellow), color(colorReset), desc, dur)
	case core.StatusSkipped:
		p.printf("    %s-%s %s\n", color(colorGray), color(colorReset), desc)
	default:
		p.printf("    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), desc, dur)
		if s.Error != "" {
			p.printf("      %s╰─%s %s\n", color(colorGray), color(colorReset), s.Error)
		}
	}
}

func (p *printer) caseEnd(r executor.CaseResult) {
	if p.parallel {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch r.Status {
	case core.StatusPassed:
		p.printf("%s✓ %s%s %s%s%s\n", color(colorGreen), color(colorReset), r.Name, color(colorGray), formatDuration(r.Duration), color(colorReset))
	case core.StatusSkipped:
		p.printf("%s- %s%s skipped\n", color(colorCyan), color(colorReset), r.Name)
	default:
		p.printf("%s✗ %s%s %s%s%s\n", color(colorRed), color(colorReset), r.Name, color(colorGray), formatDuration(r.Duration), color(colorReset))
		if len(r.Flows) == 0 && r.Error != "" {
			p.printf("  %s╰─%s %s\n", color(colorGray), color(colorReset), r.Error)
		}
	}
}

func (p *printer) mark(passed bool) string {
	if passed {
		return color(colorGreen) + "✓" + color(colorReset)
	}
	return color(colorRed) + "✗" + color(colorReset)
}

func (p *printer) summary(result *executor.RunResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tableWidth := 78
	p.printf("\n%s\n", strings.Repeat("═", tableWidth))
	p.printf("  %-42s %6s %6s %6s %12s\n", "Case", "Status", "Flows", "Steps", "Duration")
	p.printf("%s\n", strings.Repeat("─", tableWidth))

	for _, c := range result.Cases {
		var status, statusColor string
		switch c.Status {
		case core.StatusFailed:
			status, statusColor = "✗ FAIL", color(colorRed)
		case core.StatusSkipped:
			status, statusColor = "- SKIP", color(colorCyan)
		default:
			status, statusColor = "✓ PASS", color(colorGreen)
		}

		name := c.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}
		steps := 0
		for _, f := range c.Flows {
			steps += len(f.Steps)
		}
		p.printf("  %-42s %s%6s%s %6d %6d %12s\n",
			name, statusColor, status, color(colorReset), len(c.Flows), steps, formatDuration(c.Duration))
	}

	p.printf("%s\n", strings.Repeat("─", tableWidth))
	statusColor := color(colorGreen)
	if result.FailedCases > 0 {
		statusColor = color(colorRed)
	}
	p.printf("  %s%-42s%s %s%6s%s %26s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, fmt.Sprintf("%d/%d", result.PassedCases, result.TotalCases), color(colorReset),
		formatDuration(result.Duration))
	p.printf("%s\n", strings.Repeat("═", tableWidth))
}

func (p *printer) reports(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\n  Reports:\n")
	p.printf("    HTML:   %s\n", filepath.Join(dir, "report.html"))
	p.printf("    JSON:   %s\n", filepath.Join(dir, "report.json"))
}

func (p *printer) warnf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("  %s⚠%s %s\n", color(colorYellow), color(colorReset), fmt.Sprintf(format, args...))
}

func printValidationErrors(w io.Writer, errs []error) {
	fmt.Fprintf(w, "\n  %sValidation failed:%s\n", color(colorRed), color(colorReset))
	for _, err := range errs {
		fmt.Fprintf(w, "    %s✗%s %v\n", color(colorRed), color(colorReset), err)
	}
}

// formatDuration shows milliseconds below one second, seconds otherwise.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
