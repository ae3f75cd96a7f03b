package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath string // Path to write the HTML file (default: <reportDir>/report.html)
	Title      string // Report title (default: "Test Report")
}

// GenerateHTML generates an HTML report from the report directory.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	// Read report data
	index, cases, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	// Set defaults
	if cfg.Title == "" {
		cfg.Title = "Test Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}

	html, err := renderHTML(buildHTMLData(index, cases, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil { //#nosec G306 -- report files are meant to be shared
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Index         *Index
	Cases         []CaseDetail
	TotalDuration string
	PassRate      float64
}

func buildHTMLData(index *Index, cases []CaseDetail, cfg HTMLConfig) HTMLData {
	var passRate float64
	if index.Summary.Total > 0 {
		passRate = float64(index.Summary.Passed) / float64(index.Summary.Total) * 100
	}
	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Index:         index,
		Cases:         cases,
		TotalDuration: formatDuration(index.Duration),
		PassRate:      passRate,
	}
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"duration": formatDuration,
	}).Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --text-primary: #000000;
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --skipped: #eab308;
            --warned: #f97316;
        }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; color: var(--text-primary); margin: 24px; }
        header { display: flex; justify-content: space-between; border-bottom: 1px solid var(--border-color); padding-bottom: 12px; }
        .muted { color: var(--text-muted); font-size: 13px; }
        .passed { color: var(--passed); }
        .failed { color: var(--failed); }
        .skipped { color: var(--skipped); }
        .warned { color: var(--warned); }
        details { border: 1px solid var(--border-color); border-radius: 6px; margin: 12px 0; padding: 8px 12px; }
        summary { cursor: pointer; font-weight: 600; }
        table { border-collapse: collapse; width: 100%; margin-top: 8px; }
        td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid var(--border-color); font-size: 13px; }
        .error { white-space: pre-wrap; font-family: monospace; font-size: 12px; color: var(--failed); }
    </style>
</head>
<body>
    <header>
        <div>
            <h1>{{.Title}}</h1>
            <span class="muted">{{.GeneratedAt}} &middot; {{.Index.Runner.Driver}}{{if .Index.Runner.BaseURL}} &middot; {{.Index.Runner.BaseURL}}{{end}}</span>
        </div>
        <div>
            <span class="passed">{{.Index.Summary.Passed}} passed</span> &middot;
            <span class="failed">{{.Index.Summary.Failed}} failed</span> &middot;
            <span class="skipped">{{.Index.Summary.Skipped}} skipped</span>
            <div class="muted">{{printf "%.0f" .PassRate}}% in {{.TotalDuration}}</div>
        </div>
    </header>
    {{range .Cases}}
    <details class="case" data-status="{{.Status}}"{{if eq .Status "failed"}} open{{end}}>
        <summary><span class="{{.Status}}">&#9679;</span> {{.Name}} <span class="muted">{{duration .Duration}}</span></summary>
        {{range .Flows}}
        <h3 class="{{.Status}}">{{.Name}} <span class="muted">{{duration .Duration}}</span></h3>
        {{with .Error}}<div class="error">{{.Type}}: {{.Message}}</div>{{end}}
        {{if .LastAttempted}}<div class="muted">last strategy tried: {{.LastAttempted}}</div>{{end}}
        <table>
            <tr><th>#</th><th>Step</th><th>Status</th><th>Element</th><th>Duration</th></tr>
            {{range .Commands}}
            <tr>
                <td>{{.Index}}</td>
                <td>{{if .Label}}{{.Label}}{{else}}{{.Type}}{{end}}</td>
                <td class="{{.Status}}">{{.Status}}</td>
                <td>{{.Element}}</td>
                <td>{{duration .Duration}}</td>
            </tr>
            {{if .Error}}<tr><td></td><td colspan="4" class="error">{{.Error}}</td></tr>{{end}}
            {{end}}
        </table>
        {{end}}
    </details>
    {{end}}
</body>
</html>
`
