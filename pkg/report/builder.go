package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/executor"
)

// BuilderConfig contains the run metadata recorded in the index.
type BuilderConfig struct {
	RunnerVersion string
	DriverName    string
	BaseURL       string
	StartTime     time.Time // defaults to end minus run duration
}

// Build converts a run result into the index and one detail per case.
func Build(run *executor.RunResult, cfg BuilderConfig) (*Index, []CaseDetail) {
	end := time.Now()
	start := cfg.StartTime
	if start.IsZero() {
		start = end.Add(-run.Duration)
	}

	index := &Index{
		Version:   Version,
		Status:    statusOf(run.Status),
		StartTime: start,
		EndTime:   end,
		Duration:  run.Duration.Milliseconds(),
		Runner: RunnerInfo{
			Version: cfg.RunnerVersion,
			Driver:  cfg.DriverName,
			BaseURL: cfg.BaseURL,
		},
		Summary: Summary{
			Total:   run.TotalCases,
			Passed:  run.PassedCases,
			Failed:  run.FailedCases,
			Skipped: run.SkippedCases,
		},
		Cases: make([]CaseEntry, len(run.Cases)),
	}

	details := make([]CaseDetail, len(run.Cases))
	for i, c := range run.Cases {
		id := fmt.Sprintf("case-%03d", i)
		entry := CaseEntry{
			Index:     i,
			ID:        id,
			Name:      c.Name,
			DataFile:  filepath.ToSlash(filepath.Join("cases", id+".json")),
			SessionID: c.SessionID,
			Status:    statusOf(c.Status),
			Duration:  c.Duration.Milliseconds(),
			Flows:     len(c.Flows),
		}
		if c.Error != "" {
			msg := c.Error
			entry.Error = &msg
		}
		index.Cases[i] = entry

		detail := CaseDetail{
			ID:        id,
			Name:      c.Name,
			SessionID: c.SessionID,
			Status:    entry.Status,
			Duration:  entry.Duration,
			Flows:     make([]Flow, len(c.Flows)),
		}
		for j, f := range c.Flows {
			detail.Flows[j] = buildFlow(f)
		}
		details[i] = detail
	}

	return index, details
}

func buildFlow(r core.ExecutionResult) Flow {
	f := Flow{
		Name:          r.Flow,
		Status:        StatusPassed,
		StartTime:     r.StartTime,
		Duration:      r.Duration.Milliseconds(),
		LastAttempted: r.LastAttempted,
		Commands:      make([]Command, len(r.Steps)),
	}
	if !r.Success() {
		f.Status = StatusFailed
		idx := r.FailedStep
		f.FailedStep = &idx
		f.Error = &Error{Type: r.Category.String(), Step: r.StepName, Message: r.Error}
	}
	for i, s := range r.Steps {
		f.Commands[i] = Command{
			Index:    s.Index,
			Type:     s.Command,
			Label:    s.Label,
			Status:   statusOf(s.Status),
			Duration: s.Duration.Milliseconds(),
			Element:  s.Element,
			Error:    s.Error,
		}
	}
	return f
}

func statusOf(s core.StepStatus) Status {
	switch s {
	case core.StatusPassed:
		return StatusPassed
	case core.StatusSkipped:
		return StatusSkipped
	case core.StatusWarned:
		return StatusWarned
	default:
		return StatusFailed
	}
}

// Write writes report.json, the case detail files and report.html to
// outputDir.
func Write(outputDir string, index *Index, details []CaseDetail) error {
	// Ensure directories exist
	if err := ensureDir(filepath.Join(outputDir, "cases")); err != nil {
		return fmt.Errorf("create cases dir: %w", err)
	}

	// Write each case detail file
	for _, d := range details {
		path := filepath.Join(outputDir, "cases", d.ID+".json")
		if err := atomicWriteJSON(path, d); err != nil {
			return fmt.Errorf("write case %s: %w", d.ID, err)
		}
	}

	// Write index file
	if err := atomicWriteJSON(filepath.Join(outputDir, "report.json"), index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	if err := GenerateHTML(outputDir, HTMLConfig{}); err != nil {
		return fmt.Errorf("generate html: %w", err)
	}
	return nil
}

// ReadReport loads the index and every case detail from reportDir.
func ReadReport(reportDir string) (*Index, []CaseDetail, error) {
	var index Index
	if err := readJSON(filepath.Join(reportDir, "report.json"), &index); err != nil {
		return nil, nil, err
	}
	details := make([]CaseDetail, len(index.Cases))
	for i, entry := range index.Cases {
		if err := readJSON(filepath.Join(reportDir, filepath.FromSlash(entry.DataFile)), &details[i]); err != nil {
			return nil, nil, err
		}
	}
	return &index, details, nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes v to a temp file and renames it over path, so
// readers never see a partial file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //#nosec G306 -- report files are meant to be shared
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path) //#nosec G304 -- path inside the report directory
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
