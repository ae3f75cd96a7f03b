// Package report writes run results to disk.
//
// Layout:
//   - report.json: run index (summary plus one small entry per case)
//   - cases/<case-id>.json: flows and steps of one case
//   - report.html: static page rendered from the two above
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusWarned  Status = "warned"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped || s == StatusWarned
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the main report file that binds everything together.
type Index struct {
	Version   string     `json:"version"`
	Status    Status     `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime"`
	Duration  int64      `json:"duration"` // milliseconds, wall clock
	Runner    RunnerInfo `json:"runner"`
	Summary   Summary    `json:"summary"`
	Cases     []CaseEntry `json:"cases"`
}

// RunnerInfo describes what produced the report.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"` // playwright, cdp, mock
	BaseURL string `json:"baseUrl,omitempty"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// CaseEntry is the index entry for a case (minimal info).
type CaseEntry struct {
	Index     int     `json:"index"`    // Original position
	ID        string  `json:"id"`       // case-000, case-001, ...
	Name      string  `json:"name"`     // Display name
	DataFile  string  `json:"dataFile"` // Path to case detail JSON
	SessionID string  `json:"sessionId,omitempty"`
	Status    Status  `json:"status"`
	Duration  int64   `json:"duration"` // milliseconds
	Flows     int     `json:"flows"`
	Error     *string `json:"error,omitempty"`
}

// ============================================================================
// CASE DETAIL (cases/case-XXX.json)
// ============================================================================

// CaseDetail contains full case execution details.
type CaseDetail struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SessionID string `json:"sessionId,omitempty"`
	Status    Status `json:"status"`
	Duration  int64  `json:"duration"`
	Flows     []Flow `json:"flows"`
}

// Flow is one flow run inside a case.
type Flow struct {
	Name          string    `json:"name"`
	Status        Status    `json:"status"`
	StartTime     time.Time `json:"startTime"`
	Duration      int64     `json:"duration"`
	FailedStep    *int      `json:"failedStep,omitempty"`
	LastAttempted string    `json:"lastAttempted,omitempty"`
	Error         *Error    `json:"error,omitempty"`
	Commands      []Command `json:"commands"`
}

// Command represents a single step execution.
type Command struct {
	Index    int    `json:"index"`
	Type     string `json:"type"`
	Label    string `json:"label,omitempty"`
	Status   Status `json:"status"`
	Duration int64  `json:"duration"` // milliseconds
	Element  string `json:"element,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Error contains error details.
type Error struct {
	Type    string `json:"type"` // assertion, timeout, document, session, config
	Step    string `json:"step,omitempty"`
	Message string `json:"message"`
}
