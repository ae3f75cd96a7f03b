package core

import (
	"time"
)

// StepResult captures the outcome of executing a single step
type StepResult struct {
	Index    int           `json:"index"`   // 0-based position among executed steps
	Command  string        `json:"command"` // goto, fill, click, awaitURL ...
	Label    string        `json:"label"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Element  string        `json:"element,omitempty"` // resolved element, interaction steps only
	Error    string        `json:"error,omitempty"`
}

// ExecutionResult is the outcome of one flow run on one session.
type ExecutionResult struct {
	Flow      string        `json:"flow"`
	SessionID string        `json:"sessionId"`
	State     FlowState     `json:"state"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Failure details. FailedStep is -1 when the run completed.
	FailedStep    int           `json:"failedStep"`
	StepName      string        `json:"stepName,omitempty"`
	LastAttempted string        `json:"lastAttempted,omitempty"` // last strategy of the fallback chain tried
	Category      ErrorCategory `json:"errorCategory,omitempty"`
	Error         string        `json:"error,omitempty"`

	Steps []StepResult `json:"steps"`
}

// Success reports whether the run completed.
func (r ExecutionResult) Success() bool {
	return r.State == FlowCompleted
}

// Counts returns passed, failed, skipped and warned step counts.
func (r ExecutionResult) Counts() (passed, failed, skipped, warned int) {
	for _, s := range r.Steps {
		switch s.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		case StatusWarned:
			warned++
		}
	}
	return passed, failed, skipped, warned
}
