package core

// FlowState is the lifecycle of a single flow run.
type FlowState int

const (
	FlowNotStarted FlowState = iota
	FlowRunning
	FlowCompleted
	FlowFailed
)

// String returns the string representation of FlowState
func (s FlowState) String() string {
	switch s {
	case FlowNotStarted:
		return "not_started"
	case FlowRunning:
		return "running"
	case FlowCompleted:
		return "completed"
	case FlowFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state is final. Terminal runs never resume.
func (s FlowState) IsTerminal() bool {
	return s == FlowCompleted || s == FlowFailed
}

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Step failed and aborted the flow
	StatusSkipped                   // A previous step failed
	StatusWarned                    // Optional step failed (non-blocking)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone      ErrorCategory = iota // No error
	ErrCategoryAssertion                      // Element not found, ambiguous, not actionable
	ErrCategoryTimeout                        // Gate or external deadline expired
	ErrCategoryDocument                       // Browser/driver call failed
	ErrCategorySession                        // Session busy, failed or closed
	ErrCategoryConfig                         // Invalid descriptor, timeout or flow definition
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryDocument:
		return "document"
	case ErrCategorySession:
		return "session"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
