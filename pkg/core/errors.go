package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrInvalidDescriptor = errors.New("descriptor has no locator strategy")
	ErrInvalidTimeout    = errors.New("timeout must be positive")
	ErrSessionFailed     = errors.New("session has failed")
	ErrSessionBusy       = errors.New("session already has an action in flight")
	ErrSessionClosed     = errors.New("session is closed")
)

// ResolutionKind tells why an element could not be resolved.
type ResolutionKind int

const (
	ResolutionNotFound ResolutionKind = iota
	ResolutionAmbiguous
	ResolutionTimeout
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionNotFound:
		return "not found"
	case ResolutionAmbiguous:
		return "ambiguous"
	case ResolutionTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ResolutionError is returned when a descriptor does not resolve to exactly
// one element within its budget.
type ResolutionError struct {
	Kind       ResolutionKind
	Descriptor string  // human-readable descriptor
	Tried      []Query // strategies consulted, in priority order
	Matches    int     // match count of the last observation (ambiguous only)
	Cause      error   // context error for ResolutionTimeout
}

func (e *ResolutionError) Error() string {
	tried := make([]string, len(e.Tried))
	for i, q := range e.Tried {
		tried[i] = q.String()
	}
	msg := fmt.Sprintf("element %s %s (tried %s)", e.Descriptor, e.Kind, strings.Join(tried, ", "))
	if e.Kind == ResolutionAmbiguous {
		msg = fmt.Sprintf("element %s ambiguous: %d matches (tried %s)", e.Descriptor, e.Matches, strings.Join(tried, ", "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

// Last returns the last strategy of the fallback chain that was attempted.
func (e *ResolutionError) Last() (Query, bool) {
	if len(e.Tried) == 0 {
		return Query{}, false
	}
	return e.Tried[len(e.Tried)-1], true
}

func (e *ResolutionError) Category() ErrorCategory {
	if e.Kind == ResolutionTimeout {
		return ErrCategoryTimeout
	}
	return ErrCategoryAssertion
}

// ActionKind tells how an action failed.
type ActionKind int

const (
	ActionNotActionable ActionKind = iota
	ActionFailed
)

// Precondition failure reasons reported in ActionError.Reason.
const (
	ReasonNotAttached = "not attached"
	ReasonNotVisible  = "not visible"
	ReasonNotStable   = "not stable"
	ReasonNotEnabled  = "not enabled"
	ReasonNotEditable = "not editable"
	ReasonObscured    = "obscured by another element"
)

// ActionError is returned when an action could not be performed on a
// resolved element.
type ActionError struct {
	Kind    ActionKind
	Action  string
	Element string
	Reason  string // first failing precondition, ActionNotActionable only
	Cause   error
}

func (e *ActionError) Error() string {
	if e.Kind == ActionNotActionable {
		return fmt.Sprintf("%s %s: not actionable: %s", e.Action, e.Element, e.Reason)
	}
	return fmt.Sprintf("%s %s: %v", e.Action, e.Element, e.Cause)
}

func (e *ActionError) Unwrap() error { return e.Cause }

func (e *ActionError) Category() ErrorCategory {
	if e.Kind == ActionNotActionable {
		return ErrCategoryAssertion
	}
	return ErrCategoryDocument
}

// GateTimeoutError is returned when a post-condition never held.
type GateTimeoutError struct {
	Condition    string
	LastObserved string
	Timeout      time.Duration
	Cause        error // context error when the caller gave up first
}

func (e *GateTimeoutError) Error() string {
	msg := fmt.Sprintf("condition %s not met within %s (last observed: %s)", e.Condition, e.Timeout, e.LastObserved)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *GateTimeoutError) Unwrap() error { return e.Cause }

func (e *GateTimeoutError) Category() ErrorCategory { return ErrCategoryTimeout }

// FlowError wraps the first failure of a flow run with the index of the
// step that caused it. Indices count executed steps: when the flow config
// names a URL, index 0 is the navigation to it and declared steps start
// at 1. A failing post-condition reports the executed step count.
type FlowError struct {
	Flow      string
	StepIndex int
	Step      string
	Cause     error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("flow %q failed at step %d (%s): %v", e.Flow, e.StepIndex, e.Step, e.Cause)
}

func (e *FlowError) Unwrap() error { return e.Cause }

func (e *FlowError) Category() ErrorCategory { return CategoryOf(e.Cause) }

// CategoryOf classifies err. Unknown errors are attributed to the document.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var c interface{ Category() ErrorCategory }
	if errors.As(err, &c) {
		return c.Category()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrCategoryTimeout
	case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrSessionFailed), errors.Is(err, ErrSessionClosed):
		return ErrCategorySession
	case errors.Is(err, ErrInvalidDescriptor), errors.Is(err, ErrInvalidTimeout):
		return ErrCategoryConfig
	}
	return ErrCategoryDocument
}
