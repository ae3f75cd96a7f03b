package core

import "testing"

func TestFlowState_String(t *testing.T) {
	tests := []struct {
		state FlowState
		want  string
	}{
		{FlowNotStarted, "not_started"},
		{FlowRunning, "running"},
		{FlowCompleted, "completed"},
		{FlowFailed, "failed"},
		{FlowState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("FlowState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestFlowState_IsTerminal(t *testing.T) {
	terminal := map[FlowState]bool{
		FlowNotStarted: false,
		FlowRunning:    false,
		FlowCompleted:  true,
		FlowFailed:     true,
	}
	for s, want := range terminal {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%v.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestStepStatus_IsSuccess(t *testing.T) {
	tests := []struct {
		status StepStatus
		want   bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusPassed, true},
		{StatusFailed, false},
		{StatusSkipped, false},
		{StatusWarned, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsSuccess(); got != tt.want {
			t.Errorf("%v.IsSuccess() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		c    ErrorCategory
		want string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryAssertion, "assertion"},
		{ErrCategoryTimeout, "timeout"},
		{ErrCategoryDocument, "document"},
		{ErrCategorySession, "session"},
		{ErrCategoryConfig, "config"},
	}

	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}
