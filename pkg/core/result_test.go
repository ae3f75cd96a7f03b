package core

import "testing"

func TestExecutionResult_Counts(t *testing.T) {
	r := ExecutionResult{
		State: FlowFailed,
		Steps: []StepResult{
			{Status: StatusPassed},
			{Status: StatusWarned},
			{Status: StatusFailed},
			{Status: StatusSkipped},
			{Status: StatusSkipped},
		},
	}

	passed, failed, skipped, warned := r.Counts()
	if passed != 1 || failed != 1 || skipped != 2 || warned != 1 {
		t.Errorf("Counts() = %d/%d/%d/%d, want 1/1/2/1", passed, failed, skipped, warned)
	}
	if r.Success() {
		t.Error("Success() = true for a failed run")
	}
}
