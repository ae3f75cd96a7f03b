package executor

import (
	"testing"

	"github.com/devicelab-dev/pageflow/pkg/fixture"
	"github.com/devicelab-dev/pageflow/pkg/flow"
)

func TestNewScriptEngine(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()

	if se == nil {
		t.Fatal("NewScriptEngine() returned nil")
	}
	if se.js == nil {
		t.Error("js engine not initialized")
	}
	if se.variables == nil {
		t.Error("variables map not initialized")
	}
}

func TestScriptEngine_SetVariables(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()

	se.SetVariables(map[string]string{
		"USERNAME": "john",
		"COUNT":    "42",
	})

	if got := se.GetVariable("USERNAME"); got != "john" {
		t.Errorf("GetVariable(USERNAME) = %q, want %q", got, "john")
	}
	if got := se.GetVariable("COUNT"); got != "42" {
		t.Errorf("GetVariable(COUNT) = %q, want %q", got, "42")
	}
}

func TestScriptEngine_ExpandVariables(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()

	se.SetFixtures(fixture.Set{
		"credentials": {"email": "ada@example.com"},
		"trip":        {"id": "LIS-OPO-0900"},
	})
	se.SetVariable("USER", "ada")
	se.SetVariable("USER_ID", "7")

	tests := []struct {
		input    string
		expected string
	}{
		{"${credentials.email}", "ada@example.com"},
		{"trip-${trip.id}", "trip-LIS-OPO-0900"},
		{"$USER", "ada"},
		{"$USER_ID", "7"},
		{"$USERNAME", "$USERNAME"},
		{"${credentials.email.toUpperCase()}", "ADA@EXAMPLE.COM"},
		{"re:/booking/\\d+/confirmed$", "re:/booking/\\d+/confirmed$"},
		{"no placeholders", "no placeholders"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := se.ExpandVariables(tt.input)
			if err != nil {
				t.Fatalf("ExpandVariables(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ExpandVariables(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestScriptEngine_ExpandVariables_Error(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()

	se.SetFixtures(fixture.Set{"credentials": {"email": "ada@example.com"}})

	for _, input := range []string{"${credentials.password}", "${passenger.name}"} {
		if _, err := se.ExpandVariables(input); err == nil {
			t.Errorf("ExpandVariables(%q) expected error", input)
		}
	}
}

func TestExpandDollarVar(t *testing.T) {
	tests := []struct {
		text, name, value, expected string
	}{
		{"$HOST/login", "HOST", "app.test", "app.test/login"},
		{"$HOSTNAME", "HOST", "x", "$HOSTNAME"},
		{"$A and $A", "A", "1", "1 and 1"},
		{"none", "A", "1", "none"},
	}
	for _, tt := range tests {
		if got := expandDollarVar(tt.text, tt.name, tt.value); got != tt.expected {
			t.Errorf("expandDollarVar(%q, %q) = %q, want %q", tt.text, tt.name, got, tt.expected)
		}
	}
}

func TestScriptEngine_ImportSystemEnv(t *testing.T) {
	t.Setenv("PAGEFLOW_TEST_HOST", "staging.example.com")
	t.Setenv("lowercase_var", "ignored")

	se := NewScriptEngine()
	defer se.Close()
	se.ImportSystemEnv()

	if got := se.GetVariable("PAGEFLOW_TEST_HOST"); got != "staging.example.com" {
		t.Errorf("GetVariable(PAGEFLOW_TEST_HOST) = %q", got)
	}
	if got := se.GetVariable("lowercase_var"); got != "" {
		t.Errorf("lowercase env var imported: %q", got)
	}
}

func TestScriptEngine_ExpandStep_ReturnsCopy(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()
	se.SetFixtures(fixture.Set{
		"credentials": {"email": "ada@example.com"},
		"trip":        {"id": "T42"},
	})

	fill := flow.Fill("fill email", flow.ByLabel("Email").OrTestID("email-${trip.id}"), "${credentials.email}")
	got, err := se.ExpandStep(fill)
	if err != nil {
		t.Fatalf("ExpandStep() error: %v", err)
	}

	expanded, ok := got.(*flow.FillStep)
	if !ok {
		t.Fatalf("ExpandStep() returned %T", got)
	}
	if expanded == fill {
		t.Fatal("ExpandStep() returned the original step")
	}
	if expanded.Value != "ada@example.com" {
		t.Errorf("Value = %q", expanded.Value)
	}
	if v := expanded.Element.Strategies()[0].Value; v != "email-T42" {
		t.Errorf("testid = %q, want email-T42", v)
	}
	if expanded.Label() != "fill email" {
		t.Errorf("Label() = %q", expanded.Label())
	}
	if fill.Value != "${credentials.email}" || fill.Element.Strategies()[0].Value != "email-${trip.id}" {
		t.Error("original step was modified")
	}
}

func TestScriptEngine_ExpandStep_AllTypes(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()
	se.SetVariable("PATH_PREFIX", "/app")
	se.SetFixtures(fixture.Set{"trip": {"id": "T42"}})

	steps := []flow.Step{
		flow.Goto("", "$PATH_PREFIX/login"),
		flow.Click("", flow.ByTestID("trip-${trip.id}")),
		flow.AwaitURL("", "**/trips/${trip.id}"),
		flow.AwaitVisible("", flow.ByText("${trip.id}")),
		flow.AwaitHidden("", flow.ByText("${trip.id}")),
	}
	want := []string{"goto /app/login", `click testid="trip-T42"`, `url matches "**/trips/T42"`, `text="T42" visible`, `text="T42" hidden`}

	for i, step := range steps {
		got, err := se.ExpandStep(step)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got.Describe() != want[i] {
			t.Errorf("step %d: Describe() = %q, want %q", i, got.Describe(), want[i])
		}
	}
}

func TestScriptEngine_ExpandCondition(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()
	se.SetFixtures(fixture.Set{"trip": {"id": "T42"}})

	c, err := se.ExpandCondition(flow.Visible(flow.ByTestID("trip-${trip.id}")))
	if err != nil {
		t.Fatalf("ExpandCondition() error: %v", err)
	}
	if c.String() != `testid="trip-T42" visible` {
		t.Errorf("String() = %q", c.String())
	}

	if _, err := se.ExpandCondition(flow.URLMatches("**/${missing.value}")); err == nil {
		t.Error("expected error for missing fixture")
	}
}
