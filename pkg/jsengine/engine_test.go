package jsengine

import (
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	engine := New()
	defer engine.Close()

	if engine == nil {
		t.Fatal("expected engine to be created")
	}
	if engine.runtime == nil {
		t.Fatal("expected runtime to be initialized")
	}
}

func TestEval(t *testing.T) {
	engine := New()
	defer engine.Close()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"object property", "({name: 'test'}).name", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestEvalString_Undefined(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("credentials", map[string]string{"email": "ada@example.com"})

	if _, err := engine.EvalString("credentials.password"); !errors.Is(err, ErrUndefined) {
		t.Errorf("expected ErrUndefined, got %v", err)
	}
	if _, err := engine.EvalString("missing.email"); err == nil {
		t.Error("expected reference error for unknown record")
	}
}

func TestExpandVariables(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariables(map[string]interface{}{
		"credentials": map[string]string{"email": "ada@example.com", "password": "s3cret"},
		"trip":        map[string]string{"from": "Lisbon", "to": "Porto"},
		"seats":       2,
	})

	tests := []struct {
		input    string
		expected string
	}{
		{"${credentials.email}", "ada@example.com"},
		{"From ${trip.from} to ${trip.to}", "From Lisbon to Porto"},
		{"${seats + 1} seats", "3 seats"},
		{"${({a: 'nested'}).a}", "nested"},
		{"plain text", "plain text"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := engine.ExpandVariables(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestExpandVariables_Errors(t *testing.T) {
	engine := New()
	defer engine.Close()

	for _, input := range []string{"${credentials.email}", "${unterminated", "a ${1 +} b"} {
		if _, err := engine.ExpandVariables(input); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

func TestBuiltins(t *testing.T) {
	engine := New()
	defer engine.Close()

	id, err := engine.EvalString("uuid()")
	if err != nil {
		t.Fatalf("uuid(): %v", err)
	}
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		t.Errorf("unexpected uuid %q", id)
	}

	t.Setenv("PAGEFLOW_TEST_VALUE", "from-env")
	got, err := engine.EvalString("env('PAGEFLOW_TEST_VALUE')")
	if err != nil || got != "from-env" {
		t.Errorf("env(): got %q, %v", got, err)
	}

	got, err = engine.EvalString(`json('{"seat":"12A"}').seat`)
	if err != nil || got != "12A" {
		t.Errorf("json(): got %q, %v", got, err)
	}
}

func TestEnginesAreIsolated(t *testing.T) {
	a, b := New(), New()
	defer a.Close()
	defer b.Close()

	a.SetVariable("user", "alice")
	b.SetVariable("user", "bob")

	ga, _ := a.EvalString("user")
	gb, _ := b.EvalString("user")
	if ga != "alice" || gb != "bob" {
		t.Errorf("engines share state: %q %q", ga, gb)
	}
}
