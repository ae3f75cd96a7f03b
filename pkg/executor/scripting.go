package executor

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/devicelab-dev/pageflow/pkg/fixture"
	"github.com/devicelab-dev/pageflow/pkg/flow"
	"github.com/devicelab-dev/pageflow/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,}$`)

// ScriptEngine expands ${expr} and $VAR placeholders in step payloads. Each
// session owns one, so fixtures never leak between sessions.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// SetFixtures exposes every record as a JS object, so ${credentials.email}
// resolves against the session's own fixtures.
func (se *ScriptEngine) SetFixtures(s fixture.Set) {
	se.js.SetVariables(s.Vars())
}

// ImportSystemEnv imports system environment variables into the script engine.
// Only imports variables matching the pattern (uppercase with underscores).
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// ExpandVariables expands ${expr} and $VAR syntax in text. An expression
// that cannot be evaluated is an error; payloads are never sent with a
// placeholder left in them.
func (se *ScriptEngine) ExpandVariables(text string) (string, error) {
	if !strings.Contains(text, "$") {
		return text, nil
	}

	// First pass: JS engine for ${expression} syntax
	result, err := se.js.ExpandVariables(text)
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", text, err)
	}

	// Second pass: expand $VAR syntax (without braces)
	return se.expandDollarVars(result), nil
}

// expandDollarVars expands $VAR syntax (without braces) using stored variables.
func (se *ScriptEngine) expandDollarVars(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}

	// Sort by length (longest first) to avoid partial matches
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Check if followed by alphanumeric (would be different variable)
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		// Replace
		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

// ExpandStep returns a copy of step with its payload and descriptor values
// expanded. The original step is never modified.
func (se *ScriptEngine) ExpandStep(step flow.Step) (flow.Step, error) {
	var err error
	switch s := step.(type) {
	case *flow.GotoStep:
		c := *s
		c.URL, err = se.ExpandVariables(s.URL)
		return &c, err

	case *flow.FillStep:
		c := *s
		if c.Element, err = s.Element.Expand(se.ExpandVariables); err != nil {
			return nil, err
		}
		c.Value, err = se.ExpandVariables(s.Value)
		return &c, err

	case *flow.ClickStep:
		c := *s
		c.Element, err = s.Element.Expand(se.ExpandVariables)
		return &c, err

	case *flow.AwaitURLStep:
		c := *s
		c.Pattern, err = se.ExpandVariables(s.Pattern)
		return &c, err

	case *flow.AwaitVisibleStep:
		c := *s
		c.Element, err = s.Element.Expand(se.ExpandVariables)
		return &c, err

	case *flow.AwaitHiddenStep:
		c := *s
		c.Element, err = s.Element.Expand(se.ExpandVariables)
		return &c, err
	}
	return step, nil
}

// ExpandCondition returns a copy of c with placeholders expanded.
func (se *ScriptEngine) ExpandCondition(c flow.Condition) (flow.Condition, error) {
	var err error
	out := c
	if out.Pattern, err = se.ExpandVariables(c.Pattern); err != nil {
		return flow.Condition{}, err
	}
	if !c.Element.IsEmpty() {
		if out.Element, err = c.Element.Expand(se.ExpandVariables); err != nil {
			return flow.Condition{}, err
		}
	}
	return out, nil
}
