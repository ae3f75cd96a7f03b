// Package jsengine evaluates the JavaScript expressions embedded in flow
// payloads as ${...}.
package jsengine

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/google/uuid"
)

// ErrUndefined is returned when an expression evaluates to undefined or null.
var ErrUndefined = errors.New("expression is undefined")

// Engine wraps a goja runtime. A runtime is not safe for concurrent use, so
// every session owns its own Engine.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]interface{}
	mu        sync.Mutex
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]interface{}),
	}
	e.setupBuiltins()
	return e
}

// setupBuiltins registers helper functions available to expressions
func (e *Engine) setupBuiltins() {
	// uuid() returns a random v4 UUID, handy for unique booking notes
	e.runtime.Set("uuid", func() string { return uuid.NewString() })

	// env(name) reads a process environment variable
	e.runtime.Set("env", func(name string) string { return os.Getenv(name) })

	// json(str) parses a JSON string into an object
	e.runtime.Set("json", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}
		result, err := e.runtime.RunString(fmt.Sprintf("JSON.parse(%q)", call.Arguments[0].String()))
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return result
	})
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables sets multiple variables
func (e *Engine) SetVariables(vars map[string]interface{}) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// Eval evaluates a JavaScript expression and returns the result
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and returns string result.
// Undefined and null results are errors.
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", fmt.Errorf("%s: %w", script, ErrUndefined)
	}
	return fmt.Sprintf("%v", result), nil
}

// ExpandVariables replaces every ${expr} in text with its value. The first
// expression that fails to evaluate aborts the expansion.
func (e *Engine) ExpandVariables(text string) (string, error) {
	var sb strings.Builder
	rest := text

	for {
		idx := strings.Index(rest, "${")
		if idx == -1 {
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:idx])

		// Find matching }
		depth := 1
		end := idx + 2
		for end < len(rest) && depth > 0 {
			switch rest[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			return "", fmt.Errorf("unterminated ${ in %q", text)
		}

		value, err := e.EvalString(rest[idx+2 : end-1])
		if err != nil {
			return "", err
		}
		sb.WriteString(value)
		rest = rest[end:]
	}

	return sb.String(), nil
}

// Close interrupts any running script. Safe to call multiple times.
func (e *Engine) Close() {
	e.runtime.Interrupt("engine closed")
}
