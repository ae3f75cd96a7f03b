// Package flow holds the declarative model of a page flow: element
// descriptors, steps, post-conditions, and the YAML flow file format.
package flow

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Flow is a named, ordered list of steps with an optional post-condition.
// A Flow is never modified by execution and may be run by many sessions at
// the same time.
type Flow struct {
	SourcePath    string     // Path to the source file, empty for flows built in code
	Config        Config     // Flow configuration (name, tags, ...)
	Steps         []Step     // Steps to execute
	PostCondition *Condition // Checked after the last step
}

// Config represents flow-level configuration.
type Config struct {
	Name      string            `yaml:"name"`
	URL       string            `yaml:"url"` // Navigated to before the first step when set
	Tags      []string          `yaml:"tags"`
	Env       map[string]string `yaml:"env"`
	TimeoutMs int               `yaml:"timeout"` // Default step budget in ms
}

// New builds a flow in code.
func New(name string, steps ...Step) *Flow {
	return &Flow{Config: Config{Name: name}, Steps: steps}
}

// Then returns a copy of the flow gated by c after its last step.
func (f *Flow) Then(c Condition) *Flow {
	out := *f
	out.Steps = append([]Step(nil), f.Steps...)
	out.PostCondition = &c
	return &out
}

// Name returns the configured name, falling back to the file name.
func (f *Flow) Name() string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	if f.SourcePath != "" {
		base := filepath.Base(f.SourcePath)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "flow"
}

// DefaultTimeout returns the flow-level step budget, or 0 when unset.
func (f *Flow) DefaultTimeout() time.Duration {
	return time.Duration(f.Config.TimeoutMs) * time.Millisecond
}

// Validate checks every step and the post-condition and reports all problems.
func (f *Flow) Validate() error {
	var errs []error
	if len(f.Steps) == 0 {
		errs = append(errs, errors.New("flow has no steps"))
	}
	for i, s := range f.Steps {
		if err := validateStep(s); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, s.Type(), err))
		}
	}
	if f.PostCondition != nil {
		if err := f.PostCondition.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("postCondition: %w", err))
		}
	}
	return errors.Join(errs...)
}

func validateStep(s Step) error {
	if s.Timeout() < 0 {
		return errors.New("timeout must not be negative")
	}
	switch st := s.(type) {
	case *GotoStep:
		if st.URL == "" {
			return errors.New("goto needs a url")
		}
	case ElementStep:
		return st.Target().Validate()
	case GateStep:
		return st.Condition().Validate()
	}
	return nil
}

// HasTag reports whether the flow is tagged with tag.
func (f *Flow) HasTag(tag string) bool {
	for _, t := range f.Config.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
