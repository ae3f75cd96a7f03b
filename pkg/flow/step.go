package flow

import (
	"fmt"
	"time"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	StepGoto StepType = "goto"

	// Interaction
	StepFill  StepType = "fill"
	StepClick StepType = "click"

	// Gates
	StepAwaitURL     StepType = "awaitURL"
	StepAwaitVisible StepType = "awaitVisible"
	StepAwaitHidden  StepType = "awaitHidden"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
	Timeout() time.Duration
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// Timeout returns the step's own budget, or 0 to use the session default.
func (b *BaseStep) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// GotoStep navigates the session's document.
type GotoStep struct {
	BaseStep `yaml:",inline"`
	URL      string `yaml:"url"`
}

func (s *GotoStep) Describe() string { return fmt.Sprintf("goto %s", s.URL) }

// FillStep types a value into an element.
type FillStep struct {
	BaseStep
	Element Descriptor
	Value   string
}

func (s *FillStep) Describe() string { return fmt.Sprintf("fill %s", s.Element.Describe()) }

// ClickStep clicks an element.
type ClickStep struct {
	BaseStep
	Element Descriptor
}

func (s *ClickStep) Describe() string { return fmt.Sprintf("click %s", s.Element.Describe()) }

// AwaitURLStep blocks until the document URL matches Pattern.
type AwaitURLStep struct {
	BaseStep `yaml:",inline"`
	Pattern  string `yaml:"pattern"`
}

func (s *AwaitURLStep) Describe() string { return URLMatches(s.Pattern).String() }

// AwaitVisibleStep blocks until an element is visible.
type AwaitVisibleStep struct {
	BaseStep
	Element Descriptor
}

func (s *AwaitVisibleStep) Describe() string { return Visible(s.Element).String() }

// AwaitHiddenStep blocks until an element is absent or hidden.
type AwaitHiddenStep struct {
	BaseStep
	Element Descriptor
}

func (s *AwaitHiddenStep) Describe() string { return Hidden(s.Element).String() }

// ElementStep is implemented by steps that act on a resolved element.
type ElementStep interface {
	Step
	Target() Descriptor
}

func (s *FillStep) Target() Descriptor  { return s.Element }
func (s *ClickStep) Target() Descriptor { return s.Element }

// GateStep is implemented by steps that wait on a condition.
type GateStep interface {
	Step
	Condition() Condition
}

func (s *AwaitURLStep) Condition() Condition     { return URLMatches(s.Pattern) }
func (s *AwaitVisibleStep) Condition() Condition { return Visible(s.Element) }
func (s *AwaitHiddenStep) Condition() Condition  { return Hidden(s.Element) }

// Constructors used by page objects. The label names the step in results.

func Goto(label, url string) *GotoStep {
	return &GotoStep{BaseStep: base(StepGoto, label), URL: url}
}

func Fill(label string, d Descriptor, value string) *FillStep {
	return &FillStep{BaseStep: base(StepFill, label), Element: d, Value: value}
}

func Click(label string, d Descriptor) *ClickStep {
	return &ClickStep{BaseStep: base(StepClick, label), Element: d}
}

func AwaitURL(label, pattern string) *AwaitURLStep {
	return &AwaitURLStep{BaseStep: base(StepAwaitURL, label), Pattern: pattern}
}

func AwaitVisible(label string, d Descriptor) *AwaitVisibleStep {
	return &AwaitVisibleStep{BaseStep: base(StepAwaitVisible, label), Element: d}
}

func AwaitHidden(label string, d Descriptor) *AwaitHiddenStep {
	return &AwaitHiddenStep{BaseStep: base(StepAwaitHidden, label), Element: d}
}

func base(t StepType, label string) BaseStep {
	return BaseStep{StepType: t, StepLabel: label}
}

// StepName returns the label if set, otherwise the description.
func StepName(s Step) string {
	if l := s.Label(); l != "" {
		return l
	}
	return s.Describe()
}
