package flow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ConditionKind names what a post-condition observes.
type ConditionKind int

const (
	ConditionURL ConditionKind = iota
	ConditionVisible
	ConditionHidden
)

// Condition is a predicate over the document state, checked by the gate.
type Condition struct {
	Kind    ConditionKind
	Pattern string     // ConditionURL
	Element Descriptor // ConditionVisible, ConditionHidden
}

// URLMatches holds when the document URL matches pattern. Patterns are globs
// (* within a path segment, ** across segments) or regular expressions
// prefixed with "re:".
func URLMatches(pattern string) Condition {
	return Condition{Kind: ConditionURL, Pattern: pattern}
}

func Visible(d Descriptor) Condition {
	return Condition{Kind: ConditionVisible, Element: d}
}

func Hidden(d Descriptor) Condition {
	return Condition{Kind: ConditionHidden, Element: d}
}

func (c Condition) String() string {
	switch c.Kind {
	case ConditionVisible:
		return fmt.Sprintf("%s visible", c.Element.Describe())
	case ConditionHidden:
		return fmt.Sprintf("%s hidden", c.Element.Describe())
	default:
		return fmt.Sprintf("url matches %q", c.Pattern)
	}
}

// Validate reports conditions that cannot be evaluated.
func (c Condition) Validate() error {
	switch c.Kind {
	case ConditionURL:
		if c.Pattern == "" {
			return fmt.Errorf("empty url pattern")
		}
		return nil
	case ConditionVisible, ConditionHidden:
		return c.Element.Validate()
	default:
		return fmt.Errorf("unknown condition kind %d", c.Kind)
	}
}

// UnmarshalYAML reads one of {url: pattern}, {visible: descriptor} or
// {hidden: descriptor}.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		URL     string      `yaml:"url"`
		Visible *Descriptor `yaml:"visible"`
		Hidden  *Descriptor `yaml:"hidden"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch {
	case raw.URL != "":
		*c = URLMatches(raw.URL)
	case raw.Visible != nil:
		*c = Visible(*raw.Visible)
	case raw.Hidden != nil:
		*c = Hidden(*raw.Hidden)
	default:
		return fmt.Errorf("condition needs one of url, visible or hidden")
	}
	return nil
}
