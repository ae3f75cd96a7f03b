package flow

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single YAML flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses flow YAML content. A file is either a bare step list or a
// header document followed by "---" and the step list.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	parts := splitYAMLDocuments(string(data))

	flow := &Flow{
		SourcePath: sourcePath,
	}

	if len(parts) == 0 {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    1,
			Message: "empty flow file",
		}
	}

	if len(parts) == 1 {
		if err := parseSteps(parts[0], flow); err != nil {
			return nil, err
		}
	} else {
		if err := parseConfig(parts[0], flow); err != nil {
			return nil, err
		}
		if err := parseSteps(parts[1], flow); err != nil {
			return nil, err
		}
	}

	return flow, nil
}

func splitYAMLDocuments(content string) []string {
	var parts []string
	var current strings.Builder
	inBlock := false
	blockIndent := 0

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		// "---" inside a block scalar is content, not a separator
		if !inBlock {
			if strings.HasSuffix(trimmed, "|") || strings.HasSuffix(trimmed, ">") ||
				strings.HasSuffix(trimmed, "|-") || strings.HasSuffix(trimmed, ">-") {
				inBlock = true
				if i+1 < len(lines) {
					next := lines[i+1]
					blockIndent = len(next) - len(strings.TrimLeft(next, " \t"))
				}
			}
		} else {
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			if trimmed != "" && indent < blockIndent {
				inBlock = false
			}
		}

		if !inBlock && line == "---" {
			if strings.TrimSpace(current.String()) != "" {
				parts = append(parts, current.String())
			}
			current.Reset()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}

	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, current.String())
	}

	return parts
}

func parseConfig(content string, flow *Flow) error {
	var header struct {
		Config        `yaml:",inline"`
		PostCondition *Condition `yaml:"postCondition"`
	}
	if err := yaml.Unmarshal([]byte(content), &header); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid config: %v", err),
		}
	}
	flow.Config = header.Config
	flow.PostCondition = header.PostCondition
	return nil
}

func parseSteps(content string, flow *Flow) error {
	var rawSteps []yaml.Node
	if err := yaml.Unmarshal([]byte(content), &rawSteps); err != nil {
		return &ParseError{
			Path:    flow.SourcePath,
			Message: fmt.Sprintf("invalid steps: %v", err),
		}
	}

	for i := range rawSteps {
		step, err := parseStep(&rawSteps[i], flow.SourcePath)
		if err != nil {
			return err
		}
		flow.Steps = append(flow.Steps, step)
	}

	return nil
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) < 2 {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: "step must be a mapping like `- click: ...`",
		}
	}

	stepType, valueNode := extractStepType(node)
	if stepType == "" || valueNode == nil {
		return nil, &ParseError{
			Path:    sourcePath,
			Line:    node.Line,
			Message: fmt.Sprintf("unknown step type: %s", node.Content[0].Value),
		}
	}

	return decodeStep(StepType(stepType), valueNode, sourcePath)
}

func extractStepType(node *yaml.Node) (string, *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		if isStepType(key) {
			return key, node.Content[i+1]
		}
	}
	return "", nil
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepGoto, StepFill, StepClick, StepAwaitURL, StepAwaitVisible, StepAwaitHidden:
		return true
	}
	return false
}

// elementStepRaw is the mapping form shared by steps that target an element.
type elementStepRaw struct {
	Element  descriptorRaw `yaml:",inline"`
	Value    string        `yaml:"value"`
	Optional bool          `yaml:"optional"`
	Label    string        `yaml:"label"`
	Timeout  int           `yaml:"timeout"`
}

func (r elementStepRaw) base(t StepType) BaseStep {
	return BaseStep{StepType: t, Optional: r.Optional, StepLabel: r.Label, TimeoutMs: r.Timeout}
}

func decodeElementStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (elementStepRaw, error) {
	var raw elementStepRaw
	if valueNode.Kind == yaml.ScalarNode {
		raw.Element.Text = valueNode.Value
		return raw, nil
	}
	if err := valueNode.Decode(&raw); err != nil {
		return raw, wrapParseError(sourcePath, valueNode.Line, err)
	}
	if raw.Element.descriptor().IsEmpty() {
		return raw, &ParseError{
			Path:    sourcePath,
			Line:    valueNode.Line,
			Message: fmt.Sprintf("%s needs at least one of testId, role, labelText, text or css", stepType),
		}
	}
	return raw, nil
}

func decodeStep(stepType StepType, valueNode *yaml.Node, sourcePath string) (Step, error) {
	switch stepType {
	case StepGoto:
		var s GotoStep
		if valueNode.Kind == yaml.ScalarNode {
			s.URL = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepAwaitURL:
		var s AwaitURLStep
		if valueNode.Kind == yaml.ScalarNode {
			s.Pattern = valueNode.Value
		} else if err := valueNode.Decode(&s); err != nil {
			return nil, wrapParseError(sourcePath, valueNode.Line, err)
		}
		s.StepType = stepType
		return &s, nil

	case StepFill:
		if valueNode.Kind == yaml.ScalarNode {
			return nil, &ParseError{Path: sourcePath, Line: valueNode.Line, Message: "fill needs a mapping with a value"}
		}
		raw, err := decodeElementStep(stepType, valueNode, sourcePath)
		if err != nil {
			return nil, err
		}
		return &FillStep{BaseStep: raw.base(stepType), Element: raw.Element.descriptor(), Value: raw.Value}, nil

	case StepClick:
		raw, err := decodeElementStep(stepType, valueNode, sourcePath)
		if err != nil {
			return nil, err
		}
		return &ClickStep{BaseStep: raw.base(stepType), Element: raw.Element.descriptor()}, nil

	case StepAwaitVisible:
		raw, err := decodeElementStep(stepType, valueNode, sourcePath)
		if err != nil {
			return nil, err
		}
		return &AwaitVisibleStep{BaseStep: raw.base(stepType), Element: raw.Element.descriptor()}, nil

	case StepAwaitHidden:
		raw, err := decodeElementStep(stepType, valueNode, sourcePath)
		if err != nil {
			return nil, err
		}
		return &AwaitHiddenStep{BaseStep: raw.base(stepType), Element: raw.Element.descriptor()}, nil
	}

	return nil, &ParseError{
		Path:    sourcePath,
		Line:    valueNode.Line,
		Message: fmt.Sprintf("unsupported step type: %s", stepType),
	}
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{
		Path:    path,
		Line:    line,
		Message: err.Error(),
	}
}

// ShouldIncludeFlow checks if a flow matches tag filters.
func ShouldIncludeFlow(flow *Flow, includeTags, excludeTags []string) bool {
	if len(includeTags) > 0 {
		hasTag := false
		for _, include := range includeTags {
			if flow.HasTag(include) {
				hasTag = true
				break
			}
		}
		if !hasTag {
			return false
		}
	}

	for _, exclude := range excludeTags {
		if flow.HasTag(exclude) {
			return false
		}
	}

	return true
}
