// Package validator validates flow files before execution.
// It parses all files upfront, checks every step, and resolves the fixture
// and flow references that would otherwise only fail mid-run.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/pageflow/pkg/config"
	"github.com/devicelab-dev/pageflow/pkg/fixture"
	"github.com/devicelab-dev/pageflow/pkg/flow"
	"github.com/devicelab-dev/pageflow/pkg/gate"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of flow file paths in execution order.
	Files []string
	// Flows holds the parsed flows, parallel to Files.
	Flows []*flow.Flow
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Lookup finds a validated flow by name or by file path.
func (r *Result) Lookup(ref string) *flow.Flow {
	for i, f := range r.Flows {
		if f.Name() == ref || r.Files[i] == ref || filepath.Base(r.Files[i]) == ref {
			return f
		}
	}
	return nil
}

func (r *Result) fail(file, format string, args ...interface{}) {
	r.Errors = append(r.Errors, &ValidationError{File: file, Message: fmt.Sprintf(format, args...)})
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string
	fixtures    fixture.Set
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// WithFixtures makes Validate report every ${record.key} reference that set
// cannot satisfy.
func (v *Validator) WithFixtures(set fixture.Set) *Validator {
	v.fixtures = set
	return v
}

// Validate validates a file or directory.
func (v *Validator) Validate(path string) *Result {
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.fail(path, "cannot access: %v", err)
		return result
	}

	var files []string
	if info.IsDir() {
		files, err = collectFlowFiles(path)
		if err != nil {
			result.fail(path, "failed to scan directory: %v", err)
			return result
		}
	} else {
		files = []string{path}
	}

	v.validateFiles(files, result)
	return result
}

// ValidateGlobs validates every flow file matched by the patterns, relative
// to dir. Patterns support ** for any number of directories.
func (v *Validator) ValidateGlobs(dir string, patterns []string) *Result {
	result := &Result{}
	all, err := collectFlowFiles(dir)
	if err != nil {
		result.fail(dir, "failed to scan directory: %v", err)
		return result
	}

	var files []string
	for _, file := range all {
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			continue
		}
		for _, p := range patterns {
			if globMatch(p, filepath.ToSlash(rel)) {
				files = append(files, file)
				break
			}
		}
	}

	v.validateFiles(files, result)
	return result
}

func (v *Validator) validateFiles(files []string, result *Result) {
	names := make(map[string]string)
	for _, file := range files {
		f := v.validateFile(file, result)
		if f == nil {
			continue
		}
		if prev, ok := names[f.Name()]; ok {
			result.fail(file, "flow name %q already used by %s", f.Name(), prev)
			continue
		}
		names[f.Name()] = file
		result.Files = append(result.Files, file)
		result.Flows = append(result.Flows, f)
	}
}

// collectFlowFiles finds all .yaml/.yml files in a directory, sorted.
// config.yaml and fixture files are not flows.
func collectFlowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		switch strings.TrimSuffix(strings.ToLower(info.Name()), ext) {
		case "config", "fixtures":
			return nil
		}
		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files, err
}

// validateFile parses and checks one file. It returns nil when the file is
// invalid or filtered out by tags.
func (v *Validator) validateFile(filePath string, result *Result) *flow.Flow {
	f, err := flow.ParseFile(filePath)
	if err != nil {
		result.fail(filePath, "parse error: %v", err)
		return nil
	}

	if !flow.ShouldIncludeFlow(f, v.includeTags, v.excludeTags) {
		return nil
	}

	before := len(result.Errors)
	if err := f.Validate(); err != nil {
		result.fail(filePath, "%v", err)
	}
	for _, p := range urlPatterns(f) {
		if _, err := gate.CompileURLPattern(p); err != nil {
			result.fail(filePath, "bad url pattern %q: %v", p, err)
		}
	}
	if v.fixtures != nil {
		if err := v.fixtures.Require(References(f)...); err != nil {
			result.fail(filePath, "%v", err)
		}
	}
	if len(result.Errors) > before {
		return nil
	}
	return f
}

// ValidateCases checks that every case names known flows and that the
// fixtures each case runs with satisfy its flows' references. base is the
// workspace fixture set the case fixtures are layered over.
func ValidateCases(cases []config.Case, result *Result, base fixture.Set) {
	for _, c := range cases {
		fixtures := base.Merge(c.Fixtures)
		for _, ref := range c.Flows {
			f := result.Lookup(ref)
			if f == nil {
				result.fail("case "+c.Name, "unknown flow %q", ref)
				continue
			}
			if err := fixtures.Require(References(f)...); err != nil {
				result.fail("case "+c.Name, "flow %s: %v", f.Name(), err)
			}
		}
	}
}

// References returns the ${record.key} fixture references used anywhere in
// the flow, in order of first use.
func References(f *flow.Flow) []string {
	var texts []string
	add := func(d flow.Descriptor) {
		for _, q := range d.Strategies() {
			texts = append(texts, q.Value, q.Name)
		}
	}
	texts = append(texts, f.Config.URL)
	for _, s := range f.Steps {
		switch st := s.(type) {
		case *flow.GotoStep:
			texts = append(texts, st.URL)
		case *flow.FillStep:
			add(st.Element)
			texts = append(texts, st.Value)
		case *flow.ClickStep:
			add(st.Element)
		case *flow.AwaitURLStep:
			texts = append(texts, st.Pattern)
		case *flow.AwaitVisibleStep:
			add(st.Element)
		case *flow.AwaitHiddenStep:
			add(st.Element)
		}
	}
	if c := f.PostCondition; c != nil {
		texts = append(texts, c.Pattern)
		add(c.Element)
	}

	var refs []string
	seen := make(map[string]bool)
	for _, t := range texts {
		for _, ref := range fixture.References(t) {
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

// urlPatterns returns the literal URL patterns of a flow. Patterns holding
// ${...} placeholders are only known at run time.
func urlPatterns(f *flow.Flow) []string {
	var out []string
	for _, s := range f.Steps {
		if st, ok := s.(*flow.AwaitURLStep); ok && !strings.Contains(st.Pattern, "${") {
			out = append(out, st.Pattern)
		}
	}
	if c := f.PostCondition; c != nil && c.Kind == flow.ConditionURL && !strings.Contains(c.Pattern, "${") {
		out = append(out, c.Pattern)
	}
	return out
}

// globMatch matches a slash-separated path against a pattern where **
// spans directories and the remaining segments use filepath.Match.
func globMatch(pattern, path string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for i := 0; i <= len(segs); i++ {
				if matchSegments(pat[1:], segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := filepath.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}
