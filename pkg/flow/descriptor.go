package flow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

type ordinalKind int

const (
	ordinalFirst ordinalKind = iota
	ordinalLast
	ordinalNth
	ordinalUnique
)

// Ordinal picks one element out of several matches of the same strategy.
type Ordinal struct {
	kind ordinalKind
	n    int
}

// Ordinal selectors. The zero value is First.
var (
	First  = Ordinal{kind: ordinalFirst}
	Last   = Ordinal{kind: ordinalLast}
	Unique = Ordinal{kind: ordinalUnique}
)

// Nth selects the n-th match in document order, 0-based.
func Nth(n int) Ordinal {
	return Ordinal{kind: ordinalNth, n: n}
}

// Pick returns the index to use out of count matches. ok is false when no
// match satisfies the ordinal; ambiguous is true when Unique saw several.
func (o Ordinal) Pick(count int) (idx int, ok bool, ambiguous bool) {
	if count <= 0 {
		return 0, false, false
	}
	switch o.kind {
	case ordinalLast:
		return count - 1, true, false
	case ordinalNth:
		if o.n < 0 || o.n >= count {
			return 0, false, false
		}
		return o.n, true, false
	case ordinalUnique:
		if count > 1 {
			return 0, false, true
		}
		return 0, true, false
	default:
		return 0, true, false
	}
}

func (o Ordinal) String() string {
	switch o.kind {
	case ordinalLast:
		return "last"
	case ordinalNth:
		return strconv.Itoa(o.n)
	case ordinalUnique:
		return "unique"
	default:
		return "first"
	}
}

// UnmarshalYAML accepts first, last, unique or a 0-based index.
func (o *Ordinal) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(node.Value)) {
	case "", "first":
		*o = First
	case "last":
		*o = Last
	case "unique":
		*o = Unique
	default:
		n, err := strconv.Atoi(node.Value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid nth %q: want first, last, unique or an index", node.Value)
		}
		*o = Nth(n)
	}
	return nil
}

// Descriptor describes how to find one element: an ordered list of locator
// strategies, an exactness flag and an ordinal. Descriptors are values;
// every builder method returns a modified copy.
type Descriptor struct {
	name       string
	strategies []core.Query
	exact      bool
	ordinal    Ordinal
}

// NewDescriptor builds a descriptor from strategies in any order. They are
// kept sorted by priority; CSS fallbacks keep their relative order.
func NewDescriptor(name string, strategies ...core.Query) Descriptor {
	d := Descriptor{name: name}
	for _, q := range strategies {
		d = d.with(q)
	}
	return d
}

func ByTestID(id string) Descriptor { return Descriptor{}.OrTestID(id) }

func ByRole(role, name string) Descriptor { return Descriptor{}.OrRole(role, name) }

func ByLabel(label string) Descriptor { return Descriptor{}.OrLabel(label) }

func ByText(text string) Descriptor { return Descriptor{}.OrText(text) }

func ByCSS(selectors ...string) Descriptor { return Descriptor{}.OrCSS(selectors...) }

func (d Descriptor) OrTestID(id string) Descriptor {
	return d.with(core.Query{Kind: core.StrategyTestID, Value: id})
}

func (d Descriptor) OrRole(role, name string) Descriptor {
	return d.with(core.Query{Kind: core.StrategyRole, Value: role, Name: name})
}

func (d Descriptor) OrLabel(label string) Descriptor {
	return d.with(core.Query{Kind: core.StrategyLabel, Value: label})
}

func (d Descriptor) OrText(text string) Descriptor {
	return d.with(core.Query{Kind: core.StrategyText, Value: text})
}

// OrCSS appends CSS selectors to the end of the fallback chain.
func (d Descriptor) OrCSS(selectors ...string) Descriptor {
	for _, s := range selectors {
		d = d.with(core.Query{Kind: core.StrategyCSS, Value: s})
	}
	return d
}

// WithExact sets whether text, label and role name matching is exact.
func (d Descriptor) WithExact(exact bool) Descriptor {
	d.strategies = d.Strategies()
	d.exact = exact
	return d
}

func (d Descriptor) WithOrdinal(o Ordinal) Descriptor {
	d.strategies = d.Strategies()
	d.ordinal = o
	return d
}

// Named sets the human-readable name used in logs and errors.
func (d Descriptor) Named(name string) Descriptor {
	d.strategies = d.Strategies()
	d.name = name
	return d
}

func (d Descriptor) with(q core.Query) Descriptor {
	out := make([]core.Query, 0, len(d.strategies)+1)
	out = append(out, d.strategies...)
	out = append(out, q)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind.Priority() < out[j].Kind.Priority()
	})
	d.strategies = out
	return d
}

// Strategies returns the strategies in priority order with the exactness
// flag applied. The slice is a copy.
func (d Descriptor) Strategies() []core.Query {
	out := make([]core.Query, len(d.strategies))
	for i, q := range d.strategies {
		q.Exact = d.exact
		out[i] = q
	}
	return out
}

func (d Descriptor) Ordinal() Ordinal { return d.ordinal }

func (d Descriptor) IsExact() bool { return d.exact }

func (d Descriptor) Name() string { return d.name }

// IsEmpty returns true if no strategy is set.
func (d Descriptor) IsEmpty() bool { return len(d.strategies) == 0 }

// Validate reports descriptors that can never resolve.
func (d Descriptor) Validate() error {
	if d.IsEmpty() {
		return core.ErrInvalidDescriptor
	}
	for _, q := range d.strategies {
		if !q.Kind.Valid() {
			return fmt.Errorf("unknown strategy %q: %w", q.Kind, core.ErrInvalidDescriptor)
		}
		if strings.TrimSpace(q.Value) == "" {
			return fmt.Errorf("empty %s value: %w", q.Kind, core.ErrInvalidDescriptor)
		}
	}
	return nil
}

// Describe returns a human-readable description.
func (d Descriptor) Describe() string {
	if d.name != "" {
		return strconv.Quote(d.name)
	}
	if d.IsEmpty() {
		return "<empty>"
	}
	q := d.strategies[0]
	q.Exact = d.exact
	return q.String()
}

// Expand returns a copy with every strategy value and name passed through fn.
func (d Descriptor) Expand(fn func(string) (string, error)) (Descriptor, error) {
	out := d
	out.strategies = make([]core.Query, len(d.strategies))
	for i, q := range d.strategies {
		v, err := fn(q.Value)
		if err != nil {
			return Descriptor{}, err
		}
		name, err := fn(q.Name)
		if err != nil {
			return Descriptor{}, err
		}
		q.Value, q.Name = v, name
		out.strategies[i] = q
	}
	return out, nil
}

// stringList decodes either a scalar or a sequence of strings.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*l = stringList{node.Value}
		return nil
	}
	var items []string
	if err := node.Decode(&items); err != nil {
		return err
	}
	*l = items
	return nil
}

// descriptorRaw is the YAML shape of a descriptor.
type descriptorRaw struct {
	TestID    string     `yaml:"testId"`
	Role      string     `yaml:"role"`
	Name      string     `yaml:"name"`
	LabelText string     `yaml:"labelText"`
	Text      string     `yaml:"text"`
	CSS       stringList `yaml:"css"`
	Exact     bool       `yaml:"exact"`
	Nth       Ordinal    `yaml:"nth"`
	As        string     `yaml:"as"`
}

func (r descriptorRaw) descriptor() Descriptor {
	d := Descriptor{name: r.As}
	if r.TestID != "" {
		d = d.OrTestID(r.TestID)
	}
	if r.Role != "" {
		d = d.OrRole(r.Role, r.Name)
	}
	if r.LabelText != "" {
		d = d.OrLabel(r.LabelText)
	}
	if r.Text != "" {
		d = d.OrText(r.Text)
	}
	d = d.OrCSS(r.CSS...)
	d.exact = r.Exact
	d.ordinal = r.Nth
	return d
}

// UnmarshalYAML allows Descriptor to be unmarshaled from string or mapping.
// A scalar is a text strategy.
func (d *Descriptor) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*d = ByText(node.Value)
		return nil
	}
	var raw descriptorRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*d = raw.descriptor()
	return nil
}
