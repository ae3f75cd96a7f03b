// Package fixture loads the named test records (credentials, trips, ...)
// that flows reference as ${record.key}.
package fixture

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override fixture values:
// PAGEFLOW_FIXTURE_CREDENTIALS_EMAIL overrides credentials.email.
const EnvPrefix = "PAGEFLOW_FIXTURE_"

// Record is a flat set of string values.
type Record map[string]string

// Set maps record names to records.
type Set map[string]Record

// Load reads a fixtures YAML file:
//
//	credentials:
//	  email: ada@example.com
//	  password: s3cret
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided fixtures file
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes fixtures YAML content.
func Parse(data []byte) (Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if s == nil {
		s = Set{}
	}
	for name := range s {
		if !validName(name) {
			return nil, fmt.Errorf("invalid record name %q", name)
		}
		if s[name] == nil {
			s[name] = Record{}
		}
	}
	return s, nil
}

// Clone returns a deep copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for name, rec := range s {
		r := make(Record, len(rec))
		for k, v := range rec {
			r[k] = v
		}
		out[name] = r
	}
	return out
}

// Merge returns a copy of s with the keys of other layered on top.
func (s Set) Merge(other Set) Set {
	out := s.Clone()
	for name, rec := range other {
		if out[name] == nil {
			out[name] = Record{}
		}
		for k, v := range rec {
			out[name][k] = v
		}
	}
	return out
}

// WithEnv returns a copy of s with PAGEFLOW_FIXTURE_<RECORD>_<KEY> entries
// from environ applied. Names match existing records and keys
// case-insensitively; unknown ones are added in lower case.
func (s Set) WithEnv(environ []string) Set {
	out := s.Clone()
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		rest, ok := strings.CutPrefix(name, EnvPrefix)
		if !ok {
			continue
		}
		recName, key := out.splitEnvName(rest)
		if recName == "" || key == "" {
			continue
		}
		if out[recName] == nil {
			out[recName] = Record{}
		}
		out[recName][key] = value
	}
	return out
}

// splitEnvName maps CREDENTIALS_EMAIL to ("credentials", "email"). Record
// names may themselves contain underscores, so known records are tried
// first.
func (s Set) splitEnvName(rest string) (string, string) {
	for _, name := range s.Names() {
		prefix := strings.ToUpper(name) + "_"
		if !strings.HasPrefix(rest, prefix) {
			continue
		}
		key := rest[len(prefix):]
		for k := range s[name] {
			if strings.EqualFold(k, key) {
				return name, k
			}
		}
		return name, strings.ToLower(key)
	}
	rec, key, ok := strings.Cut(rest, "_")
	if !ok {
		return "", ""
	}
	return strings.ToLower(rec), strings.ToLower(key)
}

// Lookup returns the value for a "record.key" reference.
func (s Set) Lookup(ref string) (string, bool) {
	name, key, ok := strings.Cut(ref, ".")
	if !ok {
		return "", false
	}
	v, ok := s[name][key]
	return v, ok
}

// Names returns the record names, sorted.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Vars converts the set into values suitable for a script runtime.
func (s Set) Vars() map[string]interface{} {
	vars := make(map[string]interface{}, len(s))
	for name, rec := range s {
		r := make(map[string]string, len(rec))
		for k, v := range rec {
			r[k] = v
		}
		vars[name] = r
	}
	return vars
}

// Require returns an error naming every reference that s cannot satisfy.
func (s Set) Require(refs ...string) error {
	var errs []error
	seen := make(map[string]bool)
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if _, ok := s.Lookup(ref); !ok {
			errs = append(errs, fmt.Errorf("missing fixture %s", ref))
		}
	}
	return errors.Join(errs...)
}

var refPattern = regexp.MustCompile(`\$\{\s*([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*\}`)

// References extracts the plain ${record.key} references in text.
// Arbitrary expressions are ignored.
func References(text string) []string {
	var refs []string
	for _, m := range refPattern.FindAllStringSubmatch(text, -1) {
		refs = append(refs, m[1]+"."+m[2])
	}
	return refs
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validName(name string) bool {
	return namePattern.MatchString(name)
}
