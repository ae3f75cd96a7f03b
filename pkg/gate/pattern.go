package gate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// URLPattern matches document URLs.
type URLPattern struct {
	re       *regexp.Regexp
	pathOnly bool
}

// CompileURLPattern compiles a URL pattern:
//
//	re:<expr>      regular expression, unanchored, against the full URL
//	/path/*        glob against the path (and query) when it starts with "/"
//	**/dashboard   glob against the full URL
//
// In globs "**" matches anything, "*" anything but "/", and "?" one
// character other than "/".
func CompileURLPattern(pattern string) (*URLPattern, error) {
	if expr, ok := strings.CutPrefix(pattern, "re:"); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("url pattern %q: %w", pattern, err)
		}
		return &URLPattern{re: re}, nil
	}
	if pattern == "" {
		return nil, fmt.Errorf("empty url pattern")
	}

	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString("[^/]*")
			}
		case '?':
			sb.WriteString("[^/]")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("url pattern %q: %w", pattern, err)
	}
	pathOnly := strings.HasPrefix(pattern, "/") && !strings.HasPrefix(pattern, "//")
	return &URLPattern{re: re, pathOnly: pathOnly}, nil
}

// Match reports whether raw matches the pattern.
func (p *URLPattern) Match(raw string) bool {
	if !p.pathOnly {
		return p.re.MatchString(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if p.re.MatchString(u.Path) {
		return true
	}
	return u.RawQuery != "" && p.re.MatchString(u.Path+"?"+u.RawQuery)
}
