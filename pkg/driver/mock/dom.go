package mock

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// walk visits element nodes depth-first in document order. Returning false
// from fn skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func indexOf(root, n *html.Node) int {
	i, found := 0, -1
	walk(root, func(o *html.Node) bool {
		if o == n {
			found = i
		}
		i++
		return found < 0
	})
	return found
}

func hiddenSelf(n *html.Node) bool {
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if t, _ := attr(n, "type"); n.Data == "input" && t == "hidden" {
		return true
	}
	style, _ := attr(n, "style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func visible(n *html.Node) bool {
	switch n.Data {
	case "head", "script", "style", "template", "title", "meta":
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && hiddenSelf(p) {
			return false
		}
	}
	return true
}

func enabled(n *html.Node) bool {
	if v, _ := attr(n, "aria-disabled"); v == "true" {
		return false
	}
	if _, ok := attr(n, "disabled"); ok {
		return false
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode || p.Data != "fieldset" {
			continue
		}
		if _, ok := attr(p, "disabled"); ok {
			return false
		}
	}
	return true
}

func editable(n *html.Node) bool {
	if _, ok := attr(n, "readonly"); ok {
		return false
	}
	switch n.Data {
	case "textarea":
		return true
	case "input":
		switch t, _ := attr(n, "type"); t {
		case "button", "submit", "reset", "checkbox", "radio", "hidden", "image", "file":
			return false
		}
		return true
	}
	v, _ := attr(n, "contenteditable")
	return v == "" && hasAttr(n, "contenteditable") || v == "true"
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attr(n, key)
	return ok
}

func text(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteString(" ")
		}
		if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
			return
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			rec(k)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func textMatches(got, want string, exact bool) bool {
	want = strings.Join(strings.Fields(want), " ")
	if exact {
		return got == want
	}
	return strings.Contains(strings.ToLower(got), strings.ToLower(want))
}

func role(n *html.Node) string {
	if r, ok := attr(n, "role"); ok {
		return r
	}
	switch n.Data {
	case "button":
		return "button"
	case "a":
		if hasAttr(n, "href") {
			return "link"
		}
	case "input":
		switch t, _ := attr(n, "type"); t {
		case "button", "submit", "reset", "image":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "hidden":
			return ""
		default:
			return "textbox"
		}
	case "textarea":
		return "textbox"
	case "select":
		return "combobox"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "ul", "ol":
		return "list"
	case "li":
		return "listitem"
	case "nav":
		return "navigation"
	case "main":
		return "main"
	case "dialog":
		return "dialog"
	case "form":
		return "form"
	case "img":
		return "img"
	}
	return ""
}

// accessibleName is a reduced version of the accname algorithm: aria-label,
// then an associated <label>, then content or value, then placeholder.
func accessibleName(root, n *html.Node) string {
	if v, ok := attr(n, "aria-label"); ok {
		return v
	}
	if l := labelFor(root, n); l != "" {
		return l
	}
	switch role(n) {
	case "button", "link", "heading", "listitem", "checkbox", "radio":
		if t := text(n); t != "" {
			return t
		}
		if v, ok := attr(n, "value"); ok {
			return v
		}
	}
	if v, ok := attr(n, "placeholder"); ok {
		return v
	}
	v, _ := attr(n, "title")
	return v
}

func labelFor(root, n *html.Node) string {
	id, hasID := attr(n, "id")
	found := ""
	walk(root, func(l *html.Node) bool {
		if found != "" {
			return false
		}
		if l.Data != "label" {
			return true
		}
		if f, ok := attr(l, "for"); ok && hasID && f == id {
			found = text(l)
		} else if !hasAttr(l, "for") && contains(l, n) && l != n {
			found = text(l)
		}
		return true
	})
	return found
}

// labelTarget returns the control a <label> element points at.
func labelTarget(root, l *html.Node) *html.Node {
	if f, ok := attr(l, "for"); ok {
		var target *html.Node
		walk(root, func(o *html.Node) bool {
			if target == nil {
				if id, _ := attr(o, "id"); id == f {
					target = o
				}
			}
			return target == nil
		})
		return target
	}
	var target *html.Node
	walk(l, func(o *html.Node) bool {
		if target == nil && (o.Data == "input" || o.Data == "textarea" || o.Data == "select") {
			target = o
		}
		return target == nil
	})
	return target
}

// match evaluates q against dom and returns elements in document order.
func match(dom *goquery.Document, q core.Query) []*html.Node {
	if len(dom.Nodes) == 0 {
		return nil
	}
	root := dom.Nodes[0]

	if q.Kind == core.StrategyCSS {
		return dom.Find(q.Value).Nodes
	}

	want := map[*html.Node]bool{}
	switch q.Kind {
	case core.StrategyTestID:
		walk(root, func(n *html.Node) bool {
			if v, ok := attr(n, "data-testid"); ok && v == q.Value {
				want[n] = true
			}
			return true
		})

	case core.StrategyRole:
		walk(root, func(n *html.Node) bool {
			if role(n) == q.Value && (q.Name == "" || textMatches(accessibleName(root, n), q.Name, q.Exact)) {
				want[n] = true
			}
			return true
		})

	case core.StrategyLabel:
		walk(root, func(n *html.Node) bool {
			if v, ok := attr(n, "aria-label"); ok && textMatches(v, q.Value, q.Exact) {
				want[n] = true
			}
			if n.Data == "label" && textMatches(text(n), q.Value, q.Exact) {
				if t := labelTarget(root, n); t != nil {
					want[t] = true
				}
			}
			return true
		})

	case core.StrategyText:
		// Keep the innermost elements whose text matches.
		var rec func(n *html.Node) bool
		rec = func(n *html.Node) bool {
			childMatched := false
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && rec(c) {
					childMatched = true
				}
			}
			if n.Type != html.ElementNode {
				return childMatched
			}
			switch n.Data {
			case "html", "head", "body", "script", "style":
				return childMatched
			}
			if childMatched {
				return true
			}
			if textMatches(text(n), q.Value, q.Exact) {
				want[n] = true
				return true
			}
			return false
		}
		rec(root)
	}

	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if want[n] {
			out = append(out, n)
		}
		return true
	})
	return out
}
