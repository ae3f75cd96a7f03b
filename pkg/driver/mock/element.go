package mock

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

type element struct {
	doc  *Document
	node *html.Node
	gen  int
}

func (e *element) Describe() string {
	var sb strings.Builder
	sb.WriteString("<" + e.node.Data)
	for _, key := range []string{"id", "data-testid", "name", "class"} {
		if v, ok := attr(e.node, key); ok {
			fmt.Fprintf(&sb, " %s=%q", key, v)
		}
	}
	sb.WriteString(">")
	return sb.String()
}

func (e *element) State(ctx context.Context) (core.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return core.ElementState{}, err
	}
	d := e.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return core.ElementState{}, ErrClosed
	}

	if !d.connectedLocked(e.node, e.gen) {
		return core.ElementState{}, nil
	}

	st := core.ElementState{
		Attached: true,
		Visible:  visible(e.node),
		Enabled:  enabled(e.node),
		Bounds:   d.boundsLocked(e.node),
	}
	st.Editable = st.Enabled && editable(e.node)
	st.ReceivesEvents = st.Visible && !d.obscuredLocked(e.node)
	return st, nil
}

// boundsLocked reads data-box="x,y,w,h" or lays elements out one per row.
// Elements marked data-animating move on every observation.
func (d *Document) boundsLocked(n *html.Node) core.Bounds {
	var b core.Bounds
	if box, ok := attr(n, "data-box"); ok {
		parts := strings.Split(box, ",")
		if len(parts) == 4 {
			vals := make([]float64, 4)
			for i, p := range parts {
				vals[i], _ = strconv.ParseFloat(strings.TrimSpace(p), 64)
			}
			b = core.Bounds{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
		}
	} else {
		b = core.Bounds{X: 0, Y: float64(indexOf(d.dom.Nodes[0], n) * 24), Width: 200, Height: 24}
	}
	if !visible(n) {
		return core.Bounds{}
	}
	if _, ok := attr(n, "data-animating"); ok {
		d.frame++
		b.X += float64(d.frame)
	}
	return b
}

// obscuredLocked reports whether a visible overlay covers n. An overlay is
// any element with data-overlay; it covers everything outside itself.
func (d *Document) obscuredLocked(n *html.Node) bool {
	covered := false
	walk(d.dom.Nodes[0], func(o *html.Node) bool {
		if covered {
			return false
		}
		if _, ok := attr(o, "data-overlay"); ok && visible(o) && !contains(o, n) {
			covered = true
		}
		return true
	})
	return covered
}

func (e *element) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := e.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if !d.connectedLocked(e.node, e.gen) {
		return fmt.Errorf("mock: fill %s: element is detached", e.Describe())
	}
	setAttr(e.node, "value", value)
	d.fills = append(d.fills, Fill{Element: e.Describe(), Value: value})
	return nil
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := e.doc
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.cfg.ClickError != nil {
		d.mu.Unlock()
		return d.cfg.ClickError
	}
	if !d.connectedLocked(e.node, e.gen) {
		d.mu.Unlock()
		return fmt.Errorf("mock: click %s: element is detached", e.Describe())
	}
	d.clicks = append(d.clicks, e.Describe())

	sel := d.dom.FindNodes(e.node)
	var fns []func(*Document)
	for _, h := range d.handlers {
		if sel.Is(h.selector) || sel.Closest(h.selector).Length() > 0 {
			fns = append(fns, h.fn)
		}
	}
	href := ""
	if link := sel.Closest("a[href], [data-href]"); link.Length() > 0 {
		if v, ok := link.Attr("href"); ok {
			href = v
		} else {
			href, _ = link.Attr("data-href")
		}
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(d)
	}
	if href != "" {
		return d.Goto(ctx, href)
	}
	return nil
}
