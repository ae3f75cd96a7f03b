package mock

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

const notFoundHTML = `<html><body><h1>Not Found</h1></body></html>`

type clickHandler struct {
	selector string
	fn       func(d *Document)
}

// Fill records one fill action.
type Fill struct {
	Element string
	Value   string
}

// Document is an in-memory core.Document.
type Document struct {
	site Site
	cfg  Config

	mu       sync.Mutex
	url      string
	dom      *goquery.Document
	gen      int // bumped on every load; older handles are detached
	frame    int
	handlers []clickHandler
	timers   []*time.Timer
	closed   bool

	fills  []Fill
	clicks []string
}

func newDocument(site Site, cfg Config) *Document {
	d := &Document{site: site, cfg: cfg, url: "about:blank"}
	d.dom, _ = goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	return d
}

// Goto loads the page for rawURL, resolved against the base URL.
func (d *Document) Goto(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	script, err := d.load(rawURL)
	if err != nil {
		return err
	}
	if script != nil {
		script(d)
	}
	return nil
}

// load swaps in the new DOM and returns the page script to run without the lock.
func (d *Document) load(rawURL string) (func(*Document), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}

	abs, err := d.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	page, ok := d.site[abs.Path]
	markup := page.HTML
	if !ok {
		markup = notFoundHTML
	}
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("mock: parse %s: %w", abs.Path, err)
	}

	d.stopTimersLocked()
	d.handlers = nil
	d.dom = dom
	d.url = abs.String()
	d.gen++
	return page.Script, nil
}

func (d *Document) resolve(rawURL string) (*url.URL, error) {
	base, err := url.Parse(d.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("mock: base url: %w", err)
	}
	if cur, err := url.Parse(d.url); err == nil && cur.Scheme != "about" {
		base = cur
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("mock: url %q: %w", rawURL, err)
	}
	return base.ResolveReference(ref), nil
}

// URL returns the current document URL.
func (d *Document) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", ErrClosed
	}
	return d.url, nil
}

// Query returns matching elements in document order.
func (d *Document) Query(ctx context.Context, q core.Query) ([]core.Element, error) {
	if d.cfg.QueryDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.cfg.QueryDelay):
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}

	nodes := match(d.dom, q)
	out := make([]core.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &element{doc: d, node: n, gen: d.gen}
	}
	return out, nil
}

// Close stops pending mutations and releases the document.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.stopTimersLocked()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *Document) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Document) stopTimersLocked() {
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = nil
}

// After runs fn once d has elapsed, unless the page was replaced or closed.
func (d *Document) After(delay time.Duration, fn func(d *Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	gen := d.gen
	t := time.AfterFunc(delay, func() {
		d.mu.Lock()
		stale := d.closed || d.gen != gen
		d.mu.Unlock()
		if !stale {
			fn(d)
		}
	})
	d.timers = append(d.timers, t)
}

// OnClick registers fn to run when an element matching selector is clicked.
func (d *Document) OnClick(selector string, fn func(d *Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, clickHandler{selector: selector, fn: fn})
}

// Navigate changes the location as a script-triggered navigation would.
func (d *Document) Navigate(rawURL string) {
	_ = d.Goto(context.Background(), rawURL)
}

func (d *Document) mutate(selector string, fn func(s *goquery.Selection)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	fn(d.dom.Find(selector))
}

// Show makes matching elements visible.
func (d *Document) Show(selector string) {
	d.mutate(selector, func(s *goquery.Selection) {
		s.RemoveAttr("hidden")
		s.RemoveAttr("style")
	})
}

// Hide makes matching elements invisible.
func (d *Document) Hide(selector string) {
	d.mutate(selector, func(s *goquery.Selection) { s.SetAttr("hidden", "") })
}

func (d *Document) Enable(selector string) {
	d.mutate(selector, func(s *goquery.Selection) { s.RemoveAttr("disabled") })
}

func (d *Document) Disable(selector string) {
	d.mutate(selector, func(s *goquery.Selection) { s.SetAttr("disabled", "") })
}

func (d *Document) SetAttr(selector, key, value string) {
	d.mutate(selector, func(s *goquery.Selection) { s.SetAttr(key, value) })
}

func (d *Document) RemoveAttr(selector, key string) {
	d.mutate(selector, func(s *goquery.Selection) { s.RemoveAttr(key) })
}

// Remove detaches matching elements from the document.
func (d *Document) Remove(selector string) {
	d.mutate(selector, func(s *goquery.Selection) { s.Remove() })
}

// Append parses markup and appends it to matching elements.
func (d *Document) Append(selector, markup string) {
	d.mutate(selector, func(s *goquery.Selection) { s.AppendHtml(markup) })
}

// Value returns the value attribute of the first element matching selector.
func (d *Document) Value(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, _ := d.dom.Find(selector).First().Attr("value")
	return v
}

// Fills returns every fill performed, in order.
func (d *Document) Fills() []Fill {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Fill(nil), d.fills...)
}

// Clicks returns the description of every clicked element, in order.
func (d *Document) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicks...)
}

// connectedLocked reports whether n is still part of the current DOM.
func (d *Document) connectedLocked(n *html.Node, gen int) bool {
	if gen != d.gen || len(d.dom.Nodes) == 0 {
		return false
	}
	root := d.dom.Nodes[0]
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}
