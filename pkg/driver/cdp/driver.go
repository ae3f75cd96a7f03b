// Package cdp implements core.Provider by driving Chrome directly over the
// DevTools protocol with chromedp.
//
// Every document is a tab in its own browser context. Matched elements are
// tagged with a data-pageflow-id attribute so later calls address the same
// node; input is dispatched as real mouse and keyboard events.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/driver/probe"
)

// ErrClosed is returned by any call on a closed document.
var ErrClosed = errors.New("cdp: document closed")

// Options configures the browser and every document it opens.
type Options struct {
	Headless    bool
	SlowMo      time.Duration // pause before every input action
	ExecPath    string        // Chrome binary; found on PATH when empty
	Permissions []string
	Geolocation *Geolocation
	Viewport    *Viewport
	Logger      *zap.Logger
}

// Geolocation is the position reported to pages.
type Geolocation struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Viewport is the page size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// Provider owns one Chrome process.
type Provider struct {
	opts Options
	log  *zap.Logger

	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc

	mu     sync.Mutex
	docs   map[*Document]struct{}
	closed bool
}

// Launch starts Chrome.
func Launch(ctx context.Context, opts Options) (*Provider, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("cdp")

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Sugar().Debugf))

	// The first Run allocates the browser and must use the context
	// NewContext returned.
	if err := ctx.Err(); err != nil {
		cancel()
		allocCancel()
		return nil, err
	}
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	log.Info("browser launched", zap.Bool("headless", opts.Headless))
	return &Provider{
		opts:        opts,
		log:         log,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
		docs:        make(map[*Document]struct{}),
	}, nil
}

// NewDocument opens a blank tab in a fresh browser context.
func (p *Provider) NewDocument(ctx context.Context) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(p.browserCtx, chromedp.WithNewBrowserContext())
	d := &Document{provider: p, ctx: tabCtx, cancel: cancel}

	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("new tab: %w", err)
	}
	if err := d.run(ctx, p.setup()...); err != nil {
		cancel()
		return nil, fmt.Errorf("new tab: %w", err)
	}

	p.mu.Lock()
	p.docs[d] = struct{}{}
	p.mu.Unlock()
	return d, nil
}

// setup returns the per-tab emulation actions.
func (p *Provider) setup() []chromedp.Action {
	var actions []chromedp.Action
	if len(p.opts.Permissions) > 0 {
		perms := make([]browser.PermissionType, len(p.opts.Permissions))
		for i, name := range p.opts.Permissions {
			perms[i] = browser.PermissionType(name)
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			grant := browser.GrantPermissions(perms)
			if c := chromedp.FromContext(ctx); c != nil && c.BrowserContextID != "" {
				grant = grant.WithBrowserContextID(c.BrowserContextID)
			}
			return grant.Do(ctx)
		}))
	}
	if g := p.opts.Geolocation; g != nil {
		accuracy := g.Accuracy
		if accuracy <= 0 {
			accuracy = 1
		}
		actions = append(actions, emulation.SetGeolocationOverride().
			WithLatitude(g.Latitude).
			WithLongitude(g.Longitude).
			WithAccuracy(accuracy))
	}
	if v := p.opts.Viewport; v != nil {
		actions = append(actions, emulation.SetDeviceMetricsOverride(int64(v.Width), int64(v.Height), 1, false))
	}
	return actions
}

// Close closes every open document and the browser.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	docs := make([]*Document, 0, len(p.docs))
	for d := range p.docs {
		docs = append(docs, d)
	}
	p.mu.Unlock()

	for _, d := range docs {
		_ = d.Close()
	}
	p.cancel()
	p.allocCancel()
	p.log.Info("browser closed")
	return nil
}

func (p *Provider) forget(d *Document) {
	p.mu.Lock()
	delete(p.docs, d)
	p.mu.Unlock()
}

// mergeCancel derives a context from base that also ends when other ends
// or reaches its deadline.
func mergeCancel(base, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(base)
	if dl, ok := other.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		ctx, cancelDeadline = context.WithDeadline(ctx, dl)
		prev := cancel
		cancel = func() { cancelDeadline(); prev() }
	}
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Document is a core.Document backed by one Chrome tab.
type Document struct {
	provider *Provider
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// run executes actions on the tab, bounded by both the tab's lifetime and ctx.
func (d *Document) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}

	opCtx, stop := mergeCancel(d.ctx, ctx)
	defer stop()
	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Goto navigates and waits for the load event.
func (d *Document) Goto(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

// URL returns the tab's current URL.
func (d *Document) URL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

type match struct {
	ID   string `json:"id"`
	Desc string `json:"desc"`
}

// Query evaluates the strategy in the page and tags each match.
func (d *Document) Query(ctx context.Context, q core.Query) ([]core.Element, error) {
	expr, err := queryExpr(q)
	if err != nil {
		return nil, err
	}
	var matches []match
	if err := d.run(ctx, chromedp.Evaluate(expr, &matches)); err != nil {
		return nil, fmt.Errorf("query %s: %w", q, err)
	}
	out := make([]core.Element, len(matches))
	for i, m := range matches {
		out[i] = &Element{doc: d, id: m.ID, desc: m.Desc}
	}
	return out, nil
}

// queryExpr builds the JS expression that runs queryScript for q.
func queryExpr(q core.Query) (string, error) {
	if !q.Kind.Valid() {
		return "", fmt.Errorf("cdp: unsupported strategy %q", q.Kind)
	}
	args, err := json.Marshal([]interface{}{string(q.Kind), q.Value, q.Name, q.Exact})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s)(...%s, %s)", queryScript, args, probe.DescribeScript), nil
}

// Close closes the tab and its browser context. Calling Close more than
// once is a no-op.
func (d *Document) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.provider.forget(d)
	return nil
}

// Element is a core.Element addressed by its data-pageflow-id tag.
type Element struct {
	doc  *Document
	id   string
	desc string
}

// Describe returns the element's opening tag as captured at query time.
func (e *Element) Describe() string { return e.desc }

// expr applies the function expression fn to the tagged element, or to
// null when it is gone.
func (e *Element) expr(fn string) string {
	sel, _ := json.Marshal(fmt.Sprintf(`[data-pageflow-id="%s"]`, e.id))
	return fmt.Sprintf("(%s)(document.querySelector(%s))", fn, sel)
}

// State observes the element without waiting.
func (e *Element) State(ctx context.Context) (core.ElementState, error) {
	var raw json.RawMessage
	if err := e.doc.run(ctx, chromedp.Evaluate(e.expr(probe.StateScript), &raw)); err != nil {
		return core.ElementState{}, fmt.Errorf("state %s: %w", e.desc, err)
	}
	return probe.Decode(raw)
}

// Fill focuses the element, clears it and types value as one text insert.
func (e *Element) Fill(ctx context.Context, value string) error {
	var ok bool
	err := e.doc.run(ctx,
		e.slowMo(),
		chromedp.Evaluate(e.expr(clearScript), &ok),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if !ok {
				return fmt.Errorf("element is detached")
			}
			return input.InsertText(value).Do(ctx)
		}),
		chromedp.Evaluate(e.expr(changeScript), nil),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", e.desc, err)
	}
	return nil
}

// Click presses and releases the left button at the element's center.
func (e *Element) Click(ctx context.Context) error {
	state, err := e.State(ctx)
	if err != nil {
		return err
	}
	if !state.Attached {
		return fmt.Errorf("click %s: element is detached", e.desc)
	}
	x, y := state.Bounds.Center()
	err = e.doc.run(ctx,
		e.slowMo(),
		input.DispatchMouseEvent(input.MouseMoved, x, y),
		input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(input.Left).WithButtons(1).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(input.Left).WithClickCount(1),
	)
	if err != nil {
		return fmt.Errorf("click %s: %w", e.desc, err)
	}
	return nil
}

func (e *Element) slowMo() chromedp.Action {
	return chromedp.Sleep(e.doc.provider.opts.SlowMo)
}
