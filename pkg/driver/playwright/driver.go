// Package playwright implements core.Provider on top of playwright-go.
//
// Each document is its own BrowserContext with one page, so documents share
// no cookies, storage or history. Actionability is decided by the action
// layer; the driver only observes element state and performs raw input with
// Playwright's own checks disabled.
package playwright

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/driver/probe"
)

// ErrClosed is returned by any call on a closed document.
var ErrClosed = errors.New("playwright: document closed")

const launchTimeout = 60 * time.Second

// Options configures the browser and every document it opens.
type Options struct {
	Headless    bool
	SlowMo      time.Duration
	BaseURL     string
	Permissions []string
	Geolocation *Geolocation
	Viewport    *Viewport
	// DriverDir is where the Playwright driver and browsers are installed.
	DriverDir string
	// Install downloads chromium before launching when it is missing.
	Install bool
	Logger  *zap.Logger
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

// Provider owns one Playwright driver process and one chromium instance.
type Provider struct {
	opts    Options
	log     *zap.Logger
	pw      *playwright.Playwright
	browser playwright.Browser

	mu     sync.Mutex
	docs   map[*Document]struct{}
	closed bool
}

// Launch starts Playwright and a chromium browser.
func Launch(ctx context.Context, opts Options) (*Provider, error) {
	log := namedLogger(opts.Logger)

	runOpts := &playwright.RunOptions{
		DriverDirectory: opts.DriverDir,
		Browsers:        []string{"chromium"},
	}
	if opts.Install {
		log.Info("installing playwright driver", zap.String("dir", opts.DriverDir))
		if err := runBlocking(ctx, func() error { return playwright.Install(runOpts) }); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	var pw *playwright.Playwright
	err := runBlocking(ctx, func() error {
		var err error
		pw, err = playwright.Run(runOpts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("start playwright driver: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Timeout:  playwright.Float(float64(launchTimeout.Milliseconds())),
		Args:     []string{"--disable-gpu", "--disable-dev-shm-usage"},
	}
	if opts.SlowMo > 0 {
		launch.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}
	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	log.Info("browser launched", zap.String("version", browser.Version()), zap.Bool("headless", opts.Headless))
	return &Provider{
		opts:    opts,
		log:     log,
		pw:      pw,
		browser: browser,
		docs:    make(map[*Document]struct{}),
	}, nil
}

// namedLogger scopes the caller's logger to this driver.
func namedLogger(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log.Named("playwright")
}

// runBlocking runs fn, giving up when ctx ends. fn keeps running in the
// background in that case.
func runBlocking(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewDocument opens a fresh browser context with a single blank page.
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

	bc, err := p.browser.NewContext(p.contextOptions())
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	page, err := bc.NewPage()
	if err != nil {
		_ = bc.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}

	d := &Document{provider: p, context: bc, page: page}
	p.mu.Lock()
	p.docs[d] = struct{}{}
	p.mu.Unlock()
	return d, nil
}

func (p *Provider) contextOptions() playwright.BrowserNewContextOptions {
	o := playwright.BrowserNewContextOptions{
		Permissions: p.opts.Permissions,
	}
	if p.opts.BaseURL != "" {
		o.BaseURL = playwright.String(p.opts.BaseURL)
	}
	if g := p.opts.Geolocation; g != nil {
		o.Geolocation = &playwright.Geolocation{Latitude: g.Latitude, Longitude: g.Longitude}
		if g.Accuracy > 0 {
			o.Geolocation.Accuracy = playwright.Float(g.Accuracy)
		}
	}
	if v := p.opts.Viewport; v != nil {
		o.Viewport = &playwright.Size{Width: v.Width, Height: v.Height}
	}
	return o
}

// Close closes every open document, the browser and the driver process.
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

	var errs []error
	for _, d := range docs {
		errs = append(errs, d.Close())
	}
	errs = append(errs, p.browser.Close(), p.pw.Stop())
	p.log.Info("browser closed")
	return errors.Join(errs...)
}

func (p *Provider) forget(d *Document) {
	p.mu.Lock()
	delete(p.docs, d)
	p.mu.Unlock()
}

// Document is a core.Document backed by one Playwright page.
type Document struct {
	provider *Provider
	context  playwright.BrowserContext
	page     playwright.Page

	mu     sync.Mutex
	closed bool
}

func (d *Document) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return nil
}

// Goto navigates and waits for the load event.
func (d *Document) Goto(ctx context.Context, url string) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeoutMs(ctx),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

// URL returns the page's current URL.
func (d *Document) URL(ctx context.Context) (string, error) {
	if err := d.check(ctx); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

// Query maps the strategy onto Playwright's own locators. Matches are
// described in one evaluation and returned as nth-match locators, so no
// element handles stay pinned in the page.
func (d *Document) Query(ctx context.Context, q core.Query) ([]core.Element, error) {
	if err := d.check(ctx); err != nil {
		return nil, err
	}
	loc, err := d.locator(q)
	if err != nil {
		return nil, err
	}
	v, err := loc.EvaluateAll(describeAllScript)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q, err)
	}
	descs, err := descriptions(v)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q, err)
	}

	out := make([]core.Element, 0, len(descs))
	for i, desc := range descs {
		out = append(out, &Element{doc: d, loc: loc.Nth(i), desc: desc})
	}
	return out, nil
}

const describeAllScript = "(els) => els.map(" + probe.DescribeScript + ")"

// firstStateScript reports a detached state when the match is gone.
const firstStateScript = "(els) => (" + probe.StateScript + ")(els[0])"

// descriptions converts a describeAllScript result.
func descriptions(v interface{}) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected describe result %T", v)
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i], _ = item.(string)
	}
	return out, nil
}

func (d *Document) locator(q core.Query) (playwright.Locator, error) {
	exact := playwright.Bool(q.Exact)
	switch q.Kind {
	case core.StrategyTestID:
		return d.page.GetByTestId(q.Value), nil
	case core.StrategyRole:
		o := playwright.PageGetByRoleOptions{Exact: exact}
		if q.Name != "" {
			o.Name = q.Name
		}
		return d.page.GetByRole(playwright.AriaRole(q.Value), o), nil
	case core.StrategyLabel:
		return d.page.GetByLabel(q.Value, playwright.PageGetByLabelOptions{Exact: exact}), nil
	case core.StrategyText:
		return d.page.GetByText(q.Value, playwright.PageGetByTextOptions{Exact: exact}), nil
	case core.StrategyCSS:
		return d.page.Locator(q.Value), nil
	default:
		return nil, fmt.Errorf("playwright: unsupported strategy %q", q.Kind)
	}
}

// Close closes the browser context. Calling Close more than once is a no-op.
func (d *Document) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.provider.forget(d)
	return d.context.Close()
}

// Element is a core.Element backed by the nth match of a Playwright
// locator. It follows the DOM: a re-rendered node at the same position is
// the same element.
type Element struct {
	doc  *Document
	loc  playwright.Locator
	desc string
}

// Describe returns the element's opening tag as captured at query time.
func (e *Element) Describe() string { return e.desc }

// State observes the element without waiting.
func (e *Element) State(ctx context.Context) (core.ElementState, error) {
	if err := e.doc.check(ctx); err != nil {
		return core.ElementState{}, err
	}
	v, err := e.loc.EvaluateAll(firstStateScript)
	if err != nil {
		return core.ElementState{}, fmt.Errorf("state %s: %w", e.desc, err)
	}
	return probe.Decode(v)
}

// Fill replaces the element's value.
func (e *Element) Fill(ctx context.Context, value string) error {
	if err := e.doc.check(ctx); err != nil {
		return err
	}
	err := e.loc.Fill(value, playwright.LocatorFillOptions{
		Force:   playwright.Bool(true),
		Timeout: timeoutMs(ctx),
	})
	if err != nil {
		return fmt.Errorf("fill %s: %w", e.desc, err)
	}
	return nil
}

// Click clicks the element's center.
func (e *Element) Click(ctx context.Context) error {
	if err := e.doc.check(ctx); err != nil {
		return err
	}
	err := e.loc.Click(playwright.LocatorClickOptions{
		Force:   playwright.Bool(true),
		Timeout: timeoutMs(ctx),
	})
	if err != nil {
		return fmt.Errorf("click %s: %w", e.desc, err)
	}
	return nil
}

// timeoutMs converts the ctx deadline into a Playwright timeout. Without a
// deadline Playwright's default applies.
func timeoutMs(ctx context.Context) *float64 {
	dl, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	ms := math.Max(1, float64(time.Until(dl).Milliseconds()))
	return playwright.Float(ms)
}
