// Package mock provides an in-memory browser for testing without a real
// browser. Pages are static HTML; behavior (delayed rendering, click
// handlers, animations) is attached with small Go scripts.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// ErrClosed is returned by any call on a closed document.
var ErrClosed = errors.New("mock: document closed")

// Page is one route of a Site.
type Page struct {
	HTML string
	// Script runs after every load of the page. It may schedule mutations
	// with After and register click handlers with OnClick.
	Script func(d *Document)
}

// Site maps URL paths (without query) to pages.
type Site map[string]Page

// Config configures mock behavior.
type Config struct {
	// BaseURL resolves relative navigation. Defaults to http://app.test.
	BaseURL string
	// ClickError, when set, is returned by every click after preconditions.
	ClickError error
	// QueryDelay adds artificial latency to every query.
	QueryDelay time.Duration
}

// Provider is a core.Provider handing out independent mock documents.
type Provider struct {
	Site   Site
	Config Config

	mu   sync.Mutex
	docs []*Document
}

// New creates a provider serving site.
func New(site Site, cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://app.test"
	}
	return &Provider{Site: site, Config: cfg}
}

// NewDocument opens a blank document. Documents never share state.
func (p *Provider) NewDocument(ctx context.Context) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := newDocument(p.Site, p.Config)
	p.mu.Lock()
	p.docs = append(p.docs, d)
	p.mu.Unlock()
	return d, nil
}

// Documents returns every document opened so far.
func (p *Provider) Documents() []*Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Document(nil), p.docs...)
}

// OpenCount returns the number of documents not yet closed.
func (p *Provider) OpenCount() int {
	n := 0
	for _, d := range p.Documents() {
		if !d.Closed() {
			n++
		}
	}
	return n
}
