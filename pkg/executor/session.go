package executor

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/action"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/fixture"
	"github.com/devicelab-dev/pageflow/pkg/gate"
	"github.com/devicelab-dev/pageflow/pkg/locator"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// Default budgets used when Options leaves them unset.
const (
	DefaultResolveTimeout    = 5 * time.Second
	DefaultActionTimeout     = 5 * time.Second
	DefaultGateTimeout       = 10 * time.Second
	DefaultNavigationTimeout = 30 * time.Second
)

// Options configures a Session.
type Options struct {
	BaseURL string // relative goto targets are resolved against it

	ResolveTimeout    time.Duration
	ActionTimeout     time.Duration
	GateTimeout       time.Duration
	NavigationTimeout time.Duration
	PollInterval      time.Duration
	FrameInterval     time.Duration

	Fixtures  fixture.Set
	Variables map[string]string
	ImportEnv bool // expose ALL_CAPS process env vars as $VAR

	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = DefaultResolveTimeout
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = DefaultActionTimeout
	}
	if o.GateTimeout <= 0 {
		o.GateTimeout = DefaultGateTimeout
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = wait.DefaultInterval
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = action.DefaultFrameInterval
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Session is one logical browsing context: a document plus the state of the
// flows run on it. Sessions share nothing with each other.
//
// At most one flow or navigation runs on a session at a time; a second
// concurrent call fails with core.ErrSessionBusy. After a failed or
// cancelled flow the session is failed, its document is released, and every
// later call fails with core.ErrSessionFailed.
type Session struct {
	id   string
	opts Options
	log  *zap.Logger

	doc      core.Document
	resolver *locator.Resolver
	actions  *action.Executor
	gate     *gate.Gate
	script   *ScriptEngine

	busy sync.Mutex // held for the duration of a flow or navigation

	mu      sync.Mutex
	failure error
	closed  bool
	results []core.ExecutionResult
}

// NewSession opens a fresh document from p.
func NewSession(ctx context.Context, p core.Provider, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	doc, err := p.NewDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}

	id := uuid.NewString()
	log := opts.Logger.With(zap.String("session_id", id))

	script := NewScriptEngine()
	if opts.ImportEnv {
		script.ImportSystemEnv()
	}
	script.SetVariables(opts.Variables)
	script.SetFixtures(opts.Fixtures)

	resolver := locator.New(locator.Options{PollInterval: opts.PollInterval, Logger: log})
	s := &Session{
		id:       id,
		opts:     opts,
		log:      log,
		doc:      doc,
		resolver: resolver,
		actions:  action.New(action.Options{PollInterval: opts.PollInterval, FrameInterval: opts.FrameInterval, Logger: log}),
		gate:     gate.New(resolver, gate.Options{PollInterval: opts.PollInterval, Logger: log}),
		script:   script,
	}
	log.Debug("session opened")
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Document returns the session's document, or nil once released.
func (s *Session) Document() core.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Err returns the error that failed the session, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Failed reports whether a flow failed or was cancelled on this session.
func (s *Session) Failed() bool { return s.Err() != nil }

// Results returns the results of every flow run on this session, in order.
func (s *Session) Results() []core.ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExecutionResult(nil), s.results...)
}

// Goto navigates the session's document. Relative URLs are resolved
// against Options.BaseURL.
func (s *Session) Goto(ctx context.Context, target string) (*Session, error) {
	release, err := s.acquire()
	if err != nil {
		return s, err
	}
	defer release()

	if err := s.navigate(ctx, target, s.opts.NavigationTimeout); err != nil {
		s.fail(err)
		return s, err
	}
	return s, nil
}

// Close releases the document. Safe to call multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.releaseLocked()
}

// acquire claims the session for one operation.
func (s *Session) acquire() (func(), error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if !s.busy.TryLock() {
		return nil, core.ErrSessionBusy
	}
	// re-check: a concurrent caller may have failed the session
	if err := s.usable(); err != nil {
		s.busy.Unlock()
		return nil, err
	}
	return s.busy.Unlock, nil
}

func (s *Session) usable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.failure != nil:
		return fmt.Errorf("%w: %v", core.ErrSessionFailed, s.failure)
	case s.closed:
		return core.ErrSessionClosed
	}
	return nil
}

// fail marks the session failed and releases its document.
func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return
	}
	s.failure = err
	if cerr := s.releaseLocked(); cerr != nil {
		s.log.Warn("release document", zap.Error(cerr))
	}
	s.log.Info("session failed", zap.Error(err))
}

func (s *Session) releaseLocked() error {
	if s.script != nil {
		s.script.Close()
	}
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	return err
}

func (s *Session) record(r core.ExecutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *Session) navigate(ctx context.Context, target string, timeout time.Duration) error {
	u, err := s.resolveURL(target)
	if err != nil {
		return err
	}
	nctx, cancel := wait.WithBudget(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := s.doc.Goto(nctx, u); err != nil {
		return fmt.Errorf("goto %s: %w", u, err)
	}
	s.log.Debug("navigated", zap.String("url", u), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Session) resolveURL(target string) (string, error) {
	if s.opts.BaseURL == "" {
		return target, nil
	}
	base, err := url.Parse(s.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("base url: %w", err)
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("url %q: %w", target, err)
	}
	return base.ResolveReference(ref).String(), nil
}
