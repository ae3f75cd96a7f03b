// Package locator resolves element descriptors against a live document.
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/flow"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// Attempt describes one observation of the document for a descriptor.
type Attempt struct {
	Tried     []core.Query // strategies consulted, in order
	Strategy  core.Query   // strategy that produced the element
	Matches   int          // match count of Strategy, or of the ambiguous one
	Ambiguous bool         // a Unique strategy saw several matches
}

// String summarizes the attempt for logs and gate errors.
func (a Attempt) String() string {
	switch {
	case a.Strategy.Kind != "":
		return fmt.Sprintf("%d match(es) for %s", a.Matches, a.Strategy)
	case a.Ambiguous:
		return fmt.Sprintf("ambiguous: %d matches", a.Matches)
	default:
		return "not found"
	}
}

// Options configures a Resolver.
type Options struct {
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Resolver turns descriptors into element handles.
type Resolver struct {
	interval time.Duration
	log      *zap.Logger
}

// New creates a resolver.
func New(opts Options) *Resolver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = wait.DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{interval: opts.PollInterval, log: opts.Logger}
}

// ResolveOnce observes the document a single time. Strategies are consulted
// in priority order and the first one whose matches satisfy the ordinal
// wins. A strategy whose query fails is skipped; its error is returned only
// when no later strategy resolves. A nil element with a nil error means
// nothing resolved yet.
func (r *Resolver) ResolveOnce(ctx context.Context, doc core.Document, d flow.Descriptor) (core.Element, Attempt, error) {
	var (
		att     Attempt
		lastErr error
	)
	for _, q := range d.Strategies() {
		att.Tried = append(att.Tried, q)

		els, err := doc.Query(ctx, q)
		if err != nil {
			lastErr = fmt.Errorf("query %s: %w", q, err)
			continue
		}
		idx, ok, ambiguous := d.Ordinal().Pick(len(els))
		if ok {
			att.Strategy = q
			att.Matches = len(els)
			return els[idx], att, nil
		}
		if ambiguous && !att.Ambiguous {
			att.Ambiguous = true
			att.Matches = len(els)
		}
	}
	return nil, att, lastErr
}

// Resolve polls the document until d resolves or timeout elapses. All
// strategies share the one budget.
func (r *Resolver) Resolve(ctx context.Context, doc core.Document, d flow.Descriptor, timeout time.Duration) (core.Element, error) {
	el, _, err := r.ResolveAttempt(ctx, doc, d, timeout)
	return el, err
}

// ResolveAttempt is Resolve that also reports the final observation. On
// success its Strategy is the query that produced the element.
func (r *Resolver) ResolveAttempt(ctx context.Context, doc core.Document, d flow.Descriptor, timeout time.Duration) (core.Element, Attempt, error) {
	if err := d.Validate(); err != nil {
		return nil, Attempt{}, err
	}
	if timeout <= 0 {
		return nil, Attempt{}, core.ErrInvalidTimeout
	}

	pctx, cancel := wait.WithBudget(ctx, timeout)
	defer cancel()

	var (
		found   core.Element
		last    Attempt
		lastErr error
		polls   int
	)
	start := time.Now()

	err := wait.Poll(pctx, r.interval, func(ctx context.Context) (bool, error) {
		polls++
		el, att, err := r.ResolveOnce(ctx, doc, d)
		last = att
		if el != nil {
			found = el
			return true, nil
		}
		if err != nil {
			// Documents can be mid-navigation; keep polling.
			lastErr = err
		}
		return false, nil
	})

	if err == nil {
		r.log.Debug("element resolved",
			zap.String("descriptor", d.Describe()),
			zap.Stringer("strategy", last.Strategy),
			zap.Int("matches", last.Matches),
			zap.Int("polls", polls),
			zap.Duration("elapsed", time.Since(start)))
		return found, last, nil
	}

	rerr := &core.ResolutionError{
		Kind:       core.ResolutionNotFound,
		Descriptor: d.Describe(),
		Tried:      last.Tried,
		Matches:    last.Matches,
		Cause:      lastErr,
	}
	if len(rerr.Tried) == 0 {
		rerr.Tried = d.Strategies()
	}
	switch {
	case ctx.Err() != nil:
		rerr.Kind = core.ResolutionTimeout
		rerr.Cause = ctx.Err()
	case !errors.Is(err, context.DeadlineExceeded):
		rerr.Cause = err
	case last.Ambiguous:
		rerr.Kind = core.ResolutionAmbiguous
	}

	r.log.Debug("element not resolved",
		zap.String("descriptor", d.Describe()),
		zap.Stringer("kind", rerr.Kind),
		zap.Int("polls", polls),
		zap.Error(lastErr))
	return nil, last, rerr
}
