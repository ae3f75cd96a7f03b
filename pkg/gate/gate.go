// Package gate blocks until a post-condition holds on a document.
package gate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/flow"
	"github.com/devicelab-dev/pageflow/pkg/locator"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// Options configures a Gate.
type Options struct {
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Gate evaluates conditions by polling the document.
type Gate struct {
	resolver *locator.Resolver
	interval time.Duration
	log      *zap.Logger
}

// New creates a gate that uses resolver for element conditions.
func New(resolver *locator.Resolver, opts Options) *Gate {
	if opts.PollInterval <= 0 {
		opts.PollInterval = wait.DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Gate{resolver: resolver, interval: opts.PollInterval, log: opts.Logger}
}

// Await returns nil on the first observation where c holds, or a
// *core.GateTimeoutError carrying the last observed state.
func (g *Gate) Await(ctx context.Context, doc core.Document, c flow.Condition, timeout time.Duration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if timeout <= 0 {
		return core.ErrInvalidTimeout
	}

	var pattern *URLPattern
	if c.Kind == flow.ConditionURL {
		p, err := CompileURLPattern(c.Pattern)
		if err != nil {
			return err
		}
		pattern = p
	}

	pctx, cancel := wait.WithBudget(ctx, timeout)
	defer cancel()

	last := "nothing observed"
	start := time.Now()
	err := wait.Poll(pctx, g.interval, func(ctx context.Context) (bool, error) {
		ok, observed, err := g.observe(ctx, doc, c, pattern)
		if err != nil {
			last = "error: " + err.Error()
			return false, nil
		}
		last = observed
		return ok, nil
	})
	if err == nil {
		g.log.Debug("condition met", zap.Stringer("condition", c), zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	gerr := &core.GateTimeoutError{Condition: c.String(), LastObserved: last, Timeout: timeout}
	if ctx.Err() != nil {
		gerr.Cause = ctx.Err()
	}
	g.log.Debug("condition not met", zap.Stringer("condition", c), zap.String("last_observed", last))
	return gerr
}

func (g *Gate) observe(ctx context.Context, doc core.Document, c flow.Condition, pattern *URLPattern) (bool, string, error) {
	if c.Kind == flow.ConditionURL {
		u, err := doc.URL(ctx)
		if err != nil {
			return false, "", err
		}
		return pattern.Match(u), u, nil
	}

	el, att, err := g.resolver.ResolveOnce(ctx, doc, c.Element)
	if err != nil {
		return false, "", err
	}
	if el == nil {
		return c.Kind == flow.ConditionHidden && !att.Ambiguous, att.String(), nil
	}
	st, err := el.State(ctx)
	if err != nil {
		return false, "", err
	}
	shown := st.Attached && st.Visible
	observed := fmt.Sprintf("%s hidden", el.Describe())
	if shown {
		observed = fmt.Sprintf("%s visible", el.Describe())
	}
	if c.Kind == flow.ConditionVisible {
		return shown, observed, nil
	}
	return !shown, observed, nil
}
