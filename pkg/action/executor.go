// Package action performs user actions on resolved elements once they are
// actionable.
package action

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// Kind is a user action.
type Kind string

const (
	Fill  Kind = "fill"
	Click Kind = "click"
)

// DefaultFrameInterval separates the two observations of the stability check.
const DefaultFrameInterval = 16 * time.Millisecond

// Options configures an Executor.
type Options struct {
	PollInterval  time.Duration
	FrameInterval time.Duration
	Logger        *zap.Logger
}

// Executor checks actionability preconditions and performs actions.
type Executor struct {
	interval time.Duration
	frame    time.Duration
	log      *zap.Logger
}

// New creates an executor.
func New(opts Options) *Executor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = wait.DefaultInterval
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Executor{interval: opts.PollInterval, frame: opts.FrameInterval, log: opts.Logger}
}

// Act waits until el is actionable for kind and then performs the action
// exactly once. payload is the value for Fill and ignored for Click.
func (x *Executor) Act(ctx context.Context, el core.Element, kind Kind, payload string, timeout time.Duration) error {
	if timeout <= 0 {
		return core.ErrInvalidTimeout
	}

	pctx, cancel := wait.WithBudget(ctx, timeout)
	defer cancel()

	reason := core.ReasonNotAttached
	err := wait.Poll(pctx, x.interval, func(ctx context.Context) (bool, error) {
		r, ok := x.check(ctx, el, kind)
		if ok {
			return true, nil
		}
		if r != "" {
			reason = r
		}
		return false, nil
	})
	if err != nil {
		aerr := &core.ActionError{
			Kind:    core.ActionNotActionable,
			Action:  string(kind),
			Element: el.Describe(),
			Reason:  reason,
		}
		if ctx.Err() != nil {
			aerr.Cause = ctx.Err()
		}
		x.log.Debug("element not actionable",
			zap.String("action", string(kind)),
			zap.String("element", aerr.Element),
			zap.String("reason", reason))
		return aerr
	}

	switch kind {
	case Fill:
		err = el.Fill(ctx, payload)
	case Click:
		err = el.Click(ctx)
	default:
		return &core.ActionError{Kind: core.ActionFailed, Action: string(kind), Element: el.Describe(), Cause: errUnknownAction(kind)}
	}
	if err != nil {
		return &core.ActionError{Kind: core.ActionFailed, Action: string(kind), Element: el.Describe(), Cause: err}
	}
	x.log.Debug("action performed", zap.String("action", string(kind)), zap.String("element", el.Describe()))
	return nil
}

// check makes one observation and returns the first failing precondition.
// An empty reason with ok false means the observation was cut short.
func (x *Executor) check(ctx context.Context, el core.Element, kind Kind) (reason string, ok bool) {
	first, err := el.State(ctx)
	if err != nil {
		return core.ReasonNotAttached, false
	}
	if !first.Attached {
		return core.ReasonNotAttached, false
	}
	if !first.Visible {
		return core.ReasonNotVisible, false
	}

	if err := wait.Sleep(ctx, x.frame); err != nil {
		return "", false
	}
	st, err := el.State(ctx)
	if err != nil || !st.Attached {
		return core.ReasonNotAttached, false
	}
	if !st.Visible {
		return core.ReasonNotVisible, false
	}
	if st.Bounds != first.Bounds {
		return core.ReasonNotStable, false
	}

	if !st.Enabled {
		return core.ReasonNotEnabled, false
	}
	if kind == Fill && !st.Editable {
		return core.ReasonNotEditable, false
	}
	if !st.ReceivesEvents {
		return core.ReasonObscured, false
	}
	return "", true
}

type errUnknownAction Kind

func (e errUnknownAction) Error() string { return "unknown action " + string(e) }
