package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/action"
	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/flow"
)

// RunFlow executes f's steps in order on s, then checks f's post-condition.
// The first failing step aborts the flow with a *core.FlowError naming its
// index; a failing post-condition reports index len(steps). A Config.URL
// runs as step 0 and shifts the declared steps by one. Steps after the
// failure are never attempted.
//
// A failed or cancelled flow fails the session. The returned session is
// always s, so calls can be chained.
func RunFlow(ctx context.Context, s *Session, f *flow.Flow) (*Session, error) {
	release, err := s.acquire()
	if err != nil {
		return s, err
	}
	defer release()

	fr := &FlowRunner{session: s, flow: f, log: s.log.With(zap.String("flow", f.Name()))}
	result, err := fr.Run(ctx)
	s.record(result)
	if err != nil {
		s.fail(err)
		return s, err
	}
	return s, nil
}

// FlowRunner executes one flow on one session.
type FlowRunner struct {
	session *Session
	flow    *flow.Flow
	log     *zap.Logger
	state   core.FlowState
}

// steps returns the steps to run: a goto for Config.URL, when set, followed
// by the flow's own steps.
func (fr *FlowRunner) steps() []flow.Step {
	if fr.flow.Config.URL == "" {
		return fr.flow.Steps
	}
	steps := make([]flow.Step, 0, len(fr.flow.Steps)+1)
	steps = append(steps, flow.Goto("open "+fr.flow.Config.URL, fr.flow.Config.URL))
	return append(steps, fr.flow.Steps...)
}

// Run executes the flow and returns its result.
func (fr *FlowRunner) Run(ctx context.Context) (core.ExecutionResult, error) {
	steps := fr.steps()
	result := core.ExecutionResult{
		Flow:       fr.flow.Name(),
		SessionID:  fr.session.id,
		State:      core.FlowNotStarted,
		StartTime:  time.Now(),
		FailedStep: -1,
		Steps:      make([]core.StepResult, 0, len(steps)),
	}

	fr.state = core.FlowRunning
	fr.log.Info("flow started", zap.Int("steps", len(steps)))

	var failure *core.FlowError
	for i, step := range steps {
		if failure != nil {
			result.Steps = append(result.Steps, skipped(i, step))
			continue
		}
		if err := ctx.Err(); err != nil {
			failure = fr.flowError(i, step, err)
			result.Steps = append(result.Steps, skipped(i, step))
			continue
		}

		sr, lastAttempted, err := fr.executeStep(ctx, i, step)
		if err != nil && step.IsOptional() && ctx.Err() == nil {
			sr.Status = core.StatusWarned
			fr.log.Warn("optional step failed", zap.Int("step", i), zap.String("name", flow.StepName(step)), zap.Error(err))
			err = nil
		}
		result.Steps = append(result.Steps, sr)
		if err != nil {
			failure = fr.flowError(i, step, err)
			result.LastAttempted = lastAttempted
		}
	}

	if failure == nil && fr.flow.PostCondition != nil {
		if err := fr.checkPostCondition(ctx); err != nil {
			failure = &core.FlowError{Flow: fr.flow.Name(), StepIndex: len(steps), Step: "postCondition", Cause: err}
		}
	}

	result.Duration = time.Since(result.StartTime)
	if failure != nil {
		fr.state = core.FlowFailed
		result.State = fr.state
		result.FailedStep = failure.StepIndex
		result.StepName = failure.Step
		result.Category = failure.Category()
		result.Error = failure.Error()
		fr.log.Info("flow failed", zap.Int("step", failure.StepIndex), zap.Stringer("category", result.Category), zap.Error(failure.Cause))
		return result, failure
	}

	fr.state = core.FlowCompleted
	result.State = fr.state
	fr.log.Info("flow completed", zap.Duration("duration", result.Duration))
	return result, nil
}

func (fr *FlowRunner) flowError(i int, step flow.Step, err error) *core.FlowError {
	return &core.FlowError{Flow: fr.flow.Name(), StepIndex: i, Step: flow.StepName(step), Cause: err}
}

func skipped(i int, step flow.Step) core.StepResult {
	return core.StepResult{Index: i, Command: string(step.Type()), Label: step.Label(), Status: core.StatusSkipped}
}

// executeStep runs one step on a fresh, expanded copy. It also returns the
// last locator strategy attempted, for failure diagnosis.
func (fr *FlowRunner) executeStep(ctx context.Context, i int, step flow.Step) (core.StepResult, string, error) {
	sr := core.StepResult{Index: i, Command: string(step.Type()), Label: step.Label(), Status: core.StatusRunning}
	start := time.Now()

	finish := func(el string, lastAttempted string, err error) (core.StepResult, string, error) {
		sr.Duration = time.Since(start)
		sr.Element = el
		if err != nil {
			sr.Status = core.StatusFailed
			sr.Error = err.Error()
		} else {
			sr.Status = core.StatusPassed
		}
		fr.log.Debug("step finished",
			zap.Int("step", i),
			zap.String("name", flow.StepName(step)),
			zap.Stringer("status", sr.Status),
			zap.Duration("duration", sr.Duration))
		return sr, lastAttempted, err
	}

	expanded, err := fr.session.script.ExpandStep(step)
	if err != nil {
		return finish("", "", err)
	}

	s := fr.session
	switch st := expanded.(type) {
	case *flow.GotoStep:
		return finish("", "", s.navigate(ctx, st.URL, fr.budget(st, s.opts.NavigationTimeout)))

	case *flow.FillStep:
		return fr.interact(ctx, st, action.Fill, st.Value, finish)

	case *flow.ClickStep:
		return fr.interact(ctx, st, action.Click, "", finish)

	case flow.GateStep:
		return finish("", "", s.gate.Await(ctx, s.doc, st.Condition(), fr.budget(st, s.opts.GateTimeout)))
	}
	return finish("", "", fmt.Errorf("unsupported step type %q", step.Type()))
}

type finishFunc func(el, lastAttempted string, err error) (core.StepResult, string, error)

// interact resolves the step's element, then performs the action once.
func (fr *FlowRunner) interact(ctx context.Context, st flow.ElementStep, kind action.Kind, payload string, finish finishFunc) (core.StepResult, string, error) {
	s := fr.session
	target := st.Target()

	el, att, err := s.resolver.ResolveAttempt(ctx, s.doc, target, fr.budget(st, s.opts.ResolveTimeout))
	if err != nil {
		last := target.Describe()
		var rerr *core.ResolutionError
		if errors.As(err, &rerr) {
			if q, ok := rerr.Last(); ok {
				last = q.String()
			}
		}
		return finish("", last, err)
	}

	err = s.actions.Act(ctx, el, kind, payload, fr.budget(st, s.opts.ActionTimeout))
	return finish(el.Describe(), att.Strategy.String(), err)
}

// budget picks the step's own timeout, then the flow's, then def.
func (fr *FlowRunner) budget(step flow.Step, def time.Duration) time.Duration {
	if t := step.Timeout(); t > 0 {
		return t
	}
	if t := fr.flow.DefaultTimeout(); t > 0 {
		return t
	}
	return def
}

func (fr *FlowRunner) checkPostCondition(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := fr.session
	c, err := s.script.ExpandCondition(*fr.flow.PostCondition)
	if err != nil {
		return err
	}
	timeout := s.opts.GateTimeout
	if t := fr.flow.DefaultTimeout(); t > 0 {
		timeout = t
	}
	return s.gate.Await(ctx, s.doc, c, timeout)
}

// State returns the runner's lifecycle state.
func (fr *FlowRunner) State() core.FlowState { return fr.state }
