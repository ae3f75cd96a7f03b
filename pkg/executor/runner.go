// Package executor runs flows on sessions: the sequencer (RunFlow, Chain),
// the per-session state machine, and the parallel case runner.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/fixture"
	"github.com/devicelab-dev/pageflow/pkg/flow"
)

// Case is an ordered chain of flows run on one fresh session.
type Case struct {
	Name     string
	Start    string      // navigated to before the first flow when set
	Flows    []*flow.Flow
	Fixtures fixture.Set // layered over RunnerConfig.Session.Fixtures
}

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	Parallelism int  // Max concurrent cases (0 = sequential)
	StopOnFail  bool // Skip cases not yet started after the first failure

	Session Options // template for every case's session

	// Live progress callbacks. They may be called from several goroutines.
	OnCaseStart func(caseIdx, totalCases int, name string)
	OnFlowEnd   func(caseName string, result core.ExecutionResult)
	OnCaseEnd   func(result CaseResult)
}

// CaseResult contains the outcome of a single case.
type CaseResult struct {
	Name      string
	SessionID string
	Status    core.StepStatus // passed, failed or skipped
	Duration  time.Duration
	Error     string
	Flows     []core.ExecutionResult
}

// RunResult contains the outcome of a test run.
type RunResult struct {
	Status       core.StepStatus
	TotalCases   int
	PassedCases  int
	FailedCases  int
	SkippedCases int
	Duration     time.Duration // wall clock
	Cases        []CaseResult
}

// Success reports whether no case failed.
func (r *RunResult) Success() bool { return r.FailedCases == 0 }

// Runner runs cases, each on its own session.
type Runner struct {
	config   RunnerConfig
	provider core.Provider
}

// New creates a new Runner.
func New(provider core.Provider, cfg RunnerConfig) *Runner {
	return &Runner{
		config:   cfg,
		provider: provider,
	}
}

// Run executes all cases and returns their results in input order.
func (r *Runner) Run(ctx context.Context, cases []Case) *RunResult {
	start := time.Now()
	results := make([]CaseResult, len(cases))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	limit := r.config.Parallelism
	if limit <= 0 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for i := range cases {
		i := i
		g.Go(func() error {
			if runCtx.Err() != nil {
				results[i] = CaseResult{Name: cases[i].Name, Status: core.StatusSkipped, Error: "run stopped"}
				r.caseEnd(results[i])
				return nil
			}
			results[i] = r.runCase(runCtx, i, len(cases), cases[i])
			if r.config.StopOnFail && results[i].Status == core.StatusFailed {
				stop()
			}
			return nil
		})
	}
	_ = g.Wait()

	result := buildRunResult(results)
	result.Duration = time.Since(start)
	return result
}

// runCase opens a session and chains the case's flows on it.
func (r *Runner) runCase(ctx context.Context, idx, total int, c Case) CaseResult {
	if r.config.OnCaseStart != nil {
		r.config.OnCaseStart(idx, total, c.Name)
	}
	start := time.Now()

	opts := r.config.Session
	opts.Fixtures = opts.Fixtures.Merge(c.Fixtures)
	if opts.Logger != nil {
		opts.Logger = opts.Logger.With(zap.String("case", c.Name))
	}

	res := CaseResult{Name: c.Name}
	s, err := NewSession(ctx, r.provider, opts)
	if err != nil {
		res.Status = core.StatusFailed
		res.Error = err.Error()
		res.Duration = time.Since(start)
		r.caseEnd(res)
		return res
	}
	defer func() { _ = s.Close() }()
	res.SessionID = s.ID()

	stages := make([]Stage, 0, len(c.Flows)+1)
	if c.Start != "" {
		stages = append(stages, Goto(c.Start))
	}
	for _, f := range c.Flows {
		stages = append(stages, r.reporting(c.Name, Run(f)))
	}

	_, err = Chain(ctx, s, stages...)
	res.Flows = s.Results()
	res.Duration = time.Since(start)
	res.Status = core.StatusPassed
	if err != nil {
		res.Status = core.StatusFailed
		res.Error = err.Error()
	}
	r.caseEnd(res)
	return res
}

// reporting wraps a flow stage so OnFlowEnd sees its result.
func (r *Runner) reporting(caseName string, stage Stage) Stage {
	if r.config.OnFlowEnd == nil {
		return stage
	}
	return func(ctx context.Context, s *Session) (*Session, error) {
		before := len(s.Results())
		next, err := stage(ctx, s)
		if results := s.Results(); len(results) > before {
			r.config.OnFlowEnd(caseName, results[len(results)-1])
		}
		return next, err
	}
}

func (r *Runner) caseEnd(res CaseResult) {
	if r.config.OnCaseEnd != nil {
		r.config.OnCaseEnd(res)
	}
}

// buildRunResult aggregates case results into a run result.
func buildRunResult(cases []CaseResult) *RunResult {
	result := &RunResult{
		TotalCases: len(cases),
		Cases:      cases,
	}

	for _, c := range cases {
		switch c.Status {
		case core.StatusPassed:
			result.PassedCases++
		case core.StatusFailed:
			result.FailedCases++
		case core.StatusSkipped:
			result.SkippedCases++
		}
	}

	result.Status = core.StatusPassed
	if result.FailedCases > 0 {
		result.Status = core.StatusFailed
	}
	return result
}
