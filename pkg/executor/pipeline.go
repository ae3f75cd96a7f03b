package executor

import (
	"context"

	"github.com/devicelab-dev/pageflow/pkg/flow"
)

// Stage is one link of a flow chain. It receives the session left by the
// previous stage and returns the session for the next.
type Stage func(ctx context.Context, s *Session) (*Session, error)

// Chain runs stages in order on s. The first error stops the chain; later
// stages are never invoked.
//
//	s, err := executor.Chain(ctx, s,
//		executor.Goto("/login"),
//		executor.Run(pages.Login()),
//		executor.Run(pages.SearchRoute()),
//	)
func Chain(ctx context.Context, s *Session, stages ...Stage) (*Session, error) {
	for _, stage := range stages {
		next, err := stage(ctx, s)
		if next != nil {
			s = next
		}
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

// Goto returns a stage that navigates the session.
func Goto(url string) Stage {
	return func(ctx context.Context, s *Session) (*Session, error) {
		return s.Goto(ctx, url)
	}
}

// Run returns a stage that runs f.
func Run(f *flow.Flow) Stage {
	return func(ctx context.Context, s *Session) (*Session, error) {
		return RunFlow(ctx, s, f)
	}
}
