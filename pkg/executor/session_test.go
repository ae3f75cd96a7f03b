package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/driver/mock"
	"github.com/devicelab-dev/pageflow/pkg/flow"
)

type failingProvider struct{ err error }

func (p failingProvider) NewDocument(context.Context) (core.Document, error) { return nil, p.err }

func TestNewSession(t *testing.T) {
	p := mock.New(mock.BookingSite(), mock.Config{})
	a := newSession(t, p, Options{})
	b := newSession(t, p, Options{})

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotSame(t, a.Document(), b.Document())
	assert.Equal(t, 2, p.OpenCount())
	assert.Equal(t, DefaultResolveTimeout, a.opts.ResolveTimeout)
	assert.Equal(t, DefaultGateTimeout, a.opts.GateTimeout)
}

func TestNewSession_ProviderError(t *testing.T) {
	boom := errors.New("browser crashed")
	_, err := NewSession(context.Background(), failingProvider{err: boom}, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestSession_GotoResolvesAgainstBaseURL(t *testing.T) {
	p := mock.New(mock.BookingSite(), mock.Config{BaseURL: "http://other.test"})
	opts := fastOptions(nil)
	opts.BaseURL = "http://app.test/"
	s := newSession(t, p, opts)

	_, err := s.Goto(context.Background(), "login")
	require.NoError(t, err)

	url, err := s.Document().URL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://app.test/login", url)
}

func TestSession_Close(t *testing.T) {
	p := mock.New(mock.BookingSite(), mock.Config{})
	s, err := NewSession(context.Background(), p, Options{})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Zero(t, p.OpenCount())
	assert.Nil(t, s.Document())

	_, err = RunFlow(context.Background(), s, loginFlow())
	assert.ErrorIs(t, err, core.ErrSessionClosed)
	_, err = s.Goto(context.Background(), "/login")
	assert.ErrorIs(t, err, core.ErrSessionClosed)
}

func TestSession_ResultsAccumulate(t *testing.T) {
	s, _ := loginSession(t, mock.Config{}, adaFixtures)

	_, err := RunFlow(context.Background(), s, loginFlow())
	require.NoError(t, err)
	_, err = RunFlow(context.Background(), s, flow.New("dashboard", flow.AwaitVisible("await menu", flow.ByTestID("user-menu"))))
	require.NoError(t, err)

	results := s.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "login", results[0].Flow)
	assert.Equal(t, "dashboard", results[1].Flow)

	// callers get a copy
	results[0].Flow = "changed"
	assert.Equal(t, "login", s.Results()[0].Flow)
}
