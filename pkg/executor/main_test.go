package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/driver/mock"
	"github.com/devicelab-dev/pageflow/pkg/fixture"
	"github.com/devicelab-dev/pageflow/pkg/flow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var adaFixtures = fixture.Set{
	"credentials": {"email": "ada@example.com", "password": "s3cret"},
}

func fastOptions(fx fixture.Set) Options {
	return Options{
		ResolveTimeout:    time.Second,
		ActionTimeout:     time.Second,
		GateTimeout:       time.Second,
		NavigationTimeout: time.Second,
		PollInterval:      5 * time.Millisecond,
		FrameInterval:     time.Millisecond,
		Fixtures:          fx,
	}
}

func newSession(t *testing.T, p core.Provider, opts Options) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), p, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// loginSession opens the booking site's login page.
func loginSession(t *testing.T, cfg mock.Config, fx fixture.Set) (*Session, *mock.Provider) {
	t.Helper()
	p := mock.New(mock.BookingSite(), cfg)
	s := newSession(t, p, fastOptions(fx))
	_, err := s.Goto(context.Background(), "/login")
	require.NoError(t, err)
	return s, p
}

func loginFlow() *flow.Flow {
	return flow.New("login",
		flow.Fill("fill email", flow.ByLabel("Email"), "${credentials.email}"),
		flow.Fill("fill password", flow.ByLabel("Password"), "${credentials.password}"),
		flow.Click("click login", flow.ByTestID("login-button").OrText("Login").WithOrdinal(flow.Unique)),
		flow.AwaitURL("await dashboard", "**/dashboard"),
	)
}

func mockDoc(t *testing.T, s *Session) *mock.Document {
	t.Helper()
	doc, ok := s.Document().(*mock.Document)
	require.True(t, ok, "session has no open mock document")
	return doc
}
