package pages

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/driver/mock"
	"github.com/devicelab-dev/pageflow/pkg/executor"
	"github.com/devicelab-dev/pageflow/pkg/fixture"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func journeyFixtures(email string) fixture.Set {
	return fixture.Set{
		"credentials": {"email": email, "password": "s3cret"},
		"trip":        {"from": "Lisbon", "to": "Porto", "id": mock.BookingTrips[1]},
		"passenger":   {"name": "Ada Lovelace"},
	}
}

func newSession(t *testing.T, p core.Provider, fx fixture.Set) *executor.Session {
	t.Helper()
	s, err := executor.NewSession(context.Background(), p, executor.Options{
		ResolveTimeout:    time.Second,
		ActionTimeout:     time.Second,
		GateTimeout:       time.Second,
		NavigationTimeout: time.Second,
		PollInterval:      5 * time.Millisecond,
		FrameInterval:     time.Millisecond,
		Fixtures:          fx,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBook(t *testing.T) {
	p := mock.New(mock.BookingSite(), mock.Config{})
	s := newSession(t, p, journeyFixtures("ada@example.com"))

	got, err := Book(context.Background(), s)
	require.NoError(t, err)
	assert.Same(t, s, got)

	doc := s.Document().(*mock.Document)
	url, err := doc.URL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://app.test/booking/1001/confirmed", url)

	results := s.Results()
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Success(), "flow %s: %s", r.Flow, r.Error)
	}
	assert.Equal(t, []string{"login", "search route", "book trip"},
		[]string{results[0].Flow, results[1].Flow, results[2].Flow})

	var values []string
	for _, f := range doc.Fills() {
		values = append(values, f.Value)
	}
	assert.Equal(t, []string{"ada@example.com", "s3cret", "Lisbon", "Porto", "Ada Lovelace"}, values)
	assert.Contains(t, doc.Clicks(), `<button data-testid="trip-LIS-OPO-1400">`)
}

func TestBook_LockedAccount(t *testing.T) {
	p := mock.New(mock.BookingSite(), mock.Config{})
	s := newSession(t, p, journeyFixtures(mock.LockedEmail))

	_, err := Book(context.Background(), s)

	var ferr *core.FlowError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "login", ferr.Flow)
	assert.Equal(t, 3, ferr.StepIndex, "the dashboard never loads")
	var gerr *core.GateTimeoutError
	assert.ErrorAs(t, err, &gerr)

	assert.True(t, s.Failed())
	assert.Nil(t, s.Document(), "document is released on failure")
	assert.Zero(t, p.OpenCount())
	assert.Len(t, s.Results(), 1, "later flows never run")
}

func TestBook_MissingPassenger(t *testing.T) {
	fx := journeyFixtures("ada@example.com")
	delete(fx, "passenger")

	p := mock.New(mock.BookingSite(), mock.Config{})
	s := newSession(t, p, fx)

	_, err := Book(context.Background(), s)

	var ferr *core.FlowError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "book trip", ferr.Flow)
	assert.Equal(t, 1, ferr.StepIndex)
}

func TestFlowsAreValid(t *testing.T) {
	for _, f := range [](func() error){Login().Validate, SearchRoute().Validate, BookTrip().Validate} {
		assert.NoError(t, f())
	}
}

func TestJourneyConcurrentSessions(t *testing.T) {
	p := mock.New(mock.BookingSite(), mock.Config{})
	const n = 4

	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		fx := journeyFixtures("ada@example.com")
		fx["trip"]["id"] = mock.BookingTrips[i%len(mock.BookingTrips)]
		s := newSession(t, p, fx)
		go func() {
			_, err := Book(context.Background(), s)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Len(t, p.Documents(), n)
}
