package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/driver/mock"
	"github.com/devicelab-dev/pageflow/pkg/flow"
	"github.com/devicelab-dev/pageflow/pkg/locator"
)

func TestCompileURLPattern(t *testing.T) {
	tests := []struct {
		pattern string
		url     string
		want    bool
	}{
		{"**/dashboard", "http://app.test/dashboard", true},
		{"**/dashboard", "http://app.test/dashboard/extra", false},
		{"**/dashboard**", "http://app.test/dashboard?tab=1", true},
		{"http://app.test/trips/*", "http://app.test/trips/T42", true},
		{"http://app.test/trips/*", "http://app.test/trips/T42/seats", false},
		{"/trips/?", "http://app.test/trips/7", true},
		{"/search*", "http://app.test/search?from=A&to=B", true},
		{"/login", "http://app.test/dashboard", false},
		{"re:/booking/\\d+/confirmed$", "http://app.test/booking/991/confirmed", true},
		{"re:/booking/\\d+/confirmed$", "http://app.test/booking/x/confirmed", false},
	}

	for _, tt := range tests {
		p, err := CompileURLPattern(tt.pattern)
		require.NoError(t, err, tt.pattern)
		assert.Equal(t, tt.want, p.Match(tt.url), "%s vs %s", tt.pattern, tt.url)
	}

	_, err := CompileURLPattern("re:([")
	assert.Error(t, err)
	_, err = CompileURLPattern("")
	assert.Error(t, err)
}

func newGate() *Gate {
	r := locator.New(locator.Options{PollInterval: 5 * time.Millisecond})
	return New(r, Options{PollInterval: 5 * time.Millisecond})
}

func open(t *testing.T, site mock.Site, path string) *mock.Document {
	t.Helper()
	p := mock.New(site, mock.Config{})
	doc, err := p.NewDocument(context.Background())
	require.NoError(t, err)
	require.NoError(t, doc.Goto(context.Background(), path))
	return doc.(*mock.Document)
}

func TestAwait_URL(t *testing.T) {
	site := mock.Site{
		"/login": {
			HTML: `<html><body>login</body></html>`,
			Script: func(d *mock.Document) {
				d.After(30*time.Millisecond, func(d *mock.Document) { d.Navigate("/dashboard") })
			},
		},
		"/dashboard": {HTML: `<html><body>dash</body></html>`},
	}
	doc := open(t, site, "/login")

	start := time.Now()
	err := newGate().Await(context.Background(), doc, flow.URLMatches("**/dashboard"), time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond, "gate must not pass before navigation")
}

func TestAwait_URLTimeout(t *testing.T) {
	doc := open(t, mock.Site{"/login": {HTML: `<p>login</p>`}}, "/login")

	err := newGate().Await(context.Background(), doc, flow.URLMatches("**/dashboard"), 40*time.Millisecond)
	var gerr *core.GateTimeoutError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, `url matches "**/dashboard"`, gerr.Condition)
	assert.Equal(t, "http://app.test/login", gerr.LastObserved)
}

func TestAwait_Visible(t *testing.T) {
	site := mock.Site{"/": {
		HTML: `<html><body><ul data-testid="results" hidden><li>T1</li></ul></body></html>`,
		Script: func(d *mock.Document) {
			d.After(20*time.Millisecond, func(d *mock.Document) { d.Show("ul") })
		},
	}}
	doc := open(t, site, "/")

	require.NoError(t, newGate().Await(context.Background(), doc, flow.Visible(flow.ByTestID("results")), time.Second))
}

func TestAwait_VisibleTimeoutReportsLastObservation(t *testing.T) {
	doc := open(t, mock.Site{"/": {HTML: `<div data-testid="results" hidden>x</div>`}}, "/")
	g := newGate()

	err := g.Await(context.Background(), doc, flow.Visible(flow.ByTestID("results")), 30*time.Millisecond)
	var gerr *core.GateTimeoutError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.LastObserved, "hidden")

	err = g.Await(context.Background(), doc, flow.Visible(flow.ByTestID("nope")), 30*time.Millisecond)
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "not found", gerr.LastObserved)
}

func TestAwait_Hidden(t *testing.T) {
	site := mock.Site{"/": {
		HTML: `<html><body><div class="spinner">Loading</div></body></html>`,
		Script: func(d *mock.Document) {
			d.After(20*time.Millisecond, func(d *mock.Document) { d.Remove(".spinner") })
		},
	}}
	doc := open(t, site, "/")
	g := newGate()

	require.NoError(t, g.Await(context.Background(), doc, flow.Hidden(flow.ByCSS(".spinner")), time.Second))
	require.NoError(t, g.Await(context.Background(), doc, flow.Hidden(flow.ByText("never there")), time.Second))
}

func TestAwait_Cancelled(t *testing.T) {
	doc := open(t, mock.Site{"/": {HTML: `<p>x</p>`}}, "/")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newGate().Await(ctx, doc, flow.URLMatches("**/never"), time.Second)
	var gerr *core.GateTimeoutError
	require.ErrorAs(t, err, &gerr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwait_InvalidInput(t *testing.T) {
	doc := open(t, mock.Site{"/": {HTML: `<p>x</p>`}}, "/")
	g := newGate()

	assert.ErrorIs(t, g.Await(context.Background(), doc, flow.URLMatches("**"), 0), core.ErrInvalidTimeout)
	assert.ErrorIs(t, g.Await(context.Background(), doc, flow.Visible(flow.Descriptor{}), time.Second), core.ErrInvalidDescriptor)
}
