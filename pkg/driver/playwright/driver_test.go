package playwright

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

func TestContextOptions(t *testing.T) {
	p := &Provider{opts: Options{
		BaseURL:     "http://booking.test",
		Permissions: []string{"geolocation"},
		Geolocation: &Geolocation{Latitude: 38.72, Longitude: -9.14, Accuracy: 10},
		Viewport:    &Viewport{Width: 1280, Height: 720},
	}}

	o := p.contextOptions()
	require.NotNil(t, o.BaseURL)
	assert.Equal(t, "http://booking.test", *o.BaseURL)
	assert.Equal(t, []string{"geolocation"}, o.Permissions)
	require.NotNil(t, o.Geolocation)
	assert.Equal(t, 38.72, o.Geolocation.Latitude)
	require.NotNil(t, o.Geolocation.Accuracy)
	assert.Equal(t, 10.0, *o.Geolocation.Accuracy)
	require.NotNil(t, o.Viewport)
	assert.Equal(t, 1280, o.Viewport.Width)
}

func TestContextOptionsEmpty(t *testing.T) {
	o := (&Provider{}).contextOptions()
	assert.Nil(t, o.BaseURL)
	assert.Nil(t, o.Geolocation)
	assert.Nil(t, o.Viewport)
}

func TestTimeoutMs(t *testing.T) {
	assert.Nil(t, timeoutMs(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ms := timeoutMs(ctx)
	require.NotNil(t, ms)
	assert.InDelta(t, 2000, *ms, 100)

	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	assert.Equal(t, 1.0, *timeoutMs(expired))
}

func TestNamedLogger(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	namedLogger(zap.New(obs)).Info("browser launched")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "playwright", logs.All()[0].LoggerName)
	assert.NotNil(t, namedLogger(nil))
}

func TestDescriptions(t *testing.T) {
	got, err := descriptions([]interface{}{`<button data-testid="login-button">`, `<a>`})
	require.NoError(t, err)
	assert.Equal(t, []string{`<button data-testid="login-button">`, `<a>`}, got)

	got, err = descriptions(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = descriptions("oops")
	assert.Error(t, err)
}

const loginPage = `<!DOCTYPE html>
<html><body>
  <label for="email">Email</label><input id="email" type="email">
  <button data-testid="login-button" disabled>Login</button>
  <a href="/help">Login help</a>
</body></html>`

// TestBrowser drives a real chromium. It needs installed Playwright
// browsers and runs only when PAGEFLOW_BROWSER_TESTS is set.
func TestBrowser(t *testing.T) {
	if os.Getenv("PAGEFLOW_BROWSER_TESTS") == "" {
		t.Skip("set PAGEFLOW_BROWSER_TESTS=1 to run browser tests")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(loginPage))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p, err := Launch(ctx, Options{Headless: true})
	require.NoError(t, err)
	defer p.Close()

	doc, err := p.NewDocument(ctx)
	require.NoError(t, err)
	defer doc.Close()

	require.NoError(t, doc.Goto(ctx, srv.URL+"/login"))
	url, err := doc.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/login", url)

	email, err := doc.Query(ctx, core.Query{Kind: core.StrategyLabel, Value: "Email", Exact: true})
	require.NoError(t, err)
	require.Len(t, email, 1)
	require.NoError(t, email[0].Fill(ctx, "ada@example.com"))

	buttons, err := doc.Query(ctx, core.Query{Kind: core.StrategyTestID, Value: "login-button"})
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	assert.Contains(t, buttons[0].Describe(), `data-testid="login-button"`)

	state, err := buttons[0].State(ctx)
	require.NoError(t, err)
	assert.True(t, state.Attached)
	assert.True(t, state.Visible)
	assert.False(t, state.Enabled)

	// "Login" text matches the button and the help link.
	texts, err := doc.Query(ctx, core.Query{Kind: core.StrategyText, Value: "Login"})
	require.NoError(t, err)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1].Describe(), "<a")
	linkState, err := texts[1].State(ctx)
	require.NoError(t, err)
	assert.True(t, linkState.Attached)
	assert.True(t, linkState.Enabled)

	require.NoError(t, doc.Close())
	_, err = doc.URL(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
