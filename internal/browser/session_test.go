package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/config"
)

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		NavTimeout:     5 * time.Second,
		SettleDelay:    100 * time.Millisecond,
	}
}

// Actions on a session that was never started must degrade, not panic.
func TestUnstartedSessionDegrades(t *testing.T) {
	s := NewSession(testBrowserConfig(), zaptest.NewLogger(t))
	ctx := context.Background()
	loc := schemas.Locator{Query: "#btn", Kind: schemas.LocatorCSS}

	assert.False(t, s.Navigate(ctx, "http://localhost:1", time.Second))
	assert.False(t, s.Click(ctx, loc, time.Second))
	assert.False(t, s.Type(ctx, loc, "hello"))
	assert.False(t, s.Scroll(ctx, schemas.ScrollDown, 500))
	assert.False(t, s.Probe(ctx, loc))

	_, err := s.Screenshot(ctx, "before")
	assert.Error(t, err)
	_, err = s.HTML(ctx)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewSession(testBrowserConfig(), zaptest.NewLogger(t))

	// Close before Start, twice. Must not panic or block.
	assert.NotPanics(t, func() {
		s.Close()
		s.Close()
	})
}

func TestActionsRejectCancelledContext(t *testing.T) {
	s := NewSession(testBrowserConfig(), zaptest.NewLogger(t))
	// Give the session a fake inner context so only the caller context
	// check decides the outcome.
	s.ctx, s.cancel = context.WithCancel(context.Background())
	defer s.Close()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	loc := schemas.Locator{Query: "button", Kind: schemas.LocatorCSS}
	assert.False(t, s.Navigate(cancelled, "http://localhost:1", time.Second))
	assert.False(t, s.Click(cancelled, loc, time.Second))
	assert.False(t, s.Type(cancelled, loc, "x"))
	assert.False(t, s.Scroll(cancelled, schemas.ScrollUp, 100))
	assert.False(t, s.Probe(cancelled, loc))
}

func TestConsoleErrorBufferAndScreenshotLogAreCopies(t *testing.T) {
	s := NewSession(testBrowserConfig(), zaptest.NewLogger(t))

	s.appendConsoleError("console.error: boom")
	s.appendConsoleError("page error: TypeError: x is undefined")

	errs := s.ConsoleErrors()
	assert.Equal(t, []string{
		"console.error: boom",
		"page error: TypeError: x is undefined",
	}, errs)

	// Mutating the returned slice must not affect the session buffer.
	errs[0] = "tampered"
	assert.Equal(t, "console.error: boom", s.ConsoleErrors()[0])

	assert.Empty(t, s.Screenshots())
}

func TestQueryOption(t *testing.T) {
	assert.NotNil(t, queryOption(schemas.Locator{Query: "#a", Kind: schemas.LocatorCSS}))
	assert.NotNil(t, queryOption(schemas.Locator{Query: "//button", Kind: schemas.LocatorXPath}))
}
