// Package browser owns one headless Chrome process and one page per run.
// A Session is exclusively owned by exactly one run: created at run start,
// closed (idempotently) at run end, never shared.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/config"
)

// ErrLaunch indicates the browser engine could not be started at all. It is
// the only fatal error a Session produces.
var ErrLaunch = fmt.Errorf("browser engine unavailable")

// Session implements schemas.BrowserDriver on top of chromedp.
type Session struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	closeOnce sync.Once

	mu            sync.Mutex
	consoleErrors []string
	screenshots   []schemas.ScreenshotRecord
}

var _ schemas.BrowserDriver = (*Session)(nil)

// NewSession prepares a session; the browser process is not spawned until
// Start is called.
func NewSession(cfg config.BrowserConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		logger: logger.Named("browser"),
		cfg:    cfg,
	}
}

// generateAllocatorOptions configures the flags for the browser executable.
func (s *Session) generateAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	if s.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	opts = append(opts,
		chromedp.WindowSize(s.cfg.ViewportWidth, s.cfg.ViewportHeight),
		// Fixed pixel density so screenshots are comparable across hosts.
		chromedp.Flag("force-device-scale-factor", "1"),

		// Stability flags for headless/containerized environments.
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", s.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", s.cfg.IgnoreTLSErrors),
	)

	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}
	return opts
}

// Start launches the browser process and opens the page. The session's
// lifetime is controlled by Close, not by the passed context.
func (s *Session) Start(ctx context.Context) error {
	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), s.generateAllocatorOptions()...)
	s.ctx, s.cancel = chromedp.NewContext(s.allocCtx,
		chromedp.WithLogf(s.logger.Sugar().Debugf),
		chromedp.WithErrorf(s.logger.Sugar().Errorf),
	)

	// Buffer console output and uncaught page errors for the run summary.
	chromedp.ListenTarget(s.ctx, s.handleTargetEvent)

	// Prove liveness; a failure here means the engine itself is unusable.
	initCtx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(initCtx, chromedp.Navigate("about:blank")); err != nil {
		s.logger.Error("Browser launch failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrLaunch, ctx.Err())
	default:
	}

	s.logger.Info("Browser session started",
		zap.Bool("headless", s.cfg.Headless),
		zap.Int("viewport_width", s.cfg.ViewportWidth),
		zap.Int("viewport_height", s.cfg.ViewportHeight),
	)
	return nil
}

// handleTargetEvent buffers console errors and uncaught exceptions.
func (s *Session) handleTargetEvent(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		if e.Type != runtime.APITypeError && e.Type != runtime.APITypeWarning {
			return
		}
		var parts []string
		for _, arg := range e.Args {
			switch {
			case arg.Value != nil:
				parts = append(parts, strings.Trim(string(arg.Value), `"`))
			case arg.Description != "":
				parts = append(parts, arg.Description)
			}
		}
		s.appendConsoleError(fmt.Sprintf("console.%s: %s", e.Type, strings.Join(parts, " ")))
	case *runtime.EventExceptionThrown:
		detail := e.ExceptionDetails.Text
		if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
			detail = e.ExceptionDetails.Exception.Description
		}
		s.appendConsoleError("page error: " + detail)
	}
}

func (s *Session) appendConsoleError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consoleErrors = append(s.consoleErrors, msg)
}

// Navigate loads the page, waits for the body to render, then applies a
// short fixed settle delay. It never returns an error; false signals a
// failed load. The caller decides whether that is fatal.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) bool {
	if s.ctx == nil || ctx.Err() != nil {
		return false
	}
	if timeout <= 0 {
		timeout = s.cfg.NavTimeout
	}
	settle := s.cfg.SettleDelay
	if settle < 0 {
		settle = 0
	}

	navCtx, cancel := context.WithTimeout(s.ctx, timeout+settle)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Sleep(settle),
	)
	if err != nil {
		s.logger.Warn("Navigation failed", zap.String("url", url), zap.Error(err))
		return false
	}
	return true
}

// Screenshot captures the current viewport (not the full page), appends the
// image to the session's append-only log, and returns the handle.
func (s *Session) Screenshot(ctx context.Context, label string) ([]byte, error) {
	if s.ctx == nil {
		return nil, fmt.Errorf("session not started")
	}
	shotCtx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot %q failed: %w", label, err)
	}

	s.mu.Lock()
	s.screenshots = append(s.screenshots, schemas.ScreenshotRecord{
		Name:      label,
		Timestamp: time.Now().UTC(),
		Image:     buf,
	})
	s.mu.Unlock()

	return buf, nil
}

// queryOption maps a locator kind onto the chromedp query strategy.
func queryOption(loc schemas.Locator) chromedp.QueryOption {
	if loc.Kind == schemas.LocatorXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Click attempts to click the first element the locator matches. Engine
// errors are swallowed into false.
func (s *Session) Click(ctx context.Context, loc schemas.Locator, timeout time.Duration) bool {
	if s.ctx == nil || loc.IsZero() || ctx.Err() != nil {
		return false
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	clickCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	err := chromedp.Run(clickCtx,
		chromedp.Click(loc.Query, queryOption(loc), chromedp.NodeVisible),
	)
	if err != nil {
		s.logger.Debug("Click failed", zap.String("query", loc.Query), zap.Error(err))
		return false
	}
	return true
}

// Type clears the matched field and types the text into it.
func (s *Session) Type(ctx context.Context, loc schemas.Locator, text string) bool {
	if s.ctx == nil || loc.IsZero() || ctx.Err() != nil {
		return false
	}
	typeCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	err := chromedp.Run(typeCtx,
		chromedp.Clear(loc.Query, queryOption(loc)),
		chromedp.SendKeys(loc.Query, text, queryOption(loc)),
	)
	if err != nil {
		s.logger.Debug("Type failed", zap.String("query", loc.Query), zap.Error(err))
		return false
	}
	return true
}

// Scroll performs a fixed-amount viewport scroll.
func (s *Session) Scroll(ctx context.Context, dir schemas.ScrollDirection, amountPx int) bool {
	if s.ctx == nil || ctx.Err() != nil {
		return false
	}
	if amountPx <= 0 {
		amountPx = 500
	}
	if dir == schemas.ScrollUp {
		amountPx = -amountPx
	}
	scrollCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	script := fmt.Sprintf("window.scrollBy({top: %d, behavior: 'instant'})", amountPx)
	if err := chromedp.Run(scrollCtx, chromedp.Evaluate(script, nil)); err != nil {
		s.logger.Debug("Scroll failed", zap.Error(err))
		return false
	}
	return true
}

// Probe reports whether the locator currently matches at least one live
// element. It never waits for elements to appear.
func (s *Session) Probe(ctx context.Context, loc schemas.Locator) bool {
	if s.ctx == nil || loc.IsZero() || ctx.Err() != nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	count, err := s.countMatches(probeCtx, loc)
	if err != nil {
		s.logger.Debug("Probe failed", zap.String("query", loc.Query), zap.Error(err))
		return false
	}
	return count > 0
}

func (s *Session) countMatches(ctx context.Context, loc schemas.Locator) (int, error) {
	var count int
	var script string
	if loc.Kind == schemas.LocatorXPath {
		script = fmt.Sprintf(
			`document.evaluate(%q, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null).snapshotLength`,
			loc.Query)
	} else {
		script = fmt.Sprintf(`document.querySelectorAll(%q).length`, loc.Query)
	}
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &count)); err != nil {
		return 0, err
	}
	return count, nil
}

// HTML returns a snapshot of the current document markup.
func (s *Session) HTML(ctx context.Context) (string, error) {
	if s.ctx == nil {
		return "", fmt.Errorf("session not started")
	}
	htmlCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	var out string
	if err := chromedp.Run(htmlCtx, chromedp.OuterHTML("html", &out, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to snapshot markup: %w", err)
	}
	return out, nil
}

// ConsoleErrors returns the buffered console errors and page exceptions.
func (s *Session) ConsoleErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.consoleErrors))
	copy(out, s.consoleErrors)
	return out
}

// Screenshots returns the session's append-only screenshot log.
func (s *Session) Screenshots() []schemas.ScreenshotRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.ScreenshotRecord, len(s.screenshots))
	copy(out, s.screenshots)
	return out
}

// Close tears down the page and the browser process. It is idempotent,
// safe after a partial Start failure, and never returns an error.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		s.logger.Info("Browser session closed")
	})
}
