// Package agent owns one full pipeline invocation: session acquisition,
// page analysis, planning, execution and aggregation, with the session
// released exactly once no matter which stage fails.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/browser"
	"github.com/trishajanath/altx-test-agent/internal/config"
	"github.com/trishajanath/altx-test-agent/internal/executor"
	"github.com/trishajanath/altx-test-agent/internal/planner"
	"github.com/trishajanath/altx-test-agent/internal/report"
	"github.com/trishajanath/altx-test-agent/internal/resolver"
	"github.com/trishajanath/altx-test-agent/internal/vision"
)

// RunRequest describes one agent run.
type RunRequest struct {
	AppName string
	URL     string
	// Plan, when non-empty, replaces AI planning with the caller's cases.
	Plan []schemas.TestCase
}

// DriverFactory builds the browser session for one run. Swappable so tests
// can run the pipeline against a mock driver.
type DriverFactory func() schemas.BrowserDriver

// Runner executes the full agent pipeline. One Runner may serve many runs;
// each run acquires and releases its own session.
type Runner struct {
	cfg       *config.Config
	llm       schemas.LLMClient
	newDriver DriverFactory
	logger    *zap.Logger
}

// Option adjusts a Runner at construction time.
type Option func(*Runner)

// WithDriverFactory overrides how the run's browser session is built.
func WithDriverFactory(f DriverFactory) Option {
	return func(r *Runner) { r.newDriver = f }
}

// NewRunner creates a Runner. The LLM client may be nil, in which case the
// run degrades to the fallback plan and deterministic verdicts.
func NewRunner(cfg *config.Config, llm schemas.LLMClient, logger *zap.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		llm:    llm,
		logger: logger.Named("agent"),
	}
	r.newDriver = func() schemas.BrowserDriver {
		return browser.NewSession(cfg.Browser, logger)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the pipeline end to end. It never returns an error: every
// fatal path yields a structurally complete failed report, and the session
// is closed exactly once before returning.
func (r *Runner) Run(ctx context.Context, req RunRequest) (rep *schemas.TestReport) {
	started := time.Now()
	log := r.logger.With(zap.String("app", req.AppName), zap.String("url", req.URL))
	log.Info("Starting agent run")

	driver := r.newDriver()
	defer driver.Close()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Run pipeline panicked", zap.Any("panic", rec))
			rep = r.fatalReport(req, started, driver, fmt.Sprintf("run aborted by internal error: %v", rec))
		}
	}()

	var v *vision.Analyzer
	if r.llm != nil {
		v = vision.NewAnalyzer(r.llm, r.logger)
	}

	if err := driver.Start(ctx); err != nil {
		log.Error("Browser session could not be started", zap.Error(err))
		return r.fatalReport(req, started, driver, fmt.Sprintf("browser session could not be started: %v", err))
	}

	if !driver.Navigate(ctx, req.URL, r.cfg.Browser.NavTimeout) {
		log.Error("Initial navigation failed")
		return r.fatalReport(req, started, driver, fmt.Sprintf("could not load %s", req.URL))
	}

	initial, err := driver.Screenshot(ctx, "initial page load")
	if err != nil {
		log.Warn("Initial screenshot unavailable", zap.Error(err))
	}

	// Initial page classification informs the log trail only; an
	// unavailable judgement never blocks the run.
	if v != nil && len(initial) > 0 {
		if analysis, aerr := v.AnalyzePage(ctx, initial, req.AppName); aerr == nil {
			log.Info("Initial page analyzed",
				zap.String("page_type", analysis.PageType),
				zap.Int("elements", len(analysis.Elements)),
				zap.Strings("potential_issues", analysis.PotentialIssues))
		} else {
			log.Warn("Initial page analysis unavailable", zap.Error(aerr))
		}
	}

	var cases []schemas.TestCase
	if len(req.Plan) > 0 {
		cases = planner.Normalize(req.Plan)
		log.Info("Using caller-supplied plan", zap.Int("cases", len(cases)))
	} else {
		cases = planner.New(v, r.logger).Plan(ctx, req.AppName, initial)
	}

	exec := executor.New(driver, resolver.New(v, r.logger), v, r.cfg.Executor, r.logger)
	cases = exec.RunAll(ctx, req.URL, cases)

	rep = report.NewAggregator(v, r.logger).Aggregate(ctx, report.RunInfo{
		AppName:    req.AppName,
		AppURL:     req.URL,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, cases, driver.ConsoleErrors(), driver.Screenshots())

	log.Info("Agent run finished",
		zap.String("status", string(rep.OverallStatus)),
		zap.Float64("duration_seconds", rep.TotalDurationSeconds))
	return rep
}

// fatalReport produces the report for a run that could not execute any
// cases. The cause lands in both the summary and the issue list.
func (r *Runner) fatalReport(req RunRequest, started time.Time, driver schemas.BrowserDriver, cause string) *schemas.TestReport {
	finished := time.Now()
	rep := &schemas.TestReport{
		AppName:              req.AppName,
		AppURL:               req.URL,
		StartedAt:            started,
		FinishedAt:           finished,
		TotalDurationSeconds: finished.Sub(started).Seconds(),
		TestCases:            []schemas.TestCase{},
		OverallStatus:        schemas.RunFailed,
		AISummary:            cause,
		IssuesFound:          []string{cause},
		Suggestions:          []string{},
	}
	if driver != nil {
		rep.Screenshots = driver.Screenshots()
	}
	return rep
}
