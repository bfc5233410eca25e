// Package executor drives the per-step state machine: every step moves from
// skipped to exactly one terminal status, no exception crosses the step
// boundary, and step order within a case is execution order.
package executor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/config"
	"github.com/trishajanath/altx-test-agent/internal/resolver"
	"github.com/trishajanath/altx-test-agent/internal/vision"
)

// typePattern parses step descriptions of the form:
//
//	type 'some text' into 'field description'
//
// with either quote style.
var typePattern = regexp.MustCompile(`(?i)^\s*type\s+['"](.*?)['"]\s+into\s+['"](.*?)['"]\s*\.?\s*$`)

// Executor runs test cases against one browser session.
type Executor struct {
	driver   schemas.BrowserDriver
	resolver *resolver.Resolver
	vision   *vision.Analyzer
	cfg      config.ExecutorConfig
	logger   *zap.Logger
}

// New creates an Executor bound to one run's driver.
func New(
	driver schemas.BrowserDriver,
	res *resolver.Resolver,
	v *vision.Analyzer,
	cfg config.ExecutorConfig,
	logger *zap.Logger,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 10 * time.Second
	}
	if cfg.WaitDuration <= 0 {
		cfg.WaitDuration = time.Second
	}
	if cfg.ScrollAmountPx <= 0 {
		cfg.ScrollAmountPx = 500
	}
	return &Executor{
		driver:   driver,
		resolver: res,
		vision:   v,
		cfg:      cfg,
		logger:   logger.Named("executor"),
	}
}

// RunAll executes every case in plan order. Between cases the executor
// re-navigates to the baseline URL on a best-effort basis; a failed
// re-navigation is logged but never aborts the run.
func (e *Executor) RunAll(ctx context.Context, baseURL string, cases []schemas.TestCase) []schemas.TestCase {
	for i := range cases {
		if i > 0 {
			if !e.driver.Navigate(ctx, baseURL, 0) {
				e.logger.Warn("Re-navigation to baseline failed, continuing",
					zap.String("url", baseURL))
			}
		}
		e.RunCase(ctx, &cases[i])
	}
	return cases
}

// RunCase executes every step of one case in insertion order.
func (e *Executor) RunCase(ctx context.Context, tc *schemas.TestCase) {
	log := e.logger.With(zap.String("case", tc.Name))
	log.Info("Running test case", zap.Int("steps", len(tc.Steps)))

	for i := range tc.Steps {
		e.executeStep(ctx, tc.Name, &tc.Steps[i])
		log.Debug("Step finished",
			zap.Int("step", tc.Steps[i].StepNumber),
			zap.String("action", string(tc.Steps[i].Action)),
			zap.String("status", string(tc.Steps[i].Status)),
		)
	}

	log.Info("Test case finished",
		zap.String("status", string(tc.Status())),
		zap.Int64("duration_ms", tc.TotalDurationMS()),
	)
}

// executeStep runs one step through its full lifecycle: screenshot-before,
// act, screenshot-after, judge, status. Any panic is contained here and
// downgrades only this step to failed.
func (e *Executor) executeStep(ctx context.Context, caseName string, step *schemas.TestStep) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			step.Status = schemas.StatusFailed
			step.Error = fmt.Sprintf("unhandled panic in step: %v", r)
			e.logger.Error("Step panicked",
				zap.String("case", caseName),
				zap.Int("step", step.StepNumber),
				zap.Any("panic", r),
			)
		}
		// The after screenshot is captured regardless of outcome, panic
		// included.
		if step.ScreenshotAfter == nil {
			if img, err := e.driver.Screenshot(ctx, stepLabel(caseName, step, "after")); err == nil {
				step.ScreenshotAfter = img
			}
		}
		step.DurationMS = time.Since(start).Milliseconds()
	}()

	if img, err := e.driver.Screenshot(ctx, stepLabel(caseName, step, "before")); err == nil {
		step.ScreenshotBefore = img
	}

	switch step.Action {
	case schemas.ActionClick:
		e.performClick(ctx, step)
	case schemas.ActionType:
		e.performType(ctx, step)
	case schemas.ActionScroll:
		e.performScroll(ctx, step)
	case schemas.ActionVerify:
		e.performVerify(ctx, step)
	case schemas.ActionWait:
		e.performWait(ctx, step)
	default:
		step.Status = schemas.StatusFailed
		step.Error = fmt.Sprintf("unsupported action %q", step.Action)
	}
}

func (e *Executor) performClick(ctx context.Context, step *schemas.TestStep) {
	loc, ok := e.resolver.Resolve(ctx, e.driver, step.Description)
	if !ok {
		step.Status = schemas.StatusFailed
		step.Error = fmt.Sprintf("element not found: %s", step.Description)
		return
	}
	if !e.driver.Click(ctx, loc, e.cfg.ActionTimeout) {
		step.Status = schemas.StatusFailed
		step.Error = fmt.Sprintf("click failed on %q", loc.Query)
		return
	}
	step.Status = schemas.StatusPassed
	step.AIObservation = fmt.Sprintf("clicked %q", loc.Query)
}

func (e *Executor) performType(ctx context.Context, step *schemas.TestStep) {
	text, field, ok := ParseTypeDescription(step.Description)
	if !ok {
		step.Status = schemas.StatusFailed
		step.Error = fmt.Sprintf("could not parse type step %q: expected form: type 'text' into 'field'", step.Description)
		return
	}

	loc, found := e.resolver.Resolve(ctx, e.driver, field)
	if !found {
		step.Status = schemas.StatusFailed
		step.Error = fmt.Sprintf("field not found: %s", field)
		return
	}
	if !e.driver.Type(ctx, loc, text) {
		step.Status = schemas.StatusFailed
		step.Error = fmt.Sprintf("typing into %q failed", loc.Query)
		return
	}
	step.Status = schemas.StatusPassed
	step.AIObservation = fmt.Sprintf("typed %d characters into %q", len(text), loc.Query)
}

func (e *Executor) performScroll(ctx context.Context, step *schemas.TestStep) {
	dir := InferScrollDirection(step.Description)
	if !e.driver.Scroll(ctx, dir, e.cfg.ScrollAmountPx) {
		step.Status = schemas.StatusFailed
		step.Error = "scroll failed"
		return
	}
	step.Status = schemas.StatusPassed
	step.AIObservation = fmt.Sprintf("scrolled %s by %dpx", dir, e.cfg.ScrollAmountPx)
}

// performVerify takes a screenshot and asks the vision model to judge it.
// Reported issues downgrade the step to warning, as does an unavailable
// judgement; only a failed analyzer call fails the step.
func (e *Executor) performVerify(ctx context.Context, step *schemas.TestStep) {
	if e.vision == nil {
		step.Status = schemas.StatusWarning
		step.AIObservation = "visual judgement unavailable"
		return
	}

	img, err := e.driver.Screenshot(ctx, "verify: "+step.Description)
	if err != nil {
		step.Status = schemas.StatusWarning
		step.AIObservation = "verification skipped: screenshot unavailable"
		step.Error = err.Error()
		return
	}

	analysis, err := e.vision.AnalyzePage(ctx, img, step.Description)
	switch {
	case errors.Is(err, vision.ErrUnavailable):
		step.Status = schemas.StatusWarning
		step.AIObservation = "visual judgement unavailable"
		return
	case err != nil:
		step.Status = schemas.StatusFailed
		step.Error = err.Error()
		return
	}

	if len(analysis.PotentialIssues) > 0 {
		step.Status = schemas.StatusWarning
		step.AIObservation = "potential issues: " + strings.Join(analysis.PotentialIssues, "; ")
		return
	}
	step.Status = schemas.StatusPassed
	step.AIObservation = analysis.Observations
}

func (e *Executor) performWait(ctx context.Context, step *schemas.TestStep) {
	timer := time.NewTimer(e.cfg.WaitDuration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	step.Status = schemas.StatusPassed
	step.AIObservation = fmt.Sprintf("waited %s", e.cfg.WaitDuration)
}

// ParseTypeDescription extracts the text and target field from a type-step
// description of the form: type 'text' into 'field'.
func ParseTypeDescription(description string) (text, field string, ok bool) {
	m := typePattern.FindStringSubmatch(description)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// InferScrollDirection reads the scroll direction from the description:
// the word "up" reverses the default downward scroll.
func InferScrollDirection(description string) schemas.ScrollDirection {
	for _, word := range strings.Fields(strings.ToLower(description)) {
		if strings.Trim(word, ".,!?") == "up" {
			return schemas.ScrollUp
		}
	}
	return schemas.ScrollDown
}

func stepLabel(caseName string, step *schemas.TestStep, phase string) string {
	return fmt.Sprintf("%s / step %d %s (%s)", caseName, step.StepNumber, phase, step.Action)
}
