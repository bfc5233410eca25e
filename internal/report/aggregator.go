// Package report assembles the final run report: verdict derivation over
// case outcomes, the AI closing summary, and the attached evidence trail.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/vision"
)

// RunInfo carries the run-level inputs the aggregator cannot derive from
// the cases themselves.
type RunInfo struct {
	AppName    string
	AppURL     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Aggregator builds a TestReport out of executed cases. The vision analyzer
// is optional; without it (or when the summarization call fails) the report
// falls back to a deterministic completion summary.
type Aggregator struct {
	vision *vision.Analyzer
	logger *zap.Logger
}

func NewAggregator(v *vision.Analyzer, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		vision: v,
		logger: logger.Named("report"),
	}
}

// Aggregate produces the run report. The result is always structurally
// complete: verdict, counts, summary and lists are populated even when the
// case list is empty or the summarization model is unreachable.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	info RunInfo,
	cases []schemas.TestCase,
	consoleErrors []string,
	screenshots []schemas.ScreenshotRecord,
) *schemas.TestReport {
	finished := info.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	rep := &schemas.TestReport{
		AppName:              info.AppName,
		AppURL:               info.AppURL,
		StartedAt:            info.StartedAt,
		FinishedAt:           finished,
		TotalDurationSeconds: finished.Sub(info.StartedAt).Seconds(),
		TestCases:            cases,
		Screenshots:          screenshots,
	}
	rep.OverallStatus = rep.DeriveOverallStatus()

	total, passed, _, _ := rep.Counts()

	if a.vision != nil {
		if summary, ok := a.vision.Summarize(ctx, OutcomeDigest(cases), consoleErrors); ok {
			rep.AISummary = summary.Summary
			rep.IssuesFound = summary.Issues
			rep.Suggestions = summary.Suggestions
			return rep
		}
		a.logger.Warn("AI summary unavailable, using completion summary")
	}

	rep.AISummary = fmt.Sprintf("Completed %d/%d tests successfully.", passed, total)
	rep.IssuesFound = []string{}
	rep.Suggestions = []string{}
	return rep
}

// OutcomeDigest renders the executed cases as a compact plain-text outcome
// listing for the summarization prompt.
func OutcomeDigest(cases []schemas.TestCase) string {
	if len(cases) == 0 {
		return "No test cases were executed."
	}

	var b strings.Builder
	for i := range cases {
		c := &cases[i]
		fmt.Fprintf(&b, "Test case %q: %s (%s)\n",
			c.Name, c.Status(), schemas.FormatDuration(time.Duration(c.TotalDurationMS())*time.Millisecond))
		for _, s := range c.Steps {
			fmt.Fprintf(&b, "  step %d [%s] %s: %s", s.StepNumber, s.Action, s.Description, s.Status)
			if s.Error != "" {
				fmt.Fprintf(&b, " (%s)", s.Error)
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
