package schemas

import (
	"encoding/json"
	"fmt"
	"time"
)

// -- Step / Case / Report hierarchy --
// These types model one run of the visual test agent: a TestReport holds
// ordered TestCases, which hold ordered TestSteps. All of them are created
// fresh per run and carry no cross-run state.

// StepAction enumerates the actions the executor knows how to perform.
type StepAction string

const (
	ActionClick  StepAction = "click"
	ActionType   StepAction = "type"
	ActionScroll StepAction = "scroll"
	ActionVerify StepAction = "verify"
	ActionWait   StepAction = "wait"
)

// KnownAction reports whether a is one of the supported step actions.
func KnownAction(a StepAction) bool {
	switch a {
	case ActionClick, ActionType, ActionScroll, ActionVerify, ActionWait:
		return true
	}
	return false
}

// StepStatus is the lifecycle state of a single step. A step starts as
// StatusSkipped and transitions exactly once, during execution, to one of
// the terminal values.
type StepStatus string

const (
	StatusSkipped StepStatus = "skipped"
	StatusPassed  StepStatus = "passed"
	StatusWarning StepStatus = "warning"
	StatusFailed  StepStatus = "failed"
)

// Terminal reports whether s is a terminal step status.
func (s StepStatus) Terminal() bool {
	return s == StatusPassed || s == StatusWarning || s == StatusFailed
}

// TestStep is a single action inside a test case.
type TestStep struct {
	StepNumber       int        `json:"step_number"`
	Action           StepAction `json:"action"`
	Description      string     `json:"description"`
	ScreenshotBefore []byte     `json:"-"`
	ScreenshotAfter  []byte     `json:"-"`
	Status           StepStatus `json:"status"`
	AIObservation    string     `json:"ai_observation,omitempty"`
	Error            string     `json:"error,omitempty"`
	DurationMS       int64      `json:"duration_ms"`
}

// TestCase is one scenario: an ordered sequence of steps executed in
// insertion order.
type TestCase struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Steps       []TestStep `json:"steps"`
}

// Status derives the case status from its steps: failed iff any step
// failed, passed otherwise.
func (c *TestCase) Status() StepStatus {
	for _, s := range c.Steps {
		if s.Status == StatusFailed {
			return StatusFailed
		}
	}
	return StatusPassed
}

// TotalDurationMS is the sum of the step durations.
func (c *TestCase) TotalDurationMS() int64 {
	var total int64
	for _, s := range c.Steps {
		total += s.DurationMS
	}
	return total
}

// RunStatus is the overall verdict of a report.
type RunStatus string

const (
	RunPassed  RunStatus = "passed"
	RunWarning RunStatus = "warning"
	RunFailed  RunStatus = "failed"
)

// ScreenshotRecord is one entry in the session's append-only screenshot log.
type ScreenshotRecord struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Image     []byte    `json:"-"`
}

// TestReport is the full result of one agent run.
type TestReport struct {
	AppName              string             `json:"app_name"`
	AppURL               string             `json:"app_url"`
	StartedAt            time.Time          `json:"started_at"`
	FinishedAt           time.Time          `json:"finished_at"`
	TotalDurationSeconds float64            `json:"total_duration_seconds"`
	TestCases            []TestCase         `json:"test_cases"`
	OverallStatus        RunStatus          `json:"overall_status"`
	AISummary            string             `json:"ai_summary"`
	IssuesFound          []string           `json:"issues_found"`
	Suggestions          []string           `json:"suggestions"`
	Screenshots          []ScreenshotRecord `json:"screenshots,omitempty"`
}

// Counts returns (total, passed, failed, warnings) over the report's cases.
// A case counts as a warning when it passed but contains at least one
// warning step.
func (r *TestReport) Counts() (total, passed, failed, warnings int) {
	for i := range r.TestCases {
		c := &r.TestCases[i]
		total++
		switch c.Status() {
		case StatusFailed:
			failed++
		default:
			passed++
			for _, s := range c.Steps {
				if s.Status == StatusWarning {
					warnings++
					break
				}
			}
		}
	}
	return total, passed, failed, warnings
}

// DeriveOverallStatus computes the report verdict from its case counts.
// Failed when failures outnumber passes or nothing passed at all; warning
// when failures exist but do not outnumber passes (equal counts included);
// passed when nothing failed.
func (r *TestReport) DeriveOverallStatus() RunStatus {
	_, passed, failed, _ := r.Counts()
	switch {
	case failed == 0:
		return RunPassed
	case failed > passed || passed == 0:
		return RunFailed
	default:
		return RunWarning
	}
}

// -- Serialized wire shape --
// The JSON consumed by the surrounding platform is flatter than the internal
// model: per-case and per-step success booleans, aggregate counts, and the
// suggestions list duplicated under "recommendations" for older consumers.

type serializedStep struct {
	StepNumber  int        `json:"step_number"`
	Action      StepAction `json:"action"`
	Description string     `json:"description"`
	Success     bool       `json:"success"`
	Status      StepStatus `json:"status"`
	Details     string     `json:"details,omitempty"`
	Error       string     `json:"error,omitempty"`
	DurationMS  int64      `json:"duration_ms"`
}

type serializedCase struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Passed      bool             `json:"passed"`
	Status      StepStatus       `json:"status"`
	DurationMS  int64            `json:"duration_ms"`
	Steps       []serializedStep `json:"steps"`
}

type serializedReport struct {
	AppName              string           `json:"app_name"`
	AppURL               string           `json:"app_url"`
	StartedAt            time.Time        `json:"started_at"`
	FinishedAt           time.Time        `json:"finished_at"`
	TotalDurationSeconds float64          `json:"total_duration_seconds"`
	TotalDuration        string           `json:"total_duration"`
	OverallStatus        RunStatus        `json:"overall_status"`
	AISummary            string           `json:"ai_summary"`
	IssuesFound          []string         `json:"issues_found"`
	Suggestions          []string         `json:"suggestions"`
	Recommendations      []string         `json:"recommendations"`
	TotalTests           int              `json:"total_tests"`
	PassedTests          int              `json:"passed_tests"`
	FailedTests          int              `json:"failed_tests"`
	WarningTests         int              `json:"warning_tests"`
	TestCases            []serializedCase `json:"test_cases"`
	ScreenshotCount      int              `json:"screenshot_count"`
}

// FormatDuration renders a duration the way the report presents it, e.g.
// "42.3s" or "1m 03.5s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := d.Seconds() - float64(mins)*60
	return fmt.Sprintf("%dm %04.1fs", mins, secs)
}

// ToJSON serializes the report into the wire shape. The result is always a
// structurally complete document, even for a report produced by a fatally
// failed run.
func (r *TestReport) ToJSON() ([]byte, error) {
	total, passed, failed, warnings := r.Counts()

	out := serializedReport{
		AppName:              r.AppName,
		AppURL:               r.AppURL,
		StartedAt:            r.StartedAt,
		FinishedAt:           r.FinishedAt,
		TotalDurationSeconds: r.TotalDurationSeconds,
		TotalDuration:        FormatDuration(time.Duration(r.TotalDurationSeconds * float64(time.Second))),
		OverallStatus:        r.OverallStatus,
		AISummary:            r.AISummary,
		IssuesFound:          emptyIfNil(r.IssuesFound),
		Suggestions:          emptyIfNil(r.Suggestions),
		Recommendations:      emptyIfNil(r.Suggestions),
		TotalTests:           total,
		PassedTests:          passed,
		FailedTests:          failed,
		WarningTests:         warnings,
		TestCases:            make([]serializedCase, 0, len(r.TestCases)),
		ScreenshotCount:      len(r.Screenshots),
	}

	for i := range r.TestCases {
		c := &r.TestCases[i]
		status := c.Status()
		sc := serializedCase{
			Name:        c.Name,
			Description: c.Description,
			Passed:      status != StatusFailed,
			Status:      status,
			DurationMS:  c.TotalDurationMS(),
			Steps:       make([]serializedStep, 0, len(c.Steps)),
		}
		for _, s := range c.Steps {
			sc.Steps = append(sc.Steps, serializedStep{
				StepNumber:  s.StepNumber,
				Action:      s.Action,
				Description: s.Description,
				Success:     s.Status == StatusPassed || s.Status == StatusWarning,
				Status:      s.Status,
				Details:     s.AIObservation,
				Error:       s.Error,
				DurationMS:  s.DurationMS,
			})
		}
		out.TestCases = append(out.TestCases, sc)
	}

	return json.MarshalIndent(out, "", "  ")
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
