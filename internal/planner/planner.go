// Package planner produces the ordered TestCase list for a run, either by
// asking the vision model for a plan based on the initial screenshot or by
// normalizing a caller-supplied plan. Planning never fails: every error
// path degrades to a minimal smoke-test plan.
package planner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/vision"
)

const planPrompt = `You are planning an automated visual test for the web application %q.
The screenshot shows the application's landing page.

Propose 3 to 4 test cases as a JSON array:
[{"name": "short name", "description": "what this case verifies",
  "steps": [{"action": "click|type|scroll|verify|wait", "description": "one step"}]}]

Rules:
- Use only the listed actions.
- "type" steps must be phrased as: type 'text' into 'field description'.
- Keep each case to 2-5 steps.
- Only return valid JSON, no markdown.`

// plannedCase mirrors the JSON shape the model is asked for.
type plannedCase struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       []struct {
		Action      string `json:"action"`
		Description string `json:"description"`
	} `json:"steps"`
}

// Planner builds test plans.
type Planner struct {
	vision *vision.Analyzer
	logger *zap.Logger
}

// New creates a Planner.
func New(v *vision.Analyzer, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		vision: v,
		logger: logger.Named("planner"),
	}
}

// Plan asks the model for a test plan based on the initial screenshot. Any
// failure (capability error, malformed JSON, empty result) falls back to
// the minimal default plan.
func (p *Planner) Plan(ctx context.Context, appName string, initialScreenshot []byte) []schemas.TestCase {
	if p.vision == nil {
		return FallbackPlan()
	}

	raw, ok := p.vision.ProposePlan(ctx, initialScreenshot, fmt.Sprintf(planPrompt, appName))
	if !ok {
		p.logger.Warn("Plan proposal unavailable, using fallback plan")
		return FallbackPlan()
	}

	var planned []plannedCase
	if !vision.ExtractJSON(raw, &planned) {
		p.logger.Warn("Plan response was not parseable JSON, using fallback plan")
		return FallbackPlan()
	}

	cases := make([]schemas.TestCase, 0, len(planned))
	for _, pc := range planned {
		if pc.Name == "" || len(pc.Steps) == 0 {
			continue
		}
		tc := schemas.TestCase{
			Name:        pc.Name,
			Description: pc.Description,
		}
		for _, step := range pc.Steps {
			if step.Description == "" {
				continue
			}
			tc.Steps = append(tc.Steps, schemas.TestStep{
				Action:      schemas.StepAction(step.Action),
				Description: step.Description,
			})
		}
		if len(tc.Steps) > 0 {
			cases = append(cases, tc)
		}
	}

	if len(cases) == 0 {
		p.logger.Warn("Plan contained no usable cases, using fallback plan")
		return FallbackPlan()
	}

	normalized := Normalize(cases)
	p.logger.Info("AI plan accepted", zap.Int("cases", len(normalized)))
	return normalized
}

// Normalize prepares a plan (AI-proposed or caller-supplied) for execution:
// unknown actions are coerced to verify, steps get 1-based ordinals, and
// every step starts in the skipped state.
func Normalize(cases []schemas.TestCase) []schemas.TestCase {
	out := make([]schemas.TestCase, 0, len(cases))
	for _, c := range cases {
		if c.Name == "" || len(c.Steps) == 0 {
			continue
		}
		steps := make([]schemas.TestStep, 0, len(c.Steps))
		for i, s := range c.Steps {
			if !schemas.KnownAction(s.Action) {
				s.AIObservation = fmt.Sprintf("unknown action %q coerced to verify", s.Action)
				s.Action = schemas.ActionVerify
			}
			s.StepNumber = i + 1
			s.Status = schemas.StatusSkipped
			steps = append(steps, s)
		}
		c.Steps = steps
		out = append(out, c)
	}
	return out
}

// FallbackPlan is the minimal plan used whenever planning degrades: verify
// the page loads, then scroll down.
func FallbackPlan() []schemas.TestCase {
	return Normalize([]schemas.TestCase{{
		Name:        "Basic page check",
		Description: "Verify the page renders and is scrollable",
		Steps: []schemas.TestStep{
			{Action: schemas.ActionVerify, Description: "page loads"},
			{Action: schemas.ActionScroll, Description: "scroll down"},
		},
	}})
}
