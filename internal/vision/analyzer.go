// Package vision adapts the language model into the judgement calls the
// agent needs: page analysis, locator synthesis, and report summarization.
// Every method degrades instead of failing: a transport error, an empty
// response, or unparseable output yields an explicit "unavailable" result,
// never an error that could abort a run.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/trishajanath/altx-test-agent/api/schemas"
)

const analyzePrompt = `Analyze this webpage screenshot and return a JSON object with this exact shape:
{
  "page_type": "login|search|form|article|dashboard|landing|error|other",
  "elements": [{"type": "button|input|link|text|image", "text": "visible text", "clickable": true}],
  "suggested_actions": ["possible next actions"],
  "observations": "brief description of what is on the page",
  "potential_issues": ["visible rendering or usability problems, empty if none"],
  "overall_quality": "good|acceptable|poor"
}
Only return valid JSON, no markdown.`

const locatorPrompt = `You are given truncated HTML of a live page and a description of one element.
Return a JSON object {"selector": "<css selector>"} identifying that element.
Prefer short, robust selectors (id, name, data attributes, visible structure).
Only return valid JSON, no markdown.

Element description: %s

HTML:
%s`

const summaryPrompt = `You are summarizing an automated visual test run.
Return a JSON object:
{"summary": "2-3 sentence overall assessment", "issues": ["problems worth reporting"], "suggestions": ["improvements worth making"]}
Only return valid JSON, no markdown.

Test outcomes:
%s

Console errors captured during the run:
%s`

// ErrUnavailable marks a judgement that could not be produced from an
// otherwise successful capability call: an empty screenshot or a response
// that was not parseable JSON. Callers degrade on it instead of failing.
var ErrUnavailable = errors.New("vision judgement unavailable")

// Summary is the parsed result of a summarization call.
type Summary struct {
	Summary     string   `json:"summary"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// Analyzer wraps an injected LLM client. It holds no global state.
type Analyzer struct {
	client schemas.LLMClient
	logger *zap.Logger
}

// NewAnalyzer builds an Analyzer around the given client.
func NewAnalyzer(client schemas.LLMClient, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		client: client,
		logger: logger.Named("vision"),
	}
}

// AnalyzePage requests a structured judgement of a screenshot. A returned
// error wrapping ErrUnavailable means the capability degraded (callers
// treat the judgement as missing); any other error is a failed call.
func (a *Analyzer) AnalyzePage(ctx context.Context, imagePNG []byte, pageContext string) (*schemas.VisionAnalysis, error) {
	if len(imagePNG) == 0 {
		a.logger.Debug("AnalyzePage called with empty screenshot")
		return nil, fmt.Errorf("%w: empty screenshot", ErrUnavailable)
	}

	prompt := analyzePrompt
	if pageContext != "" {
		prompt = fmt.Sprintf("Context: %s\n\n%s", pageContext, analyzePrompt)
	}

	raw, err := a.client.Generate(ctx, schemas.GenerationRequest{
		Prompt:   prompt,
		ImagePNG: imagePNG,
	})
	if err != nil {
		a.logger.Warn("Vision analysis call failed", zap.Error(err))
		return nil, fmt.Errorf("vision analysis call failed: %w", err)
	}

	var analysis schemas.VisionAnalysis
	if !ExtractJSON(raw, &analysis) {
		a.logger.Warn("Vision analysis response was not parseable JSON",
			zap.String("raw", truncateForLog(raw)))
		return nil, fmt.Errorf("%w: response was not parseable JSON", ErrUnavailable)
	}
	a.logger.Debug("Vision analysis complete",
		zap.String("page_type", analysis.PageType),
		zap.Int("elements", len(analysis.Elements)),
		zap.Int("potential_issues", len(analysis.PotentialIssues)))
	return &analysis, nil
}

// ProposeLocator asks the model for a CSS selector matching the described
// element within the given (already truncated) markup.
func (a *Analyzer) ProposeLocator(ctx context.Context, markup, description string) (string, bool) {
	raw, err := a.client.Generate(ctx, schemas.GenerationRequest{
		Prompt: fmt.Sprintf(locatorPrompt, description, markup),
	})
	if err != nil {
		a.logger.Debug("Locator synthesis call failed", zap.Error(err))
		return "", false
	}

	var out struct {
		Selector string `json:"selector"`
	}
	if !ExtractJSON(raw, &out) || strings.TrimSpace(out.Selector) == "" {
		a.logger.Debug("Locator synthesis returned no usable selector",
			zap.String("raw", truncateForLog(raw)))
		return "", false
	}
	return strings.TrimSpace(out.Selector), true
}

// ProposePlan requests a test plan for the initial screenshot. The raw
// model output is returned for the planner to parse; ok is false only when
// the capability call itself failed.
func (a *Analyzer) ProposePlan(ctx context.Context, imagePNG []byte, prompt string) (string, bool) {
	raw, err := a.client.Generate(ctx, schemas.GenerationRequest{
		Prompt:   prompt,
		ImagePNG: imagePNG,
	})
	if err != nil {
		a.logger.Warn("Plan proposal call failed", zap.Error(err))
		return "", false
	}
	return raw, true
}

// Summarize asks the model for a closing assessment of the whole run.
func (a *Analyzer) Summarize(ctx context.Context, outcomeDigest string, consoleErrors []string) (*Summary, bool) {
	errText := "none"
	if len(consoleErrors) > 0 {
		errText = strings.Join(consoleErrors, "\n")
	}

	raw, err := a.client.Generate(ctx, schemas.GenerationRequest{
		Prompt: fmt.Sprintf(summaryPrompt, outcomeDigest, errText),
	})
	if err != nil {
		a.logger.Warn("Summarization call failed", zap.Error(err))
		return nil, false
	}

	var summary Summary
	if !ExtractJSON(raw, &summary) || summary.Summary == "" {
		a.logger.Warn("Summarization response was not parseable JSON",
			zap.String("raw", truncateForLog(raw)))
		return nil, false
	}
	return &summary, true
}

func truncateForLog(s string) string {
	const max = 300
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
