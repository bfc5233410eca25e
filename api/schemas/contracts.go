package schemas

import (
	"context"
	"time"
)

// -- Capability and driver contracts --
// Interfaces shared across internal packages live here so that consumers
// (resolver, executor, planner) depend on the contract, not on a concrete
// chromedp session or HTTP client.

// GenerationRequest is a single call to the language model. ImagePNG is
// optional; when present the call is multimodal.
type GenerationRequest struct {
	System      string
	Prompt      string
	ImagePNG    []byte
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// LLMClient abstracts the model provider. Implementations return transport
// and decode problems as errors; callers are expected to map those to a
// degraded-capability default rather than propagating them.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// VisionElement is one element the model reported as visible on the page.
type VisionElement struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Clickable bool   `json:"clickable"`
}

// VisionAnalysis is the fixed-shape judgement returned for a screenshot.
type VisionAnalysis struct {
	PageType         string          `json:"page_type"`
	Elements         []VisionElement `json:"elements"`
	SuggestedActions []string        `json:"suggested_actions"`
	Observations     string          `json:"observations"`
	PotentialIssues  []string        `json:"potential_issues"`
	OverallQuality   string          `json:"overall_quality"`
}

// LocatorKind distinguishes how a locator query is evaluated.
type LocatorKind string

const (
	LocatorCSS   LocatorKind = "css"
	LocatorXPath LocatorKind = "xpath"
)

// Locator identifies one or more live DOM elements.
type Locator struct {
	Query string
	Kind  LocatorKind
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool { return l.Query == "" }

// ScrollDirection for the scroll action.
type ScrollDirection string

const (
	ScrollDown ScrollDirection = "down"
	ScrollUp   ScrollDirection = "up"
)

// BrowserDriver is the per-run browser session contract. One driver is
// exclusively owned by exactly one run. Action methods return booleans and
// swallow engine-level errors; only Start can fail fatally.
type BrowserDriver interface {
	Start(ctx context.Context) error
	Navigate(ctx context.Context, url string, timeout time.Duration) bool
	Screenshot(ctx context.Context, label string) ([]byte, error)
	Click(ctx context.Context, loc Locator, timeout time.Duration) bool
	Type(ctx context.Context, loc Locator, text string) bool
	Scroll(ctx context.Context, dir ScrollDirection, amountPx int) bool

	// Probe reports whether the locator currently matches at least one
	// live element.
	Probe(ctx context.Context, loc Locator) bool

	// HTML returns a snapshot of the current document markup.
	HTML(ctx context.Context) (string, error)

	ConsoleErrors() []string
	Screenshots() []ScreenshotRecord

	// Close is idempotent, safe after a partial Start failure, and never
	// returns an error.
	Close()
}
