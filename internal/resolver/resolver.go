// Package resolver turns a natural-language element description into a live
// DOM locator. Resolution is layered: an AI-synthesized CSS selector is
// tried first, then a fixed ladder of deterministic text heuristics. A
// failed resolution is an ordinary "not found" result, never an error.
package resolver

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/trishajanath/altx-test-agent/api/schemas"
	"github.com/trishajanath/altx-test-agent/internal/vision"
)

// maxMarkupBytes caps the markup passed to the model. Pages routinely carry
// megabytes of markup; the selector almost always lives near the top.
const maxMarkupBytes = 20000

// Resolver resolves element descriptions against one browser session.
type Resolver struct {
	vision *vision.Analyzer
	logger *zap.Logger
}

// New creates a Resolver. The vision analyzer may be nil, in which case
// only the heuristic tiers run.
func New(v *vision.Analyzer, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		vision: v,
		logger: logger.Named("resolver"),
	}
}

// Resolve finds a live locator for the description. First match wins:
// AI-synthesized selector (accepted only if it matches a live element),
// then exact visible text, button with text, link with text.
func (r *Resolver) Resolve(ctx context.Context, driver schemas.BrowserDriver, description string) (schemas.Locator, bool) {
	description = strings.TrimSpace(strings.Trim(strings.TrimSpace(description), `'"`))
	if description == "" {
		return schemas.Locator{}, false
	}
	log := r.logger.With(zap.String("description", description))

	markup, err := driver.HTML(ctx)
	if err != nil {
		log.Debug("Markup snapshot unavailable, proceeding with live probes only", zap.Error(err))
		markup = ""
	}

	// Parse the snapshot once; heuristic candidates are pre-screened
	// against it before touching the live page.
	var snapshot *html.Node
	if markup != "" {
		if doc, parseErr := htmlquery.Parse(strings.NewReader(markup)); parseErr == nil {
			snapshot = doc
		}
	}

	// Tier 1: AI-synthesized CSS selector, validated against the live DOM.
	if r.vision != nil && markup != "" {
		if sel, ok := r.vision.ProposeLocator(ctx, SanitizeMarkup(markup, maxMarkupBytes), description); ok {
			loc := schemas.Locator{Query: sel, Kind: schemas.LocatorCSS}
			if driver.Probe(ctx, loc) {
				log.Debug("Resolved via AI selector", zap.String("selector", sel))
				return loc, true
			}
			log.Debug("AI selector matched nothing live, falling back", zap.String("selector", sel))
		}
	}

	// Tier 2: deterministic heuristics, in fixed order.
	for _, candidate := range heuristicCandidates(description) {
		if snapshot != nil && !matchesSnapshot(snapshot, candidate.Query) {
			continue
		}
		if driver.Probe(ctx, candidate) {
			log.Debug("Resolved via heuristic", zap.String("xpath", candidate.Query))
			return candidate, true
		}
	}

	log.Debug("Element not found")
	return schemas.Locator{}, false
}

// SanitizeMarkup strips non-content elements from the document and caps its
// size, producing a snippet small enough for a model prompt.
func SanitizeMarkup(markup string, maxBytes int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return truncateBytes(markup, maxBytes)
	}
	doc.Find("script, style, noscript, svg, link, meta").Remove()

	body, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(body) == "" {
		return truncateBytes(markup, maxBytes)
	}
	return truncateBytes(strings.TrimSpace(body), maxBytes)
}

func truncateBytes(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	// Do not split a multi-byte rune.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
