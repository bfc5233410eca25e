package resolver

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/trishajanath/altx-test-agent/api/schemas"
)

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

// heuristicCandidates builds the deterministic fallback ladder for a
// description. Order matters: exact visible text first, then button with
// text, then link with text.
func heuristicCandidates(description string) []schemas.Locator {
	exact := xpathLiteral(description)
	loweredContains := fmt.Sprintf(
		"contains(translate(normalize-space(.), '%s', '%s'), %s)",
		upperAlpha, lowerAlpha, xpathLiteral(strings.ToLower(description)))

	return []schemas.Locator{
		{
			Kind:  schemas.LocatorXPath,
			Query: fmt.Sprintf("//*[normalize-space(text())=%s]", exact),
		},
		{
			Kind: schemas.LocatorXPath,
			Query: fmt.Sprintf("//button[%s] | //input[(@type='submit' or @type='button') and contains(translate(@value, '%s', '%s'), %s)]",
				loweredContains, upperAlpha, lowerAlpha, xpathLiteral(strings.ToLower(description))),
		},
		{
			Kind:  schemas.LocatorXPath,
			Query: fmt.Sprintf("//a[%s]", loweredContains),
		},
	}
}

// matchesSnapshot pre-screens an XPath candidate against the parsed markup
// snapshot, so obviously hopeless queries never hit the live page.
func matchesSnapshot(doc *html.Node, xpath string) bool {
	nodes, err := htmlquery.QueryAll(doc, xpath)
	if err != nil {
		return false
	}
	return len(nodes) > 0
}

// xpathLiteral quotes an arbitrary string as an XPath string literal.
// XPath 1.0 has no escape syntax, so strings containing both quote kinds
// are assembled with concat().
func xpathLiteral(s string) string {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	default:
		parts := strings.Split(s, "'")
		quoted := make([]string, 0, len(parts)*2)
		for i, p := range parts {
			if i > 0 {
				quoted = append(quoted, `"'"`)
			}
			quoted = append(quoted, "'"+p+"'")
		}
		return "concat(" + strings.Join(quoted, ", ") + ")"
	}
}
