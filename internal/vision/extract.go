package vision

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON object or array out of a model response and
// unmarshals it into v. Model output is unreliable: it may be fenced in
// markdown, wrapped in prose, or not JSON at all. The return value is an
// explicit success flag; this function never panics and never returns an
// error to the caller.
func ExtractJSON(raw string, v any) bool {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return false
	}

	candidate = stripFences(candidate)

	// Fast path: the whole payload is valid JSON.
	if json.Unmarshal([]byte(candidate), v) == nil {
		return true
	}

	// Slow path: locate the outermost JSON value inside surrounding prose.
	if inner, ok := sliceOutermost(candidate); ok {
		return json.Unmarshal([]byte(inner), v) == nil
	}
	return false
}

// stripFences removes a leading/trailing markdown code fence, with or
// without a language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag line, e.g. "json".
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}[]") {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// sliceOutermost returns the substring spanning the first opening brace or
// bracket to its matching closer, tracking string literals so braces inside
// quoted text do not confuse the balance.
func sliceOutermost(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}

	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
