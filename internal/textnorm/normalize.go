package textnorm

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes text for comparison: lowercase, whitespace runs
// collapsed to a single space, leading/trailing space trimmed. Idempotent.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// NormalizeToken canonicalizes a single word for token-level comparison.
// In addition to Normalize it strips every non-alphanumeric character, so
// punctuation attached by the PDF text layer cannot block a match.
func NormalizeToken(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range strings.ToLower(word) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fields normalizes text and splits it into cleaned tokens. Tokens that are
// empty after stripping (pure punctuation) are dropped.
func Fields(text string) []string {
	raw := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		if t := NormalizeToken(w); t != "" {
			out = append(out, t)
		}
	}
	return out
}
