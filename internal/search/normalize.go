package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a query or phrase for matching: NFC, lower case,
// punctuation stripped, whitespace collapsed. Every channel and every index
// build goes through this, so stored phrases and live queries always compare
// in the same form.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case r == '-' || r == '_':
			// Keep word-internal hyphens so verb-ish phrases survive.
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens splits a normalized string into words.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}
