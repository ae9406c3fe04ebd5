package dish

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// strippable matches control and format characters, surrogates, private use
// runes, emoji and other pictographic symbols.
var strippable = runes.Predicate(func(r rune) bool {
	switch {
	case r == '\uFE0E' || r == '\uFE0F': // variation selectors
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	case unicode.In(r, unicode.Cc, unicode.Cf, unicode.Cs, unicode.Co, unicode.So):
		return !unicode.IsSpace(r)
	}
	return false
})

// Normalize trims text, collapses whitespace runs into single spaces and
// removes emoji and control characters. Output is NFC.
func Normalize(text string) string {
	t := transform.Chain(norm.NFC, runes.Remove(strippable))
	cleaned, _, err := transform.String(t, text)
	if err != nil {
		cleaned = text
	}
	return strings.Join(strings.Fields(cleaned), " ")
}
