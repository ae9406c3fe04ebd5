// Package dish turns OCR lines into deduplicated dish candidates.
//
// Everything here is pure: no I/O, no shared state, so results depend only
// on the input lines and the extractor options.
package dish

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// slugSeparator joins the words of a slug
const slugSeparator = "-"

// Slug derives the dedup identity of a dish name. It folds width and case,
// strips diacritics, splits words on whitespace and dashes, drops every
// other rune that is not a letter or digit and joins the words with a hyphen:
//
//	"Kung Pao Chicken", "kung   pao chicken" -> "kung-pao-chicken"
//	"Crème Brûlée!"                          -> "creme-brulee"
//	"Mom's Dan-Dan Noodles"                  -> "moms-dan-dan-noodles"
//	"宫保鸡丁套餐"                              -> "宫保鸡丁套餐"
//
// Slug is a pure function of name. An empty result means the name carries
// no identity and must not be used as a key.
func Slug(name string) string {
	folded := foldForSlug(Normalize(name))

	words := strings.FieldsFunc(folded, isWordBreak)
	kept := words[:0]
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, w)
		if w != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, slugSeparator)
}

// isWordBreak splits on whitespace, dashes and underscores, so a slug
// re-slugs to itself.
func isWordBreak(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(unicode.Pd, r) || r == '_'
}

// foldForSlug applies width folding, NFD, mark removal, NFC and case folding.
// Transformers are stateful so a fresh chain is built per call.
func foldForSlug(s string) string {
	t := transform.Chain(
		width.Fold,
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
		cases.Fold(),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		// transform.String only fails on malformed transformer chains
		return strings.ToLower(s)
	}
	return out
}
