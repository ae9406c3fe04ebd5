package dish

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tphakala/menulens/internal/menu"
)

// Default heuristic thresholds
const (
	DefaultPriceRatio       = 0.6
	DefaultHeaderWidthRatio = 0.25
	DefaultHeaderConfidence = 0.6
)

// Options tunes the line filters of an Extractor.
type Options struct {
	// PriceRatio is the share of non-space runes that must be price runes
	// for a line to count as a price.
	PriceRatio float64
	// HeaderWidthRatio and HeaderConfidence drive the narrow-header rule:
	// a line narrower than HeaderWidthRatio of the widest line, with no
	// lowercase letters and confidence below HeaderConfidence, is a header.
	HeaderWidthRatio float64
	HeaderConfidence float64
	// MinConfidence drops lines read with lower confidence. Zero keeps all.
	MinConfidence float64
}

// DefaultOptions returns the documented default thresholds.
func DefaultOptions() Options {
	return Options{
		PriceRatio:       DefaultPriceRatio,
		HeaderWidthRatio: DefaultHeaderWidthRatio,
		HeaderConfidence: DefaultHeaderConfidence,
	}
}

// Extractor groups text lines into dishes. The zero value is not usable,
// construct with NewExtractor.
type Extractor struct {
	opts Options
}

// NewExtractor returns an extractor; zero thresholds take their defaults.
func NewExtractor(opts Options) *Extractor {
	if opts.PriceRatio <= 0 {
		opts.PriceRatio = DefaultPriceRatio
	}
	if opts.HeaderWidthRatio <= 0 {
		opts.HeaderWidthRatio = DefaultHeaderWidthRatio
	}
	if opts.HeaderConfidence <= 0 {
		opts.HeaderConfidence = DefaultHeaderConfidence
	}
	return &Extractor{opts: opts}
}

// Extract returns the dishes found in lines, in first-seen order.
//
// Prices and section headers are dropped, the rest is normalized and grouped
// by slug. Each group keeps the text of its most confident line (the earliest
// one on ties), the maximum confidence and the union of line indices.
// Grouping uses the original text only; translations are carried along.
func (e *Extractor) Extract(lines []menu.TextLine) []menu.Dish {
	widest := 0.0
	for _, l := range lines {
		widest = max(widest, l.Box.Width())
	}

	var dishes []menu.Dish
	bySlug := make(map[string]int)
	// confidence of the line currently holding the canonical name
	canonical := make(map[string]float64)

	for i, line := range lines {
		if line.Confidence < e.opts.MinConfidence {
			continue
		}
		text := Normalize(line.Text)
		if text == "" || e.isPrice(text) || e.isHeader(text, line, widest) {
			continue
		}
		slug := Slug(text)
		if slug == "" {
			continue
		}

		idx, seen := bySlug[slug]
		if !seen {
			bySlug[slug] = len(dishes)
			canonical[slug] = line.Confidence
			dishes = append(dishes, menu.Dish{
				OriginalName:   text,
				TranslatedName: cloneTranslation(line.Translated),
				Confidence:     line.Confidence,
				SourceLineRefs: []int{i},
				Slug:           slug,
			})
			continue
		}

		d := &dishes[idx]
		d.SourceLineRefs = append(d.SourceLineRefs, i)
		d.Confidence = max(d.Confidence, line.Confidence)
		if line.Confidence > canonical[slug] {
			canonical[slug] = line.Confidence
			d.OriginalName = text
			if line.Translated != nil {
				d.TranslatedName = cloneTranslation(line.Translated)
			}
		} else if d.TranslatedName == nil {
			d.TranslatedName = cloneTranslation(line.Translated)
		}
	}

	titler := cases.Title(language.Und)
	for i := range dishes {
		dishes[i].DisplayName = titler.String(dishes[i].OriginalName)
		slices.Sort(dishes[i].SourceLineRefs)
	}
	return dishes
}

func cloneTranslation(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

// currencyWords are spelled-out currency markers counted as price runes
var currencyWords = map[string]bool{"kr": true, "rmb": true, "yuan": true, "usd": true, "eur": true}

// isPrice reports whether text consists mostly of digits, currency symbols
// and separators, with at least one digit.
func (e *Extractor) isPrice(text string) bool {
	total, priceRunes, digits := 0, 0, 0
	for _, field := range strings.Fields(text) {
		if currencyWords[strings.ToLower(strings.Trim(field, ".,"))] {
			n := utf8.RuneCountInString(field)
			total += n
			priceRunes += n
			continue
		}
		for _, r := range field {
			total++
			switch {
			case unicode.IsDigit(r):
				digits++
				priceRunes++
			case isCurrency(r), isSeparator(r):
				priceRunes++
			}
		}
	}
	if total == 0 || digits == 0 {
		return false
	}
	return float64(priceRunes)/float64(total) >= e.opts.PriceRatio
}

func isCurrency(r rune) bool {
	switch r {
	case '元', '円', '¥', '圆', '块':
		return true
	}
	return unicode.Is(unicode.Sc, r)
}

func isSeparator(r rune) bool {
	switch r {
	case '.', ',', '·', '-', '–', '/', ':', '～', '~', '+':
		return true
	}
	return false
}

// isHeader applies the all-caps rule (two or more cased letters, all upper)
// and the narrow low-confidence rule. Caseless scripts only match the latter.
func (e *Extractor) isHeader(text string, line menu.TextLine, widest float64) bool {
	cased, upper, lower := 0, 0, 0
	for _, r := range text {
		switch {
		case unicode.IsUpper(r):
			cased++
			upper++
		case unicode.IsLower(r):
			cased++
			lower++
		}
	}

	if cased >= 2 && upper == cased {
		return true
	}

	if widest <= 0 || lower > 0 {
		return false
	}
	narrow := line.Box.Width() < e.opts.HeaderWidthRatio*widest
	return narrow && line.Confidence < e.opts.HeaderConfidence
}
