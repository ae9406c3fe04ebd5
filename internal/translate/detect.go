package translate

import (
	"unicode"

	"golang.org/x/text/language"

	"github.com/tphakala/menulens/internal/menu"
)

// Detector guesses the dominant language of OCR output.
type Detector interface {
	Detect(lines []menu.TextLine) menu.DetectedLanguage
}

// scriptLanguage maps a writing system to the language reported for it.
// Latin is ambiguous and reported as English.
var scriptLanguage = []struct {
	script *unicode.RangeTable
	tag    language.Tag
}{
	{unicode.Han, language.Chinese},
	{unicode.Hiragana, language.Japanese},
	{unicode.Katakana, language.Japanese},
	{unicode.Hangul, language.Korean},
	{unicode.Thai, language.Thai},
	{unicode.Cyrillic, language.Russian},
	{unicode.Arabic, language.Arabic},
	{unicode.Greek, language.Greek},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Devanagari, language.Hindi},
	{unicode.Latin, language.English},
}

// minLetters is the least number of letters needed for a verdict
const minLetters = 2

// ScriptDetector detects language by counting letters per script, weighting
// each line by its OCR confidence. It needs no network and is deterministic.
type ScriptDetector struct{}

// NewScriptDetector returns a ScriptDetector.
func NewScriptDetector() *ScriptDetector { return &ScriptDetector{} }

// Detect implements Detector. Confidence is the weighted share of letters
// belonging to the winning language. Japanese text mixes kana with Han, so
// any kana makes Han count as Japanese; Hangul with Han counts as Korean.
func (d *ScriptDetector) Detect(lines []menu.TextLine) menu.DetectedLanguage {
	weights := make(map[language.Tag]float64)
	var total float64
	var letters int
	var hasKana, hasHangul bool

	for _, l := range lines {
		w := l.Confidence
		if w <= 0 {
			w = 1
		}
		for _, r := range l.Text {
			if !unicode.IsLetter(r) {
				continue
			}
			for _, sl := range scriptLanguage {
				if unicode.Is(sl.script, r) {
					weights[sl.tag] += w
					total += w
					letters++
					switch sl.script {
					case unicode.Hiragana, unicode.Katakana:
						hasKana = true
					case unicode.Hangul:
						hasHangul = true
					}
					break
				}
			}
		}
	}
	if letters < minLetters || total == 0 {
		return menu.Undetermined
	}

	if han := weights[language.Chinese]; han > 0 {
		switch {
		case hasKana:
			weights[language.Japanese] += han
			delete(weights, language.Chinese)
		case hasHangul:
			weights[language.Korean] += han
			delete(weights, language.Chinese)
		}
	}

	// iterate in table order for deterministic tie breaks
	best, bestWeight := language.Und, 0.0
	for _, sl := range scriptLanguage {
		if w := weights[sl.tag]; w > bestWeight {
			best, bestWeight = sl.tag, w
		}
	}
	if best == language.Und {
		return menu.Undetermined
	}
	return menu.DetectedLanguage{Tag: best.String(), Confidence: bestWeight / total}
}

// SameLanguage reports whether two BCP 47 tags share a base language, so
// "zh-Hans" matches "zh" and "en-US" matches "en".
func SameLanguage(a, b string) bool {
	ta, err := language.Parse(a)
	if err != nil {
		return false
	}
	tb, err := language.Parse(b)
	if err != nil {
		return false
	}
	// Base would guess English for und
	if ta == language.Und || tb == language.Und {
		return false
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}
