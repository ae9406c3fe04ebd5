// Package menu holds the data model shared by the extraction pipeline and
// the generation layer.
package menu

import "slices"

// Point is a pixel coordinate on the source image.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is the quadrilateral around a text line, clockwise from the top-left corner.
type Box [4]Point

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 {
	minX, maxX := b[0].X, b[0].X
	for _, p := range b[1:] {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
	}
	return maxX - minX
}

// Height returns the vertical extent of the box.
func (b Box) Height() float64 {
	minY, maxY := b[0].Y, b[0].Y
	for _, p := range b[1:] {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	return maxY - minY
}

// RectBox builds an axis-aligned box.
func RectBox(x, y, w, h float64) Box {
	return Box{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
}

// TextLine is one line of recognized text. Values are treated as immutable
// once returned by an OCR provider; translation returns copies.
type TextLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Translated *string `json:"translated,omitempty"`
}

// WithTranslation returns a copy of l carrying translated.
func (l TextLine) WithTranslation(translated string) TextLine {
	l.Translated = &translated
	return l
}

// DetectedLanguage is the dominant language of a menu.
type DetectedLanguage struct {
	Tag        string  `json:"tag"` // BCP 47, "und" when unknown
	Confidence float64 `json:"confidence"`
}

// Undetermined is reported when no script dominates.
var Undetermined = DetectedLanguage{Tag: "und"}

// Dish is a deduplicated menu item.
type Dish struct {
	OriginalName   string  `json:"original_name"`
	DisplayName    string  `json:"display_name"`
	TranslatedName *string `json:"translated_name,omitempty"`
	Confidence     float64 `json:"confidence"`
	SourceLineRefs []int   `json:"source_line_refs"` // indices into the OCR line list, ascending
	Slug           string  `json:"slug"`
}

// Menu is the result of one extraction call.
type Menu struct {
	Dishes       []Dish           `json:"dishes"`
	DetectedLang DetectedLanguage `json:"detected_lang"`
	Lines        []TextLine       `json:"lines,omitempty"`
}

// Clone returns a deep copy so callers can never mutate a shared Menu.
func (m *Menu) Clone() *Menu {
	if m == nil {
		return nil
	}
	out := &Menu{DetectedLang: m.DetectedLang}
	out.Dishes = make([]Dish, len(m.Dishes))
	for i, d := range m.Dishes {
		d.SourceLineRefs = slices.Clone(d.SourceLineRefs)
		if d.TranslatedName != nil {
			name := *d.TranslatedName
			d.TranslatedName = &name
		}
		out.Dishes[i] = d
	}
	out.Lines = make([]TextLine, len(m.Lines))
	for i, l := range m.Lines {
		if l.Translated != nil {
			tr := *l.Translated
			l.Translated = &tr
		}
		out.Lines[i] = l
	}
	return out
}

// Texts returns the raw text of each line, in order.
func Texts(lines []TextLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}
