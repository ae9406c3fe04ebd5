// Package details enriches dishes with what a diner wants to know before
// ordering: background, main ingredients, spiciness, dietary notes and
// whether the dish contains pork or beef.
//
// Providers answer for a batch of dishes in one call. The Enricher in front
// of them memoizes answers by dish slug so a menu viewed twice is described
// once.
package details

import (
	"context"
	"slices"
	"strings"
)

// Request names one dish to describe. Slug is derived from OriginalName
// when empty.
type Request struct {
	Slug           string `json:"slug,omitempty"`
	OriginalName   string `json:"original_name"`
	TranslatedName string `json:"translated_name,omitempty"`
	Pinyin         string `json:"pinyin,omitempty"`
}

// Details describes one dish. Empty fields are unknown.
type Details struct {
	Slug                string   `json:"slug"`
	CulturalDetails     string   `json:"cultural_details,omitempty"`
	Ingredients         []string `json:"ingredients,omitempty"`
	SpicinessLevel      string   `json:"spiciness_level,omitempty"`
	DietaryInfo         []string `json:"dietary_info,omitempty"`
	RegionalOrigin      string   `json:"regional_origin,omitempty"`
	RecommendedPairings []string `json:"recommended_pairings,omitempty"`
	NutritionalInfo     string   `json:"nutritional_info,omitempty"`
	PorkAlert           string   `json:"pork_alert,omitempty"`
	BeefAlert           string   `json:"beef_alert,omitempty"`
	Provider            string   `json:"provider"`
}

// Provider describes dishes. The result has the same length and order as
// dishes.
type Provider interface {
	Name() string
	Describe(ctx context.Context, dishes []Request) ([]Details, error)
}

// SpicinessLevels are the accepted spiciness values, mildest first.
var SpicinessLevels = []string{"none", "mild", "medium", "hot", "very hot"}

// normalizeSpiciness maps free-form answers onto SpicinessLevels, "" when
// the value is not one of them.
func normalizeSpiciness(level string) string {
	level = strings.Join(strings.Fields(strings.ToLower(level)), " ")
	if slices.Contains(SpicinessLevels, level) {
		return level
	}
	return ""
}

// cleanList trims entries and drops empty and repeated ones
func cleanList(items []string) []string {
	out := items[:0:0]
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" && !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalize tidies provider answers in place
func (d *Details) normalize() {
	d.CulturalDetails = strings.TrimSpace(d.CulturalDetails)
	d.Ingredients = cleanList(d.Ingredients)
	d.SpicinessLevel = normalizeSpiciness(d.SpicinessLevel)
	d.DietaryInfo = cleanList(d.DietaryInfo)
	d.RegionalOrigin = strings.TrimSpace(d.RegionalOrigin)
	d.RecommendedPairings = cleanList(d.RecommendedPairings)
	d.NutritionalInfo = strings.TrimSpace(d.NutritionalInfo)
	d.PorkAlert = strings.TrimSpace(d.PorkAlert)
	d.BeefAlert = strings.TrimSpace(d.BeefAlert)
}

// clone returns a copy that shares no slices with d
func (d Details) clone() Details {
	d.Ingredients = slices.Clone(d.Ingredients)
	d.DietaryInfo = slices.Clone(d.DietaryInfo)
	d.RecommendedPairings = slices.Clone(d.RecommendedPairings)
	return d
}
