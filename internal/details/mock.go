package details

import "context"

// mockDetails covers the dishes of the built-in mock menu plus a few
// common ones, keyed by original name.
var mockDetails = map[string]Details{
	"宫保鸡丁套餐": {
		CulturalDetails:     "A Sichuan classic named after Ding Baozhen, a Qing dynasty governor, served here as a set meal with rice.",
		Ingredients:         []string{"chicken", "peanuts", "dried chili", "Sichuan pepper", "scallion"},
		SpicinessLevel:      "medium",
		DietaryInfo:         []string{"contains nuts", "dairy-free"},
		RegionalOrigin:      "Sichuan",
		RecommendedPairings: []string{"steamed rice", "jasmine tea"},
		NutritionalInfo:     "high protein",
		PorkAlert:           "No",
		BeefAlert:           "No",
	},
	"鱼香肉丝套餐": {
		CulturalDetails:     "Fish-fragrant sauce borrows the seasonings of Sichuan fish cooking, although the dish contains no fish.",
		Ingredients:         []string{"pork", "wood ear mushroom", "bamboo shoots", "pickled chili", "garlic"},
		SpicinessLevel:      "medium",
		DietaryInfo:         []string{"dairy-free"},
		RegionalOrigin:      "Sichuan",
		RecommendedPairings: []string{"steamed rice"},
		NutritionalInfo:     "protein with a sweet and sour sauce",
		PorkAlert:           "Yes - shredded pork",
		BeefAlert:           "No",
	},
	"花生豆腐汤": {
		CulturalDetails:     "A light home-style soup of tofu simmered with peanuts.",
		Ingredients:         []string{"tofu", "peanuts", "scallion"},
		SpicinessLevel:      "none",
		DietaryInfo:         []string{"vegetarian", "contains nuts"},
		RegionalOrigin:      "Southern China",
		RecommendedPairings: []string{"steamed rice"},
		NutritionalInfo:     "plant protein, low fat",
		PorkAlert:           "No",
		BeefAlert:           "No",
	},
	"花蛤豆腐汤": {
		CulturalDetails:     "A coastal soup where clams give the broth its sweetness.",
		Ingredients:         []string{"clams", "tofu", "ginger", "scallion"},
		SpicinessLevel:      "none",
		DietaryInfo:         []string{"contains shellfish", "dairy-free"},
		RegionalOrigin:      "Fujian",
		RecommendedPairings: []string{"steamed rice"},
		NutritionalInfo:     "high protein, low fat",
		PorkAlert:           "No",
		BeefAlert:           "No",
	},
	"麻婆豆腐": {
		CulturalDetails:     "Created in Chengdu in the 19th century and named after the pockmarked woman who first sold it.",
		Ingredients:         []string{"tofu", "minced beef", "doubanjiang", "Sichuan pepper", "chili oil"},
		SpicinessLevel:      "hot",
		DietaryInfo:         []string{"dairy-free"},
		RegionalOrigin:      "Sichuan",
		RecommendedPairings: []string{"steamed rice"},
		NutritionalInfo:     "high protein",
		PorkAlert:           "No",
		BeefAlert:           "Yes - minced beef",
	},
}

// Mock describes dishes from a small built-in table. Unknown dishes get
// empty details.
type Mock struct{}

// NewMock returns the built-in mock provider.
func NewMock() *Mock { return &Mock{} }

// Name implements Provider.
func (m *Mock) Name() string { return "mock" }

// Describe implements Provider.
func (m *Mock) Describe(ctx context.Context, dishes []Request) ([]Details, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Details, len(dishes))
	for i, d := range dishes {
		if known, ok := mockDetails[d.OriginalName]; ok {
			out[i] = known.clone()
		}
	}
	return out, nil
}
