package details

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/gemini"
	"github.com/tphakala/menulens/internal/logger"
)

const (
	geminiProviderName = "gemini"
	defaultGeminiModel = "gemini-2.5-flash"
)

const geminiDetailsPrompt = `Provide concise details for these %d dishes from a restaurant menu.

Dishes:
%s
Answer with a JSON array only, no markdown, with exactly %d objects in the same order, each shaped like:
{
  "cultural_details": "brief background, 1-2 sentences",
  "ingredients": ["main", "ingredients"],
  "spiciness_level": "none, mild, medium, hot or very hot",
  "dietary_info": ["vegetarian", "vegan", "halal", "gluten-free", "contains nuts", ...],
  "regional_origin": "province or region",
  "recommended_pairings": ["pairings"],
  "nutritional_info": "brief overview",
  "pork_alert": "Yes - <which part or product>" or "No",
  "beef_alert": "Yes - <which part or product>" or "No"
}`

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini describes dishes with a Gemini text model.
type Gemini struct {
	models contentGenerator
	model  string
	log    logger.Logger
}

// NewGemini creates a Gemini details provider.
func NewGemini(models contentGenerator, model string, log logger.Logger) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if log == nil {
		log = logger.Global().Module("details")
	}
	return &Gemini{models: models, model: model, log: log}
}

// Name implements Provider.
func (g *Gemini) Name() string { return geminiProviderName }

// Describe implements Provider.
func (g *Gemini) Describe(ctx context.Context, dishes []Request) ([]Details, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildPrompt(dishes)}},
	}}
	temperature := float32(0.2)
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, g.classify(err)
	}
	text, err := gemini.ResponseText(resp)
	if err != nil {
		return nil, errors.ProviderUnavailable("details", geminiProviderName, err)
	}
	out, err := parseDetails(gemini.StripCodeFence(text), len(dishes))
	if err != nil {
		return nil, errors.ProviderUnavailable("details", geminiProviderName, err)
	}
	g.log.Debug("gemini details completed",
		logger.String("model", g.model),
		logger.Int("dishes", len(dishes)),
		logger.Duration("duration", time.Since(start)))
	return out, nil
}

// classify reports every failed call as ProviderUnavailable, logging the
// ones Gemini rejected outright.
func (g *Gemini) classify(err error) error {
	if failure := gemini.Classify(err); failure.Class == errors.ClassPermanent && !failure.Unavailable {
		g.log.Warn("gemini rejected details request",
			logger.Int("status", failure.StatusCode),
			logger.Error(err))
	}
	return errors.ProviderUnavailable("details", geminiProviderName, err)
}

func buildPrompt(dishes []Request) string {
	var list strings.Builder
	for i, d := range dishes {
		fmt.Fprintf(&list, "%d. %s", i+1, d.OriginalName)
		if d.Pinyin != "" {
			fmt.Fprintf(&list, " (%s)", d.Pinyin)
		}
		if d.TranslatedName != "" && d.TranslatedName != d.OriginalName {
			fmt.Fprintf(&list, " - %s", d.TranslatedName)
		}
		list.WriteByte('\n')
	}
	return fmt.Sprintf(geminiDetailsPrompt, len(dishes), list.String(), len(dishes))
}

// parseDetails accepts a bare array, an object with a "details" array, or a
// single object when one dish was asked for.
func parseDetails(text string, want int) ([]Details, error) {
	var out []Details
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		var wrapped struct {
			Details []Details `json:"details"`
		}
		if werr := json.Unmarshal([]byte(text), &wrapped); werr == nil && wrapped.Details != nil {
			out = wrapped.Details
		} else {
			var single Details
			if want != 1 || json.Unmarshal([]byte(text), &single) != nil {
				return nil, fmt.Errorf("decode model answer: %w", err)
			}
			out = []Details{single}
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("got details for %d dishes, asked for %d", len(out), want)
	}
	return out, nil
}
