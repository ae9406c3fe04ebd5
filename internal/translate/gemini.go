package translate

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/gemini"
	"github.com/tphakala/menulens/internal/logger"
)

const (
	geminiProviderName = "gemini"
	defaultGeminiModel = "gemini-2.5-flash"
)

const geminiTranslatePrompt = `Translate each restaurant menu line in the JSON array below into the language with BCP 47 tag %q.
Keep dish names natural for a diner, translate prices literally and keep numbers unchanged.
Answer with a JSON array of strings only, with exactly %d elements in the same order.

%s`

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini translates with a Gemini text model.
type Gemini struct {
	models contentGenerator
	model  string
	log    logger.Logger
}

// NewGemini creates a Gemini translator.
func NewGemini(models contentGenerator, model string, log logger.Logger) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if log == nil {
		log = logger.Global().Module("translate")
	}
	return &Gemini{models: models, model: model, log: log}
}

// Name implements Translator.
func (g *Gemini) Name() string { return geminiProviderName }

// Translate implements Translator.
func (g *Gemini) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	input, err := json.Marshal(texts)
	if err != nil {
		return nil, err
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: fmt.Sprintf(geminiTranslatePrompt, target, len(texts), input)}},
	}}
	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, errors.ProviderUnavailable("translate", geminiProviderName, err)
	}
	text, err := gemini.ResponseText(resp)
	if err != nil {
		return nil, errors.ProviderUnavailable("translate", geminiProviderName, err)
	}

	var out []string
	if err := json.Unmarshal([]byte(gemini.StripCodeFence(text)), &out); err != nil {
		return nil, errors.ProviderUnavailable("translate", geminiProviderName, fmt.Errorf("decode model answer: %w", err))
	}
	if len(out) != len(texts) {
		g.log.Warn("model returned wrong number of translations",
			logger.Int("expected", len(texts)),
			logger.Int("got", len(out)))
		return nil, errors.ProviderUnavailable("translate", geminiProviderName,
			fmt.Errorf("got %d translations for %d texts", len(out), len(texts)))
	}
	return out, nil
}
