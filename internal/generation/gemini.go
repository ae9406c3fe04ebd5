package generation

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/gemini"
	"github.com/tphakala/menulens/internal/logger"
)

const defaultGeminiImageModel = "gemini-2.5-flash-image"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator asks a Gemini image model for a dish photo.
type GeminiGenerator struct {
	models contentGenerator
	model  string
	log    logger.Logger
}

// NewGeminiGenerator creates a Gemini image generator.
func NewGeminiGenerator(models contentGenerator, model string, log logger.Logger) *GeminiGenerator {
	if model == "" {
		model = defaultGeminiImageModel
	}
	if log == nil {
		log = logger.Global().Module("generation")
	}
	return &GeminiGenerator{models: models, model: model, log: log}
}

// Name implements Generator.
func (g *GeminiGenerator) Name() string { return "gemini" }

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt Prompt) (Image, error) {
	text := prompt.Text
	if prompt.Negative != "" {
		// content models take no separate negative prompt
		text += "\nDo not include: " + prompt.Negative
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: text}},
	}}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		f := gemini.Classify(err)
		g.log.Warn("image generation call failed",
			logger.String("slug", prompt.Slug),
			logger.Int("status", f.StatusCode),
			logger.String("class", string(f.Class)),
			logger.Error(err))
		return Image{}, errors.GenerationFailed(f.Class, err)
	}
	return imageFromResponse(resp)
}

func imageFromResponse(resp *genai.GenerateContentResponse) (Image, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return Image{}, errors.GenerationFailed(errors.ClassPermanent,
				fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
		}
		return Image{}, errors.GenerationFailed(errors.ClassTransient, fmt.Errorf("empty response"))
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return Image{}, errors.GenerationFailed(errors.ClassPermanent, fmt.Errorf("image withheld by safety filter"))
	}
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return Image{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}, nil
			}
		}
	}
	return Image{}, errors.GenerationFailed(errors.ClassPermanent, fmt.Errorf("response has no image data"))
}
