package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"google.golang.org/genai"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/gemini"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
)

const (
	geminiProviderName   = "gemini"
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultGeminiOCRConf = 0.85
)

const geminiOCRPrompt = `Read every line of text printed on this restaurant menu photo, in reading order.
Answer with a JSON array only. Each element is an object with the fields:
  "text": the line exactly as printed, without translation,
  "confidence": your confidence in the reading between 0 and 1,
  "box": [x1, y1, x2, y2] pixel bounds of the line.
Include prices and section headings as separate lines.`

func init() {
	Register(geminiProviderName, func(ctx context.Context, settings *conf.OCRSettings, deps Deps) (Provider, error) {
		client, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:     settings.Gemini.APIKey,
			HTTPClient: deps.GeminiHTTPClient,
			BaseURL:    deps.GeminiBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return NewGemini(client.Models, settings.Gemini.Model, deps.Log), nil
	})
}

// contentGenerator is the slice of the genai Models service used here
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini reads menu text with a multimodal Gemini model.
type Gemini struct {
	models contentGenerator
	model  string
	log    logger.Logger
}

// NewGemini creates a Gemini OCR provider.
func NewGemini(models contentGenerator, model string, log logger.Logger) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if log == nil {
		log = logger.Global().Module("ocr")
	}
	return &Gemini{models: models, model: model, log: log.With(logger.String("provider", geminiProviderName))}
}

// Name implements Provider.
func (g *Gemini) Name() string { return geminiProviderName }

// Extract implements Provider.
func (g *Gemini) Extract(ctx context.Context, image []byte) ([]menu.TextLine, error) {
	info, err := ValidateImage(image)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: info.MIMEType, Data: image}},
			{Text: geminiOCRPrompt},
		},
	}}
	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		f := gemini.Classify(err)
		if f.Class == errors.ClassPermanent && f.StatusCode == 400 {
			return nil, errors.UnsupportedImage(err.Error())
		}
		return nil, errors.ProviderUnavailable("ocr", geminiProviderName, err)
	}

	text, err := gemini.ResponseText(resp)
	if err != nil {
		return nil, errors.ProviderUnavailable("ocr", geminiProviderName, err)
	}
	lines, err := parseGeminiLines(gemini.StripCodeFence(text))
	if err != nil {
		return nil, errors.ProviderUnavailable("ocr", geminiProviderName, err)
	}
	g.log.Debug("gemini OCR completed",
		logger.String("model", g.model),
		logger.Int("lines", len(lines)),
		logger.Duration("duration", time.Since(start)))
	return lines, nil
}

// parseGeminiLines accepts a bare array or an object with a "lines" array.
func parseGeminiLines(text string) ([]menu.TextLine, error) {
	value, err := jason.NewValueFromBytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("decode model answer: %w", err)
	}
	var items []*jason.Object
	if values, aerr := value.Array(); aerr == nil {
		items = make([]*jason.Object, 0, len(values))
		for i, v := range values {
			item, err := v.Object()
			if err != nil {
				return nil, fmt.Errorf("line %d is not an object: %w", i, err)
			}
			items = append(items, item)
		}
	} else {
		obj, oerr := value.Object()
		if oerr != nil {
			return nil, fmt.Errorf("model answer is not a line list: %w", aerr)
		}
		if items, err = obj.GetObjectArray("lines"); err != nil {
			return nil, fmt.Errorf("model answer has no lines: %w", err)
		}
	}

	lines := make([]menu.TextLine, 0, len(items))
	for _, item := range items {
		text, err := item.GetString("text")
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		confidence := defaultGeminiOCRConf
		if c, err := item.GetFloat64("confidence"); err == nil && c >= 0 && c <= 1 {
			confidence = c
		}
		var box menu.Box
		if coords, err := item.GetFloat64Array("box"); err == nil && len(coords) == 4 {
			box = menu.RectBox(coords[0], coords[1], coords[2]-coords[0], coords[3]-coords[1])
		}
		lines = append(lines, menu.TextLine{Text: text, Confidence: confidence, Box: box})
	}
	return lines, nil
}
