package generation

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"text/template"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/gemini"
	"github.com/tphakala/menulens/internal/logger"
)

// Prompt is the input of one generation call.
type Prompt struct {
	Slug       string
	Name       string
	Translated string
	Style      string
	Text       string // rendered prompt template
	Negative   string // content to keep out of the image
}

// Image is a generated picture.
type Image struct {
	Data     []byte
	MIMEType string
}

// Generator performs the external, billed image generation call. Errors
// should be classified with errors.GenerationFailed; unclassified errors
// are treated as permanent unless they are deadline errors.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (Image, error)
}

// PromptBuilder renders the configured prompt template. The template sees
// .Name, .Translated, .Slug and .Style.
type PromptBuilder struct {
	tmpl     *template.Template
	negative string
}

// NewPromptBuilder parses text as a text/template.
func NewPromptBuilder(text, negative string) (*PromptBuilder, error) {
	if strings.TrimSpace(text) == "" {
		text = conf.DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, errors.New(err).
			Component("generation").
			Category(errors.CategoryConfiguration).
			Context("setting", "generation.prompttemplate").
			Build()
	}
	return &PromptBuilder{tmpl: tmpl, negative: negative}, nil
}

// Build renders the prompt for key. An empty name falls back to the slug
// with hyphens turned into spaces.
func (b *PromptBuilder) Build(key Key, name, translated string) (Prompt, error) {
	if strings.TrimSpace(name) == "" {
		name = strings.ReplaceAll(key.Slug, "-", " ")
	}
	p := Prompt{
		Slug:       key.Slug,
		Name:       name,
		Translated: translated,
		Style:      key.Style,
		Negative:   b.negative,
	}
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, p); err != nil {
		return Prompt{}, errors.GenerationFailed(errors.ClassPermanent, err)
	}
	p.Text = strings.TrimSpace(buf.String())
	return p, nil
}

// GeneratorDeps redirect the Gemini SDK, used in tests.
type GeneratorDeps struct {
	Log              logger.Logger
	GeminiHTTPClient *http.Client
	GeminiBaseURL    string
}

// NewGenerator builds the configured generator.
func NewGenerator(ctx context.Context, settings *conf.GenerationSettings, deps GeneratorDeps) (Generator, error) {
	switch settings.Provider {
	case "", "mock":
		return NewMockGenerator(), nil
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:     settings.Gemini.APIKey,
			HTTPClient: deps.GeminiHTTPClient,
			BaseURL:    deps.GeminiBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return NewGeminiGenerator(client.Models, settings.Gemini.Model, deps.Log), nil
	default:
		return nil, errors.Newf("unknown generation provider %q", settings.Provider).
			Component("generation").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
