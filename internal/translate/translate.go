// Package translate detects the language of OCR output and translates menu
// lines.
//
// Translators are selected by name at process start. Translation failures
// are reported as ProviderUnavailable so the pipeline can degrade to
// untranslated dishes.
package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/gemini"
	"github.com/tphakala/menulens/internal/httpclient"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
)

// Translator translates a batch of strings. The result has the same length
// and order as texts.
type Translator interface {
	Name() string
	Translate(ctx context.Context, texts []string, target string) ([]string, error)
}

// Deps are the shared collaborators for translator construction.
type Deps struct {
	HTTP *httpclient.Client
	Log  logger.Logger

	// GeminiHTTPClient and GeminiBaseURL redirect the Gemini SDK, used in tests
	GeminiHTTPClient *http.Client
	GeminiBaseURL    string
}

// New builds the configured translator wrapped in a TTL memo. Provider
// "none" returns a nil Translator, meaning translation is disabled.
func New(ctx context.Context, settings *conf.TranslateSettings, deps Deps) (Translator, error) {
	if deps.Log == nil {
		deps.Log = logger.Global().Module("translate")
	}
	if deps.HTTP == nil {
		deps.HTTP = httpclient.New(nil)
	}

	var (
		tr  Translator
		err error
	)
	switch settings.Provider {
	case "none", "":
		return nil, nil
	case "dictionary":
		d := NewDictionary()
		if settings.DictionaryPath != "" {
			if err := d.LoadGlossaryFile(settings.DictionaryPath); err != nil {
				return nil, err
			}
		}
		// lookups are already cheap
		return d, nil
	case "google":
		tr, err = NewGoogle(&settings.Google, deps.HTTP, deps.Log)
	case "gemini":
		client, cerr := gemini.NewClient(ctx, gemini.Options{
			APIKey:     settings.Gemini.APIKey,
			HTTPClient: deps.GeminiHTTPClient,
			BaseURL:    deps.GeminiBaseURL,
		})
		if cerr != nil {
			return nil, cerr
		}
		tr = NewGemini(client.Models, settings.Gemini.Model, deps.Log)
	default:
		return nil, errors.Newf("unknown translation provider %q", settings.Provider).
			Component("translate").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}
	return NewCached(tr, settings.CacheTTL), nil
}

// TranslateLines returns copies of lines with Translated set. The source
// text is always Text, never a previous translation, so translating the
// result again with the same target re-derives the same values. Duplicate
// texts are sent once. lines is not modified.
func TranslateLines(ctx context.Context, tr Translator, lines []menu.TextLine, target string) ([]menu.TextLine, error) {
	out := make([]menu.TextLine, len(lines))
	copy(out, lines)
	if len(lines) == 0 {
		return out, nil
	}

	index := make(map[string]int)
	var unique []string
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		if _, ok := index[text]; !ok {
			index[text] = len(unique)
			unique = append(unique, text)
		}
	}
	if len(unique) == 0 {
		return out, nil
	}

	translated, err := tr.Translate(ctx, unique, target)
	if err != nil {
		return nil, unavailable(tr.Name(), err)
	}
	if len(translated) != len(unique) {
		return nil, errors.ProviderUnavailable("translate", tr.Name(),
			fmt.Errorf("got %d translations for %d texts", len(translated), len(unique)))
	}

	for i, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			out[i].Translated = nil
			continue
		}
		out[i] = l.WithTranslation(translated[index[text]])
	}
	return out, nil
}

// unavailable classifies a translator error as ProviderUnavailable unless it
// already carries a kind.
func unavailable(provider string, err error) error {
	if errors.KindOf(err) != "" {
		return err
	}
	return errors.ProviderUnavailable("translate", provider, err)
}
