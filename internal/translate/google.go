package translate

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/antonholmquist/jason"
	"github.com/k3a/html2text"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/httpclient"
	"github.com/tphakala/menulens/internal/logger"
)

const (
	googleProviderName    = "google"
	defaultGoogleEndpoint = "https://translation.googleapis.com/language/translate/v2"
	// the v2 API accepts at most 128 segments per request
	googleMaxSegments = 128
)

// Google calls the Cloud Translation v2 REST API with an API key.
type Google struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
	log      logger.Logger
}

// NewGoogle creates a Google translator.
func NewGoogle(settings *conf.GoogleTranslateSettings, client *httpclient.Client, log logger.Logger) (*Google, error) {
	if settings.APIKey == "" {
		return nil, errors.Newf("google translation provider requires an API key").
			Component("translate").
			Category(errors.CategoryConfiguration).
			Build()
	}
	g := &Google{client: client, endpoint: settings.Endpoint, apiKey: settings.APIKey, log: log}
	if g.endpoint == "" {
		g.endpoint = defaultGoogleEndpoint
	}
	if g.client == nil {
		g.client = httpclient.New(nil)
	}
	if g.log == nil {
		g.log = logger.Global().Module("translate")
	}
	return g, nil
}

// Name implements Translator.
func (g *Google) Name() string { return googleProviderName }

// Translate implements Translator.
func (g *Google) Translate(ctx context.Context, texts []string, target string) ([]string, error) {
	out := make([]string, 0, len(texts))
	for start := 0; start < len(texts); start += googleMaxSegments {
		end := min(start+googleMaxSegments, len(texts))
		chunk, err := g.translateChunk(ctx, texts[start:end], target)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (g *Google) translateChunk(ctx context.Context, texts []string, target string) ([]string, error) {
	payload := map[string]any{
		"q":      texts,
		"target": target,
		"format": "text",
	}
	endpoint := g.endpoint + "?" + url.Values{"key": {g.apiKey}}.Encode()

	body, err := g.client.PostJSON(ctx, endpoint, payload)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			g.log.Warn("translation request rejected", logger.Int("status", statusErr.Code))
			return nil, errors.ProviderUnavailable("translate", googleProviderName,
				fmt.Errorf("status %d", statusErr.Code))
		}
		return nil, errors.ProviderUnavailable("translate", googleProviderName,
			errors.NewStd(strings.ReplaceAll(err.Error(), g.apiKey, "[REDACTED]")))
	}

	root, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, errors.ProviderUnavailable("translate", googleProviderName, fmt.Errorf("decode response: %w", err))
	}
	items, err := root.GetObjectArray("data", "translations")
	if err != nil {
		return nil, errors.ProviderUnavailable("translate", googleProviderName, fmt.Errorf("response has no translations: %w", err))
	}
	if len(items) != len(texts) {
		return nil, errors.ProviderUnavailable("translate", googleProviderName,
			fmt.Errorf("got %d translations for %d texts", len(items), len(texts)))
	}

	out := make([]string, len(items))
	for i, item := range items {
		s, err := item.GetString("translatedText")
		if err != nil {
			return nil, errors.ProviderUnavailable("translate", googleProviderName, fmt.Errorf("translation %d: %w", i, err))
		}
		// entities such as &#39; can appear even in text mode
		out[i] = strings.TrimSpace(html2text.HTML2Text(s))
	}
	return out, nil
}
