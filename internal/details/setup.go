package details

import (
	"context"
	"net/http"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/gemini"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/observability/metrics"
)

// Deps are the shared collaborators for enricher construction.
type Deps struct {
	Metrics *metrics.ExtractionMetrics
	Log     logger.Logger

	// GeminiHTTPClient and GeminiBaseURL redirect the Gemini SDK, used in tests
	GeminiHTTPClient *http.Client
	GeminiBaseURL    string
}

// New builds the configured enricher. Provider "none" returns nil, meaning
// dish details are disabled.
func New(ctx context.Context, settings *conf.DetailsSettings, deps Deps) (*Enricher, error) {
	if deps.Log == nil {
		deps.Log = logger.Global().Module("details")
	}

	var provider Provider
	switch settings.Provider {
	case "none", "":
		return nil, nil
	case "mock":
		provider = NewMock()
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:     settings.Gemini.APIKey,
			HTTPClient: deps.GeminiHTTPClient,
			BaseURL:    deps.GeminiBaseURL,
		})
		if err != nil {
			return nil, err
		}
		provider = NewGemini(client.Models, settings.Gemini.Model, deps.Log)
	default:
		return nil, errors.Newf("unknown details provider %q", settings.Provider).
			Component("details").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return NewEnricher(Config{
		Provider: provider,
		CacheTTL: settings.CacheTTL,
		MaxBatch: settings.MaxBatch,
		Metrics:  deps.Metrics,
		Logger:   deps.Log,
	})
}
