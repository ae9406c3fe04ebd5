package generation

import (
	"context"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/observability/metrics"
)

// NewFromSettings wires cache, limiter, generator, sink and prompts from
// settings and reloads persisted artifacts. store may be nil.
func NewFromSettings(ctx context.Context, settings *conf.GenerationSettings, store Store, m *metrics.GenerationMetrics, deps GeneratorDeps) (*Orchestrator, error) {
	log := deps.Log
	if log == nil {
		log = logger.Global().Module("generation")
		deps.Log = log
	}

	gen, err := NewGenerator(ctx, settings, deps)
	if err != nil {
		return nil, err
	}
	sink, err := NewFileSink(settings.Artifacts.Dir, settings.Artifacts.BaseURL)
	if err != nil {
		return nil, err
	}
	prompts, err := NewPromptBuilder(settings.PromptTemplate, settings.NegativePrompt)
	if err != nil {
		return nil, err
	}

	c := NewCache(CacheOptions{Store: store, Metrics: m, Logger: log})
	if _, err := c.Warm(ctx); err != nil {
		// a cold cache only costs regenerations
		log.Warn("starting with an empty generation cache", logger.Error(err))
	}

	rl := settings.RateLimit
	limiter := NewLimiter(LimiterConfig{
		Budget:        rl.Budget,
		Window:        rl.Window,
		Policy:        Policy(rl.Policy),
		MaxWait:       rl.MaxWait,
		MaxConcurrent: rl.MaxConcurrent,
	}, m, log)

	return NewOrchestrator(Config{
		Cache:     c,
		Limiter:   limiter,
		Generator: gen,
		Sink:      sink,
		Prompts:   prompts,
		Retry: RetryPolicy{
			MaxRetries:     settings.Retry.MaxRetries,
			InitialBackoff: settings.Retry.InitialBackoff,
			MaxBackoff:     settings.Retry.MaxBackoff,
			Multiplier:     settings.Retry.Multiplier,
		},
		Timeout:         settings.Timeout,
		DefaultStyle:    settings.StyleVersion,
		WarmConcurrency: settings.WarmConcurrency,
		Metrics:         m,
		Logger:          log,
	})
}
