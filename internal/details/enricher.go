package details

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/menulens/internal/dish"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/observability/metrics"
)

// Defaults used when Config leaves a field unset
const (
	DefaultCacheTTL = 24 * time.Hour
	DefaultMaxBatch = 20
)

// Config configures an Enricher.
type Config struct {
	Provider Provider
	CacheTTL time.Duration
	MaxBatch int // dishes per provider call
	Metrics  *metrics.ExtractionMetrics
	Logger   logger.Logger
}

// Enricher memoizes provider answers by dish slug.
type Enricher struct {
	provider Provider
	cache    *cache.Cache
	maxBatch int
	metrics  *metrics.ExtractionMetrics
	log      logger.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(cfg Config) (*Enricher, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("details enricher requires a provider")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Global().Module("details")
	}
	return &Enricher{
		provider: cfg.Provider,
		cache:    cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
		maxBatch: cfg.MaxBatch,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}, nil
}

// Name reports the provider's name.
func (e *Enricher) Name() string { return e.provider.Name() }

// Len returns the number of memoized dishes.
func (e *Enricher) Len() int { return e.cache.ItemCount() }

// Describe returns the details of one dish.
func (e *Enricher) Describe(ctx context.Context, req Request) (Details, error) {
	out, err := e.DescribeBatch(ctx, []Request{req})
	if err != nil {
		return Details{}, err
	}
	return out[0], nil
}

// DescribeBatch returns details for reqs in order. Dishes already known are
// served from the memo; the rest are sent to the provider, at most MaxBatch
// per call, each slug once.
func (e *Enricher) DescribeBatch(ctx context.Context, reqs []Request) ([]Details, error) {
	resolved := make([]Request, len(reqs))
	for i, req := range reqs {
		r, err := resolve(req)
		if err != nil {
			return nil, err
		}
		resolved[i] = r
	}

	found := make(map[string]Details, len(resolved))
	var missing []Request
	for _, r := range resolved {
		if _, ok := found[r.Slug]; ok {
			continue
		}
		if cached, ok := e.cache.Get(r.Slug); ok {
			found[r.Slug] = cached.(Details)
			continue
		}
		found[r.Slug] = Details{}
		missing = append(missing, r)
	}
	if hits := len(found) - len(missing); hits > 0 {
		e.metrics.RecordDetails(e.provider.Name(), metrics.OutcomeCacheHit, hits, 0)
	}

	for start := 0; start < len(missing); start += e.maxBatch {
		chunk := missing[start:min(start+e.maxBatch, len(missing))]
		described, err := e.call(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for i, d := range described {
			d.normalize()
			d.Slug = chunk[i].Slug
			d.Provider = e.provider.Name()
			e.cache.Set(d.Slug, d, cache.DefaultExpiration)
			found[d.Slug] = d
		}
	}

	out := make([]Details, len(resolved))
	for i, r := range resolved {
		out[i] = found[r.Slug].clone()
	}
	return out, nil
}

func (e *Enricher) call(ctx context.Context, chunk []Request) ([]Details, error) {
	start := time.Now()
	described, err := e.provider.Describe(ctx, chunk)
	if err == nil && len(described) != len(chunk) {
		err = fmt.Errorf("got details for %d dishes, asked for %d", len(described), len(chunk))
	}
	if err != nil {
		e.metrics.RecordDetails(e.provider.Name(), metrics.StatusError, len(chunk), time.Since(start).Seconds())
		e.log.Warn("dish details lookup failed",
			logger.String("provider", e.provider.Name()),
			logger.Int("dishes", len(chunk)),
			logger.Error(err))
		if errors.KindOf(err) != "" {
			return nil, err
		}
		return nil, errors.ProviderUnavailable("details", e.provider.Name(), err)
	}
	e.metrics.RecordDetails(e.provider.Name(), metrics.StatusSuccess, len(chunk), time.Since(start).Seconds())
	e.log.Debug("dish details described",
		logger.String("provider", e.provider.Name()),
		logger.Int("dishes", len(chunk)),
		logger.Duration("duration", time.Since(start)))
	return described, nil
}

// resolve fills the slug and checks that the request names a dish
func resolve(req Request) (Request, error) {
	req.OriginalName = strings.TrimSpace(req.OriginalName)
	req.TranslatedName = strings.TrimSpace(req.TranslatedName)
	req.Pinyin = strings.TrimSpace(req.Pinyin)

	if req.Slug == "" {
		req.Slug = dish.Slug(req.OriginalName)
	}
	if req.Slug == "" || dish.Slug(req.Slug) != req.Slug {
		return Request{}, errors.InvalidRequest("details", fmt.Sprintf("invalid dish slug %q", req.Slug))
	}
	if req.OriginalName == "" && req.TranslatedName == "" {
		req.OriginalName = strings.ReplaceAll(req.Slug, "-", " ")
	}
	return req, nil
}
