package generation

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
	"github.com/tphakala/menulens/internal/observability/metrics"
)

const (
	defaultGenerationTimeout = 2 * time.Minute
	defaultWarmConcurrency   = 4
	// dish names learned from extracted menus, used to prompt slug-only requests
	namesTTL = 24 * time.Hour
)

// Config holds the collaborators of an Orchestrator. Cache, Limiter,
// Generator and Sink are required.
type Config struct {
	Cache     *Cache
	Limiter   *Limiter
	Generator Generator
	Sink      Sink
	Prompts   *PromptBuilder
	Retry     RetryPolicy

	// Timeout bounds one generation including retries
	Timeout         time.Duration
	DefaultStyle    string
	WarmConcurrency int

	Metrics *metrics.GenerationMetrics
	Logger  logger.Logger
}

// RequestOptions tune a single Request.
type RequestOptions struct {
	// Force mints a new key epoch so the dish is generated again
	Force bool
	// Name and Translated feed the prompt; unknown names fall back to
	// what was remembered from an extracted menu, then to the slug
	Name       string
	Translated string
}

type dishNames struct {
	name       string
	translated string
}

// Orchestrator services dish image requests: cache hit, join of an
// in-flight generation, or a new generation under the rate budget.
type Orchestrator struct {
	cache       *Cache
	coordinator *Coordinator
	limiter     *Limiter
	generator   Generator
	sink        Sink
	prompts     *PromptBuilder
	retry       RetryPolicy
	timeout     time.Duration
	style       string
	warm        int
	names       *cache.Cache
	metrics     *metrics.GenerationMetrics
	log         logger.Logger

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
	base     context.Context
	stop     context.CancelFunc
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Cache == nil || cfg.Limiter == nil || cfg.Generator == nil || cfg.Sink == nil {
		return nil, errors.Newf("orchestrator requires a cache, limiter, generator and sink").
			Component("generation").
			Category(errors.CategoryConfiguration).
			Build()
	}
	o := &Orchestrator{
		cache:       cfg.Cache,
		coordinator: NewCoordinator(cfg.Cache),
		limiter:     cfg.Limiter,
		generator:   cfg.Generator,
		sink:        cfg.Sink,
		prompts:     cfg.Prompts,
		retry:       cfg.Retry,
		timeout:     cfg.Timeout,
		style:       cfg.DefaultStyle,
		warm:        cfg.WarmConcurrency,
		names:       cache.New(namesTTL, namesTTL*2),
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
	}
	if o.prompts == nil {
		p, err := NewPromptBuilder("", "")
		if err != nil {
			return nil, err
		}
		o.prompts = p
	}
	if o.timeout <= 0 {
		o.timeout = defaultGenerationTimeout
	}
	if o.style == "" {
		o.style = "v1"
	}
	if o.warm < 1 {
		o.warm = defaultWarmConcurrency
	}
	if o.log == nil {
		o.log = logger.Global().Module("generation")
	}
	o.base, o.stop = context.WithCancel(context.Background())
	return o, nil
}

// DefaultStyle is the style version used when a request names none.
func (o *Orchestrator) DefaultStyle() string { return o.style }

// Request returns the artifact for (slug, style), generating it when no
// succeeded record exists. Concurrent requests for the same key share one
// generation. ctx bounds only this caller's wait; once started, a
// generation runs to completion under its own timeout.
func (o *Orchestrator) Request(ctx context.Context, slug, style string, opts RequestOptions) (Artifact, error) {
	if style == "" {
		style = o.style
	}
	var key Key
	if opts.Force {
		key = o.cache.NextEpoch(slug, style)
	} else {
		key = o.cache.CurrentEpoch(slug, style)
	}
	if err := key.Validate(); err != nil {
		return Artifact{}, errors.InvalidRequest("generation", err.Error())
	}

	rec, winner := o.coordinator.Join(key)
	if !winner {
		if rec.Terminal() {
			artifact, err := rec.Outcome()
			o.recordOutcome(metrics.OutcomeCacheHit, err)
			return artifact, err
		}
		o.log.Debug("joining in-flight generation",
			logger.String("key", key.String()),
			logger.Int64("waiters", rec.Waiters()+1))
		artifact, err := o.coordinator.Wait(ctx, rec)
		o.recordOutcome(metrics.OutcomeJoined, err)
		return artifact, err
	}

	name, translated := o.lookupNames(slug, opts)
	prompt, err := o.prompts.Build(key, name, translated)
	if err != nil {
		o.fail(key, err)
		o.recordOutcome(metrics.OutcomeFailed, err)
		return Artifact{}, err
	}
	if !o.start(ctx, key, prompt) {
		o.fail(key, ErrCacheClosed)
	}

	artifact, err := o.coordinator.Wait(ctx, rec)
	o.recordOutcome(metrics.OutcomeGenerated, err)
	return artifact, err
}

// Remember stores the names of a menu's dishes for later prompts.
func (o *Orchestrator) Remember(m *menu.Menu) {
	if m == nil {
		return
	}
	for _, d := range m.Dishes {
		if d.Slug == "" {
			continue
		}
		n := dishNames{name: d.OriginalName}
		if d.TranslatedName != nil {
			n.translated = *d.TranslatedName
		}
		o.names.Set(d.Slug, n, cache.DefaultExpiration)
	}
}

func (o *Orchestrator) lookupNames(slug string, opts RequestOptions) (name, translated string) {
	if opts.Name != "" {
		o.names.Set(slug, dishNames{name: opts.Name, translated: opts.Translated}, cache.DefaultExpiration)
		return opts.Name, opts.Translated
	}
	if v, ok := o.names.Get(slug); ok {
		n := v.(dishNames)
		return n.name, n.translated
	}
	return "", opts.Translated
}

// start launches the generation for a freshly created record. It reports
// false once the orchestrator is closed.
func (o *Orchestrator) start(ctx context.Context, key Key, prompt Prompt) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return false
	}
	o.inflight.Add(1)

	// keep request values such as the trace id, drop the caller's cancellation
	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	go func() {
		defer o.inflight.Done()
		defer cancel()
		stop := context.AfterFunc(o.base, cancel)
		defer stop()
		o.produce(gctx, key, prompt)
	}()
	return true
}

func (o *Orchestrator) produce(ctx context.Context, key Key, prompt Prompt) {
	o.metrics.GenerationStarted()
	defer o.metrics.GenerationFinished()

	start := time.Now()
	artifact, err := o.generate(ctx, key, prompt)
	if err != nil {
		o.log.Warn("dish image generation failed",
			logger.String("key", key.String()),
			logger.String("kind", string(errors.KindOf(err))),
			logger.String("class", string(errors.ClassOf(err))),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		o.fail(key, err)
		return
	}
	if err := o.cache.Complete(key, artifact); err != nil {
		o.log.Error("failed to publish generated image",
			logger.String("key", key.String()),
			logger.Error(err))
		return
	}
	o.log.Info("dish image generated",
		logger.String("key", key.String()),
		logger.String("url", artifact.URL),
		logger.Duration("elapsed", time.Since(start)))
}

// generate takes one permit and calls the generator, retrying transient
// failures per the retry policy. Retries reuse the permit.
func (o *Orchestrator) generate(ctx context.Context, key Key, prompt Prompt) (Artifact, error) {
	permit, err := o.limiter.Acquire(ctx)
	if err != nil {
		return Artifact{}, err
	}
	defer permit.Release()

	for attempt := 0; ; attempt++ {
		callStart := time.Now()
		img, err := o.generator.Generate(ctx, prompt)
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}
		o.metrics.RecordProviderCall(o.generator.Name(), status, time.Since(callStart).Seconds())

		if err == nil {
			url, serr := o.sink.Store(ctx, key, img)
			if serr != nil {
				return Artifact{}, asGenerationFailed(serr)
			}
			return Artifact{
				URL:      url,
				MIMEType: img.MIMEType,
				Provider: o.generator.Name(),
				Prompt:   prompt.Text,
			}, nil
		}

		err = asGenerationFailed(err)
		if classify(err) != errors.ClassTransient || attempt >= o.retry.MaxRetries {
			return Artifact{}, err
		}

		delay := o.retry.Backoff(attempt + 1)
		o.metrics.RecordRetry()
		o.log.Info("retrying transient generation failure",
			logger.String("key", key.String()),
			logger.Int("attempt", attempt+1),
			logger.Duration("delay", delay),
			logger.Error(err))
		if serr := sleep(ctx, delay); serr != nil {
			return Artifact{}, err
		}
	}
}

func (o *Orchestrator) fail(key Key, cause error) {
	if err := o.cache.Fail(key, cause); err != nil && !errors.Is(err, ErrAlreadyTerminal) {
		o.log.Error("failed to record generation failure",
			logger.String("key", key.String()),
			logger.Error(err))
	}
}

func (o *Orchestrator) recordOutcome(success string, err error) {
	switch {
	case err == nil:
		o.metrics.RecordRequest(success)
	case errors.IsKind(err, errors.KindRateLimited):
		o.metrics.RecordRequest(metrics.OutcomeLimited)
	case errors.IsKind(err, errors.KindTimeout):
		o.metrics.RecordRequest(metrics.OutcomeTimeout)
	default:
		o.metrics.RecordRequest(metrics.OutcomeFailed)
	}
}

// WarmResult is the outcome of one dish in WarmMenu.
type WarmResult struct {
	Slug     string
	Artifact Artifact
	Err      error
}

// WarmMenu requests an image for every dish of m with bounded concurrency.
// A failed dish does not stop the others; results follow the dish order.
func (o *Orchestrator) WarmMenu(ctx context.Context, m *menu.Menu, style string) []WarmResult {
	if m == nil {
		return nil
	}
	o.Remember(m)

	results := make([]WarmResult, len(m.Dishes))
	var g errgroup.Group
	g.SetLimit(o.warm)
	for i, d := range m.Dishes {
		opts := RequestOptions{Name: d.OriginalName}
		if d.TranslatedName != nil {
			opts.Translated = *d.TranslatedName
		}
		g.Go(func() error {
			artifact, err := o.Request(ctx, d.Slug, style, opts)
			results[i] = WarmResult{Slug: d.Slug, Artifact: artifact, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Close cancels running generations, waits for them and closes the cache.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.stop()
	o.inflight.Wait()
	return o.cache.Close()
}
