package generation

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/observability/metrics"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

// scriptedGenerator returns the queued errors first, then succeeds. When
// gate is set every call blocks until it is closed or ctx is done.
type scriptedGenerator struct {
	mu     sync.Mutex
	errs   []error
	failOn map[string]error // per slug, permanent
	gate   chan struct{}
	calls  atomic.Int64
	slugs  []string
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Generate(ctx context.Context, prompt Prompt) (Image, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.slugs = append(g.slugs, prompt.Slug)
	var err error
	if len(g.errs) > 0 {
		err, g.errs = g.errs[0], g.errs[1:]
	}
	if e, ok := g.failOn[prompt.Slug]; ok {
		err = e
	}
	gate := g.gate
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Image{}, ctx.Err()
		}
	}
	if err != nil {
		return Image{}, err
	}
	return Image{Data: []byte("png:" + prompt.Slug), MIMEType: "image/png"}, nil
}

// memorySink keeps images in memory
type memorySink struct {
	mu     sync.Mutex
	stored map[string][]byte
}

func (s *memorySink) Store(_ context.Context, key Key, img Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		s.stored = make(map[string][]byte)
	}
	s.stored[key.String()] = img.Data
	return "mem://" + key.String(), nil
}

// memoryStore is an in-memory Store
type memoryStore struct {
	mu        sync.Mutex
	artifacts []Artifact
	saveErr   error
	loadErr   error
}

func (s *memoryStore) SaveSucceeded(_ context.Context, a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.artifacts = append(s.artifacts, a)
	return nil
}

func (s *memoryStore) LoadSucceeded(context.Context) ([]Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]Artifact(nil), s.artifacts...), nil
}

func transientErr() error {
	return errors.GenerationFailed(errors.ClassTransient, fmt.Errorf("503 service unavailable"))
}

func permanentErr() error {
	return errors.GenerationFailed(errors.ClassPermanent, fmt.Errorf("400 invalid prompt"))
}

type testEnv struct {
	orch     *Orchestrator
	cache    *Cache
	limiter  *Limiter
	gen      *scriptedGenerator
	sink     *memorySink
	metrics  *metrics.GenerationMetrics
	registry *prometheus.Registry
}

type envOption func(*Config, *LimiterConfig)

func withLimiter(budget int, policy Policy) envOption {
	return func(_ *Config, lc *LimiterConfig) {
		lc.Budget = budget
		lc.Policy = policy
	}
}

func newTestEnv(t *testing.T, gen *scriptedGenerator, opts ...envOption) *testEnv {
	t.Helper()
	registry := prometheus.NewRegistry()
	m, err := metrics.NewGenerationMetrics(registry)
	require.NoError(t, err)

	lc := LimiterConfig{Budget: 1000, Window: time.Minute, Policy: PolicyBlock, MaxWait: time.Second}
	cfg := Config{
		Generator: gen,
		Sink:      &memorySink{},
		Retry: RetryPolicy{
			MaxRetries:     1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     10 * time.Millisecond,
			Multiplier:     2,
		},
		Timeout:      5 * time.Second,
		DefaultStyle: "v1",
		Metrics:      m,
		Logger:       testLogger(),
	}
	for _, o := range opts {
		o(&cfg, &lc)
	}
	cfg.Cache = NewCache(CacheOptions{Metrics: m, Logger: testLogger()})
	cfg.Limiter = NewLimiter(lc, m, testLogger())

	orch, err := NewOrchestrator(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close() })

	return &testEnv{
		orch:     orch,
		cache:    cfg.Cache,
		limiter:  cfg.Limiter,
		gen:      gen,
		sink:     cfg.Sink.(*memorySink),
		metrics:  m,
		registry: registry,
	}
}

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (s *memoryStore) saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.artifacts)
}
