package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GenerationMetrics covers the generation cache, dedup and rate limiter
type GenerationMetrics struct {
	requests          *prometheus.CounterVec
	providerCalls     *prometheus.CounterVec
	providerDuration  prometheus.Histogram
	retries           prometheus.Counter
	permitsGranted    prometheus.Counter
	permitsRejected   prometheus.Counter
	permitWait        prometheus.Histogram
	cacheRecords      prometheus.Gauge
	inFlight          prometheus.Gauge
	persistenceErrors prometheus.Counter
}

// NewGenerationMetrics creates and registers generation metrics
func NewGenerationMetrics(registry *prometheus.Registry) (*GenerationMetrics, error) {
	m := &GenerationMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *GenerationMetrics) initMetrics() {
	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menulens_generation_requests_total",
			Help: "Total number of generation requests by outcome: generated, cache_hit, joined, failed, rate_limited, timeout",
		},
		[]string{"outcome"},
	)
	m.providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menulens_generation_provider_calls_total",
			Help: "Total number of external generation calls by provider and status",
		},
		[]string{"provider", "status"},
	)
	m.providerDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "menulens_generation_provider_duration_seconds",
		Help:    "Time taken by external generation calls",
		Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12), // 100ms to ~200s
	})
	m.retries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "menulens_generation_retries_total",
		Help: "Total number of retries after transient generation failures",
	})
	m.permitsGranted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "menulens_ratelimit_permits_granted_total",
		Help: "Total number of generation permits granted",
	})
	m.permitsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "menulens_ratelimit_permits_rejected_total",
		Help: "Total number of permit requests rejected because the budget was exhausted",
	})
	m.permitWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "menulens_ratelimit_wait_seconds",
		Help:    "Time spent waiting for a generation permit",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount14),
	})
	m.cacheRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "menulens_generation_cache_records",
		Help: "Number of records held by the generation cache",
	})
	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "menulens_generation_in_flight",
		Help: "Number of generations currently running",
	})
	m.persistenceErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "menulens_generation_persistence_errors_total",
		Help: "Total number of failures writing succeeded records to the datastore",
	})
}

func (m *GenerationMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.providerCalls,
		m.providerDuration,
		m.retries,
		m.permitsGranted,
		m.permitsRejected,
		m.permitWait,
		m.cacheRecords,
		m.inFlight,
		m.persistenceErrors,
	}
}

// Describe implements the Collector interface
func (m *GenerationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *GenerationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordRequest records the outcome of one generation request
func (m *GenerationMetrics) RecordRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// RecordProviderCall records one external generation call
func (m *GenerationMetrics) RecordProviderCall(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, status).Inc()
	m.providerDuration.Observe(seconds)
}

// RecordRetry counts a retry
func (m *GenerationMetrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// RecordPermit records a permit decision and the time spent waiting for it
func (m *GenerationMetrics) RecordPermit(granted bool, waitSeconds float64) {
	if m == nil {
		return
	}
	if granted {
		m.permitsGranted.Inc()
	} else {
		m.permitsRejected.Inc()
	}
	m.permitWait.Observe(waitSeconds)
}

// SetCacheRecords updates the cache size gauge
func (m *GenerationMetrics) SetCacheRecords(n int) {
	if m == nil {
		return
	}
	m.cacheRecords.Set(float64(n))
}

// GenerationStarted increments the in-flight gauge
func (m *GenerationMetrics) GenerationStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// GenerationFinished decrements the in-flight gauge
func (m *GenerationMetrics) GenerationFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

// RecordPersistenceError counts a failed datastore write
func (m *GenerationMetrics) RecordPersistenceError() {
	if m == nil {
		return
	}
	m.persistenceErrors.Inc()
}
