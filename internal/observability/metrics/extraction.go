package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ExtractionMetrics covers the menu extraction pipeline
type ExtractionMetrics struct {
	ocrRequests         *prometheus.CounterVec
	ocrDuration         *prometheus.HistogramVec
	translationRequests *prometheus.CounterVec
	translationDuration prometheus.Histogram
	extractions         *prometheus.CounterVec
	extractionDuration  prometheus.Histogram
	dishesPerMenu       prometheus.Histogram
	detailsRequests     *prometheus.CounterVec
	detailsDuration     prometheus.Histogram
}

// NewExtractionMetrics creates and registers extraction metrics
func NewExtractionMetrics(registry *prometheus.Registry) (*ExtractionMetrics, error) {
	m := &ExtractionMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ExtractionMetrics) initMetrics() {
	m.ocrRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menulens_ocr_requests_total",
			Help: "Total number of OCR calls by provider and status",
		},
		[]string{"provider", "status"},
	)
	m.ocrDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "menulens_ocr_duration_seconds",
			Help:    "Time taken by OCR calls",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12), // 10ms to ~20s
		},
		[]string{"provider"},
	)
	m.translationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menulens_translation_requests_total",
			Help: "Total number of translation calls by provider and status; degraded means the menu was returned untranslated",
		},
		[]string{"provider", "status"},
	)
	m.translationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "menulens_translation_duration_seconds",
		Help:    "Time taken by translation calls",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount14),
	})
	m.extractions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menulens_extractions_total",
			Help: "Total number of menu extractions by status",
		},
		[]string{"status"},
	)
	m.extractionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "menulens_extraction_duration_seconds",
		Help:    "End to end time of menu extractions",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
	})
	m.dishesPerMenu = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "menulens_dishes_per_menu",
		Help:    "Number of dishes found per extracted menu",
		Buckets: []float64{0, 1, 5, 10, 20, 40, 80, 160},
	})
	m.detailsRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menulens_details_requests_total",
			Help: "Total number of dishes looked up for details by provider and status; cache_hit dishes made no provider call",
		},
		[]string{"provider", "status"},
	)
	m.detailsDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "menulens_details_duration_seconds",
		Help:    "Time taken by dish detail provider calls",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
	})
}

func (m *ExtractionMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ocrRequests,
		m.ocrDuration,
		m.translationRequests,
		m.translationDuration,
		m.extractions,
		m.extractionDuration,
		m.dishesPerMenu,
		m.detailsRequests,
		m.detailsDuration,
	}
}

// Describe implements the Collector interface
func (m *ExtractionMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ExtractionMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordOCR records one OCR call
func (m *ExtractionMetrics) RecordOCR(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ocrRequests.WithLabelValues(provider, status).Inc()
	m.ocrDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordTranslation records one translation call
func (m *ExtractionMetrics) RecordTranslation(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.translationRequests.WithLabelValues(provider, status).Inc()
	if status != StatusSkipped {
		m.translationDuration.Observe(seconds)
	}
}

// RecordExtraction records a finished extraction
func (m *ExtractionMetrics) RecordExtraction(status string, dishes int, seconds float64) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(status).Inc()
	m.extractionDuration.Observe(seconds)
	if status == StatusSuccess {
		m.dishesPerMenu.Observe(float64(dishes))
	}
}

// RecordDetails records a detail lookup for dishes. Cache hits are counted
// without a duration.
func (m *ExtractionMetrics) RecordDetails(provider, status string, dishes int, seconds float64) {
	if m == nil {
		return
	}
	m.detailsRequests.WithLabelValues(provider, status).Add(float64(dishes))
	if status != OutcomeCacheHit {
		m.detailsDuration.Observe(seconds)
	}
}
