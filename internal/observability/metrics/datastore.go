package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for database operations
type DatastoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	rowsLoaded        prometheus.Counter
}

// NewDatastoreMetrics creates and registers datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menulens_datastore_operations_total",
			Help: "Total number of datastore operations",
		},
		[]string{"operation", "status"},
	)
	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "menulens_datastore_operation_duration_seconds",
			Help:    "Time taken for datastore operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~2s
		},
		[]string{"operation"},
	)
	m.rowsLoaded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "menulens_datastore_records_loaded_total",
		Help: "Total number of generation records loaded at startup",
	})
}

func (m *DatastoreMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.operationsTotal, m.operationDuration, m.rowsLoaded}
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

// RecordOperation records one datastore operation, e.g. "save" or "load"
func (m *DatastoreMetrics) RecordOperation(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	operation = strings.ToLower(operation)
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordLoaded adds n to the loaded records counter
func (m *DatastoreMetrics) RecordLoaded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsLoaded.Add(float64(n))
}
