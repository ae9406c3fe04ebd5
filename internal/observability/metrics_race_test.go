package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/observability/metrics"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// without causing race conditions
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for range numGoroutines {
		go func() {
			defer wg.Done()

			m, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}
			if m.registry == nil {
				t.Error("metrics.registry is nil")
			}
			if m.Extraction == nil {
				t.Error("metrics.Extraction is nil")
			}
			if m.Generation == nil {
				t.Error("metrics.Generation is nil")
			}
			if m.HTTP == nil {
				t.Error("metrics.HTTP is nil")
			}
		}()
	}

	wg.Wait()
}

// TestMetricsRecordConcurrently hammers one instance from many goroutines
func TestMetricsRecordConcurrently(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	const numGoroutines = 20
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for range numGoroutines {
		go func() {
			defer wg.Done()
			m.Extraction.RecordOCR("mock", metrics.StatusSuccess, 0.01)
			m.Generation.RecordRequest(metrics.OutcomeJoined)
			m.HTTP.RequestStarted()
			m.HTTP.RequestFinished()
		}()
	}
	wg.Wait()

	assert.InDelta(t, 0, m.HTTP.InFlight(), 0)
}

func TestMetricsHandler(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.Generation.RecordRequest(metrics.OutcomeGenerated)

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `menulens_generation_requests_total{outcome="generated"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
