package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/details"
	"github.com/tphakala/menulens/internal/generation"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/observability"
	"github.com/tphakala/menulens/internal/ocr"
	"github.com/tphakala/menulens/internal/pipeline"
	"github.com/tphakala/menulens/internal/translate"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := range 32 {
		for y := range 32 {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dataURL(t *testing.T) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngImage(t))
}

type testServer struct {
	server  *Server
	metrics *observability.Metrics
	gen     *generation.MockGenerator
	orch    *generation.Orchestrator
	details *details.Enricher
}

type serverOptions struct {
	limiter   generation.LimiterConfig
	checks    map[string]HealthCheck
	noImage   bool
	noDetails bool
	maxBatch  int
}

func newTestServer(t *testing.T, so serverOptions) *testServer {
	t.Helper()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	p, err := pipeline.New(pipeline.Config{
		OCR:        ocr.NewMock(),
		Translator: translate.NewDictionary(),
		Metrics:    m.Extraction,
		Logger:     testLogger(),
	})
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Generation.Artifacts.Dir = t.TempDir()
	settings.Generation.Artifacts.BaseURL = "/artifacts"
	settings.WebServer.MaxBatchDishes = so.maxBatch

	ts := &testServer{metrics: m}
	opts := []ServerOption{
		WithLogger(testLogger()),
		WithExtractor(p),
		WithMetrics(m),
	}
	if !so.noImage {
		sink, err := generation.NewFileSink(settings.Generation.Artifacts.Dir, settings.Generation.Artifacts.BaseURL)
		require.NoError(t, err)
		if so.limiter.Budget == 0 {
			so.limiter = generation.LimiterConfig{Budget: 1000, Window: time.Minute}
		}
		ts.gen = generation.NewMockGenerator()
		ts.orch, err = generation.NewOrchestrator(generation.Config{
			Cache:     generation.NewCache(generation.CacheOptions{Metrics: m.Generation, Logger: testLogger()}),
			Limiter:   generation.NewLimiter(so.limiter, m.Generation, testLogger()),
			Generator: ts.gen,
			Sink:      sink,
			Retry:     generation.RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond},
			Metrics:   m.Generation,
			Logger:    testLogger(),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = ts.orch.Close() })
		opts = append(opts, WithDishImages(ts.orch))
	}
	if !so.noDetails {
		ts.details, err = details.NewEnricher(details.Config{Provider: details.NewMock(), Logger: testLogger()})
		require.NoError(t, err)
		opts = append(opts, WithDishDetails(ts.details), WithTranslator(translate.NewDictionary()))
	}
	for name, check := range so.checks {
		opts = append(opts, WithHealthCheck(name, check))
	}

	ts.server, err = New(settings, opts...)
	require.NoError(t, err)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.Echo().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}
