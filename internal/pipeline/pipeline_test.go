package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
	"github.com/tphakala/menulens/internal/observability/metrics"
	"github.com/tphakala/menulens/internal/ocr"
	"github.com/tphakala/menulens/internal/translate"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

type failingOCR struct{ err error }

func (f failingOCR) Name() string { return "failing" }

func (f failingOCR) Extract(context.Context, []byte) ([]menu.TextLine, error) { return nil, f.err }

type failingTranslator struct{ calls int }

func (f *failingTranslator) Name() string { return "failing" }

func (f *failingTranslator) Translate(context.Context, []string, string) ([]string, error) {
	f.calls++
	return nil, errors.ProviderUnavailable("translate", "failing", fmt.Errorf("connection refused"))
}

type upperTranslator struct{ calls int }

func (u *upperTranslator) Name() string { return "upper" }

func (u *upperTranslator) Translate(_ context.Context, texts []string, _ string) ([]string, error) {
	u.calls++
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = strings.ToUpper(s)
	}
	return out, nil
}

func newMetrics(t *testing.T) *metrics.ExtractionMetrics {
	t.Helper()
	m, err := metrics.NewExtractionMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func dishNames(m *menu.Menu) []string {
	out := make([]string, len(m.Dishes))
	for i, d := range m.Dishes {
		out[i] = d.OriginalName
	}
	return out
}

func TestExtractMockMenuWithDictionary(t *testing.T) {
	t.Parallel()

	p, err := New(Config{
		OCR:        &ocr.Mock{SkipValidation: true},
		Translator: translate.NewDictionary(),
		Logger:     testLogger(),
	})
	require.NoError(t, err)

	result, err := p.Extract(t.Context(), []byte("image"), "en")
	require.NoError(t, err)

	assert.Equal(t, "zh", result.DetectedLang.Tag)
	// prices dropped, duplicated section lines merged
	assert.ElementsMatch(t,
		[]string{"凉菜", "花生豆腐汤", "鱼香肉丝套餐", "宫保鸡丁套餐", "汤类", "花蛤豆腐汤"},
		dishNames(result))
	for _, d := range result.Dishes {
		assert.NotEqual(t, "8元", d.OriginalName)
		assert.NotEmpty(t, d.Slug)
	}
	var kungPao *menu.Dish
	for i := range result.Dishes {
		if result.Dishes[i].OriginalName == "宫保鸡丁套餐" {
			kungPao = &result.Dishes[i]
		}
	}
	require.NotNil(t, kungPao)
	require.NotNil(t, kungPao.TranslatedName)
	assert.Equal(t, "Kung Pao Chicken Set", *kungPao.TranslatedName)
	assert.Empty(t, result.Lines)
}

func TestExtractOCRFailureAborts(t *testing.T) {
	t.Parallel()

	m := newMetrics(t)
	p, err := New(Config{
		OCR:     failingOCR{err: errors.UnsupportedImage("empty image")},
		Metrics: m,
		Logger:  testLogger(),
	})
	require.NoError(t, err)

	result, err := p.Extract(t.Context(), nil, "en")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, errors.KindExtractionFailed, errors.KindOf(err))
	// the cause stays reachable
	assert.True(t, errors.Is(err, errors.ErrUnsupportedImage))
	assert.Equal(t, errors.ClassPermanent, errors.ClassOf(err))
}

func TestExtractTranslationFailureDegrades(t *testing.T) {
	t.Parallel()

	tr := &failingTranslator{}
	m := newMetrics(t)
	p, err := New(Config{
		OCR:        &ocr.Mock{SkipValidation: true},
		Translator: tr,
		Metrics:    m,
		Logger:     testLogger(),
	})
	require.NoError(t, err)

	result, err := p.Extract(t.Context(), []byte("image"), "en")
	require.NoError(t, err)
	assert.Equal(t, 1, tr.calls)
	assert.ElementsMatch(t,
		[]string{"凉菜", "花生豆腐汤", "鱼香肉丝套餐", "宫保鸡丁套餐", "汤类", "花蛤豆腐汤"},
		dishNames(result))
	for _, d := range result.Dishes {
		assert.Nil(t, d.TranslatedName)
	}
}

func TestExtractSkipsTranslationInTargetLanguage(t *testing.T) {
	t.Parallel()

	tr := &upperTranslator{}
	p, err := New(Config{
		OCR: &ocr.Mock{SkipValidation: true, Lines: []menu.TextLine{
			{Text: "Kung Pao Chicken", Confidence: 0.9, Box: menu.RectBox(0, 0, 300, 30)},
			{Text: "$12.99", Confidence: 0.9, Box: menu.RectBox(0, 40, 80, 30)},
			{Text: "APPETIZERS", Confidence: 0.9, Box: menu.RectBox(0, 80, 200, 30)},
		}},
		Translator: tr,
		Logger:     testLogger(),
	})
	require.NoError(t, err)

	result, err := p.Extract(t.Context(), []byte("image"), "en-US")
	require.NoError(t, err)
	assert.Equal(t, 0, tr.calls)
	assert.Equal(t, []string{"Kung Pao Chicken"}, dishNames(result))
	assert.Nil(t, result.Dishes[0].TranslatedName)
}

func TestExtractTranslatesOtherLanguage(t *testing.T) {
	t.Parallel()

	tr := &upperTranslator{}
	p, err := New(Config{
		OCR: &ocr.Mock{SkipValidation: true, Lines: []menu.TextLine{
			{Text: "Kung Pao Chicken", Confidence: 0.9, Box: menu.RectBox(0, 0, 300, 30)},
		}},
		Translator: tr,
		KeepLines:  true,
		Logger:     testLogger(),
	})
	require.NoError(t, err)

	result, err := p.Extract(t.Context(), []byte("image"), "de")
	require.NoError(t, err)
	assert.Equal(t, 1, tr.calls)
	require.Len(t, result.Dishes, 1)
	require.NotNil(t, result.Dishes[0].TranslatedName)
	assert.Equal(t, "KUNG PAO CHICKEN", *result.Dishes[0].TranslatedName)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "Kung Pao Chicken", result.Lines[0].Text)
}

func TestExtractWithoutTranslator(t *testing.T) {
	t.Parallel()

	p, err := New(Config{OCR: &ocr.Mock{SkipValidation: true}, Logger: testLogger()})
	require.NoError(t, err)

	result, err := p.Extract(t.Context(), []byte("image"), "")
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"凉菜", "花生豆腐汤", "鱼香肉丝套餐", "宫保鸡丁套餐", "汤类", "花蛤豆腐汤"},
		dishNames(result))
	for _, d := range result.Dishes {
		assert.Nil(t, d.TranslatedName)
	}
}

func TestExtractReturnsIndependentMenus(t *testing.T) {
	t.Parallel()

	p, err := New(Config{OCR: &ocr.Mock{SkipValidation: true}, Logger: testLogger()})
	require.NoError(t, err)

	first, err := p.Extract(t.Context(), []byte("image"), "en")
	require.NoError(t, err)
	first.Dishes[0].OriginalName = "changed"

	second, err := p.Extract(t.Context(), []byte("image"), "en")
	require.NoError(t, err)
	assert.NotEqual(t, "changed", second.Dishes[0].OriginalName)
}

func TestExtractRecordsMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewExtractionMetrics(registry)
	require.NoError(t, err)

	p, err := New(Config{OCR: &ocr.Mock{SkipValidation: true}, Translator: &failingTranslator{}, Metrics: m, Logger: testLogger()})
	require.NoError(t, err)
	_, err = p.Extract(t.Context(), []byte("image"), "en")
	require.NoError(t, err)

	expected := `
# HELP menulens_translation_requests_total Total number of translation calls by provider and status; degraded means the menu was returned untranslated
# TYPE menulens_translation_requests_total counter
menulens_translation_requests_total{provider="failing",status="degraded"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "menulens_translation_requests_total"))
}

func TestNewRequiresOCR(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}
