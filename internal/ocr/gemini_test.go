package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/menu"
)

type fakeModels struct {
	answer string
	err    error

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.answer}}},
		}},
	}, nil
}

func TestGemini_Extract(t *testing.T) {
	t.Parallel()

	models := &fakeModels{answer: "```json\n" + `[
	  {"text": "宫保鸡丁套餐", "confidence": 0.93, "box": [100, 200, 280, 230]},
	  {"text": "8元", "box": [300, 200, 350, 230]},
	  {"text": ""}
	]` + "\n```"}
	img := pngImage(t, 16, 16)

	lines, err := NewGemini(models, "", testLogger()).Extract(t.Context(), img)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "宫保鸡丁套餐", lines[0].Text)
	assert.InDelta(t, 0.93, lines[0].Confidence, 1e-9)
	assert.Equal(t, menu.RectBox(100, 200, 180, 30), lines[0].Box)
	assert.InDelta(t, defaultGeminiOCRConf, lines[1].Confidence, 1e-9)

	assert.Equal(t, defaultGeminiModel, models.model)
	require.Len(t, models.contents, 1)
	parts := models.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Equal(t, img, parts[0].InlineData.Data)
	assert.Equal(t, "application/json", models.config.ResponseMIMEType)
}

func TestGemini_ObjectAnswer(t *testing.T) {
	t.Parallel()

	lines, err := parseGeminiLines(`{"lines":[{"text":"Mapo Tofu","confidence":0.7}]}`)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Mapo Tofu", lines[0].Text)
}

func TestGemini_ArrayAnswer(t *testing.T) {
	t.Parallel()

	lines, err := parseGeminiLines(`[{"text":"麻婆豆腐","confidence":0.8,"box":[10,20,110,50]},{"text":"  "}]`)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "麻婆豆腐", lines[0].Text)
	assert.InDelta(t, 0.8, lines[0].Confidence, 1e-9)
	assert.InDelta(t, 100, lines[0].Box.Width(), 1e-9)

	_, err = parseGeminiLines(`["麻婆豆腐"]`)
	require.Error(t, err)
}

func TestGemini_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		models *fakeModels
		want   errors.Kind
	}{
		{"not json", &fakeModels{answer: "I can see a menu."}, errors.KindProviderUnavailable},
		{"quota", &fakeModels{err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "rate"}}, errors.KindProviderUnavailable},
		{"bad key", &fakeModels{err: genai.APIError{Code: 403, Status: "PERMISSION_DENIED", Message: "denied"}}, errors.KindProviderUnavailable},
		{"rejected image", &fakeModels{err: genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "unable to process input image"}}, errors.KindUnsupportedImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewGemini(tt.models, "m", testLogger()).Extract(t.Context(), pngImage(t, 16, 16))
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.KindOf(err))
		})
	}
}
