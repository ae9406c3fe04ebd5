package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/menu"
)

func TestMock_Extract(t *testing.T) {
	t.Parallel()

	m := NewMock()
	lines, err := m.Extract(t.Context(), pngImage(t, 16, 16))
	require.NoError(t, err)
	require.Len(t, lines, 10)

	assert.Equal(t, "凉菜", lines[0].Text)
	assert.InDelta(t, 0.95, lines[0].Confidence, 1e-9)
	assert.Equal(t, menu.RectBox(100, 50, 100, 30), lines[0].Box)
	assert.Equal(t, "花蛤豆腐汤", lines[8].Text)
	assert.Equal(t, []string{"8元", "8元", "8元", "8元"},
		[]string{lines[2].Text, lines[4].Text, lines[6].Text, lines[9].Text})

	// callers get their own copy
	lines[0].Text = "changed"
	again, err := m.Extract(t.Context(), pngImage(t, 16, 16))
	require.NoError(t, err)
	assert.Equal(t, "凉菜", again[0].Text)
}

func TestMock_RejectsInvalidImage(t *testing.T) {
	t.Parallel()

	_, err := NewMock().Extract(t.Context(), []byte("nope"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupportedImage))

	lenient := &Mock{SkipValidation: true, Lines: []menu.TextLine{{Text: "Mapo Tofu", Confidence: 1}}}
	lines, err := lenient.Extract(t.Context(), []byte("nope"))
	require.NoError(t, err)
	assert.Equal(t, "Mapo Tofu", lines[0].Text)
}
