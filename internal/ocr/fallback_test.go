package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/menu"
)

func TestFallback(t *testing.T) {
	t.Parallel()

	good := []menu.TextLine{{Text: "Mapo Tofu", Confidence: 0.9}}
	unavailable := errors.ProviderUnavailable("ocr", "vision", errors.NewStd("billing disabled"))

	tests := []struct {
		name          string
		primaryErr    error
		secondaryErr  error
		wantKind      errors.Kind
		wantSecondary int
	}{
		{name: "primary succeeds"},
		{name: "unavailable falls back", primaryErr: unavailable, wantSecondary: 1},
		{name: "bad image does not fall back", primaryErr: errors.UnsupportedImage("corrupt"), wantKind: errors.KindUnsupportedImage},
		{
			name:          "fallback failure reported",
			primaryErr:    unavailable,
			secondaryErr:  errors.UnsupportedImage("corrupt"),
			wantKind:      errors.KindUnsupportedImage,
			wantSecondary: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			primary := &stubProvider{name: "vision", lines: good, err: tt.primaryErr}
			secondary := &stubProvider{name: "mock", lines: good, err: tt.secondaryErr}
			if tt.primaryErr != nil {
				primary.lines = nil
			}
			f := NewFallback(primary, secondary, testLogger())
			assert.Equal(t, "vision>mock", f.Name())

			lines, err := f.Extract(t.Context(), nil)
			assert.Equal(t, 1, primary.calls)
			assert.Equal(t, tt.wantSecondary, secondary.calls)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, errors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, good, lines)
		})
	}
}
