package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/errors"
)

func TestValidateImage(t *testing.T) {
	t.Parallel()

	valid := pngImage(t, 64, 32)

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"valid png", valid, false},
		{"empty", nil, true},
		{"plain text", []byte("this is not an image at all"), true},
		{"truncated png", valid[:20], true},
		{"too small", pngImage(t, 4, 4), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			info, err := ValidateImage(tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsKind(err, errors.KindUnsupportedImage), "kind = %s", errors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "png", info.Format)
			assert.Equal(t, "image/png", info.MIMEType)
			assert.Equal(t, 64, info.Width)
			assert.Equal(t, 32, info.Height)
		})
	}
}
