package ocr

import (
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/errors"
)

func TestLoadImage_InlineSources(t *testing.T) {
	t.Parallel()

	img := pngImage(t, 16, 16)
	b64 := base64.StdEncoding.EncodeToString(img)

	tests := []struct {
		name    string
		source  string
		wantErr errors.Kind
	}{
		{"data url", "data:image/png;base64," + b64, ""},
		{"bare base64", b64, ""},
		{"base64 with line breaks", b64[:10] + "\n" + b64[10:], ""},
		{"empty", "   ", errors.KindUnsupportedImage},
		{"data url without base64", "data:image/png," + b64, errors.KindUnsupportedImage},
		{"not base64", "%%% definitely not an image %%%", errors.KindUnsupportedImage},
		{"base64 of text", base64.StdEncoding.EncodeToString([]byte("hello menu")), errors.KindUnsupportedImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := LoadImage(t.Context(), tt.source, LoadOptions{})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, errors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, img, data)
		})
	}
}

func TestLoadImage_SizeLimit(t *testing.T) {
	t.Parallel()

	img := pngImage(t, 64, 64)
	_, err := LoadImage(t.Context(), base64.StdEncoding.EncodeToString(img), LoadOptions{MaxBytes: int64(len(img) - 1)})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupportedImage))
}

func TestLoadImage_URL(t *testing.T) {
	t.Parallel()

	img := pngImage(t, 32, 32)
	mux := http.NewServeMux()
	mux.HandleFunc("/menu.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	})
	mux.HandleFunc("/page.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	opts := LoadOptions{AllowPrivateHosts: true}

	t.Run("fetches image", func(t *testing.T) {
		data, err := LoadImage(t.Context(), srv.URL+"/menu.png", opts)
		require.NoError(t, err)
		assert.Equal(t, img, data)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := LoadImage(t.Context(), srv.URL+"/missing.png", opts)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindUnsupportedImage))
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("wrong content type", func(t *testing.T) {
		_, err := LoadImage(t.Context(), srv.URL+"/page.html", opts)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindUnsupportedImage))
	})

	t.Run("oversized body", func(t *testing.T) {
		small := opts
		small.MaxBytes = 10
		_, err := LoadImage(t.Context(), srv.URL+"/menu.png", small)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindUnsupportedImage))
	})

	t.Run("timeout", func(t *testing.T) {
		fast := opts
		fast.Timeout = 50 * time.Millisecond
		_, err := LoadImage(context.Background(), srv.URL+"/slow.png", fast)
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindTimeout), "kind = %s", errors.KindOf(err))
	})
}

func TestLoadImage_RejectsPrivateHosts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ip   string
	}{
		{"private", "10.1.2.3"},
		{"loopback", "127.0.0.1"},
		{"link local", "169.254.169.254"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := LoadOptions{LookupIP: func(string) ([]net.IP, error) {
				return []net.IP{net.ParseIP(tt.ip)}, nil
			}}
			_, err := LoadImage(t.Context(), "http://menus.example.com/a.png", opts)
			require.Error(t, err)
			assert.Equal(t, errors.KindInvalidRequest, errors.KindOf(err))
		})
	}
}
