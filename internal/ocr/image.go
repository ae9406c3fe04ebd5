package ocr

import (
	"bytes"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/tphakala/menulens/internal/errors"
)

// ImageInfo describes a validated image.
type ImageInfo struct {
	Format   string // jpeg, png, gif, webp, bmp, tiff
	MIMEType string
	Width    int
	Height   int
}

// minImageSide rejects images too small to carry readable text
const minImageSide = 8

// ValidateImage checks that data is a decodable raster image and returns its
// format and dimensions. Only the header is decoded.
func ValidateImage(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, errors.UnsupportedImage("empty image")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		mime := http.DetectContentType(data)
		if !strings.HasPrefix(mime, "image/") {
			return ImageInfo{}, errors.UnsupportedImage("not an image (" + mime + ")")
		}
		return ImageInfo{}, errors.UnsupportedImage("corrupt or unsupported " + mime + " data")
	}
	if cfg.Width < minImageSide || cfg.Height < minImageSide {
		return ImageInfo{}, errors.UnsupportedImage("image too small")
	}
	return ImageInfo{
		Format:   format,
		MIMEType: "image/" + format,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}
