//go:build !tesseract

package ocr

import (
	"context"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
)

func init() {
	Register("tesseract", func(_ context.Context, _ *conf.OCRSettings, _ Deps) (Provider, error) {
		return nil, errors.Newf("tesseract OCR support is not compiled in, rebuild with -tags tesseract").
			Component("ocr").
			Category(errors.CategoryConfiguration).
			Build()
	})
}
