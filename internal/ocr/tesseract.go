//go:build tesseract

package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
)

const tesseractProviderName = "tesseract"

func init() {
	Register(tesseractProviderName, func(_ context.Context, settings *conf.OCRSettings, deps Deps) (Provider, error) {
		return NewTesseract(settings.Tesseract.Languages, deps.Log), nil
	})
}

// Tesseract runs the local tesseract engine through cgo. A client is created
// per call since gosseract clients are not safe for concurrent use.
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
	log           logger.Logger
}

// NewTesseract creates a local OCR provider for the given tesseract
// language packs, chi_sim and eng when empty.
func NewTesseract(languages []string, log logger.Logger) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"chi_sim", "eng"}
	}
	if log == nil {
		log = logger.Global().Module("ocr")
	}
	return &Tesseract{
		languages:     languages,
		clientFactory: gosseract.NewClient,
		log:           log.With(logger.String("provider", tesseractProviderName)),
	}
}

// Name implements Provider.
func (t *Tesseract) Name() string { return tesseractProviderName }

// Extract implements Provider.
func (t *Tesseract) Extract(ctx context.Context, image []byte) ([]menu.TextLine, error) {
	if _, err := ValidateImage(image); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return nil, errors.UnsupportedImage(err.Error())
	}
	if err := c.SetLanguage(t.languages...); err != nil {
		return nil, errors.ProviderUnavailable("ocr", tesseractProviderName, err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, errors.ProviderUnavailable("ocr", tesseractProviderName, err)
	}

	lines := make([]menu.TextLine, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, menu.TextLine{
			Text:       text,
			Confidence: b.Confidence / 100.0,
			Box: menu.RectBox(float64(b.Box.Min.X), float64(b.Box.Min.Y),
				float64(b.Box.Dx()), float64(b.Box.Dy())),
		})
	}
	t.log.Debug("tesseract OCR completed", logger.Int("lines", len(lines)))
	return lines, nil
}
