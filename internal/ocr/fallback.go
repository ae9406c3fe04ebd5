package ocr

import (
	"context"

	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
)

// Fallback tries a primary provider and switches to a secondary when the
// primary reports ProviderUnavailable. Other failures, notably unreadable
// images, are returned as is.
type Fallback struct {
	primary   Provider
	secondary Provider
	log       logger.Logger
}

// NewFallback chains primary and secondary.
func NewFallback(primary, secondary Provider, log logger.Logger) *Fallback {
	if log == nil {
		log = logger.Global().Module("ocr")
	}
	return &Fallback{primary: primary, secondary: secondary, log: log}
}

// Name reports the chain as "primary>secondary".
func (f *Fallback) Name() string {
	return f.primary.Name() + ">" + f.secondary.Name()
}

// Extract implements Provider.
func (f *Fallback) Extract(ctx context.Context, image []byte) ([]menu.TextLine, error) {
	lines, err := f.primary.Extract(ctx, image)
	if err == nil || !errors.IsKind(err, errors.KindProviderUnavailable) || ctx.Err() != nil {
		return lines, err
	}

	f.log.Warn("OCR provider unavailable, using fallback",
		logger.String("primary", f.primary.Name()),
		logger.String("fallback", f.secondary.Name()),
		logger.Error(err))

	// the fallback outcome decides the reported kind
	lines, fbErr := f.secondary.Extract(ctx, image)
	if fbErr != nil {
		return nil, errors.Join(fbErr, err)
	}
	return lines, nil
}
