// Package pipeline turns a menu photo into a Menu: OCR, language
// detection, translation and dish extraction, in that order.
package pipeline

import (
	"context"
	"time"

	"github.com/tphakala/menulens/internal/dish"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
	"github.com/tphakala/menulens/internal/observability/metrics"
	"github.com/tphakala/menulens/internal/ocr"
	"github.com/tphakala/menulens/internal/translate"
)

// Config holds the collaborators of a Pipeline. OCR is required, the rest
// have defaults. A nil Translator disables translation.
type Config struct {
	OCR        ocr.Provider
	Detector   translate.Detector
	Translator translate.Translator
	Extractor  *dish.Extractor
	Metrics    *metrics.ExtractionMetrics
	Logger     logger.Logger

	// DefaultTarget is used when Extract is called without a target language
	DefaultTarget string
	// KeepLines includes the OCR lines in the returned Menu
	KeepLines bool
}

// Pipeline is safe for concurrent use; it holds no per-call state.
type Pipeline struct {
	ocr        ocr.Provider
	detector   translate.Detector
	translator translate.Translator
	extractor  *dish.Extractor
	metrics    *metrics.ExtractionMetrics
	log        logger.Logger
	target     string
	keepLines  bool
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.OCR == nil {
		return nil, errors.Newf("pipeline requires an OCR provider").
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}
	p := &Pipeline{
		ocr:        cfg.OCR,
		detector:   cfg.Detector,
		translator: cfg.Translator,
		extractor:  cfg.Extractor,
		metrics:    cfg.Metrics,
		log:        cfg.Logger,
		target:     cfg.DefaultTarget,
		keepLines:  cfg.KeepLines,
	}
	if p.detector == nil {
		p.detector = translate.NewScriptDetector()
	}
	if p.extractor == nil {
		p.extractor = dish.NewExtractor(dish.DefaultOptions())
	}
	if p.log == nil {
		p.log = logger.Global().Module("pipeline")
	}
	if p.target == "" {
		p.target = "en"
	}
	return p, nil
}

// Extract runs the whole pipeline on one image. An OCR failure aborts the
// call with ExtractionFailed; a translation failure only drops the
// translated names. The returned Menu is owned by the caller.
func (p *Pipeline) Extract(ctx context.Context, image []byte, target string) (*menu.Menu, error) {
	start := time.Now()
	if target == "" {
		target = p.target
	}

	lines, err := p.recognize(ctx, image)
	if err != nil {
		p.metrics.RecordExtraction(metrics.StatusError, 0, time.Since(start).Seconds())
		p.log.Warn("menu extraction failed",
			logger.String("provider", p.ocr.Name()),
			logger.String("kind", string(errors.KindOf(err))),
			logger.Error(err))
		return nil, errors.ExtractionFailed(err)
	}

	detected := p.detector.Detect(lines)
	translated := p.translateLines(ctx, lines, detected, target)

	result := &menu.Menu{
		Dishes:       p.extractor.Extract(translated),
		DetectedLang: detected,
	}
	if p.keepLines {
		result.Lines = translated
	}

	status := metrics.StatusSuccess
	if len(result.Dishes) == 0 {
		status = metrics.StatusDegraded
	}
	p.metrics.RecordExtraction(status, len(result.Dishes), time.Since(start).Seconds())
	p.log.Info("menu extracted",
		logger.String("provider", p.ocr.Name()),
		logger.String("language", detected.Tag),
		logger.Int("lines", len(lines)),
		logger.Int("dishes", len(result.Dishes)),
		logger.Duration("elapsed", time.Since(start)))

	return result.Clone(), nil
}

func (p *Pipeline) recognize(ctx context.Context, image []byte) ([]menu.TextLine, error) {
	start := time.Now()
	lines, err := p.ocr.Extract(ctx, image)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	p.metrics.RecordOCR(p.ocr.Name(), status, time.Since(start).Seconds())
	return lines, err
}

// translateLines returns lines with translations when possible and the
// untouched lines otherwise.
func (p *Pipeline) translateLines(ctx context.Context, lines []menu.TextLine, detected menu.DetectedLanguage, target string) []menu.TextLine {
	if p.translator == nil {
		p.metrics.RecordTranslation("none", metrics.StatusSkipped, 0)
		return lines
	}
	if translate.SameLanguage(detected.Tag, target) {
		p.log.Debug("menu already in target language", logger.String("language", detected.Tag))
		p.metrics.RecordTranslation(p.translator.Name(), metrics.StatusSkipped, 0)
		return lines
	}

	start := time.Now()
	out, err := translate.TranslateLines(ctx, p.translator, lines, target)
	if err != nil {
		p.metrics.RecordTranslation(p.translator.Name(), metrics.StatusDegraded, time.Since(start).Seconds())
		p.log.Warn("translation failed, continuing without translated names",
			logger.String("provider", p.translator.Name()),
			logger.String("target", target),
			logger.Error(err))
		return lines
	}
	p.metrics.RecordTranslation(p.translator.Name(), metrics.StatusSuccess, time.Since(start).Seconds())
	return out
}
