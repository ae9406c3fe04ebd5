// Package analysis assembles the menu pipeline and the dish image layer
// from settings and runs them for the command line modes: one-shot menu
// extraction, one-shot image generation and the HTTP server.
package analysis

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/datastore"
	"github.com/tphakala/menulens/internal/details"
	"github.com/tphakala/menulens/internal/dish"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/generation"
	"github.com/tphakala/menulens/internal/httpclient"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/observability"
	"github.com/tphakala/menulens/internal/ocr"
	"github.com/tphakala/menulens/internal/pipeline"
	"github.com/tphakala/menulens/internal/translate"
)

// Runtime holds the components shared by every mode. Close releases them
// in reverse order of construction.
type Runtime struct {
	Settings *conf.Settings
	Metrics  *observability.Metrics
	HTTP     *httpclient.Client
	Pipeline *pipeline.Pipeline

	// Translator and Details back the standalone translate and dish
	// details routes; either is nil when disabled.
	Translator translate.Translator
	Details    *details.Enricher

	// Images and Store are nil until OpenImages is called; Store stays nil
	// when the datastore is disabled.
	Images *generation.Orchestrator
	Store  *datastore.Store

	log logger.Logger
}

// NewRuntime builds the extraction pipeline described by settings.
func NewRuntime(ctx context.Context, settings *conf.Settings, log logger.Logger) (*Runtime, error) {
	if log == nil {
		log = logger.Global().Module("analysis")
	}
	m, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("error initializing metrics: %w", err)
	}

	client := httpclient.New(&httpclient.Config{UserAgent: userAgent(settings)})

	provider, err := ocr.NewFromSettings(ctx, &settings.OCR, ocr.Deps{
		HTTP: client,
		Log:  logger.Global().Module("ocr"),
	})
	if err != nil {
		return nil, err
	}
	tr, err := translate.New(ctx, &settings.Translate, translate.Deps{
		HTTP: client,
		Log:  logger.Global().Module("translate"),
	})
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(pipeline.Config{
		OCR:        provider,
		Translator: tr,
		Extractor: dish.NewExtractor(dish.Options{
			PriceRatio:       settings.Extract.PriceRatio,
			HeaderWidthRatio: settings.Extract.HeaderWidthRatio,
			HeaderConfidence: settings.Extract.HeaderConfidence,
			MinConfidence:    settings.Extract.MinConfidence,
		}),
		Metrics:       m.Extraction,
		Logger:        logger.Global().Module("pipeline"),
		DefaultTarget: settings.Translate.Target,
	})
	if err != nil {
		return nil, err
	}

	enricher, err := details.New(ctx, &settings.Details, details.Deps{
		Metrics: m.Extraction,
		Log:     logger.Global().Module("details"),
	})
	if err != nil {
		return nil, err
	}

	log.Info("menu pipeline ready",
		logger.String("ocr", provider.Name()),
		logger.String("translate", translatorName(tr)),
		logger.String("target", settings.Translate.Target),
		logger.Bool("details", enricher != nil))

	return &Runtime{
		Settings:   settings,
		Metrics:    m,
		HTTP:       client,
		Pipeline:   p,
		Translator: tr,
		Details:    enricher,
		log:        log,
	}, nil
}

// OpenImages builds the generation layer, reloading persisted artifacts
// from the datastore when it is enabled.
func (r *Runtime) OpenImages(ctx context.Context) error {
	if r.Images != nil {
		return nil
	}

	var store generation.Store
	if r.Settings.Datastore.Enabled {
		ds, err := datastore.Open(&r.Settings.Datastore, r.Metrics.Datastore, logger.Global().Module("datastore"))
		if err != nil {
			return err
		}
		r.Store = ds
		store = ds
	}

	orch, err := generation.NewFromSettings(ctx, &r.Settings.Generation, store, r.Metrics.Generation, generation.GeneratorDeps{
		Log: logger.Global().Module("generation"),
	})
	if err != nil {
		if r.Store != nil {
			_ = r.Store.Close()
			r.Store = nil
		}
		return err
	}
	r.Images = orch
	return nil
}

// LoadOptions returns the image loading limits for URL and base64 sources.
func (r *Runtime) LoadOptions() ocr.LoadOptions {
	return ocr.LoadOptions{
		HTTP:     r.HTTP,
		MaxBytes: r.Settings.OCR.MaxImageBytes,
		Timeout:  r.Settings.OCR.FetchTimeout,
	}
}

// Close stops running generations and closes the datastore.
func (r *Runtime) Close() error {
	var errs []error
	if r.Images != nil {
		if err := r.Images.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadImage resolves a command line image argument: an http(s) URL, a
// data URL, or a local file path. Anything else is treated as base64.
func (r *Runtime) ReadImage(ctx context.Context, source string) ([]byte, error) {
	opts := r.LoadOptions()
	if isInlineSource(source) {
		return ocr.LoadImage(ctx, source, opts)
	}
	info, err := os.Stat(source)
	if err != nil {
		// not a file, maybe bare base64
		return ocr.LoadImage(ctx, source, opts)
	}
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = ocr.DefaultMaxImageBytes
	}
	if info.Size() > limit {
		return nil, errors.UnsupportedImage(fmt.Sprintf("image exceeds %d bytes", limit))
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, errors.New(fmt.Errorf("read image: %w", err)).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("path", source).
			Build()
	}
	if _, err := ocr.ValidateImage(data); err != nil {
		return nil, err
	}
	return data, nil
}

func isInlineSource(source string) bool {
	for _, prefix := range []string{"http://", "https://", "data:"} {
		if strings.HasPrefix(source, prefix) {
			return true
		}
	}
	return false
}

func userAgent(settings *conf.Settings) string {
	if settings.Main.Name == "" {
		return ""
	}
	return "MenuLens (" + settings.Main.Name + ")"
}

func translatorName(tr translate.Translator) string {
	if tr == nil {
		return "none"
	}
	return tr.Name()
}
