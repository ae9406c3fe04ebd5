// Package ocr recognizes text lines on menu photos.
//
// Providers are interchangeable behind the Provider interface and are
// selected by name from the registry at process start. A Fallback provider
// chains a primary with a secondary used when the primary is unavailable.
package ocr

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
	"github.com/tphakala/menulens/internal/httpclient"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
)

// Provider recognizes text on an image.
//
// Extract fails with an error of kind ProviderUnavailable on network or
// credential problems and UnsupportedImage when the image cannot be read.
// Providers keep no state between calls and are safe for concurrent use.
type Provider interface {
	Name() string
	Extract(ctx context.Context, image []byte) ([]menu.TextLine, error)
}

// Deps are the shared collaborators handed to provider factories.
type Deps struct {
	HTTP *httpclient.Client
	Log  logger.Logger

	// GeminiHTTPClient and GeminiBaseURL redirect the Gemini SDK, used in tests
	GeminiHTTPClient *http.Client
	GeminiBaseURL    string
}

// Factory builds a provider from settings.
type Factory func(ctx context.Context, settings *conf.OCRSettings, deps Deps) (Provider, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
)

// Register makes a provider factory available under name. It is called from
// init functions; registering a name twice panics.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("ocr: provider %q registered twice", name))
	}
	factories[name] = factory
}

// Names lists the registered provider names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New builds the named provider.
func New(ctx context.Context, name string, settings *conf.OCRSettings, deps Deps) (Provider, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Newf("unknown OCR provider %q", name).
			Component("ocr").
			Category(errors.CategoryConfiguration).
			Context("available", Names()).
			Build()
	}
	if deps.Log == nil {
		deps.Log = logger.Global().Module("ocr")
	}
	if deps.HTTP == nil {
		deps.HTTP = httpclient.New(nil)
	}
	return factory(ctx, settings, deps)
}

// NewFromSettings builds the configured provider and, when a distinct
// fallback is configured, wraps both in a Fallback.
func NewFromSettings(ctx context.Context, settings *conf.OCRSettings, deps Deps) (Provider, error) {
	primary, err := New(ctx, settings.Provider, settings, deps)
	if err != nil {
		return nil, err
	}
	switch settings.Fallback {
	case "", "none", settings.Provider:
		return primary, nil
	}
	secondary, err := New(ctx, settings.Fallback, settings, deps)
	if err != nil {
		return nil, err
	}
	log := deps.Log
	if log == nil {
		log = logger.Global().Module("ocr")
	}
	return NewFallback(primary, secondary, log), nil
}
