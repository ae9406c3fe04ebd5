package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/menulens/internal/api/middleware"
	"github.com/tphakala/menulens/internal/buildinfo"
	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/generation"
	"github.com/tphakala/menulens/internal/logger"
	"github.com/tphakala/menulens/internal/menu"
	"github.com/tphakala/menulens/internal/observability"
	"github.com/tphakala/menulens/internal/ocr"
	"github.com/tphakala/menulens/internal/translate"
)

// MenuExtractor turns a menu photo into dishes.
type MenuExtractor interface {
	Extract(ctx context.Context, image []byte, target string) (*menu.Menu, error)
}

// DishImages serves generated dish images.
type DishImages interface {
	Request(ctx context.Context, slug, style string, opts generation.RequestOptions) (generation.Artifact, error)
	Remember(m *menu.Menu)
	WarmMenu(ctx context.Context, m *menu.Menu, style string) []generation.WarmResult
	DefaultStyle() string
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server is the HTTP server for MenuLens.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	// Dependencies
	extractor  MenuExtractor
	images     DishImages
	details    DishDetails
	translator translate.Translator
	metrics    *observability.Metrics
	build      buildinfo.BuildInfo
	checks     map[string]HealthCheck
	loadOpts   ocr.LoadOptions

	// Lifecycle management
	mu        sync.Mutex
	started   bool
	wg        sync.WaitGroup
	startTime time.Time
	serveErr  error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the module logger for the server.
func WithLogger(log logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithExtractor sets the menu extraction pipeline.
func WithExtractor(e MenuExtractor) ServerOption {
	return func(s *Server) {
		s.extractor = e
	}
}

// WithDishImages sets the generation orchestrator.
func WithDishImages(d DishImages) ServerOption {
	return func(s *Server) {
		s.images = d
	}
}

// WithDishDetails enables the dish details routes.
func WithDishDetails(d DishDetails) ServerOption {
	return func(s *Server) {
		s.details = d
	}
}

// WithTranslator enables POST /api/v1/translate.
func WithTranslator(tr translate.Translator) ServerOption {
	return func(s *Server) {
		s.translator = tr
	}
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithBuildInfo sets the version reported by /health.
func WithBuildInfo(b buildinfo.BuildInfo) ServerOption {
	return func(s *Server) {
		s.build = b
	}
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// WithImageLoadOptions controls how image URLs and base64 payloads are loaded.
func WithImageLoadOptions(opts ocr.LoadOptions) ServerOption {
	return func(s *Server) {
		s.loadOpts = opts
	}
}

// New creates a new HTTP server with the given settings and options.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		checks:    make(map[string]HealthCheck),
		startTime: time.Now(),
		loadOpts: ocr.LoadOptions{
			MaxBytes: settings.OCR.MaxImageBytes,
			Timeout:  settings.OCR.FetchTimeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if s.extractor == nil {
		return nil, fmt.Errorf("server requires a menu extractor")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.Logger = logger.NewEchoLoggerAdapter(s.log.Module("echo"))
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("listen", config.Listen),
		logger.String("body_limit", config.BodyLimit),
		logger.Bool("generation", s.images != nil),
		logger.Bool("details", s.details != nil),
		logger.Bool("translate", s.translator != nil))
	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, func(c echo.Context) bool {
		return c.Path() == "/health" || c.Path() == "/metrics"
	}))

	s.echo.Use(mw.NewMetrics(s.httpMetrics()))

	security := mw.APISecurity(s.config.AllowedOrigins)
	s.echo.Use(mw.NewCORS(security))
	s.echo.Use(mw.NewSecureHeaders(security))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewGzip())
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/menu/extract", s.extractMenu)
	if s.images != nil {
		v1.POST("/menu/warm", s.warmMenu)
		v1.GET("/dishes/:slug/image", s.dishImage)
		v1.POST("/dishes/:slug/image", s.regenerateDishImage)
	}
	if s.details != nil {
		v1.POST("/dishes/details", s.batchDishDetails)
		v1.POST("/dishes/:slug/details", s.dishDetails)
	}
	if s.translator != nil {
		v1.POST("/translate", s.translateText)
	}

	if s.config.ArtifactsDir != "" {
		s.echo.Static(s.config.ArtifactsURL, s.config.ArtifactsDir)
	}
}

// Start begins serving HTTP requests in a background goroutine and returns
// immediately. Use Shutdown to stop the server.
func (s *Server) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("starting HTTP server", logger.String("listen", s.config.Listen))
		if err := s.echo.Start(s.config.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", logger.Error(err))
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
		}
	}()
}

// Run starts the server and blocks until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.log.Info("shutdown signal received")
	return s.Shutdown()
}

// Shutdown gracefully stops the server, waiting up to the shutdown timeout
// for in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info("server shutdown complete")
	return s.serveErr
}

// Addr returns the bound listener address once the server is listening.
func (s *Server) Addr() net.Addr {
	return s.echo.ListenerAddr()
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
