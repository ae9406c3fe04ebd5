// Package api provides the HTTP server for MenuLens. It exposes the menu
// extraction and dish image entry points plus health and metrics.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/labstack/gommon/bytes"

	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultBodyLimit caps request bodies, image uploads included
const DefaultBodyLimit int64 = 12 << 20

// DefaultMaxBatchDishes caps the dishes of one warm or details request
const DefaultMaxBatchDishes = 50

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // host:port, host may be empty

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration // generation waits are bounded by this
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Limits
	BodyLimit      string // e.g. "12MB", parsed by echo's body limit middleware
	MaxBatchDishes int

	// Artifacts are served below ArtifactsURL from ArtifactsDir
	ArtifactsDir string
	ArtifactsURL string

	// AllowedOrigins lists the CORS origins, "*" allows any
	AllowedOrigins []string

	TranslateTarget string
	Debug           bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          ":8080",
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       bytes.Format(DefaultBodyLimit),
		MaxBatchDishes:  DefaultMaxBatchDishes,
		ArtifactsURL:    "/artifacts",
		AllowedOrigins:  []string{"*"},
		TranslateTarget: "en",
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	ws := settings.WebServer
	if ws.Listen != "" {
		cfg.Listen = ws.Listen
	}
	if ws.ReadTimeout > 0 {
		cfg.ReadTimeout = ws.ReadTimeout
	}
	if ws.WriteTimeout > 0 {
		cfg.WriteTimeout = ws.WriteTimeout
	}
	if ws.MaxBodyBytes > 0 {
		cfg.BodyLimit = bytes.Format(ws.MaxBodyBytes)
	}
	if ws.MaxBatchDishes > 0 {
		cfg.MaxBatchDishes = ws.MaxBatchDishes
	}
	if len(ws.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = ws.AllowedOrigins
	}
	cfg.ArtifactsDir = settings.Generation.Artifacts.Dir
	if settings.Generation.Artifacts.BaseURL != "" {
		cfg.ArtifactsURL = settings.Generation.Artifacts.BaseURL
	}
	if settings.Translate.Target != "" {
		cfg.TranslateTarget = settings.Translate.Target
	}
	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.MaxBatchDishes <= 0 {
		return fmt.Errorf("max batch dishes must be positive")
	}
	if _, err := bytes.Parse(c.BodyLimit); err != nil {
		return fmt.Errorf("invalid body limit %q: %w", c.BodyLimit, err)
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: listen=%s, body_limit=%s, debug=%v", c.Listen, c.BodyLimit, c.Debug)
}
