// Package telemetry initializes optional Sentry error reporting.
//
// Reporting is opt-in. Events are stripped of user, host and runtime data
// before they leave the process, and enhanced errors reach Sentry through
// the errors package reporter installed by Init.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/menulens/internal/buildinfo"
	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
)

// FlushTimeout bounds the wait for queued events on shutdown
const FlushTimeout = 2 * time.Second

// extra keys that survive the privacy filter
var allowedExtra = map[string]bool{
	"error_type": true,
	"component":  true,
}

// Option customizes Init.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport, used in tests.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// Init configures Sentry from settings and installs the error reporter.
// The returned function flushes pending events and uninstalls the reporter.
// With reporting disabled Init does nothing and returns a no-op.
func Init(settings *conf.SentrySettings, build buildinfo.BuildInfo, opts ...Option) (func(), error) {
	if settings == nil || !settings.Enabled {
		return func() {}, nil
	}
	if settings.DSN == "" {
		return nil, errors.Newf("sentry is enabled but no DSN is configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}
	sampleRate := settings.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}

	options := sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       sampleRate,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          "menulens@" + build.GetVersion(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}
	if err := sentry.Init(options); err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("system_id", build.GetSystemID())
		scope.SetContext("application", map[string]any{
			"name":       "MenuLens",
			"version":    build.GetVersion(),
			"build_date": build.GetBuildDate(),
		})
	})
	errors.SetTelemetryReporter(errors.NewSentryReporter(true, sentry.CurrentHub()))

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(FlushTimeout)
	}, nil
}

// applyPrivacyFilters removes identifying data from event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	for k := range event.Extra {
		if !allowedExtra[k] {
			delete(event.Extra, k)
		}
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}
