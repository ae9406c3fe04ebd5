package telemetry

import (
	"fmt"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/menulens/internal/buildinfo"
	"github.com/tphakala/menulens/internal/conf"
	"github.com/tphakala/menulens/internal/errors"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(&conf.SentrySettings{}, buildinfo.NewContext("1.0.0", "", "sys"))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestInitRequiresDSN(t *testing.T) {
	_, err := Init(&conf.SentrySettings{Enabled: true}, buildinfo.NewContext("1.0.0", "", "sys"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestInitReportsEnhancedErrors(t *testing.T) {
	transport := &mockTransport{}
	settings := &conf.SentrySettings{
		Enabled:     true,
		DSN:         "https://public@example.invalid/1",
		Environment: "test",
	}
	shutdown, err := Init(settings, buildinfo.NewContext("1.2.3", "2026-10-01", "sys-42"), WithTransport(transport))
	require.NoError(t, err)
	t.Cleanup(func() {
		shutdown()
		sentry.CurrentHub().BindClient(nil)
	})

	reporter := errors.GetTelemetryReporter()
	require.NotNil(t, reporter)
	assert.True(t, reporter.IsEnabled())

	_ = errors.New(fmt.Errorf("write failed for /home/alice/data")).
		Component("generation").
		Category(errors.CategoryFileIO).
		Build()
	// expected traffic is not reported
	_ = errors.RateLimited(0)

	events := transport.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "menulens@1.2.3", ev.Release)
	assert.Equal(t, "test", ev.Environment)
	assert.Equal(t, "sys-42", ev.Tags["system_id"])
	assert.Empty(t, ev.ServerName)
	assert.NotContains(t, ev.Contexts, "os")
	assert.NotContains(t, ev.Contexts, "runtime")

	shutdown()
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestApplyPrivacyFilters(t *testing.T) {
	t.Parallel()

	ev := sentry.NewEvent()
	ev.User = sentry.User{ID: "u1", IPAddress: "10.0.0.1"}
	ev.ServerName = "kitchen-box"
	ev.Request = &sentry.Request{URL: "http://internal/api"}
	ev.Contexts = map[string]sentry.Context{"os": {"name": "linux"}, "application": {"name": "MenuLens"}}
	ev.Extra = map[string]any{"component": "ocr", "path": "/home/alice"}
	ev.Tags = map[string]string{"hostname": "kitchen-box", "kind": "timeout"}

	out := applyPrivacyFilters(ev)

	assert.True(t, out.User.IsEmpty())
	assert.Empty(t, out.ServerName)
	assert.Nil(t, out.Request)
	assert.Contains(t, out.Contexts, "application")
	assert.NotContains(t, out.Contexts, "os")
	assert.Equal(t, map[string]any{"component": "ocr"}, out.Extra)
	assert.Equal(t, map[string]string{"kind": "timeout"}, out.Tags)
}
