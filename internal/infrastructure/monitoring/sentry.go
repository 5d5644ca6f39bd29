package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kidpech/authbridge/internal/config"
)

// InitSentry configures sentry if DSN provided.
func InitSentry(cfg config.MonitoringConfig, app config.AppConfig) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Release:          app.Version,
		Environment:      app.Env,
		TracesSampleRate: cfg.SentrySampleRate,
	})
}

// SentryReporter forwards login failures to the current hub.
type SentryReporter struct {
	Hub *sentry.Hub
}

// Report implements login.ErrorReporter.
func (r SentryReporter) Report(err error, tags map[string]string) {
	hub := r.Hub
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// Flush ensures buffered events ship.
func Flush() {
	sentry.Flush(2 * time.Second)
}
