// Package observability delivers unexpected errors to an external tracker.
package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// Reporter is the error sink the routing pipeline reports to. Reporting is
// fire and forget: implementations must never block or fail the request
// that reports.
type Reporter interface {
	CaptureException(err error, extras map[string]any)
}

// SentryReporter ships errors to Sentry.
type SentryReporter struct{}

// NewSentryReporter initializes the global Sentry client.
func NewSentryReporter(dsn, environment, release string) (*SentryReporter, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, fmt.Errorf("observability.NewSentryReporter: %w", err)
	}
	return &SentryReporter{}, nil
}

func (*SentryReporter) CaptureException(err error, extras map[string]any) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetExtras(extras)
		sentry.CaptureException(err)
	})
}

// Close flushes buffered events. Call on shutdown.
func (*SentryReporter) Close() {
	sentry.Flush(2 * time.Second)
}

// LogReporter is the fallback sink when no Sentry DSN is configured.
type LogReporter struct{}

func (LogReporter) CaptureException(err error, extras map[string]any) {
	log.Error().Err(err).Fields(extras).Msg("captured exception")
}
