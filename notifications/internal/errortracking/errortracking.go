//go:generate mockgen -package mocks -destination mocks/reporter.go . Reporter

// Package errortracking reports operational failures to an external error tracking service.
package errortracking

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rettinghaus/sentry/log"
	"github.com/rettinghaus/sentry/version"
	"gitlab.com/gitlab-org/labkit/correlation"
)

const correlationIDTag = "correlation_id"

// Reporter captures errors for later inspection.
type Reporter interface {
	// Capture reports err, tagged with tags and the correlation ID found in ctx, if any.
	Capture(ctx context.Context, err error, tags map[string]string)
	// Flush waits up to timeout for buffered reports to be delivered. It returns false if the timeout was reached.
	Flush(timeout time.Duration) bool
}

// Options configures a Sentry reporter.
type Options struct {
	DSN         string
	Environment string
	// Transport overrides the HTTP transport. For test purposes.
	Transport sentry.Transport
}

type sentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter builds a Reporter that sends errors to the Sentry project identified by opts.DSN.
func NewSentryReporter(opts Options) (Reporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     version.Version,
		Transport:   opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("creating sentry client: %w", err)
	}

	return &sentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Capture implements Reporter.
func (r *sentryReporter) Capture(ctx context.Context, err error, tags map[string]string) {
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if id := correlation.ExtractFromContext(ctx); id != "" {
			scope.SetTag(correlationIDTag, id)
		}
		if id := r.hub.CaptureException(err); id != nil {
			log.GetLogger(log.WithContext(ctx)).WithFields(log.Fields{"sentry_event_id": string(*id)}).Debug("error reported")
		}
	})
}

// Flush implements Reporter.
func (r *sentryReporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

type nopReporter struct{}

// NewNopReporter builds a Reporter that drops everything.
func NewNopReporter() Reporter {
	return nopReporter{}
}

// Capture implements Reporter.
func (nopReporter) Capture(context.Context, error, map[string]string) {}

// Flush implements Reporter.
func (nopReporter) Flush(time.Duration) bool { return true }
