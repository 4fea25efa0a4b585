package notifications

import (
	"context"
	"time"

	"github.com/rettinghaus/sentry/log"
	"github.com/rettinghaus/sentry/notifications/internal/errortracking"
)

const reportFlushTimeout = 5 * time.Second

// runReported runs fn and reports its error, if any, before returning it.
func runReported(ctx context.Context, reporter errortracking.Reporter, tags map[string]string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	reporter.Capture(ctx, err, tags)
	if !reporter.Flush(reportFlushTimeout) {
		log.GetLogger(log.WithContext(ctx)).Warn("timed out flushing error reports")
	}

	return err
}
