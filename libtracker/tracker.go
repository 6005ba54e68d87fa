package libtracker

import (
	"context"
	"log/slog"
	"time"
)

type contextKey string

// ActivityTracker reports the lifecycle of an operation: Start returns a
// reportErr function for failures, a reportChange function for state
// mutations worth auditing, and an end function that closes the span.
type ActivityTracker interface {
	Start(ctx context.Context, operation string, subject string, kvArgs ...any) (func(error), func(string, any), func())
}

// NoopTracker discards all activity. Useful as a default and in tests.
type NoopTracker struct{}

func (NoopTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (func(error), func(string, any), func()) {
	return func(error) {}, func(string, any) {}, func() {}
}

// ChainedTracker fans one activity stream out to multiple trackers.
type ChainedTracker []ActivityTracker

func (c ChainedTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (func(error), func(string, any), func()) {
	reportErrs := make([]func(error), 0, len(c))
	reportChanges := make([]func(string, any), 0, len(c))
	ends := make([]func(), 0, len(c))
	for _, tracker := range c {
		reportErr, reportChange, end := tracker.Start(ctx, operation, subject, kvArgs...)
		reportErrs = append(reportErrs, reportErr)
		reportChanges = append(reportChanges, reportChange)
		ends = append(ends, end)
	}
	return func(err error) {
			for _, f := range reportErrs {
				f(err)
			}
		}, func(entity string, data any) {
			for _, f := range reportChanges {
				f(entity, data)
			}
		}, func() {
			// end in reverse registration order, like deferred calls
			for i := len(ends) - 1; i >= 0; i-- {
				ends[i]()
			}
		}
}

type logActivityTracker struct {
	logger *slog.Logger
}

// NewLogActivityTracker returns a tracker that writes structured activity
// events to the given slog logger.
func NewLogActivityTracker(logger *slog.Logger) ActivityTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &logActivityTracker{logger: logger}
}

func (l *logActivityTracker) Start(ctx context.Context, operation string, subject string, kvArgs ...any) (func(error), func(string, any), func()) {
	started := time.Now().UTC()
	requestID, _ := ctx.Value(ContextKeyRequestID).(string)

	base := l.logger.With(
		"operation", operation,
		"subject", subject,
		"request_id", requestID,
	)
	if len(kvArgs) > 0 {
		base = base.With(kvArgs...)
	}
	base.Debug("activity started")

	reportErr := func(err error) {
		if err == nil {
			return
		}
		base.Error("activity failed", "error", err)
	}
	reportChange := func(entity string, data any) {
		base.Info("activity change", "entity", entity, "data", data)
	}
	end := func() {
		base.Debug("activity ended", "duration", time.Since(started))
	}
	return reportErr, reportChange, end
}
