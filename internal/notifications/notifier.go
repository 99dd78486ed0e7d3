package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"studai/internal/logging"
)

// Notifier stamps and delivers progress events. It never returns delivery
// errors; failures are logged.
type Notifier struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewNotifier builds a Notifier that logs delivery failures to logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logging.NewComponentLogger(logger, "notifier"),
		now:    time.Now,
	}
}

// Notify delivers event to dest. A nil destination drops the event.
func (n *Notifier) Notify(ctx context.Context, dest Destination, event Event) {
	if n == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = n.now().UTC()
	}
	logger := logging.WithContext(ctx, n.logger)
	if dest == nil {
		logger.Debug("progress event dropped; no destination",
			logging.String("event_stage", string(event.Stage)),
		)
		return
	}
	if err := dest.Send(ctx, event); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("progress event cancelled", logging.String("event_stage", string(event.Stage)))
			return
		}
		logging.WarnWithContext(logger, "progress event delivery failed", "progress_delivery_failed",
			logging.String("destination", dest.Kind()),
			logging.String("event_stage", string(event.Stage)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the callback URL or client connection"),
			logging.String(logging.FieldImpact, "observer misses this progress update; the job continues"),
		)
		return
	}
	logger.Debug("progress event delivered",
		logging.String("destination", dest.Kind()),
		logging.String("event_stage", string(event.Stage)),
	)
}
