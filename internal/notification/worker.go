package notification

import (
	"context"
	"log/slog"
	"time"
)

// Worker drains the emitter's outbox into the publisher. Publish failures
// are retried with backoff and eventually dropped; the event store already
// holds the event, so delivery is at-least-eventually from either path.
type Worker struct {
	inbox   <-chan Event
	pub     Publisher
	logger  *slog.Logger
	retries int
	backoff time.Duration
}

func NewWorker(inbox <-chan Event, pub Publisher, logger *slog.Logger) *Worker {
	return &Worker{
		inbox:   inbox,
		pub:     pub,
		logger:  logger,
		retries: 3,
		backoff: 250 * time.Millisecond,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-w.inbox:
			w.publish(ctx, ev)
		}
	}
}

func (w *Worker) publish(ctx context.Context, ev Event) {
	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff * time.Duration(attempt)):
			}
		}
		if err = w.pub.Publish(ctx, ev); err == nil {
			return
		}
	}
	if w.logger != nil {
		w.logger.ErrorContext(ctx, "giving up publishing notification event",
			"event_id", ev.ID.String(),
			"kind", string(ev.Kind),
			"error", err,
		)
	}
}
