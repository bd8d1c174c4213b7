package workers

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"francoggm/terminal-payments-demo/internal/app/workers/processors"
)

const (
	retryBaseDelay = 100 * time.Millisecond
	retryMaxJitter = 100
)

// retryEvent carries an event back into the channel after a failure.
type retryEvent struct {
	event    any
	attempts int
}

type worker struct {
	id              int
	pool            string
	maxRetries      int
	eventsCh        chan any
	eventsProcessor processors.Processor
	logger          *slog.Logger
}

func newWorker(id int, pool string, maxRetries int, eventsCh chan any, eventsProcessor processors.Processor, logger *slog.Logger) *worker {
	return &worker{
		id:              id,
		pool:            pool,
		maxRetries:      maxRetries,
		eventsCh:        eventsCh,
		eventsProcessor: eventsProcessor,
		logger:          logger,
	}
}

func (w *worker) start(ctx context.Context) {
	w.logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.eventsCh:
			if !ok {
				return
			}

			w.handle(ctx, event)
		}
	}
}

func (w *worker) handle(ctx context.Context, event any) {
	attempts := 0
	if retry, ok := event.(*retryEvent); ok {
		event = retry.event
		attempts = retry.attempts
	}

	err := w.eventsProcessor.ProcessEvent(ctx, event)
	if err == nil {
		eventsProcessedTotal.WithLabelValues(w.pool, "ok").Inc()
		return
	}

	attempts++
	if attempts > w.maxRetries {
		eventsProcessedTotal.WithLabelValues(w.pool, "dropped").Inc()
		w.logger.Error("giving up on event", "attempts", attempts, "error", err)
		w.abandon(ctx, event)
		return
	}

	eventsProcessedTotal.WithLabelValues(w.pool, "retried").Inc()
	delay := retryDelay(attempts)
	w.logger.Warn("event failed, retrying", "attempts", attempts, "delay", delay, "error", err)

	next := &retryEvent{event: event, attempts: attempts}
	time.AfterFunc(delay, func() {
		select {
		case w.eventsCh <- next:
		case <-ctx.Done():
		}
	})
}

func (w *worker) abandon(ctx context.Context, event any) {
	abandoner, ok := w.eventsProcessor.(processors.Abandoner)
	if !ok {
		return
	}

	if err := abandoner.Abandon(ctx, event); err != nil {
		w.logger.Error("failed to abandon event", "error", err)
	}
}

func retryDelay(attempts int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempts))) * retryBaseDelay
	jitter := time.Duration(rand.Intn(retryMaxJitter)) * time.Millisecond
	return backoff + jitter
}
