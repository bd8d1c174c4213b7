// Package webhook turns verified provider notifications into follow-up work.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"francoggm/terminal-payments-demo/internal/app/provider"
	"francoggm/terminal-payments-demo/internal/models"
)

var ErrQueueFull = errors.New("follow-up queue is full")

const enqueueTimeout = 2 * time.Second

type Dispatch string

const (
	DispatchQueued    Dispatch = "queued"
	DispatchDuplicate Dispatch = "duplicate"
	DispatchIgnored   Dispatch = "ignored"
)

// Deduper remembers which event IDs were already acted on. Providers deliver
// at least once, so the same event may arrive several times.
type Deduper interface {
	MarkEventProcessed(ctx context.Context, eventID string) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

type Receiver struct {
	verifier  provider.EventVerifier
	deduper   Deduper
	followUps chan<- any
	logger    *slog.Logger
}

func NewReceiver(verifier provider.EventVerifier, deduper Deduper, followUps chan<- any, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Receiver{
		verifier:  verifier,
		deduper:   deduper,
		followUps: followUps,
		logger:    logger.With("component", "webhook"),
	}
}

// Handle verifies payload against the signature header and queues the
// follow-up it calls for. Nothing is dispatched unless verification passes.
func (r *Receiver) Handle(ctx context.Context, payload []byte, signatureHeader string) (Dispatch, error) {
	event, err := r.verifier.VerifyEvent(payload, signatureHeader)
	if err != nil {
		eventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return "", err
	}

	logger := r.logger.With("event_id", event.ID, "event_type", event.Type)

	followUp := followUpFor(event)
	if followUp == nil {
		eventsTotal.WithLabelValues(event.Type, string(DispatchIgnored)).Inc()
		if event.Type == models.EventReaderActionFailed {
			logActionFailure(logger, event.Reader)
		} else {
			logger.Debug("event needs no follow-up")
		}
		return DispatchIgnored, nil
	}

	fresh, err := r.deduper.MarkEventProcessed(ctx, event.ID)
	if err != nil {
		return "", fmt.Errorf("mark event %s: %w", event.ID, err)
	}
	if !fresh {
		eventsTotal.WithLabelValues(event.Type, string(DispatchDuplicate)).Inc()
		logger.Info("duplicate event delivery")
		return DispatchDuplicate, nil
	}

	if err := r.enqueue(ctx, followUp); err != nil {
		forgetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
		defer cancel()
		if ferr := r.deduper.ForgetEvent(forgetCtx, event.ID); ferr != nil {
			logger.Error("failed to forget event after enqueue failure", "error", ferr)
		}
		return "", err
	}

	eventsTotal.WithLabelValues(event.Type, string(DispatchQueued)).Inc()
	logger.Info("reader action follow-up queued",
		"reader_id", followUp.ReaderID,
		"payment_intent", followUp.IntentID,
		"outcome", followUp.Outcome,
	)
	return DispatchQueued, nil
}

func (r *Receiver) enqueue(ctx context.Context, followUp *models.FollowUp) error {
	timer := time.NewTimer(enqueueTimeout)
	defer timer.Stop()

	select {
	case r.followUps <- followUp:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// logActionFailure reports a failed reader action that is not tied to a
// payment intent, so there is no payment record to update.
func logActionFailure(logger *slog.Logger, reader *models.Reader) {
	if reader == nil {
		logger.Warn("reader action failed")
		return
	}

	attrs := []any{"reader_id", reader.ID}
	if reader.Action != nil {
		attrs = append(attrs,
			"action_type", reader.Action.Type,
			"failure_code", reader.Action.FailureCode,
			"failure_message", reader.Action.FailureMessage,
		)
	}
	logger.Warn("reader action failed", attrs...)
}

// followUpFor returns nil for events that need no follow-up.
func followUpFor(event *models.WebhookEvent) *models.FollowUp {
	reader := event.Reader
	if reader == nil || reader.Action == nil || reader.Action.PaymentIntentID == "" {
		return nil
	}

	followUp := &models.FollowUp{
		EventID:  event.ID,
		ReaderID: reader.ID,
		IntentID: reader.Action.PaymentIntentID,
	}

	switch {
	case event.Type == models.EventReaderActionSucceeded && reader.ActionStatus() == models.ActionStatusSucceeded:
		followUp.Outcome = models.OutcomeSucceeded
	case event.Type == models.EventReaderActionFailed:
		followUp.Outcome = models.OutcomeFailed
	default:
		return nil
	}

	return followUp
}
