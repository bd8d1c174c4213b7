package processors

import (
	"context"
	"fmt"
	"time"

	"francoggm/terminal-payments-demo/internal/models"
)

const forgetTimeout = 5 * time.Second

type Processor interface {
	ProcessEvent(ctx context.Context, event any) error
}

// Abandoner is implemented by processors that undo bookkeeping once the pool
// stops retrying an event.
type Abandoner interface {
	Abandon(ctx context.Context, event any) error
}

// EventForgetter drops a webhook event ID so a redelivery is processed again.
type EventForgetter interface {
	ForgetEvent(ctx context.Context, eventID string) error
}

func followUpEvent(event any) (*models.FollowUp, error) {
	followUp, ok := event.(*models.FollowUp)
	if !ok || followUp == nil {
		return nil, fmt.Errorf("unexpected event type %T", event)
	}
	return followUp, nil
}

func forgetFollowUp(ctx context.Context, forgetter EventForgetter, event any) error {
	followUp, err := followUpEvent(event)
	if err != nil {
		return err
	}
	if followUp.EventID == "" {
		return nil
	}

	forgetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forgetTimeout)
	defer cancel()

	return forgetter.ForgetEvent(forgetCtx, followUp.EventID)
}
