package processors

import (
	"context"

	"francoggm/terminal-payments-demo/internal/models"
)

type Capturer interface {
	Capture(ctx context.Context, intentID string) (bool, error)
}

// CaptureProcessor captures intents whose reader reported success, then hands
// the follow-up on to the storage workers.
type CaptureProcessor struct {
	capturer        Capturer
	forgetter       EventForgetter
	storageEventsCh chan any
}

func NewCaptureProcessor(capturer Capturer, forgetter EventForgetter, storageEventsCh chan any) *CaptureProcessor {
	return &CaptureProcessor{
		capturer:        capturer,
		forgetter:       forgetter,
		storageEventsCh: storageEventsCh,
	}
}

func (p *CaptureProcessor) ProcessEvent(ctx context.Context, event any) error {
	followUp, err := followUpEvent(event)
	if err != nil {
		return err
	}

	if followUp.Outcome == models.OutcomeSucceeded && !followUp.Captured {
		captured, err := p.capturer.Capture(ctx, followUp.IntentID)
		if err != nil {
			return err
		}
		followUp.Captured = captured
	}

	select {
	case p.storageEventsCh <- followUp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abandon forgets the follow-up's event so the provider's redelivery gets
// another capture attempt.
func (p *CaptureProcessor) Abandon(ctx context.Context, event any) error {
	return forgetFollowUp(ctx, p.forgetter, event)
}
