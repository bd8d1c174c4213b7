package processors

import (
	"context"

	"francoggm/terminal-payments-demo/internal/models"
)

type FollowUpStore interface {
	EventForgetter
	ApplyFollowUp(ctx context.Context, followUp *models.FollowUp) error
}

type StorageProcessor struct {
	store FollowUpStore
}

func NewStorageProcessor(store FollowUpStore) *StorageProcessor {
	return &StorageProcessor{
		store: store,
	}
}

func (p *StorageProcessor) ProcessEvent(ctx context.Context, event any) error {
	followUp, err := followUpEvent(event)
	if err != nil {
		return err
	}

	return p.store.ApplyFollowUp(ctx, followUp)
}

func (p *StorageProcessor) Abandon(ctx context.Context, event any) error {
	return forgetFollowUp(ctx, p.store, event)
}
