package handlers

import (
	"context"
	"log/slog"
	"time"

	"francoggm/terminal-payments-demo/internal/app/session"
	"francoggm/terminal-payments-demo/internal/app/webhook"
	"francoggm/terminal-payments-demo/internal/config"
	"francoggm/terminal-payments-demo/internal/models"
)

type TerminalService interface {
	RegisterReader(ctx context.Context, req models.RegisterReaderRequest) (*models.Reader, error)
	ResolveReader(ctx context.Context, readerID string) (*models.Reader, bool, error)
	SimulatePayment(ctx context.Context, readerID string) (*models.PaymentResult, error)
}

type WebhookReceiver interface {
	Handle(ctx context.Context, payload []byte, signatureHeader string) (webhook.Dispatch, error)
}

type PaymentsStore interface {
	Ping(ctx context.Context) error
	GetPaymentsSummary(ctx context.Context, from, to *time.Time) (*models.PaymentsSummary, error)
	PurgePayments(ctx context.Context) error
}

type Handlers struct {
	cfg      *config.Config
	terminal TerminalService
	receiver WebhookReceiver
	store    PaymentsStore
	sessions *session.Store
	logger   *slog.Logger
}

func NewHandlers(cfg *config.Config, terminal TerminalService, receiver WebhookReceiver, store PaymentsStore, sessions *session.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handlers{
		cfg:      cfg,
		terminal: terminal,
		receiver: receiver,
		store:    store,
		sessions: sessions,
		logger:   logger,
	}
}
