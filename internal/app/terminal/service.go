// Package terminal drives card-present payments on a terminal reader: reader
// registration and lookup, the payment-intent lifecycle and capture.
//
// The provider is the only serialization point per reader. Two payments
// started on the same reader at once race there; this package adds no lock.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"francoggm/terminal-payments-demo/internal/app/provider"
	"francoggm/terminal-payments-demo/internal/models"
)

var (
	ErrNoReaderAvailable = errors.New("no terminal reader available")
	ErrPollTimeout       = errors.New("timed out waiting for reader action")
)

const cleanupTimeout = 5 * time.Second

// Ledger is the state the service keeps beside the provider: capture claims
// and payment records.
type Ledger interface {
	ClaimCapture(ctx context.Context, intentID string) (bool, error)
	ReleaseCapture(ctx context.Context, intentID string) error
	MergePayment(ctx context.Context, record *models.PaymentRecord) error
}

type Options struct {
	Amount          int64
	Currency        string
	SimulatedReader bool
	Poll            PollConfig
	Logger          *slog.Logger
}

type Service struct {
	provider        provider.Provider
	ledger          Ledger
	amount          int64
	currency        string
	simulatedReader bool
	poll            PollConfig
	logger          *slog.Logger
	now             func() time.Time
}

func NewService(p provider.Provider, ledger Ledger, opts Options) *Service {
	if opts.Amount <= 0 {
		opts.Amount = 1000
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		provider:        p,
		ledger:          ledger,
		amount:          opts.Amount,
		currency:        opts.Currency,
		simulatedReader: opts.SimulatedReader,
		poll:            opts.Poll.withDefaults(),
		logger:          opts.Logger.With("component", "terminal"),
		now:             time.Now,
	}
}

// RegisterReader registers a physical reader with the provider. Inputs are
// forwarded untouched; the provider does all validation.
func (s *Service) RegisterReader(ctx context.Context, req models.RegisterReaderRequest) (*models.Reader, error) {
	reader, err := s.provider.CreateReader(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("register reader %q: %w", req.Label, err)
	}

	s.logger.Info("reader registered", "reader_id", reader.ID, "label", reader.Label, "location", req.Location)
	return reader, nil
}

func (s *Service) ListReaders(ctx context.Context) ([]*models.Reader, error) {
	readers, err := s.provider.ListReaders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list readers: %w", err)
	}
	return readers, nil
}

// ResolveReader returns the session's reader, or the first reader the
// provider lists when the session has none or holds a stale ID. listed is
// true when the reader came from listing and the session should be updated.
func (s *Service) ResolveReader(ctx context.Context, readerID string) (reader *models.Reader, listed bool, err error) {
	if readerID != "" {
		reader, err := s.provider.GetReader(ctx, readerID)
		if err == nil {
			return reader, false, nil
		}
		if !provider.IsNotFound(err) {
			return nil, false, fmt.Errorf("retrieve reader %s: %w", readerID, err)
		}

		s.logger.Warn("session reader no longer exists, listing readers", "reader_id", readerID)
	}

	readers, err := s.ListReaders(ctx)
	if err != nil {
		return nil, false, err
	}

	// The demo assumes a single reader.
	if len(readers) == 0 {
		return nil, false, ErrNoReaderAvailable
	}

	return readers[0], true, nil
}

// SimulatePayment authorizes a payment on readerID and captures it once the
// reader reports success. On timeout the result carries OutcomeTimeout and the
// error is ErrPollTimeout; nothing is captured.
func (s *Service) SimulatePayment(ctx context.Context, readerID string) (*models.PaymentResult, error) {
	start := s.now()

	intent, err := s.provider.CreatePaymentIntent(ctx, s.amount, s.currency)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	logger := s.logger.With("reader_id", readerID, "payment_intent", intent.ID)
	logger.Info("payment intent created", "amount", intent.Amount, "currency", intent.Currency)

	reader, err := s.provider.ProcessPaymentIntent(ctx, readerID, intent.ID)
	if err != nil {
		return nil, fmt.Errorf("hand payment intent %s to reader: %w", intent.ID, err)
	}

	if s.simulatedReader {
		reader, err = s.provider.PresentPaymentMethod(ctx, readerID)
		if err != nil {
			return nil, fmt.Errorf("present test card on reader: %w", err)
		}
	}

	result := &models.PaymentResult{
		IntentID: intent.ID,
		ReaderID: readerID,
	}

	reader, err = s.waitForAction(ctx, readerID, reader)
	if err != nil {
		if !errors.Is(err, ErrPollTimeout) {
			return nil, fmt.Errorf("wait for reader action: %w", err)
		}

		logger.Warn("reader action did not finish in time, canceling", "timeout", s.poll.Timeout)
		result.Outcome = models.OutcomeTimeout
		s.cancelAction(ctx, readerID)
		s.record(ctx, result, intent)
		paymentOutcomesTotal.WithLabelValues(string(result.Outcome)).Inc()
		return result, err
	}

	paymentDuration.Observe(s.now().Sub(start).Seconds())

	action := reader.Action
	switch {
	case reader.ActionStatus() == models.ActionStatusSucceeded && action.PaymentIntentID != "" && action.PaymentIntentID != intent.ID:
		// Another payment replaced ours on the reader; its outcome says nothing about this intent.
		logger.Warn("reader action belongs to another payment intent", "action_intent", action.PaymentIntentID)
		result.Outcome = models.OutcomeFailed
		result.FailureCode = "action_superseded"

	case reader.ActionStatus() == models.ActionStatusSucceeded:
		result.Outcome = models.OutcomeSucceeded

		captured, err := s.Capture(ctx, intent.ID)
		result.Captured = captured
		if err != nil {
			paymentOutcomesTotal.WithLabelValues(string(result.Outcome)).Inc()
			s.record(ctx, result, intent)
			return result, fmt.Errorf("capture payment intent %s: %w", intent.ID, err)
		}

	default:
		result.Outcome = models.OutcomeFailed
		if action != nil {
			result.FailureCode = action.FailureCode
			result.FailureMessage = action.FailureMessage
		}
		logger.Info("reader action did not succeed", "status", reader.ActionStatus(), "failure_code", result.FailureCode)
	}

	paymentOutcomesTotal.WithLabelValues(string(result.Outcome)).Inc()
	s.record(ctx, result, intent)

	return result, nil
}

// Capture finalizes a manual authorization at most once. It returns false
// without error when someone else already claimed or completed the capture.
func (s *Service) Capture(ctx context.Context, intentID string) (bool, error) {
	claimed, err := s.ledger.ClaimCapture(ctx, intentID)
	if err != nil {
		capturesTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("claim capture: %w", err)
	}
	if !claimed {
		capturesTotal.WithLabelValues("skipped").Inc()
		s.logger.Info("capture already claimed", "payment_intent", intentID)
		return false, nil
	}

	if _, err := s.provider.CapturePaymentIntent(ctx, intentID); err != nil {
		if provider.IsAlreadyCaptured(err) {
			capturesTotal.WithLabelValues("already_captured").Inc()
			s.logger.Info("payment intent was already captured", "payment_intent", intentID)
			return false, nil
		}

		capturesTotal.WithLabelValues("error").Inc()
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if relErr := s.ledger.ReleaseCapture(releaseCtx, intentID); relErr != nil {
			s.logger.Error("failed to release capture claim", "payment_intent", intentID, "error", relErr)
		}
		return false, err
	}

	capturesTotal.WithLabelValues("captured").Inc()
	s.logger.Info("payment intent captured", "payment_intent", intentID)
	return true, nil
}

func (s *Service) cancelAction(ctx context.Context, readerID string) {
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if _, err := s.provider.CancelReaderAction(cancelCtx, readerID); err != nil {
		s.logger.Warn("failed to cancel reader action", "reader_id", readerID, "error", err)
	}
}

func (s *Service) record(ctx context.Context, result *models.PaymentResult, intent *models.PaymentIntent) {
	record := &models.PaymentRecord{
		IntentID:   result.IntentID,
		ReaderID:   result.ReaderID,
		Amount:     intent.Amount,
		Currency:   intent.Currency,
		Outcome:    result.Outcome,
		Captured:   result.Captured,
		Source:     models.SourcePoll,
		RecordedAt: s.now().UTC(),
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.ledger.MergePayment(saveCtx, record); err != nil {
		s.logger.Error("failed to save payment record", "payment_intent", record.IntentID, "error", err)
	}
}
