package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"francoggm/terminal-payments-demo/internal/models"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
	"golang.org/x/time/rate"
)

const cardPresent = "card_present"

type StripeOptions struct {
	SecretKey     string
	WebhookSecret string

	// RateRPS and RateBurst throttle every outbound call made by this client.
	RateRPS   int
	RateBurst int

	MaxNetworkRetries int64
	HTTPClient        *http.Client
	// BackendURL overrides the API base URL; empty means api.stripe.com.
	BackendURL string
	Logger     *slog.Logger
}

type Stripe struct {
	api           *client.API
	webhookSecret string
	limiter       *rate.Limiter
}

func NewStripe(opts StripeOptions) *Stripe {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limit := rate.Inf
	if opts.RateRPS > 0 {
		limit = rate.Limit(opts.RateRPS)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        opts.HTTPClient,
		MaxNetworkRetries: stripe.Int64(opts.MaxNetworkRetries),
		LeveledLogger:     &leveledLogger{logger: opts.Logger.With("component", "stripe")},
	}
	if opts.BackendURL != "" {
		backendConfig.URL = stripe.String(opts.BackendURL)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	}

	return &Stripe{
		api:           client.New(opts.SecretKey, backends),
		webhookSecret: opts.WebhookSecret,
		limiter:       rate.NewLimiter(limit, burst),
	}
}

func (s *Stripe) CreateReader(ctx context.Context, req models.RegisterReaderRequest) (*models.Reader, error) {
	if err := s.wait(ctx, "create reader"); err != nil {
		return nil, err
	}

	params := &stripe.TerminalReaderParams{
		RegistrationCode: stripe.String(req.RegistrationCode),
		Label:            stripe.String(req.Label),
		Location:         stripe.String(req.Location),
	}
	params.Context = ctx

	reader, err := s.api.TerminalReaders.New(params)
	if err != nil {
		return nil, wrapError("create reader", err)
	}

	return readerFromStripe(reader), nil
}

func (s *Stripe) GetReader(ctx context.Context, readerID string) (*models.Reader, error) {
	if err := s.wait(ctx, "retrieve reader"); err != nil {
		return nil, err
	}

	params := &stripe.TerminalReaderParams{}
	params.Context = ctx

	reader, err := s.api.TerminalReaders.Get(readerID, params)
	if err != nil {
		return nil, wrapError("retrieve reader", err)
	}

	return readerFromStripe(reader), nil
}

func (s *Stripe) ListReaders(ctx context.Context) ([]*models.Reader, error) {
	if err := s.wait(ctx, "list readers"); err != nil {
		return nil, err
	}

	params := &stripe.TerminalReaderListParams{}
	params.Context = ctx

	var readers []*models.Reader
	it := s.api.TerminalReaders.List(params)
	for it.Next() {
		readers = append(readers, readerFromStripe(it.TerminalReader()))
	}
	if err := it.Err(); err != nil {
		return nil, wrapError("list readers", err)
	}

	return readers, nil
}

func (s *Stripe) ProcessPaymentIntent(ctx context.Context, readerID, intentID string) (*models.Reader, error) {
	if err := s.wait(ctx, "process payment intent"); err != nil {
		return nil, err
	}

	params := &stripe.TerminalReaderProcessPaymentIntentParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx

	reader, err := s.api.TerminalReaders.ProcessPaymentIntent(readerID, params)
	if err != nil {
		return nil, wrapError("process payment intent", err)
	}

	return readerFromStripe(reader), nil
}

// PresentPaymentMethod taps a test card on a simulated reader. Only valid with
// test-mode keys.
func (s *Stripe) PresentPaymentMethod(ctx context.Context, readerID string) (*models.Reader, error) {
	if err := s.wait(ctx, "present payment method"); err != nil {
		return nil, err
	}

	params := &stripe.TestHelpersTerminalReaderPresentPaymentMethodParams{}
	params.Context = ctx

	reader, err := s.api.TestHelpersTerminalReaders.PresentPaymentMethod(readerID, params)
	if err != nil {
		return nil, wrapError("present payment method", err)
	}

	return readerFromStripe(reader), nil
}

func (s *Stripe) CancelReaderAction(ctx context.Context, readerID string) (*models.Reader, error) {
	if err := s.wait(ctx, "cancel reader action"); err != nil {
		return nil, err
	}

	params := &stripe.TerminalReaderCancelActionParams{}
	params.Context = ctx

	reader, err := s.api.TerminalReaders.CancelAction(readerID, params)
	if err != nil {
		return nil, wrapError("cancel reader action", err)
	}

	return readerFromStripe(reader), nil
}

func (s *Stripe) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (*models.PaymentIntent, error) {
	if err := s.wait(ctx, "create payment intent"); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{cardPresent}),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapError("create payment intent", err)
	}

	return intentFromStripe(intent), nil
}

// CapturePaymentIntent captures with an idempotency key derived from the
// intent, so replays within the provider's key window return the first result.
func (s *Stripe) CapturePaymentIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	if err := s.wait(ctx, "capture payment intent"); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("capture-" + intentID)

	intent, err := s.api.PaymentIntents.Capture(intentID, params)
	if err != nil {
		return nil, wrapError("capture payment intent", err)
	}

	return intentFromStripe(intent), nil
}

// VerifyEvent checks the Stripe-Signature header against the raw payload
// before anything in the payload is interpreted.
func (s *Stripe) VerifyEvent(payload []byte, signatureHeader string) (*models.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
	}

	out := &models.WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if strings.HasPrefix(out.Type, "terminal.reader.") && event.Data != nil {
		// stripe objects carry their own UnmarshalJSON for expandable fields.
		var reader stripe.TerminalReader
		if err := json.Unmarshal(event.Data.Raw, &reader); err != nil {
			return nil, fmt.Errorf("%w: decode reader: %v", ErrMalformedEvent, err)
		}
		out.Reader = readerFromStripe(&reader)
	}

	return out, nil
}

func (s *Stripe) wait(ctx context.Context, op string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("provider %s: %w", op, err)
	}
	return nil
}

func wrapError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		perr := &Error{
			Op:         op,
			StatusCode: stripeErr.HTTPStatusCode,
			Code:       string(stripeErr.Code),
			Message:    stripeErr.Msg,
			Err:        err,
		}
		if stripeErr.PaymentIntent != nil {
			perr.IntentStatus = string(stripeErr.PaymentIntent.Status)
		}
		return perr
	}

	return &Error{Op: op, Err: err}
}

func readerFromStripe(r *stripe.TerminalReader) *models.Reader {
	if r == nil {
		return nil
	}

	reader := &models.Reader{
		ID:           r.ID,
		Label:        r.Label,
		DeviceType:   string(r.DeviceType),
		SerialNumber: r.SerialNumber,
		Status:       string(r.Status),
	}
	if r.Location != nil {
		reader.LocationID = r.Location.ID
	}

	if r.Action != nil {
		action := &models.ReaderAction{
			Type:           string(r.Action.Type),
			Status:         models.ActionStatus(r.Action.Status),
			FailureCode:    r.Action.FailureCode,
			FailureMessage: r.Action.FailureMessage,
		}
		if ppi := r.Action.ProcessPaymentIntent; ppi != nil && ppi.PaymentIntent != nil {
			action.PaymentIntentID = ppi.PaymentIntent.ID
		}
		reader.Action = action
	}

	return reader
}

func intentFromStripe(pi *stripe.PaymentIntent) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:            pi.ID,
		Amount:        pi.Amount,
		Currency:      string(pi.Currency),
		CaptureMethod: string(pi.CaptureMethod),
		Status:        string(pi.Status),
	}
}

type leveledLogger struct {
	logger *slog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

// Infof is demoted: the SDK logs every request line at info.
func (l *leveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
