// Package provider is the boundary to the payment provider. Callers depend on
// the Provider interface; Stripe is the only implementation.
package provider

import (
	"context"
	"errors"
	"fmt"

	"francoggm/terminal-payments-demo/internal/models"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

type Provider interface {
	CreateReader(ctx context.Context, req models.RegisterReaderRequest) (*models.Reader, error)
	GetReader(ctx context.Context, readerID string) (*models.Reader, error)
	ListReaders(ctx context.Context) ([]*models.Reader, error)
	ProcessPaymentIntent(ctx context.Context, readerID, intentID string) (*models.Reader, error)
	PresentPaymentMethod(ctx context.Context, readerID string) (*models.Reader, error)
	CancelReaderAction(ctx context.Context, readerID string) (*models.Reader, error)

	CreatePaymentIntent(ctx context.Context, amount int64, currency string) (*models.PaymentIntent, error)
	CapturePaymentIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error)
}

type EventVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (*models.WebhookEvent, error)
}

// Error is a call the provider rejected or that never reached it.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	// IntentStatus is the payment intent status the provider reported along
	// with the error, if any.
	IntentStatus string
	Err          error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider %s failed (status %d, code %s): %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("provider %s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Kind() string { return "provider_error" }

const (
	codeResourceMissing       = "resource_missing"
	codeIntentUnexpectedState = "payment_intent_unexpected_state"
)

// IsNotFound reports whether err is a provider answer for an unknown object.
func IsNotFound(err error) bool {
	var perr *Error
	if !errors.As(err, &perr) {
		return false
	}

	return perr.Code == codeResourceMissing || perr.StatusCode == 404
}

// IsAlreadyCaptured reports whether a capture was rejected because the intent
// had already been captured.
func IsAlreadyCaptured(err error) bool {
	var perr *Error
	if !errors.As(err, &perr) {
		return false
	}

	return perr.Code == codeIntentUnexpectedState && perr.IntentStatus == "succeeded"
}
