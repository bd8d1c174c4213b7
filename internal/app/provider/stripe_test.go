package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"francoggm/terminal-payments-demo/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

func newTestStripe(t *testing.T, handler http.HandlerFunc) *Stripe {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewStripe(StripeOptions{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		BackendURL:    srv.URL,
		HTTPClient:    srv.Client(),
	})
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestStripe_ProcessPaymentIntent(t *testing.T) {
	var gotPath string
	var gotForm url.Values

	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotForm = r.PostForm
		writeBody(w, http.StatusOK, `{
			"id": "tmr_123",
			"object": "terminal.reader",
			"label": "front desk",
			"device_type": "simulated_wisepos_e",
			"location": "tml_1",
			"action": {
				"type": "process_payment_intent",
				"status": "in_progress",
				"process_payment_intent": {"payment_intent": "pi_1"}
			}
		}`)
	})

	reader, err := s.ProcessPaymentIntent(context.Background(), "tmr_123", "pi_1")
	require.NoError(t, err)

	assert.Equal(t, "/v1/terminal/readers/tmr_123/process_payment_intent", gotPath)
	assert.Equal(t, "pi_1", gotForm.Get("payment_intent"))
	assert.Equal(t, "tmr_123", reader.ID)
	assert.Equal(t, "tml_1", reader.LocationID)
	assert.Equal(t, models.ActionStatusInProgress, reader.ActionStatus())
	assert.Equal(t, "pi_1", reader.Action.PaymentIntentID)
}

func TestStripe_CreatePaymentIntent(t *testing.T) {
	var gotForm url.Values
	var idempotencyKey string

	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		idempotencyKey = r.Header.Get("Idempotency-Key")
		writeBody(w, http.StatusOK, `{"id":"pi_1","object":"payment_intent","amount":1000,"currency":"usd","capture_method":"manual","status":"requires_payment_method"}`)
	})

	intent, err := s.CreatePaymentIntent(context.Background(), 1000, "usd")
	require.NoError(t, err)

	assert.Equal(t, "1000", gotForm.Get("amount"))
	assert.Equal(t, "usd", gotForm.Get("currency"))
	assert.Equal(t, "manual", gotForm.Get("capture_method"))
	assert.Equal(t, "card_present", gotForm.Get("payment_method_types[0]"))
	assert.NotEmpty(t, idempotencyKey)
	assert.Equal(t, "pi_1", intent.ID)
	assert.Equal(t, "manual", intent.CaptureMethod)
}

func TestStripe_GetReaderNotFound(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusNotFound, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such terminal.reader: 'tmr_gone'"}}`)
	})

	_, err := s.GetReader(context.Background(), "tmr_gone")
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "retrieve reader", perr.Op)
	assert.Equal(t, http.StatusNotFound, perr.StatusCode)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAlreadyCaptured(err))
}

func TestStripe_CaptureAlreadyCaptured(t *testing.T) {
	var idempotencyKey string

	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		idempotencyKey = r.Header.Get("Idempotency-Key")
		writeBody(w, http.StatusBadRequest, `{"error":{
			"type":"invalid_request_error",
			"code":"payment_intent_unexpected_state",
			"message":"This PaymentIntent could not be captured because it has a status of succeeded.",
			"payment_intent":{"id":"pi_1","object":"payment_intent","status":"succeeded"}
		}}`)
	})

	_, err := s.CapturePaymentIntent(context.Background(), "pi_1")
	require.Error(t, err)

	assert.Equal(t, "capture-pi_1", idempotencyKey)
	assert.True(t, IsAlreadyCaptured(err))
	assert.False(t, IsNotFound(err))
}

func TestStripe_ListReaders(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"object":"list","has_more":false,"url":"/v1/terminal/readers","data":[
			{"id":"tmr_1","object":"terminal.reader","label":"one"},
			{"id":"tmr_2","object":"terminal.reader","label":"two"}
		]}`)
	})

	readers, err := s.ListReaders(context.Background())
	require.NoError(t, err)
	require.Len(t, readers, 2)
	assert.Equal(t, "tmr_1", readers[0].ID)
	assert.Equal(t, models.ActionStatusNotStarted, readers[0].ActionStatus())
}

func TestStripe_CanceledContext(t *testing.T) {
	s := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the backend")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetReader(ctx, "tmr_123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStripe_VerifyEvent(t *testing.T) {
	s := NewStripe(StripeOptions{SecretKey: "sk_test_123", WebhookSecret: testWebhookSecret})

	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2020-08-27",
		"type": "terminal.reader.action_succeeded",
		"data": {"object": {
			"id": "tmr_123",
			"object": "terminal.reader",
			"action": {"type": "process_payment_intent", "status": "succeeded", "process_payment_intent": {"payment_intent": "pi_1"}}
		}}
	}`)

	t.Run("valid", func(t *testing.T) {
		event, err := s.VerifyEvent(payload, signPayload(payload, testWebhookSecret, time.Now()))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, models.EventReaderActionSucceeded, event.Type)
		require.NotNil(t, event.Reader)
		assert.Equal(t, models.ActionStatusSucceeded, event.Reader.ActionStatus())
		assert.Equal(t, "pi_1", event.Reader.Action.PaymentIntentID)
	})

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing_header", header: ""},
		{name: "garbage_header", header: "nonsense"},
		{name: "wrong_secret", header: signPayload(payload, "whsec_other", time.Now())},
		{name: "too_old", header: signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := s.VerifyEvent(payload, tt.header)
			require.Error(t, err)
			assert.Nil(t, event)
			assert.True(t, errors.Is(err, ErrInvalidSignature), "got %v", err)
		})
	}

	t.Run("tampered_body", func(t *testing.T) {
		header := signPayload(payload, testWebhookSecret, time.Now())
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-2] = ' '

		_, err := s.VerifyEvent(tampered, header)
		assert.True(t, errors.Is(err, ErrInvalidSignature))
	})

	t.Run("signed_but_not_json", func(t *testing.T) {
		body := []byte("not json")
		_, err := s.VerifyEvent(body, signPayload(body, testWebhookSecret, time.Now()))
		assert.True(t, errors.Is(err, ErrMalformedEvent))
	})
}
