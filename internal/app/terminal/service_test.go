package terminal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"francoggm/terminal-payments-demo/internal/app/provider"
	"francoggm/terminal-payments-demo/internal/app/provider/providertest"
	"francoggm/terminal-payments-demo/internal/app/storage"
	"francoggm/terminal-payments-demo/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPoll = PollConfig{
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	Timeout:         time.Second,
	MaxAttempts:     50,
}

func newTestService(t *testing.T, opts Options) (*Service, *providertest.Fake, *storage.MemoryStore) {
	t.Helper()

	fake := providertest.New()
	fake.AddReader("tmr_123", "front desk")
	ledger := storage.NewMemoryStore()

	if opts.Poll == (PollConfig{}) {
		opts.Poll = fastPoll
	}

	return NewService(fake, ledger, opts), fake, ledger
}

func TestSimulatePayment_SucceededCapturesOnce(t *testing.T) {
	svc, fake, ledger := newTestService(t, Options{})
	fake.NextIntentID = "pi_1"
	fake.SetActionSequence("tmr_123", models.ActionStatusInProgress, models.ActionStatusSucceeded)

	result, err := svc.SimulatePayment(context.Background(), "tmr_123")
	require.NoError(t, err)

	assert.Equal(t, "pi_1", result.IntentID)
	assert.Equal(t, models.OutcomeSucceeded, result.Outcome)
	assert.True(t, result.Captured)
	assert.Equal(t, 1, fake.CaptureCalls("pi_1"))
	assert.Zero(t, fake.PresentCalls())

	record, err := ledger.GetPayment(context.Background(), "pi_1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(1000), record.Amount)
	assert.Equal(t, "usd", record.Currency)
	assert.True(t, record.Captured)
	assert.Equal(t, models.SourcePoll, record.Source)
}

func TestSimulatePayment_FailedDoesNotCapture(t *testing.T) {
	svc, fake, ledger := newTestService(t, Options{})
	fake.NextIntentID = "pi_2"
	fake.FailureCode = "card_declined"
	fake.SetActionSequence("tmr_123", models.ActionStatusFailed)

	result, err := svc.SimulatePayment(context.Background(), "tmr_123")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	assert.Equal(t, "card_declined", result.FailureCode)
	assert.False(t, result.Captured)
	assert.Zero(t, fake.TotalCaptureCalls())

	record, _ := ledger.GetPayment(context.Background(), "pi_2")
	require.NotNil(t, record)
	assert.Equal(t, models.OutcomeFailed, record.Outcome)
}

func TestSimulatePayment_TimeoutNeverCaptures(t *testing.T) {
	svc, fake, ledger := newTestService(t, Options{Poll: PollConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Timeout:         time.Second,
		MaxAttempts:     3,
	}})
	fake.NextIntentID = "pi_3"
	fake.SetActionSequence("tmr_123", models.ActionStatusInProgress)

	result, err := svc.SimulatePayment(context.Background(), "tmr_123")
	require.ErrorIs(t, err, ErrPollTimeout)
	require.NotNil(t, result)

	assert.Equal(t, models.OutcomeTimeout, result.Outcome)
	assert.False(t, result.Captured)
	assert.Zero(t, fake.TotalCaptureCalls())
	assert.Equal(t, 3, fake.GetReaderCalls())
	assert.Equal(t, 1, fake.CancelCalls())

	record, _ := ledger.GetPayment(context.Background(), "pi_3")
	require.NotNil(t, record)
	assert.Equal(t, models.OutcomeTimeout, record.Outcome)
}

func TestSimulatePayment_DeadlineBoundsPolling(t *testing.T) {
	svc, fake, _ := newTestService(t, Options{Poll: PollConfig{
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Timeout:         30 * time.Millisecond,
		MaxAttempts:     1000,
	}})
	fake.SetActionSequence("tmr_123", models.ActionStatusInProgress)

	start := time.Now()
	result, err := svc.SimulatePayment(context.Background(), "tmr_123")
	require.ErrorIs(t, err, ErrPollTimeout)

	assert.Equal(t, models.OutcomeTimeout, result.Outcome)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, fake.TotalCaptureCalls())
}

func TestSimulatePayment_CallerCanceled(t *testing.T) {
	svc, fake, _ := newTestService(t, Options{Poll: PollConfig{
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Timeout:         time.Minute,
		MaxAttempts:     1000,
	}})
	fake.SetActionSequence("tmr_123", models.ActionStatusInProgress)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result, err := svc.SimulatePayment(ctx, "tmr_123")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.Is(err, ErrPollTimeout))
	assert.Nil(t, result)
	assert.Zero(t, fake.TotalCaptureCalls())
}

func TestSimulatePayment_SimulatedReaderPresentsCard(t *testing.T) {
	svc, fake, _ := newTestService(t, Options{SimulatedReader: true, Amount: 2500, Currency: "eur"})
	fake.SetActionSequence("tmr_123", models.ActionStatusSucceeded)

	result, err := svc.SimulatePayment(context.Background(), "tmr_123")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeSucceeded, result.Outcome)
	assert.Equal(t, 1, fake.PresentCalls())
}

func TestSimulatePayment_ProviderErrorsPropagate(t *testing.T) {
	svc, fake, _ := newTestService(t, Options{})
	fake.Errs["create payment intent"] = &provider.Error{Op: "create payment intent", StatusCode: 402, Code: "card_declined"}

	result, err := svc.SimulatePayment(context.Background(), "tmr_123")
	require.Error(t, err)
	assert.Nil(t, result)

	var perr *provider.Error
	assert.True(t, errors.As(err, &perr))
}

func TestSimulatePayment_CaptureFailureReleasesClaim(t *testing.T) {
	svc, fake, ledger := newTestService(t, Options{})
	fake.NextIntentID = "pi_4"
	fake.SetActionSequence("tmr_123", models.ActionStatusSucceeded)
	fake.Errs["capture payment intent"] = &provider.Error{Op: "capture payment intent", StatusCode: 500, Message: "boom"}
	succeeded := testutil.ToFloat64(paymentOutcomesTotal.WithLabelValues(string(models.OutcomeSucceeded)))

	result, err := svc.SimulatePayment(context.Background(), "tmr_123")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.OutcomeSucceeded, result.Outcome)
	assert.False(t, result.Captured)
	assert.Equal(t, succeeded+1, testutil.ToFloat64(paymentOutcomesTotal.WithLabelValues(string(models.OutcomeSucceeded))))

	claimed, err := ledger.ClaimCapture(context.Background(), "pi_4")
	require.NoError(t, err)
	assert.True(t, claimed, "failed capture must release its claim")
}

func TestSimulatePayment_KeepsWebhookCapture(t *testing.T) {
	svc, fake, ledger := newTestService(t, Options{})
	ctx := context.Background()
	fake.NextIntentID = "pi_1"
	fake.SetActionSequence("tmr_123", models.ActionStatusSucceeded)

	// The webhook worker got there first.
	claimed, err := ledger.ClaimCapture(ctx, "pi_1")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, ledger.ApplyFollowUp(ctx, &models.FollowUp{IntentID: "pi_1", ReaderID: "tmr_123", Outcome: models.OutcomeSucceeded, Captured: true}))

	result, err := svc.SimulatePayment(ctx, "tmr_123")
	require.NoError(t, err)
	assert.False(t, result.Captured)
	assert.Zero(t, fake.TotalCaptureCalls())

	record, err := ledger.GetPayment(ctx, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Captured)
	assert.Equal(t, models.OutcomeSucceeded, record.Outcome)
	assert.Equal(t, int64(1000), record.Amount)

	summary, err := ledger.GetPaymentsSummary(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Captured.TotalRequests)
}

func TestSimulatePayment_TimeoutKeepsWebhookOutcome(t *testing.T) {
	svc, fake, ledger := newTestService(t, Options{Poll: PollConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Timeout:         time.Second,
		MaxAttempts:     2,
	}})
	ctx := context.Background()
	fake.NextIntentID = "pi_5"
	fake.SetActionSequence("tmr_123", models.ActionStatusInProgress)

	require.NoError(t, ledger.ApplyFollowUp(ctx, &models.FollowUp{IntentID: "pi_5", ReaderID: "tmr_123", Outcome: models.OutcomeSucceeded, Captured: true}))

	result, err := svc.SimulatePayment(ctx, "tmr_123")
	require.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, models.OutcomeTimeout, result.Outcome)

	record, err := ledger.GetPayment(ctx, "pi_5")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.OutcomeSucceeded, record.Outcome)
	assert.Equal(t, models.SourceWebhook, record.Source)
	assert.True(t, record.Captured)
}

func TestCapture_Idempotent(t *testing.T) {
	svc, fake, _ := newTestService(t, Options{})
	ctx := context.Background()

	first, err := svc.Capture(ctx, "pi_1")
	require.NoError(t, err)
	second, err := svc.Capture(ctx, "pi_1")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, fake.CaptureCalls("pi_1"))
}

func TestCapture_Concurrent(t *testing.T) {
	svc, fake, _ := newTestService(t, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Capture(context.Background(), "pi_1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fake.CaptureCalls("pi_1"))
}

func TestCapture_AlreadyCapturedIsNoop(t *testing.T) {
	svc, fake, _ := newTestService(t, Options{})
	fake.MarkCaptured("pi_1")

	captured, err := svc.Capture(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.False(t, captured)
}

func TestResolveReader(t *testing.T) {
	ctx := context.Background()

	t.Run("session_reader", func(t *testing.T) {
		svc, fake, _ := newTestService(t, Options{})
		fake.AddReader("tmr_456", "back office")

		reader, listed, err := svc.ResolveReader(ctx, "tmr_456")
		require.NoError(t, err)
		assert.Equal(t, "tmr_456", reader.ID)
		assert.False(t, listed)
	})

	t.Run("no_session_lists_first", func(t *testing.T) {
		svc, fake, _ := newTestService(t, Options{})
		fake.AddReader("tmr_456", "back office")

		reader, listed, err := svc.ResolveReader(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "tmr_123", reader.ID)
		assert.True(t, listed)
	})

	t.Run("stale_session_falls_back", func(t *testing.T) {
		svc, _, _ := newTestService(t, Options{})

		reader, listed, err := svc.ResolveReader(ctx, "tmr_gone")
		require.NoError(t, err)
		assert.Equal(t, "tmr_123", reader.ID)
		assert.True(t, listed)
	})

	t.Run("no_readers", func(t *testing.T) {
		svc, fake, _ := newTestService(t, Options{})
		fake.RemoveReader("tmr_123")

		_, _, err := svc.ResolveReader(ctx, "")
		assert.ErrorIs(t, err, ErrNoReaderAvailable)
	})

	t.Run("provider_error", func(t *testing.T) {
		svc, fake, _ := newTestService(t, Options{})
		fake.Errs["retrieve reader"] = &provider.Error{Op: "retrieve reader", StatusCode: 500, Message: "down"}

		_, _, err := svc.ResolveReader(ctx, "tmr_123")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNoReaderAvailable))
	})
}

func TestRegisterReader(t *testing.T) {
	svc, fake, _ := newTestService(t, Options{})

	reader, err := svc.RegisterReader(context.Background(), models.RegisterReaderRequest{
		RegistrationCode: "simulated-wpe",
		Label:            "counter",
		Location:         "tml_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "counter", reader.Label)
	assert.Equal(t, "tml_1", reader.LocationID)

	fake.Errs["create reader"] = &provider.Error{Op: "create reader", StatusCode: 400, Code: "invalid_registration_code"}
	_, err = svc.RegisterReader(context.Background(), models.RegisterReaderRequest{Label: "x"})
	var perr *provider.Error
	assert.True(t, errors.As(err, &perr))
}

func TestPollConfig_Backoff(t *testing.T) {
	c := PollConfig{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second}.withDefaults()

	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{attempt: 0, base: 100 * time.Millisecond},
		{attempt: 1, base: 200 * time.Millisecond},
		{attempt: 2, base: 400 * time.Millisecond},
		{attempt: 4, base: time.Second},
		{attempt: 80, base: time.Second},
	}

	for _, tt := range tests {
		got := c.backoff(tt.attempt)
		assert.GreaterOrEqual(t, got, tt.base, "attempt %d", tt.attempt)
		assert.Less(t, got, tt.base+maxJitter, "attempt %d", tt.attempt)
	}
}
