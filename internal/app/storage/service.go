package storage

import (
	"bytes"
	"context"
	"errors"
	"time"

	"francoggm/terminal-payments-demo/internal/models"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const (
	paymentsKey      = "payments"
	captureKeyPrefix = "capture:"
	eventKeyPrefix   = "webhook_event:"

	// Stripe keeps idempotency keys for 24h and retries webhooks for up to 3 days.
	captureClaimTTL = 24 * time.Hour
	eventTTL        = 72 * time.Hour

	maxUpdateAttempts = 10
)

var ErrUpdateContended = errors.New("payment record kept changing during update")

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

type StorageService struct {
	cache *redis.Client
}

func NewStorageService(cache *redis.Client) *StorageService {
	return &StorageService{
		cache: cache,
	}
}

func (s *StorageService) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx).Err()
}

func (s *StorageService) SavePayment(ctx context.Context, record *models.PaymentRecord) error {
	payload, err := marshalRecord(record)
	if err != nil {
		return err
	}

	return s.cache.HSet(ctx, paymentsKey, record.IntentID, payload).Err()
}

func (s *StorageService) GetPayment(ctx context.Context, intentID string) (*models.PaymentRecord, error) {
	return getPayment(ctx, s.cache, intentID)
}

func getPayment(ctx context.Context, cache hashGetter, intentID string) (*models.PaymentRecord, error) {
	data, err := cache.HGet(ctx, paymentsKey, intentID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record models.PaymentRecord
	if err := sonic.ConfigFastest.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

func (s *StorageService) GetPaymentsSummary(ctx context.Context, from, to *time.Time) (*models.PaymentsSummary, error) {
	paymentsMap, err := s.cache.HGetAll(ctx, paymentsKey).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*models.PaymentRecord, 0, len(paymentsMap))
	for _, data := range paymentsMap {
		var record models.PaymentRecord

		decoder := sonic.ConfigFastest.NewDecoder(bytes.NewReader([]byte(data)))
		if err := decoder.Decode(&record); err != nil {
			return nil, err
		}

		records = append(records, &record)
	}

	return summarize(records, from, to), nil
}

// MergePayment folds a polled payment record into whatever is stored for its
// intent. A capture is never unset, and a timeout never replaces a settled
// outcome.
func (s *StorageService) MergePayment(ctx context.Context, record *models.PaymentRecord) error {
	return s.updatePayment(ctx, record.IntentID, func(stored *models.PaymentRecord) *models.PaymentRecord {
		return mergePayment(stored, record)
	})
}

// ApplyFollowUp folds a webhook follow-up into the stored record for its
// intent. A capture is never unset, and the webhook outcome replaces a timeout.
func (s *StorageService) ApplyFollowUp(ctx context.Context, followUp *models.FollowUp) error {
	return s.updatePayment(ctx, followUp.IntentID, func(stored *models.PaymentRecord) *models.PaymentRecord {
		return mergeFollowUp(stored, followUp, time.Now().UTC())
	})
}

// updatePayment is an optimistic read-modify-write on the payments hash. The
// write is dropped and retried when another writer touched the hash meanwhile.
func (s *StorageService) updatePayment(ctx context.Context, intentID string, merge func(*models.PaymentRecord) *models.PaymentRecord) error {
	txf := func(tx *redis.Tx) error {
		stored, err := getPayment(ctx, tx, intentID)
		if err != nil {
			return err
		}

		payload, err := marshalRecord(merge(stored))
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, paymentsKey, intentID, payload)
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := s.cache.Watch(ctx, txf, paymentsKey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}

	return ErrUpdateContended
}

func (s *StorageService) PurgePayments(ctx context.Context) error {
	return s.cache.Del(ctx, paymentsKey).Err()
}

// ClaimCapture reserves the right to capture intentID. Only the first caller
// within the claim window gets true.
func (s *StorageService) ClaimCapture(ctx context.Context, intentID string) (bool, error) {
	return s.cache.SetNX(ctx, captureKeyPrefix+intentID, time.Now().UTC().Format(time.RFC3339), captureClaimTTL).Result()
}

func (s *StorageService) ReleaseCapture(ctx context.Context, intentID string) error {
	return s.cache.Del(ctx, captureKeyPrefix+intentID).Err()
}

// MarkEventProcessed records a webhook event ID and reports whether it was new.
func (s *StorageService) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	return s.cache.SetNX(ctx, eventKeyPrefix+eventID, 1, eventTTL).Result()
}

func (s *StorageService) ForgetEvent(ctx context.Context, eventID string) error {
	return s.cache.Del(ctx, eventKeyPrefix+eventID).Err()
}

func summarize(records []*models.PaymentRecord, from, to *time.Time) *models.PaymentsSummary {
	var paymentsSummary models.PaymentsSummary

	for _, record := range records {
		if !paymentWithinTime(record.RecordedAt, from, to) {
			continue
		}

		switch record.Outcome {
		case models.OutcomeSucceeded:
			paymentsSummary.Succeeded.TotalRequests++
			paymentsSummary.Succeeded.TotalAmount += record.Amount
		case models.OutcomeFailed:
			paymentsSummary.Failed.TotalRequests++
			paymentsSummary.Failed.TotalAmount += record.Amount
		case models.OutcomeTimeout:
			paymentsSummary.Timeout.TotalRequests++
			paymentsSummary.Timeout.TotalAmount += record.Amount
		}

		if record.Captured {
			paymentsSummary.Captured.TotalRequests++
			paymentsSummary.Captured.TotalAmount += record.Amount
		}
	}

	return &paymentsSummary
}

func mergeFollowUp(record *models.PaymentRecord, followUp *models.FollowUp, now time.Time) *models.PaymentRecord {
	if record == nil {
		return &models.PaymentRecord{
			IntentID:   followUp.IntentID,
			ReaderID:   followUp.ReaderID,
			Outcome:    followUp.Outcome,
			Captured:   followUp.Captured,
			Source:     models.SourceWebhook,
			RecordedAt: now,
		}
	}

	merged := *record
	merged.Captured = record.Captured || followUp.Captured
	if record.Outcome == models.OutcomeTimeout || record.Outcome == "" {
		merged.Outcome = followUp.Outcome
		merged.Source = models.SourceWebhook
	}

	return &merged
}

// mergePayment lays incoming over stored. Captured is sticky and a timeout
// does not overwrite a succeeded or failed outcome already on record.
func mergePayment(stored, incoming *models.PaymentRecord) *models.PaymentRecord {
	merged := *incoming
	if stored == nil {
		return &merged
	}

	merged.Captured = stored.Captured || incoming.Captured

	settled := stored.Outcome != "" && stored.Outcome != models.OutcomeTimeout
	if settled && (incoming.Outcome == models.OutcomeTimeout || incoming.Outcome == "") {
		merged.Outcome = stored.Outcome
		merged.Source = stored.Source
	}

	if merged.ReaderID == "" {
		merged.ReaderID = stored.ReaderID
	}
	if merged.Amount == 0 {
		merged.Amount = stored.Amount
		merged.Currency = stored.Currency
	}
	if !stored.RecordedAt.IsZero() && (merged.RecordedAt.IsZero() || stored.RecordedAt.Before(merged.RecordedAt)) {
		merged.RecordedAt = stored.RecordedAt
	}

	return &merged
}

func marshalRecord(record *models.PaymentRecord) ([]byte, error) {
	data, err := sonic.ConfigFastest.Marshal(record)
	if err != nil {
		return nil, err
	}

	return data, nil
}

func paymentWithinTime(recordedAt time.Time, from, to *time.Time) bool {
	if from != nil && recordedAt.Before(*from) {
		return false
	}

	if to != nil && recordedAt.After(*to) {
		return false
	}

	return true
}
