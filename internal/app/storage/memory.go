package storage

import (
	"context"
	"sync"
	"time"

	"francoggm/terminal-payments-demo/internal/models"
)

// MemoryStore keeps claims, event IDs and payment records in process. It backs
// the CLI and tests; claim windows are not enforced since nothing outlives the
// process.
type MemoryStore struct {
	mu       sync.Mutex
	payments map[string]*models.PaymentRecord
	captures map[string]struct{}
	events   map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments: make(map[string]*models.PaymentRecord),
		captures: make(map[string]struct{}),
		events:   make(map[string]struct{}),
	}
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) SavePayment(_ context.Context, record *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *record
	m.payments[record.IntentID] = &stored
	return nil
}

func (m *MemoryStore) GetPayment(_ context.Context, intentID string) (*models.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.payments[intentID]
	if !ok {
		return nil, nil
	}

	out := *record
	return &out, nil
}

func (m *MemoryStore) GetPaymentsSummary(_ context.Context, from, to *time.Time) (*models.PaymentsSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]*models.PaymentRecord, 0, len(m.payments))
	for _, record := range m.payments {
		records = append(records, record)
	}

	return summarize(records, from, to), nil
}

func (m *MemoryStore) MergePayment(_ context.Context, record *models.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.payments[record.IntentID] = mergePayment(m.payments[record.IntentID], record)
	return nil
}

func (m *MemoryStore) ApplyFollowUp(_ context.Context, followUp *models.FollowUp) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.payments[followUp.IntentID] = mergeFollowUp(m.payments[followUp.IntentID], followUp, time.Now().UTC())
	return nil
}

func (m *MemoryStore) PurgePayments(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.payments = make(map[string]*models.PaymentRecord)
	return nil
}

func (m *MemoryStore) ClaimCapture(_ context.Context, intentID string) (bool, error) {
	return m.claim(m.captures, intentID), nil
}

func (m *MemoryStore) ReleaseCapture(_ context.Context, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.captures, intentID)
	return nil
}

func (m *MemoryStore) MarkEventProcessed(_ context.Context, eventID string) (bool, error) {
	return m.claim(m.events, eventID), nil
}

func (m *MemoryStore) ForgetEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.events, eventID)
	return nil
}

func (m *MemoryStore) claim(set map[string]struct{}, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := set[key]; ok {
		return false
	}
	set[key] = struct{}{}
	return true
}
