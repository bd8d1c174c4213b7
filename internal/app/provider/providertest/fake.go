// Package providertest has an in-memory provider.Provider for tests.
package providertest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"francoggm/terminal-payments-demo/internal/app/provider"
	"francoggm/terminal-payments-demo/internal/models"
)

// Fake serves readers and payment intents from memory. After
// ProcessPaymentIntent, successive GetReader calls walk the reader's action
// through the statuses set with SetActionSequence; the last one repeats.
type Fake struct {
	mu sync.Mutex

	readers   map[string]*models.Reader
	order     []string
	sequences map[string][]models.ActionStatus
	intents   map[string]*models.PaymentIntent
	captured  map[string]bool

	// Errs makes the named operation fail, e.g. Errs["create payment intent"].
	Errs map[string]error
	// NextIntentID is used for the next created intent; pi_<n> otherwise.
	NextIntentID string
	// FailureCode is set on the action when a sequence ends in failed.
	FailureCode string

	intentSeq      int
	readerSeq      int
	captureCalls   map[string]int
	getReaderCalls int
	presentCalls   int
	cancelCalls    int
}

func New() *Fake {
	return &Fake{
		readers:      make(map[string]*models.Reader),
		sequences:    make(map[string][]models.ActionStatus),
		intents:      make(map[string]*models.PaymentIntent),
		captured:     make(map[string]bool),
		captureCalls: make(map[string]int),
		Errs:         make(map[string]error),
	}
}

// AddReader makes a reader known to the fake, in listing order.
func (f *Fake) AddReader(id, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readers[id] = &models.Reader{ID: id, Label: label, Status: "online"}
	f.order = append(f.order, id)
}

func (f *Fake) RemoveReader(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.readers, id)
	for i, rid := range f.order {
		if rid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *Fake) SetActionSequence(readerID string, statuses ...models.ActionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sequences[readerID] = statuses
}

// SetReaderAction overwrites the reader's current action.
func (f *Fake) SetReaderAction(readerID string, action *models.ReaderAction) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r, ok := f.readers[readerID]; ok {
		r.Action = action
	}
}

// MarkCaptured makes later captures of intentID fail as already captured.
func (f *Fake) MarkCaptured(intentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.captured[intentID] = true
}

func (f *Fake) CaptureCalls(intentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.captureCalls[intentID]
}

func (f *Fake) TotalCaptureCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.captureCalls {
		total += n
	}
	return total
}

func (f *Fake) GetReaderCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.getReaderCalls
}

func (f *Fake) PresentCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.presentCalls
}

func (f *Fake) CancelCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.cancelCalls
}

func (f *Fake) CreateReader(_ context.Context, req models.RegisterReaderRequest) (*models.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errs["create reader"]; err != nil {
		return nil, err
	}

	f.readerSeq++
	id := fmt.Sprintf("tmr_fake%d", f.readerSeq)
	f.readers[id] = &models.Reader{ID: id, Label: req.Label, LocationID: req.Location, Status: "online"}
	f.order = append(f.order, id)

	return cloneReader(f.readers[id]), nil
}

func (f *Fake) GetReader(_ context.Context, readerID string) (*models.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getReaderCalls++
	if err := f.Errs["retrieve reader"]; err != nil {
		return nil, err
	}

	r, ok := f.readers[readerID]
	if !ok {
		return nil, notFound("retrieve reader", readerID)
	}

	if seq := f.sequences[readerID]; len(seq) > 0 && r.Action != nil {
		r.Action.Status = seq[0]
		if len(seq) > 1 {
			f.sequences[readerID] = seq[1:]
		}
		if seq[0] == models.ActionStatusFailed {
			r.Action.FailureCode = f.FailureCode
		}
	}

	return cloneReader(r), nil
}

func (f *Fake) ListReaders(_ context.Context) ([]*models.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errs["list readers"]; err != nil {
		return nil, err
	}

	readers := make([]*models.Reader, 0, len(f.order))
	for _, id := range f.order {
		readers = append(readers, cloneReader(f.readers[id]))
	}
	return readers, nil
}

func (f *Fake) ProcessPaymentIntent(_ context.Context, readerID, intentID string) (*models.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errs["process payment intent"]; err != nil {
		return nil, err
	}

	r, ok := f.readers[readerID]
	if !ok {
		return nil, notFound("process payment intent", readerID)
	}

	r.Action = &models.ReaderAction{
		Type:            "process_payment_intent",
		Status:          models.ActionStatusInProgress,
		PaymentIntentID: intentID,
	}
	return cloneReader(r), nil
}

func (f *Fake) PresentPaymentMethod(_ context.Context, readerID string) (*models.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.presentCalls++
	r, ok := f.readers[readerID]
	if !ok {
		return nil, notFound("present payment method", readerID)
	}
	return cloneReader(r), nil
}

func (f *Fake) CancelReaderAction(_ context.Context, readerID string) (*models.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cancelCalls++
	r, ok := f.readers[readerID]
	if !ok {
		return nil, notFound("cancel reader action", readerID)
	}
	r.Action = nil
	delete(f.sequences, readerID)
	return cloneReader(r), nil
}

func (f *Fake) CreatePaymentIntent(_ context.Context, amount int64, currency string) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errs["create payment intent"]; err != nil {
		return nil, err
	}

	id := f.NextIntentID
	f.NextIntentID = ""
	if id == "" {
		f.intentSeq++
		id = fmt.Sprintf("pi_fake%d", f.intentSeq)
	}

	intent := &models.PaymentIntent{
		ID:            id,
		Amount:        amount,
		Currency:      currency,
		CaptureMethod: "manual",
		Status:        "requires_payment_method",
	}
	f.intents[id] = intent

	out := *intent
	return &out, nil
}

func (f *Fake) CapturePaymentIntent(_ context.Context, intentID string) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.captureCalls[intentID]++
	if err := f.Errs["capture payment intent"]; err != nil {
		return nil, err
	}

	if f.captured[intentID] {
		return nil, &provider.Error{
			Op:           "capture payment intent",
			StatusCode:   http.StatusBadRequest,
			Code:         "payment_intent_unexpected_state",
			Message:      "This PaymentIntent could not be captured because it has a status of succeeded.",
			IntentStatus: "succeeded",
		}
	}
	f.captured[intentID] = true

	intent, ok := f.intents[intentID]
	if !ok {
		intent = &models.PaymentIntent{ID: intentID, CaptureMethod: "manual"}
		f.intents[intentID] = intent
	}
	intent.Status = "succeeded"

	out := *intent
	return &out, nil
}

func notFound(op, id string) error {
	return &provider.Error{
		Op:         op,
		StatusCode: http.StatusNotFound,
		Code:       "resource_missing",
		Message:    "No such terminal.reader: '" + id + "'",
	}
}

func cloneReader(r *models.Reader) *models.Reader {
	out := *r
	if r.Action != nil {
		action := *r.Action
		out.Action = &action
	}
	return &out
}
