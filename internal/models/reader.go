package models

type ActionStatus string

const (
	ActionStatusNotStarted ActionStatus = "not_started"
	ActionStatusInProgress ActionStatus = "in_progress"
	ActionStatusSucceeded  ActionStatus = "succeeded"
	ActionStatusFailed     ActionStatus = "failed"
)

type Reader struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	LocationID   string        `json:"location,omitempty"`
	DeviceType   string        `json:"deviceType,omitempty"`
	SerialNumber string        `json:"serialNumber,omitempty"`
	Status       string        `json:"status,omitempty"`
	Action       *ReaderAction `json:"action,omitempty"`
}

type ReaderAction struct {
	Type            string       `json:"type"`
	Status          ActionStatus `json:"status"`
	PaymentIntentID string       `json:"paymentIntentId,omitempty"`
	FailureCode     string       `json:"failureCode,omitempty"`
	FailureMessage  string       `json:"failureMessage,omitempty"`
}

// ActionStatus returns the status of the reader's current action. A reader
// without an action reports not_started.
func (r *Reader) ActionStatus() ActionStatus {
	if r == nil || r.Action == nil || r.Action.Status == "" {
		return ActionStatusNotStarted
	}

	return r.Action.Status
}

type RegisterReaderRequest struct {
	RegistrationCode string `json:"registrationCode"`
	Label            string `json:"label"`
	Location         string `json:"location"`
}
