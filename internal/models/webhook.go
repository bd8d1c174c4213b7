package models

const (
	EventReaderActionSucceeded = "terminal.reader.action_succeeded"
	EventReaderActionFailed    = "terminal.reader.action_failed"
)

// WebhookEvent is a verified provider notification. Reader is set for
// terminal.reader.* events only.
type WebhookEvent struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Reader *Reader `json:"reader,omitempty"`
}

// FollowUp is the work a verified reader event hands to the workers.
type FollowUp struct {
	EventID  string  `json:"eventId"`
	ReaderID string  `json:"readerId"`
	IntentID string  `json:"intentId"`
	Outcome  Outcome `json:"outcome"`
	Captured bool    `json:"captured"`
}
