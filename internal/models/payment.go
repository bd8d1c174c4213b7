package models

import "time"

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
)

type PaymentIntent struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	CaptureMethod string `json:"captureMethod"`
	Status        string `json:"status"`
}

type PaymentResult struct {
	IntentID       string  `json:"intentId"`
	ReaderID       string  `json:"readerId"`
	Outcome        Outcome `json:"outcome"`
	Captured       bool    `json:"captured"`
	FailureCode    string  `json:"failureCode,omitempty"`
	FailureMessage string  `json:"failureMessage,omitempty"`
}

type RecordSource string

const (
	SourcePoll    RecordSource = "poll"
	SourceWebhook RecordSource = "webhook"
)

type PaymentRecord struct {
	IntentID   string       `json:"intentId"`
	ReaderID   string       `json:"readerId"`
	Amount     int64        `json:"amount"`
	Currency   string       `json:"currency"`
	Outcome    Outcome      `json:"outcome"`
	Captured   bool         `json:"captured"`
	Source     RecordSource `json:"source"`
	RecordedAt time.Time    `json:"recordedAt"`
}

type Summary struct {
	TotalRequests int   `json:"totalRequests"`
	TotalAmount   int64 `json:"totalAmount"`
}

type PaymentsSummary struct {
	Succeeded Summary `json:"succeeded"`
	Failed    Summary `json:"failed"`
	Timeout   Summary `json:"timeout"`
	Captured  Summary `json:"captured"`
}
