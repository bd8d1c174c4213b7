package handlers

import (
	"errors"
	"io"
	"net/http"
)

const (
	maxWebhookBodyBytes = 65536
	signatureHeader     = "Stripe-Signature"
)

type webhookResponse struct {
	Received bool   `json:"received"`
	Dispatch string `json:"dispatch"`
}

// Webhook verifies the raw body before anything in it is read. Any verified
// event is acknowledged with 200, whatever its type.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, &requestError{kind: "payload_too_large", msg: "webhook body too large"})
			return
		}
		h.writeError(w, r, badRequest("failed to read webhook body"))
		return
	}

	dispatch, err := h.receiver.Handle(r.Context(), payload, r.Header.Get(signatureHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Dispatch: string(dispatch)})
}
