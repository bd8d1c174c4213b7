package handlers

import (
	"net/http"
)

// PurgePayments drops every stored payment record. Capture claims and webhook
// event IDs are left alone so a purge cannot enable a second capture.
func (h *Handlers) PurgePayments(w http.ResponseWriter, r *http.Request) {
	if err := h.store.PurgePayments(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
