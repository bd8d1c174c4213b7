package handlers

import (
	"net/http"
	"time"
)

func (h *Handlers) GetPaymentsSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	from, err := parseTimeParam(query.Get("from"))
	if err != nil {
		h.writeError(w, r, badRequest("from must be an RFC3339 timestamp"))
		return
	}

	to, err := parseTimeParam(query.Get("to"))
	if err != nil {
		h.writeError(w, r, badRequest("to must be an RFC3339 timestamp"))
		return
	}

	summary, err := h.store.GetPaymentsSummary(ctx, from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
