package handlers

import (
	"net/http"
)

func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	renderView(w, "index", map[string]any{
		"links": []string{"/terminal-config", "/demo"},
	})
}

func (h *Handlers) TerminalConfig(w http.ResponseWriter, r *http.Request) {
	renderView(w, "terminal-config", map[string]any{
		"action":         "/add-terminal",
		"fields":         []string{"reg_code", "label", "location"},
		"publishableKey": h.cfg.Stripe.PublishableKey,
	})
}

// Demo shows the session's reader. A reader found by listing is written back
// into the session.
func (h *Handlers) Demo(w http.ResponseWriter, r *http.Request) {
	readerID, _ := h.sessions.ReaderID(r)

	reader, listed, err := h.terminal.ResolveReader(r.Context(), readerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if listed {
		h.sessions.SetReaderID(w, reader.ID)
	}

	query := r.URL.Query()
	renderView(w, "demo", map[string]any{
		"reader":         reader,
		"amount":         h.cfg.Payment.Amount,
		"currency":       h.cfg.Payment.Currency,
		"outcome":        query.Get("outcome"),
		"paymentIntent":  query.Get("payment_intent"),
		"publishableKey": h.cfg.Stripe.PublishableKey,
	})
}
