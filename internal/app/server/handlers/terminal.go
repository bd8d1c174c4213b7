package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"francoggm/terminal-payments-demo/internal/app/terminal"
	"francoggm/terminal-payments-demo/internal/models"
)

const demoPath = "/demo"

func (h *Handlers) AddTerminal(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, badRequest("invalid form body"))
		return
	}

	reader, err := h.terminal.RegisterReader(r.Context(), models.RegisterReaderRequest{
		RegistrationCode: r.PostFormValue("reg_code"),
		Label:            r.PostFormValue("label"),
		Location:         r.PostFormValue("location"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.sessions.SetReaderID(w, reader.ID)
	http.Redirect(w, r, demoPath, http.StatusSeeOther)
}

// SimulatePayment runs one payment on the session's reader and redirects to
// the demo view with the outcome. A poll timeout is an outcome, not an error.
func (h *Handlers) SimulatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	readerID, _ := h.sessions.ReaderID(r)

	reader, listed, err := h.terminal.ResolveReader(ctx, readerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if listed {
		h.sessions.SetReaderID(w, reader.ID)
	}

	result, err := h.terminal.SimulatePayment(ctx, reader.ID)
	if err != nil && !errors.Is(err, terminal.ErrPollTimeout) {
		h.writeError(w, r, err)
		return
	}
	if result == nil {
		h.writeError(w, r, errors.New("payment finished without a result"))
		return
	}

	query := url.Values{}
	query.Set("outcome", string(result.Outcome))
	query.Set("payment_intent", result.IntentID)

	http.Redirect(w, r, demoPath+"?"+query.Encode(), http.StatusSeeOther)
}
