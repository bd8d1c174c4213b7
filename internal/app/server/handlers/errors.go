package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"francoggm/terminal-payments-demo/internal/app/provider"
	"francoggm/terminal-payments-demo/internal/app/terminal"
	"francoggm/terminal-payments-demo/internal/app/webhook"
)

// kinder is satisfied by errors that classify themselves.
type kinder interface {
	Kind() string
}

var kindToStatus = map[string]int{
	"bad_request":       http.StatusBadRequest,
	"provider_error":    http.StatusBadGateway,
	"no_reader":         http.StatusNotFound,
	"invalid_signature": http.StatusBadRequest,
	"malformed_event":   http.StatusBadRequest,
	"payload_too_large": http.StatusRequestEntityTooLarge,
	"queue_full":        http.StatusServiceUnavailable,
	"timeout":           http.StatusGatewayTimeout,
	"canceled":          http.StatusRequestTimeout,
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// requestError is a client mistake caught before any domain call.
type requestError struct {
	kind string
	msg  string
}

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Kind() string  { return e.kind }

func badRequest(msg string) error {
	return &requestError{kind: "bad_request", msg: msg}
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}

	var k kinder
	switch {
	case errors.Is(err, terminal.ErrNoReaderAvailable):
		return "no_reader"
	case errors.Is(err, provider.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, provider.ErrMalformedEvent):
		return "malformed_event"
	case errors.Is(err, webhook.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &k):
		return k.Kind()
	default:
		return "internal"
	}
}

func httpStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if s, ok := kindToStatus[errorKind(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errorKind(err)
	status := httpStatus(err)

	msg := err.Error()
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
		if kind == "internal" {
			msg = "internal error"
		}
	}

	h.logger.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"kind", kind,
		"error", err,
	)

	writeJSON(w, status, errorResponse{Error: errorPayload{Kind: kind, Message: msg}})
}
