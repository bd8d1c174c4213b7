package handlers

import (
	"net/http"

	"github.com/bytedance/sonic"
)

// view stands in for a rendered page: the name of the template the browser
// would get and the data it would be rendered with.
type view struct {
	Name string `json:"view"`
	Data any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func renderView(w http.ResponseWriter, name string, data any) {
	writeJSON(w, http.StatusOK, view{Name: name, Data: data})
}
