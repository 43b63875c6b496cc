package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
)

// MessageResponse acknowledges a request that has no resource to return.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON encodes v before touching the response, so an unencodable value
// becomes a plain 500 instead of a truncated body. Proxy responses mirror
// live tracker state and are never cacheable.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, `{"error":"An unexpected error occurred","code":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteList writes a bare JSON array, never null.
func WriteList[T any](w http.ResponseWriter, data []T) {
	if data == nil {
		data = []T{}
	}
	WriteJSON(w, http.StatusOK, data)
}
