package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/pairchat/pairchat/internal/data"
)

// errorResponse is the stable error body shape: {"error": "..."}.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// writeError maps domain errors onto HTTP status codes. Anything outside
// the taxonomy is a 500 with the detail logged, never leaked to the client.
func writeError(w http.ResponseWriter, err error) {
	var status int
	var msg string

	switch {
	case errors.Is(err, data.ErrEmptyBody),
		errors.Is(err, data.ErrEmptyEmoji),
		errors.Is(err, data.ErrMessageDeleted):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, data.ErrNotSender):
		status = http.StatusForbidden
		msg = err.Error()
	case errors.Is(err, data.ErrNotFound):
		status = http.StatusNotFound
		msg = err.Error()
	default:
		log.Printf("internal error: %v", err)
		status = http.StatusInternalServerError
		msg = "internal server error"
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

// readJSON decodes a request body, rejecting unknown fields so client typos
// surface as 400s instead of silently dropped data.
func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
