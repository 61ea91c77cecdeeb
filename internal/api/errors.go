// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chandir/chandir/internal/batch"
	"github.com/chandir/chandir/internal/code"
	"github.com/chandir/chandir/internal/store"
)

// ErrValidation marks malformed client input. Handlers wrap it with a
// descriptive reason; it maps to a 400 response.
var ErrValidation = errors.New("validation failed")

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the uniform error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// writeFromErr maps a domain error to its HTTP status and writes the
// error envelope.
func writeFromErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, batch.ErrTestInProgress):
		writeError(w, http.StatusConflict, "a test run is already in progress")
	case store.IsConflict(err):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, code.ErrCodeSpaceExhausted):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeCreateErr maps errors from entity creation. A not-found here means
// a referenced entity (owner, channel id) does not exist, which is the
// caller's input being wrong, not a missing resource.
func writeCreateErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeFromErr(w, err)
}
