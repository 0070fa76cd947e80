// Package httputil provides JSON request/response helpers shared by the
// HTTP handlers.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"
)

type errorBody struct {
	Message string `json:"message"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a structured error message with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, errorBody{Message: message})
}

// BadRequest rejects a malformed or invalid request.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// NotFound reports an absent entity.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// Unauthorized rejects a request whose credentials did not verify.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

// InternalError reports a server-side failure without leaking detail.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// DecodeJSON decodes the request body into v, writing a 400 response and
// returning false when the body is malformed.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
