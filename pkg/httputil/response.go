// Package httputil provides HTTP handler utilities for consistent error
// envelopes, JSON encoding/decoding and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/iflastandards/standards-authz/pkg/contextkeys"
)

// APIVersion is reported in the meta block of success envelopes
const APIVersion = "1.0"

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ErrorBody is the error object inside an ErrorEnvelope
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorEnvelope is the structured body of every non-2xx API response
type ErrorEnvelope struct {
	Success   bool      `json:"success"`
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

// Meta accompanies successful responses
type Meta struct {
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SuccessEnvelope wraps successful API payloads
type SuccessEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    Meta        `json:"meta"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// WriteAPIError writes the error envelope. The request ID is taken from the
// request context when the RequestID middleware ran. details is omitted when nil.
func WriteAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	env := ErrorEnvelope{
		Success: false,
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: now(),
	}
	if r != nil {
		env.RequestID = contextkeys.GetRequestID(r.Context())
	}
	_ = WriteJSON(w, status, env)
}

// WriteData writes a 200 success envelope around data
func WriteData(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessEnvelope{
		Success: true,
		Data:    data,
		Meta:    Meta{Timestamp: now(), Version: APIVersion},
	})
}

// WriteCreated writes a 201 success envelope around data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, SuccessEnvelope{
		Success: true,
		Data:    data,
		Meta:    Meta{Timestamp: now(), Version: APIVersion},
	})
}

// WriteBadRequest writes a VALIDATION_ERROR envelope (400)
func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteAPIError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// WriteNotFound writes a NOT_FOUND envelope (404)
func WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	WriteAPIError(w, r, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// WriteInternalError writes an INTERNAL_ERROR envelope (500). The error text
// is never sent to the client.
func WriteInternalError(w http.ResponseWriter, r *http.Request) {
	WriteAPIError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
