package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-org-server/internal/errors"
	"github.com/rs/zerolog/log"
)

const maxRequestBody = 1 << 20

// Envelope wraps every successful response that carries a message.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the body of every non-validation failure.
type ErrorResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// FieldError names one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse is returned with 422 Unprocessable Entity.
type ValidationErrorResponse struct {
	Errors []FieldError `json:"errors"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("[writeJSON] failed to encode response")
	}
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, Envelope{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, statusCode int, status, message string) {
	writeJSON(w, statusCode, ErrorResponse{Status: status, Message: message, StatusCode: statusCode})
}

func writeValidationError(w http.ResponseWriter, verr *apperrors.ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
		Errors: []FieldError{{Field: verr.Field, Message: verr.Reason.Message()}},
	})
}

func writeBadRequest(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "Bad Request", "Client error")
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "Internal Server Error", "Something went wrong")
}

// decodeJSON reads a single JSON document from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(dst)
}
