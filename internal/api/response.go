package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"accounts/internal/constants"
	"accounts/internal/schema"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status     string       `json:"status"`
	StatusCode int          `json:"status_code"`
	Message    string       `json:"message"`
	Data       any          `json:"data,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code   string              `json:"code"`
	Fields []schema.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("error encoding response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{
		Status:     statusSuccess,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Envelope{
		Status:     statusError,
		StatusCode: status,
		Message:    message,
		Error:      &ErrorDetail{Code: code},
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, constants.ErrCodeInvalidRequest, message)
}

func validationFailed(w http.ResponseWriter, ve *schema.ValidationError) {
	writeJSON(w, http.StatusBadRequest, Envelope{
		Status:     statusError,
		StatusCode: http.StatusBadRequest,
		Message:    ve.Summary(),
		Error: &ErrorDetail{
			Code:   constants.ErrCodeValidationFailed,
			Fields: ve.Fields,
		},
	})
}

func unauthorized(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusUnauthorized, code, message)
}

func forbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, constants.ErrCodeForbidden, message)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, constants.ErrCodeNotFound, message)
}

func conflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, constants.ErrCodeConflict, message)
}

func tooLarge(w http.ResponseWriter, message string) {
	writeError(w, http.StatusRequestEntityTooLarge, constants.ErrCodePayloadTooLarge, message)
}

func internalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, constants.ErrCodeInternal, "An internal error occurred")
}
