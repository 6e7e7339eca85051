package api

import (
	"errors"
	"log/slog"
	"net/http"

	"accounts/internal/schema"
)

// decodeAndValidate runs both input stages and writes the error response
// itself. It reports whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !decodeRequest(w, r, dst) {
		return false
	}
	return validateRequest(w, dst)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	return writeInputError(w, schema.Decode(r, dst))
}

func validateRequest(w http.ResponseWriter, dst any) bool {
	return writeInputError(w, schema.Validate(dst))
}

func writeInputError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		tooLarge(w, "Request body too large")
		return false
	}
	if ve, ok := schema.AsValidationError(err); ok {
		validationFailed(w, ve)
		return false
	}

	slog.Error("error reading request body", "error", err)
	badRequest(w, "Invalid request body")
	return false
}
