package schema

import (
	"errors"
	"strings"
)

// FieldError addresses one rejected input. Field is the JSON path, e.g.
// "address.pincode"; it is empty for whole-body problems.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError is returned by every decode and validate step.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request"
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// Summary is the first message, used as the envelope message.
func (e *ValidationError) Summary() string {
	if len(e.Fields) == 0 {
		return "Invalid request"
	}
	return e.Fields[0].Message
}

func (e *ValidationError) add(field, rule, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Rule: rule, Message: message})
}

func fieldError(field, rule, message string) *ValidationError {
	ve := &ValidationError{}
	ve.add(field, rule, message)
	return ve
}

func bodyError(message string) *ValidationError {
	return fieldError("", "body", message)
}

// AsValidationError unwraps err to a *ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
