package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// multipartMemory is how much of a multipart body is held in memory before
// file parts spill to disk.
const multipartMemory = 8 << 20

// Decode reads a JSON or multipart/form-data body into dst. Multipart text
// fields are converted to their JSON shape first, so both encodings go
// through the same strict decoder. File parts stay on r.MultipartForm.
//
// A body over the limit set with http.MaxBytesReader is returned as the
// *http.MaxBytesError; every other failure is a *ValidationError.
func Decode(r *http.Request, dst any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil && r.Header.Get("Content-Type") != "" {
		return bodyError("invalid content type")
	}

	switch mediaType {
	case "", "application/json":
		return DecodeJSON(r.Body, dst)
	case "multipart/form-data":
		return decodeMultipart(r, dst)
	default:
		return bodyError("unsupported content type " + mediaType)
	}
}

// DecodeJSON decodes exactly one JSON object, rejecting unknown fields.
func DecodeJSON(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return translateDecodeError(err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return bodyError("request body must contain a single JSON object")
	}

	return nil
}

func translateDecodeError(err error) error {
	var (
		maxErr    *http.MaxBytesError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	if ve, ok := AsValidationError(err); ok {
		return ve
	}

	switch {
	case errors.As(err, &maxErr):
		return err
	case errors.Is(err, io.EOF):
		return bodyError("request body is empty")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return bodyError("invalid JSON body")
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return bodyError("request body must be a JSON object")
		}
		return fieldError(typeErr.Field, "type", fmt.Sprintf("%s must be %s", typeErr.Field, describeKind(typeErr.Type)))
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return fieldError(field, "unknown", fmt.Sprintf("%s is not an accepted field", field))
	default:
		return bodyError("invalid JSON body")
	}
}

func describeKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Struct, reflect.Map:
		return "an object"
	case reflect.Slice, reflect.Array:
		return "an array"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "a number"
	default:
		return "of type " + t.String()
	}
}

// decodeMultipart maps form values onto the JSON shape of dst. "address"
// arrives as JSON text and "is_admin" as a boolean literal.
func decodeMultipart(r *http.Request, dst any) error {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return maxErr
		}
		return bodyError("invalid multipart body")
	}

	fields := make(map[string]any, len(r.MultipartForm.Value))
	for key, values := range r.MultipartForm.Value {
		if len(values) == 0 {
			continue
		}
		raw := values[0]
		if len(values) > 1 {
			return fieldError(key, "single", fmt.Sprintf("%s must be sent once", key))
		}

		switch key {
		case "address":
			if strings.TrimSpace(raw) == "" {
				continue
			}
			var obj map[string]any
			if err := json.Unmarshal([]byte(raw), &obj); err != nil {
				return fieldError("address", "json", "address must be a JSON object")
			}
			fields[key] = obj
		case "is_admin":
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return fieldError("is_admin", "type", "is_admin must be a boolean")
			}
			fields[key] = b
		default:
			fields[key] = raw
		}
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("re-encoding multipart fields: %w", err)
	}
	return DecodeJSON(bytes.NewReader(body), dst)
}
