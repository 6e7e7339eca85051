package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var requestValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterAlias("immutable", "isdefault")

	if err := v.RegisterValidation("pastdate", isPastDate); err != nil {
		panic(fmt.Sprintf("registering pastdate validation: %v", err))
	}

	return v
}

func isPastDate(fl validator.FieldLevel) bool {
	t, err := time.Parse(dateLayout, fl.Field().String())
	if err != nil {
		return false
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return t.Before(today)
}

type normalizer interface {
	normalize()
}

// Validate canonicalises and checks a decoded request. Any failure is a
// *ValidationError listing every offending field.
func Validate(dst any) error {
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}

	if err := requestValidator.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			ve := &ValidationError{}
			for _, fe := range validationErrors {
				field := fieldPath(fe.Namespace())
				ve.add(field, fe.Tag(), messageFor(field, fe))
			}
			return ve
		}
		return fmt.Errorf("validating request: %w", err)
	}

	if req, ok := dst.(*UpdateProfileRequest); ok {
		if !req.PhotoAttached && req.Patch().IsEmpty() {
			return fieldError("", "min_one_field", "at least one field must be provided for update")
		}
	}

	return nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func messageFor(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "pastdate":
		return fmt.Sprintf("%s must be in the past", field)
	case "immutable":
		return fmt.Sprintf("%s cannot be updated", field)
	default:
		return fmt.Sprintf("invalid %s", field)
	}
}
