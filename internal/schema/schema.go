// Package schema decodes untrusted JSON payloads into typed shapes and
// validates them. Unknown fields are ignored; known fields are checked for
// type, presence and format. Every failure is reported as an
// *errs.ValidationError naming the first offending JSON path.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/Tonic56/coin-watchlist/lib/errs"
	"github.com/go-playground/validator/v10"
)

var (
	signatureRe = regexp.MustCompile(`^0x[a-fA-F0-9]+$`)

	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation("hexsig", func(fl validator.FieldLevel) bool {
			return signatureRe.MatchString(fl.Field().String())
		})

		validate = v
	})
	return validate
}

// Struct validates an already decoded value.
func Struct(v any) error {
	if err := instance().Struct(v); err != nil {
		return toValidationError(err)
	}
	return nil
}

func decode(body []byte, dst any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &errs.ValidationError{Reason: "empty payload"}
	}

	if err := json.Unmarshal(trimmed, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &errs.ValidationError{
				Field:  typeErr.Field,
				Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
			}
		}
		return &errs.ValidationError{Reason: fmt.Sprintf("malformed json: %v", err)}
	}

	return nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &errs.ValidationError{Reason: err.Error()}
	}

	fe := fieldErrs[0]
	return &errs.ValidationError{
		Field:  fieldPath(fe.Namespace()),
		Reason: reason(fe),
	}
}

// fieldPath drops the Go type name the validator puts in front of the
// namespace, leaving the JSON path.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "url":
		return "must be a well-formed url"
	case "eth_addr":
		return "must be a 0x-prefixed 40 hex digit address"
	case "hexsig":
		return "must be a 0x-prefixed hex string"
	case "len":
		return fmt.Sprintf("must have exactly %s elements", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
