// Package validate runs struct-tag validation on request DTOs and reports
// failures as store.ErrInvalidInput.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = val.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return domain.ValidPaymentMethod(fl.Field().String())
	})
	return val
}

// Error lists each failing field (by JSON name) and the rule it broke.
type Error struct {
	Fields  map[string]string
	message string
}

func (e *Error) Error() string {
	return store.ErrInvalidInput.Error() + ": " + e.message
}

func (e *Error) Unwrap() error {
	return store.ErrInvalidInput
}

// Struct validates s and returns *Error on failure.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	out := &Error{Fields: make(map[string]string, len(fieldErrs))}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out.Fields[fieldPath(fe)] = fe.Tag()
		msgs = append(msgs, describe(fe))
	}
	out.message = strings.Join(msgs, "; ")
	return out
}

func describe(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fmt.Sprintf("%s must satisfy %s=%s", fieldPath(fe), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s must satisfy %s", fieldPath(fe), fe.Tag())
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
