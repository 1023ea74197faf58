package apperr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Invalid builds an ErrValidation with a message.
func Invalid(format string, args ...any) *Error {
	return Clone(ErrValidation, fmt.Sprintf(format, args...))
}

// FromValidation renders validator field errors as one ErrValidation.
// Non-validator errors are wrapped unchanged.
func FromValidation(err error, prefix string) *Error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Wrap(err, ErrValidation, "")
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		if prefix != "" {
			name = prefix + "." + name
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", name, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", name, fe.Tag()))
		}
	}
	return Clone(ErrValidation, strings.Join(parts, "; "))
}

// NewValidator reports JSON field names instead of Go field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}
