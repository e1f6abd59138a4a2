package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/slotswap/internal/service"
)

// Validator adapts go-playground/validator to echo.Validator.  Field names
// in errors are the JSON names.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// invalid turns a validation failure into a service validation error.
// messages maps a failed tag (e.g. "required") to the message shown; other
// failures name the offending field.
func invalid(err error, messages map[string]string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &service.Error{Kind: service.ErrValidation, Msg: "invalid request body"}
	}
	fe := verrs[0]
	if msg, ok := messages[fe.Tag()]; ok {
		return &service.Error{Kind: service.ErrValidation, Msg: msg}
	}
	return &service.Error{Kind: service.ErrValidation, Msg: fe.Field() + " is invalid"}
}

var errBadBody = &service.Error{Kind: service.ErrValidation, Msg: "invalid request body"}
