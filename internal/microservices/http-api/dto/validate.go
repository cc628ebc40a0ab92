package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"yamdb/internal/microservices/http-api/apperr"
)

// The request structs carry gin's "binding" tags. Handlers only decode;
// services run the tags through Check once the target is resolved and the
// actor is authorized, so a 404 or 403 always wins over a 400.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(FieldName)
	return v
}

// FieldName reports a struct field by its json (or form) name.
func FieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// Check validates req against its tags. The result is never nil so callers
// can keep adding their own checks before calling OrNil.
func Check(req any) *apperr.ValidationError {
	ve := &apperr.ValidationError{}
	AddFieldErrors(ve, validate.Struct(req))
	return ve
}

// AddFieldErrors copies validator failures into ve and ignores anything else.
func AddFieldErrors(ve *apperr.ValidationError, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return
	}
	for _, fe := range verrs {
		ve.Add(fe.Field(), describe(fe))
	}
}

func describe(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unit)
	case "email":
		return "enter a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
