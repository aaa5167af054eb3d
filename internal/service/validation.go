// internal/service/validation.go
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"balance-ledger/internal/util"
)

// NewValidator returns the validator shared by the services. Field errors are
// reported under their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct converts validator failures into *util.ValidationError.
func validateStruct(v *validator.Validate, input any) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		fields[e.Field()] = describeTag(e)
	}
	return &util.ValidationError{Fields: fields}
}

func describeTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", e.Param())
	case "number":
		return "must contain digits only"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}
