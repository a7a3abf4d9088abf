package journal

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// в сообщениях используются имена полей документа
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("repair_status", func(fl validator.FieldLevel) bool {
		s := Status(fl.Field().String())
		return s == StatusOpen || s == StatusCompleted
	})

	return v
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return newValidationError(errs)
	}
	return err
}

func (e Equipment) Validate() error {
	return validateStruct(e)
}

func (r Repair) Validate() error {
	return validateStruct(r)
}
