package journal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError - ошибки полей записи журнала
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	messages := make([]string, 0, len(names))
	for _, name := range names {
		messages = append(messages, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(messages, ", ")
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string, len(errs))
	for _, err := range errs {
		switch err.Tag() {
		case "required":
			fields[err.Field()] = "is required"
		case "max":
			fields[err.Field()] = fmt.Sprintf("must be at most %s characters long", err.Param())
		case "repair_status":
			fields[err.Field()] = fmt.Sprintf("must be %q or %q", StatusOpen, StatusCompleted)
		default:
			fields[err.Field()] = "is invalid"
		}
	}
	return &ValidationError{Fields: fields}
}
