package validation

import (
	"errors"
	"fmt"
	"strings"
)

// CustomFieldName is the synthetic field name used when a form level validate
// callback rejects the values.
const CustomFieldName = "custom"

// FieldError lists the messages of one failing field.
type FieldError struct {
	Name   string   `json:"name"`
	Errors []string `json:"errors"`
}

// FieldErrors is returned when one or more fields fail their rule chain.
type FieldErrors struct {
	ErrorFields []FieldError `json:"errorFields"`
}

func (e *FieldErrors) Error() string {
	if e == nil || len(e.ErrorFields) == 0 {
		return "validation: invalid form"
	}
	parts := make([]string, 0, len(e.ErrorFields))
	for _, field := range e.ErrorFields {
		parts = append(parts, fmt.Sprintf("%s: %s", field.Name, strings.Join(field.Errors, "; ")))
	}
	return "validation: " + strings.Join(parts, ", ")
}

// First returns the first message of the first failing field.
func (e *FieldErrors) First() string {
	if e == nil {
		return ""
	}
	for _, field := range e.ErrorFields {
		if len(field.Errors) > 0 {
			return field.Errors[0]
		}
	}
	return ""
}

// Map converts the errors into a name -> messages map.
func (e *FieldErrors) Map() map[string][]string {
	if e == nil || len(e.ErrorFields) == 0 {
		return nil
	}
	out := make(map[string][]string, len(e.ErrorFields))
	for _, field := range e.ErrorFields {
		out[field.Name] = append(out[field.Name], field.Errors...)
	}
	return out
}

// Custom builds the error used when a form level validator rejects values.
func Custom(message string) *FieldErrors {
	return &FieldErrors{ErrorFields: []FieldError{{Name: CustomFieldName, Errors: []string{message}}}}
}

// NotificationError is raised outside the inline field error channel, for
// example when a required structured list holds no items.
type NotificationError struct {
	Field       string `json:"field"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (e *NotificationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("validation: %s: %s", e.Title, e.Description)
	}
	return "validation: " + e.Title
}

// SaveError reports a backend response with success=false. Fields carries
// the per field messages of an `errors` data payload, keyed by backend path.
type SaveError struct {
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

func (e *SaveError) Error() string {
	return "save failed: " + e.Message
}

// AsFieldErrors unwraps err into *FieldErrors.
func AsFieldErrors(err error) (*FieldErrors, bool) {
	var target *FieldErrors
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsNotification unwraps err into *NotificationError.
func AsNotification(err error) (*NotificationError, bool) {
	var target *NotificationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsSaveError unwraps err into *SaveError.
func AsSaveError(err error) (*SaveError, bool) {
	var target *SaveError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsFieldErrors reports whether err carries inline field errors.
func IsFieldErrors(err error) bool {
	_, ok := AsFieldErrors(err)
	return ok
}
