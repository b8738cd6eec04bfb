// Package validation provides structural validation for workflow documents,
// handler configs and HTTP request payloads, built on go-playground/validator.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Validator is implemented by types with rules beyond struct tags
// PRINCIPLES:
// - ISP: Simple interface with single method
// - DIP: Depend on interface, not concrete types
type Validator interface {
	Validate() error
}

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the names of the offending fields in order.
func (e ValidationErrors) Fields() []string {
	out := make([]string, 0, len(e))
	for _, err := range e {
		out = append(out, err.Field)
	}
	return out
}

// AsValidationErrors extracts ValidationErrors from err, if present.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ValidateStruct checks struct tags and then, if v implements Validator,
// its own rules. Tag failures are reported before custom rules run.
func ValidateStruct(v interface{}) error {
	if err := ValidateWithPlayground(v); err != nil {
		return err
	}
	if validator, ok := v.(Validator); ok {
		return validator.Validate()
	}
	return nil
}
