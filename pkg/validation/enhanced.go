package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
)

// Validate is the shared validator instance with the canvas rules registered.
var Validate *validator.Validate

var identPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func init() {
	Validate = validator.New()

	Validate.RegisterValidation("node_id", validateIdent)
	Validate.RegisterValidation("edge_id", validateIdent)
	Validate.RegisterValidation("node_type", validateNodeType)
	Validate.RegisterValidation("node_status", validateNodeStatus)
	Validate.RegisterValidation("branch_label", validateBranchLabel)

	// Report JSON names so errors match what the client sent
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}

// ValidateWithPlayground validates struct tags only.
func ValidateWithPlayground(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return formatValidationErrors(fieldErrs)
	}
	return err
}

func formatValidationErrors(fieldErrs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Value:   fe.Value(),
			Message: getErrorMessage(fe),
		})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min", "gte":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "node_id", "edge_id":
		return "must be a valid identifier (alphanumeric, underscore, hyphen)"
	case "node_type":
		return "must be a known node type"
	case "node_status":
		return "must be one of idle, running, success, error"
	case "branch_label":
		return "must be one of false, default, case1, case2"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

func validateIdent(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return len(s) <= 100 && identPattern.MatchString(s)
}

func validateNodeType(fl validator.FieldLevel) bool {
	return graph.Known(graph.NodeType(fl.Field().String()))
}

func validateNodeStatus(fl validator.FieldLevel) bool {
	return graph.Status(fl.Field().String()).Valid()
}

func validateBranchLabel(fl validator.FieldLevel) bool {
	return graph.BranchLabel(fl.Field().String()).Known()
}

// ValidationConfig holds validation configuration
type ValidationConfig struct {
	MaxErrors int `json:"max_errors"`
}

// DefaultValidationConfig returns default validation configuration
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{MaxErrors: 10}
}

// ValidateWithConfig validates s and truncates the error list to MaxErrors.
func ValidateWithConfig(s interface{}, config *ValidationConfig) error {
	if config == nil {
		config = DefaultValidationConfig()
	}
	err := ValidateStruct(s)
	if err == nil {
		return nil
	}
	if ve, ok := AsValidationErrors(err); ok && config.MaxErrors > 0 && len(ve) > config.MaxErrors {
		return ve[:config.MaxErrors]
	}
	return err
}

// MarshalValidationErrors marshals validation errors to JSON
func MarshalValidationErrors(errs ValidationErrors) ([]byte, error) {
	return json.Marshal(errorResponse{Errors: errs, Count: len(errs)})
}

// UnmarshalValidationErrors unmarshals validation errors from JSON
func UnmarshalValidationErrors(data []byte) (ValidationErrors, error) {
	var response errorResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, err
	}
	return response.Errors, nil
}

type errorResponse struct {
	Errors ValidationErrors `json:"errors"`
	Count  int              `json:"count"`
}
