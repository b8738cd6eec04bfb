package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
)

// maxBodyBytes caps decoded request bodies.
const maxBodyBytes = 4 << 20

type decodedKey struct{}

// Middleware provides validation middleware for HTTP handlers
type Middleware struct {
	config *ValidationConfig
}

// NewMiddleware creates a new validation middleware
func NewMiddleware(config *ValidationConfig) *Middleware {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &Middleware{config: config}
}

// DecodeJSON decodes r into dst and validates it. Decoding problems are
// reported as a ValidationError on "request_body".
func DecodeJSON(r io.Reader, dst interface{}, config *ValidationConfig) error {
	dec := json.NewDecoder(io.LimitReader(r, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return ValidationErrors{{
			Field:   "request_body",
			Message: fmt.Sprintf("invalid JSON: %v", err),
		}}
	}
	return ValidateWithConfig(dst, config)
}

// ValidateJSON decodes the body into a new value of structType's type,
// validates it, and stores a pointer to it in the request context for
// Decoded to retrieve.
func (m *Middleware) ValidateJSON(structType interface{}) func(http.Handler) http.Handler {
	typ := reflect.TypeOf(structType)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			val := reflect.New(typ).Interface()
			if err := DecodeJSON(r.Body, val, m.config); err != nil {
				WriteError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), decodedKey{}, val)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Decoded returns the body stored by ValidateJSON.
func Decoded[T any](r *http.Request) (*T, bool) {
	v, ok := r.Context().Value(decodedKey{}).(*T)
	return v, ok
}

// ValidateQueryParams validates URL query parameters
func (m *Middleware) ValidateQueryParams(paramRules map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query()
			var errs ValidationErrors

			for param, rule := range paramRules {
				value := query.Get(param)
				switch rule {
				case "required":
					if value == "" {
						errs = append(errs, ValidationError{Field: param, Value: value, Message: "parameter is required"})
					}
				case "node_id":
					if value != "" && !identPattern.MatchString(value) {
						errs = append(errs, ValidationError{Field: param, Value: value, Message: "must be a valid identifier"})
					}
				case "numeric":
					if value != "" && !isNumeric(value) {
						errs = append(errs, ValidationError{Field: param, Value: value, Message: "must be numeric"})
					}
				}
			}

			if len(errs) > 0 {
				writeErrorResponse(w, http.StatusBadRequest, errs)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as a JSON error response. ValidationErrors map to
// 400; anything else to 500 with a generic message.
func WriteError(w http.ResponseWriter, err error) {
	if ve, ok := AsValidationErrors(err); ok {
		writeErrorResponse(w, http.StatusBadRequest, ve)
		return
	}
	writeErrorResponse(w, http.StatusInternalServerError, ValidationErrors{{
		Field:   "validation",
		Message: "validation failed",
	}})
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, errs ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	data, err := MarshalValidationErrors(errs)
	if err != nil {
		w.Write([]byte(`{"error":"validation failed","message":"internal validation error"}`))
		return
	}
	w.Write(data)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
