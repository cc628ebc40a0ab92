// Package apperr holds the error taxonomy shared by services and handlers.
// Services wrap one of the sentinels below; handlers map them to status codes
// with errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("authentication failed")
	ErrDependency      = errors.New("dependency failure")
)

// ValidationError reports malformed or out-of-range fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validation builds a ValidationError for a single field.
func Validation(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records another field failure and returns the receiver.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = message
	return e
}

// OrNil returns nil when no field failed, so callers can collect then return.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func Conflict(message string) error {
	return fmt.Errorf("%w: %s", ErrConflict, message)
}

func Forbidden(message string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, message)
}

// Dependency wraps a persistence or mail failure, keeping the cause for logs.
func Dependency(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDependency, op, err)
}

func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Merge folds the fields of another validation error into the receiver;
// nil and non-validation errors are ignored.
func (e *ValidationError) Merge(err error) *ValidationError {
	if other, ok := IsValidation(err); ok {
		for k, v := range other.Fields {
			e.Add(k, v)
		}
	}
	return e
}
