// Package apperr holds the error kinds shared by the booking core and its callers.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrConflict means the requested interval is no longer free. Callers may
	// retry with a fresh slot list.
	ErrConflict = errors.New("slot no longer available")
	ErrNotFound = errors.New("not found")
	// ErrNotAllowed is returned for operations the current status forbids.
	ErrNotAllowed = errors.New("operation not allowed")
)

// ValidationError carries field-level detail for bad input.
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

// Fields accumulates validation problems; Err returns nil when there are none.
type Fields map[string]string

func (f Fields) Add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f Fields) Err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

func Invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
