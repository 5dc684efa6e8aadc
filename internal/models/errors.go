package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the tracker services. Handlers map them to HTTP
// status codes; callers check them with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrDuplicate   = errors.New("duplicate")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("store unavailable")
)

// ValidationError reports malformed input. Nothing is persisted when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DuplicateError reports an identifier collision. IDs lists the offending identifiers.
type DuplicateError struct {
	Kind string
	IDs  []string
}

func (e *DuplicateError) Error() string {
	if len(e.IDs) == 0 {
		return fmt.Sprintf("%s already exists", e.Kind)
	}
	return fmt.Sprintf("%s already exists: %s", e.Kind, strings.Join(e.IDs, ", "))
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// DuplicateBatchIDError is returned when any candidate batch id of a bulk
// allocation is already taken.
func DuplicateBatchIDError(ids []string) error {
	return &DuplicateError{Kind: "batch", IDs: ids}
}

// NotFoundError reports a missing link in a lookup chain.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound is shorthand for &NotFoundError{Kind: kind, Key: key}.
func NotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// UnavailableError wraps a timeout or transient store failure. Callers may retry.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Err }

// DuplicateIDs returns the offending ids carried by a DuplicateError, if any.
func DuplicateIDs(err error) []string {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.IDs
	}
	return nil
}
