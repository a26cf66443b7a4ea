// Package shared contains common domain types, errors and events used across
// all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Dialogue error kinds. Every failure the user can cause or observe maps to
// exactly one of them; none of them is fatal to the process.
var (
	// ErrInputRejected - validation failed, the same stage is re-prompted.
	ErrInputRejected = errors.New("input rejected")

	// ErrReferenceNotFound - unknown school code or other reference value.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrSyncFailure - the profile store is unreachable or answered with a non-success status.
	ErrSyncFailure = errors.New("profile sync failed")

	// ErrProtocolMismatch - a button from a stale dialogue generation was pressed.
	ErrProtocolMismatch = errors.New("protocol mismatch")
)

// Infrastructure error kinds.
var (
	ErrNotFound           = errors.New("entity not found")
	ErrVersionConflict    = errors.New("version conflict")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInvalidFormat      = errors.New("invalid format")
	ErrInvalidState       = errors.New("invalid state")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "conversation", "profilestore", "session"
	Op      string // operation that failed, e.g. "Register"
	Kind    error  // base error for errors.Is()
	Message string
	Err     error // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching on both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Kind names the taxonomy bucket of err, for logs and metrics labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInputRejected):
		return "input_rejected"
	case errors.Is(err, ErrReferenceNotFound):
		return "reference_not_found"
	case errors.Is(err, ErrSyncFailure):
		return "sync_failure"
	case errors.Is(err, ErrProtocolMismatch):
		return "protocol_mismatch"
	default:
		return "internal"
	}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsVersionConflict checks for a lost optimistic-lock race.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsRecoverable reports whether the user can fix the situation by re-sending input.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInputRejected) ||
		errors.Is(err, ErrReferenceNotFound) ||
		errors.Is(err, ErrSyncFailure) ||
		errors.Is(err, ErrProtocolMismatch)
}
