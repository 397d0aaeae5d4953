// Package apperr defines the typed errors every public operation surfaces.
//
// Callers branch on the Kind, never on message text. Kinds map onto the
// error taxonomy of the ledger core:
//   - Validation: bad input shape, rejected synchronously, never queued or retried
//   - DuplicateName, NotFound, RestoreConflict: expected store outcomes
//   - DataInconsistency: orphaned references, checksum mismatch, malformed backups
//   - Permission, Unauthorized: permanent remote failures, never retried
//   - Transient: network or remote-service failures, retried with backoff
//   - Conflict: a sync disagreement that needs a manual decision
//   - MigrationFailed: fatal to startup
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorizes an Error.
type Kind string

const (
	KindValidation        Kind = "VALIDATION"
	KindDuplicateName     Kind = "DUPLICATE_NAME"
	KindNotFound          Kind = "NOT_FOUND"
	KindRestoreConflict   Kind = "RESTORE_CONFLICT"
	KindDataInconsistency Kind = "DATA_INCONSISTENCY"
	KindPermission        Kind = "PERMISSION"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindTransient         Kind = "TRANSIENT"
	KindConflict          Kind = "CONFLICT"
	KindMigrationFailed   Kind = "MIGRATION_FAILED"
	// KindUnknown is reported for errors that carry no Kind.
	KindUnknown Kind = "UNKNOWN"
)

// Error is an error with a Kind and a message fit for the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsRetryable reports whether retrying the failed call could succeed.
// Validation, permission and authorization failures never can, and neither
// can consistency or conflict errors that need a human decision.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindValidation, KindPermission, KindUnauthorized,
		KindDataInconsistency, KindConflict, KindDuplicateName, KindRestoreConflict:
		return false
	}
	return true
}

// Validationf is shorthand for a validation error.
func Validationf(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// NotFoundf is shorthand for a not-found error.
func NotFoundf(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Inconsistentf is shorthand for a data-inconsistency error.
func Inconsistentf(format string, args ...any) *Error {
	return New(KindDataInconsistency, format, args...)
}
