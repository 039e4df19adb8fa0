// Package persist holds the types shared by every layer of the OCFL
// persistence core: the resource/operation vocabulary the Persister
// Dispatch switches on, and the error vocabulary the storage session
// state machine reports through.
//
// Import graph: persist <- ocfl, index <- session
package persist

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a persistence failure so callers (and the storage
// session state machine) can react without string-matching messages.
type ErrorCode int

const (
	// ErrNotFound indicates the requested resource or memento does not exist.
	ErrNotFound ErrorCode = iota + 1

	// ErrAlreadyExists indicates a create collided with an existing resource.
	ErrAlreadyExists

	// ErrInvalidArgument indicates a malformed RID, digest, or operation payload.
	ErrInvalidArgument

	// ErrConflict indicates an optimistic concurrency check failed (stale
	// OCFL HEAD digest, or the FOI mapping changed underneath the session).
	ErrConflict

	// ErrIOError indicates a failure talking to the object store adapter
	// (disk I/O, S3 transport, permission).
	ErrIOError

	// ErrIndexError indicates a failure talking to the Fedora-OCFL index.
	ErrIndexError

	// ErrInvalidState indicates an operation was attempted against a
	// storage session that is not in a state that permits it.
	ErrInvalidState

	// ErrPrepareFailed indicates the prepare phase of a two-phase commit
	// failed for one or more object sub-sessions.
	ErrPrepareFailed

	// ErrCommitFailed indicates the commit phase of a two-phase commit
	// failed after prepare succeeded.
	ErrCommitFailed

	// ErrRollbackFailed indicates a rollback could not be completed,
	// typically because the target object sub-session already committed
	// to a mutable head and cannot be reverted.
	ErrRollbackFailed

	// ErrUnsupported indicates the operation kind has no registered
	// persister, or the backend lacks a capability the request needs.
	ErrUnsupported

	// ErrTimeout indicates a bounded wait (e.g. rollback drain) expired.
	ErrTimeout
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrConflict:
		return "Conflict"
	case ErrIOError:
		return "IOError"
	case ErrIndexError:
		return "IndexError"
	case ErrInvalidState:
		return "InvalidState"
	case ErrPrepareFailed:
		return "PrepareFailed"
	case ErrCommitFailed:
		return "CommitFailed"
	case ErrRollbackFailed:
		return "RollbackFailed"
	case ErrUnsupported:
		return "Unsupported"
	case ErrTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// Error is the single error type returned by the persistence core. It
// carries a code for programmatic dispatch, a human message, and the RID
// or OCFL object id the failure concerns, plus an optional wrapped cause.
type Error struct {
	Code    ErrorCode
	Message string
	RID     string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.RID != "" && e.Cause != nil {
		return fmt.Sprintf("%s: %s (rid: %s): %v", e.Code, e.Message, e.RID, e.Cause)
	}
	if e.RID != "" {
		return fmt.Sprintf("%s: %s (rid: %s)", e.Code, e.Message, e.RID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As see through it.
func (e *Error) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) a *Error,
// reporting true; otherwise it returns 0 and false — callers should not
// treat the zero value as a meaningful code.
func CodeOf(err error) (ErrorCode, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// IsCode reports whether err is (or wraps) a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// NewNotFoundError creates a NotFound error for the given RID.
func NewNotFoundError(rid, message string) *Error {
	return &Error{Code: ErrNotFound, Message: message, RID: rid}
}

// NewAlreadyExistsError creates an AlreadyExists error for the given RID.
func NewAlreadyExistsError(rid, message string) *Error {
	return &Error{Code: ErrAlreadyExists, Message: message, RID: rid}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(message string) *Error {
	return &Error{Code: ErrInvalidArgument, Message: message}
}

// NewConflictError creates a Conflict error for the given RID.
func NewConflictError(rid, message string) *Error {
	return &Error{Code: ErrConflict, Message: message, RID: rid}
}

// NewIOError wraps a lower-level I/O failure from the object store adapter.
func NewIOError(rid, message string, cause error) *Error {
	return &Error{Code: ErrIOError, Message: message, RID: rid, Cause: cause}
}

// NewIndexError wraps a lower-level failure from the Fedora-OCFL index.
func NewIndexError(rid, message string, cause error) *Error {
	return &Error{Code: ErrIndexError, Message: message, RID: rid, Cause: cause}
}

// NewInvalidStateError creates an InvalidState error, typically raised by
// the storage session state machine when an operation is attempted out
// of order (e.g. a write after commit started).
func NewInvalidStateError(message string) *Error {
	return &Error{Code: ErrInvalidState, Message: message}
}

// NewPrepareFailedError wraps the cause of a failed prepare phase.
func NewPrepareFailedError(rid, message string, cause error) *Error {
	return &Error{Code: ErrPrepareFailed, Message: message, RID: rid, Cause: cause}
}

// NewCommitFailedError wraps the cause of a failed commit phase.
func NewCommitFailedError(rid, message string, cause error) *Error {
	return &Error{Code: ErrCommitFailed, Message: message, RID: rid, Cause: cause}
}

// NewRollbackFailedError wraps the cause of a failed rollback, e.g. when
// an object sub-session already committed to a mutable head.
func NewRollbackFailedError(rid, message string, cause error) *Error {
	return &Error{Code: ErrRollbackFailed, Message: message, RID: rid, Cause: cause}
}

// NewUnsupportedError creates an Unsupported error.
func NewUnsupportedError(message string) *Error {
	return &Error{Code: ErrUnsupported, Message: message}
}

// NewTimeoutError creates a Timeout error.
func NewTimeoutError(message string) *Error {
	return &Error{Code: ErrTimeout, Message: message}
}
