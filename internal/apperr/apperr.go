package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names a class of failure.
type Kind string

const (
	// KindValidation marks input rejected before any network call.
	KindValidation Kind = "validation"
	// KindTransport marks fetch, upload, delete or purge failures.
	KindTransport Kind = "transport"
	// KindSignature marks missing or unreadable signing keys and bad signatures.
	KindSignature Kind = "signature"
	// KindIO marks local file failures, e.g. an unreadable artifact.
	KindIO Kind = "io"
	// KindParse marks a malformed remote document.
	KindParse Kind = "parse"
	// KindCleanup marks a failed compensating delete whose cause was never classified.
	KindCleanup Kind = "cleanup"
	// KindUnknown is reported for errors that were never classified.
	KindUnknown Kind = "unknown"
)

// Error is a classified failure of a named operation.
type Error struct {
	// Kind is the failure class.
	Kind Kind
	// Op is the operation that failed, e.g. "fetch manifest".
	Op string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}

	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation wraps err as a validation failure of op.
func Validation(op string, err error) error {
	return newError(KindValidation, op, err)
}

// Transport wraps err as a transport failure of op.
func Transport(op string, err error) error {
	return newError(KindTransport, op, err)
}

// Signature wraps err as a signing failure of op.
func Signature(op string, err error) error {
	return newError(KindSignature, op, err)
}

// IO wraps err as a local file failure of op.
func IO(op string, err error) error {
	return newError(KindIO, op, err)
}

// Parse wraps err as a parse failure of op.
func Parse(op string, err error) error {
	return newError(KindParse, op, err)
}

// KindOf returns the kind of the first classified error in err's chain.
// A CleanupError reports the kind of its cause, never that of the failed
// deletions, and KindCleanup when the cause is unclassified.
func KindOf(err error) Kind {
	switch e := err.(type) { //nolint:errorlint // Walks the chain by hand.
	case nil:
		return KindUnknown
	case *Error:
		return e.Kind
	case *CleanupError:
		if kind := KindOf(e.Cause); kind != KindUnknown {
			return kind
		}

		return KindCleanup
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if kind := KindOf(inner); kind != KindUnknown {
				return kind
			}
		}

		return KindUnknown
	default:
		return KindOf(errors.Unwrap(err))
	}
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// CleanupError is returned when compensating deletion after a failed publish
// did not remove every uploaded artifact. The triggering error stays
// reachable through errors.Is and errors.As.
type CleanupError struct {
	// Cause is the error that triggered the cleanup.
	Cause error
	// Failures aggregates the individual deletion errors.
	Failures error
	// Orphaned lists the storage paths that may still exist.
	Orphaned []string
}

// Error implements the error interface.
func (e *CleanupError) Error() string {
	return fmt.Sprintf("%v (cleanup failed, orphaned artifacts: %s)", e.Cause, strings.Join(e.Orphaned, ", "))
}

// Unwrap exposes both the triggering error and the cleanup failures.
func (e *CleanupError) Unwrap() []error {
	return []error{e.Cause, e.Failures}
}
