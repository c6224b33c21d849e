// Package errs defines the error taxonomy shared by every storage layer.
//
// Errors are classified with cockroachdb/errors marks so that a wrapped,
// annotated error still answers errors.Is against its class.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrCorruption reports persisted state that does not match what the
	// catalogue or a structural invariant expects.
	ErrCorruption = errors.New("corruption")
	// ErrValidation reports input that violates a declared constraint.
	ErrValidation = errors.New("validation failed")
	// ErrTxState reports an operation on a transaction or relation in the wrong state.
	ErrTxState = errors.New("invalid transaction state")
	// ErrUnsupported reports an operation the component does not implement.
	ErrUnsupported = errors.New("unsupported operation")
)

var (
	ErrTxClosed       = errors.Mark(errors.New("transaction closed"), ErrTxState)
	ErrTxPoisoned     = errors.Mark(errors.New("transaction aborted by earlier failure"), ErrTxState)
	ErrReadOnly       = errors.Mark(errors.New("transaction is read-only"), ErrTxState)
	ErrRelationClosed = errors.Mark(errors.New("relation closed"), ErrTxState)
	ErrTupleNotFound  = errors.Mark(errors.New("tuple not found"), ErrValidation)
	ErrNotNullable    = errors.Mark(errors.New("null written to non-nullable column"), ErrValidation)

	// ErrTypeMismatch and ErrUniqueViolation match the typed errors below.
	ErrTypeMismatch    = errors.Mark(errors.New("type mismatch"), ErrValidation)
	ErrUniqueViolation = errors.Mark(errors.New("unique constraint violated"), ErrValidation)
)

// Corruptionf returns a new error classified as corruption.
func Corruptionf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// Validationf returns a new error classified as a validation failure.
func Validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// Unsupportedf returns a new error classified as unsupported.
func Unsupportedf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrUnsupported)
}

// TxStatef returns a new error classified as a transaction state error.
func TxStatef(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrTxState)
}

// AsCorruption wraps err and marks it as corruption. nil stays nil.
func AsCorruption(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrCorruption)
}

// TypeMismatchError reports a value whose type does not match the column.
type TypeMismatchError struct {
	Column   string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch on %s: expected %s, got %s", e.Column, e.Expected, e.Actual)
}

// Is reports membership in the validation class.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrValidation || target == ErrTypeMismatch
}

// UniqueViolationError reports a second tuple for a value in a unique index.
type UniqueViolationError struct {
	Index    string
	Value    string
	Existing int64
	Tuple    int64
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique index %s: value %s already maps to tuple %d (rejected tuple %d)",
		e.Index, e.Value, e.Existing, e.Tuple)
}

func (e *UniqueViolationError) Is(target error) bool {
	return target == ErrValidation || target == ErrUniqueViolation
}
