package colstore

import (
	"github.com/cockroachdb/errors"

	"github.com/hupe1980/colstore/internal/errs"
)

// Error classes. Every error returned by the store belongs to at most one
// class; test with errors.Is.
var (
	ErrCorruption  = errs.ErrCorruption
	ErrValidation  = errs.ErrValidation
	ErrTxState     = errs.ErrTxState
	ErrUnsupported = errs.ErrUnsupported
)

// Specific errors.
var (
	ErrTxClosed        = errs.ErrTxClosed
	ErrTxPoisoned      = errs.ErrTxPoisoned
	ErrReadOnly        = errs.ErrReadOnly
	ErrRelationClosed  = errs.ErrRelationClosed
	ErrTupleNotFound   = errs.ErrTupleNotFound
	ErrNotNullable     = errs.ErrNotNullable
	ErrTypeMismatch    = errs.ErrTypeMismatch
	ErrUniqueViolation = errs.ErrUniqueViolation

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.Mark(errors.New("store closed"), errs.ErrTxState)
)

// UniqueViolationError carries the index, value and tuple ids of a rejected
// write to a unique index.
type UniqueViolationError = errs.UniqueViolationError

// TypeMismatchError reports a value whose kind does not match its column.
type TypeMismatchError = errs.TypeMismatchError
