// Package cursor defines the iteration protocol shared by column, index and
// entity cursors.
//
// A cursor starts positioned before its first entry. MoveNext advances it
// and reports whether an entry is available; Key and Value describe the
// current entry. Cursors read from a point-in-time view that is released by
// Close, so every cursor must be closed on every exit path. Cursors are not
// safe for concurrent use.
package cursor

import (
	"iter"

	"github.com/hupe1980/colstore/types"
)

// Cursor is a forward-only cursor.
type Cursor[T any] interface {
	// MoveNext advances to the next entry.
	MoveNext() bool
	// Key returns the tuple id of the current entry, or types.BOC before the
	// first MoveNext and after exhaustion.
	Key() types.TupleID
	// Value returns the current value.
	Value() T
	// Err returns the error that stopped iteration, if any.
	Err() error
	// Close releases the cursor. Calling Close twice is a no-op.
	Close() error
}

// Scrollable is a cursor that can also move backwards and jump.
type Scrollable[T any] interface {
	Cursor[T]
	// MovePrevious moves to the previous entry.
	MovePrevious() bool
	// MoveTo positions the cursor on tid and reports whether tid exists
	// within the cursor's range.
	MoveTo(tid types.TupleID) bool
}

// Entry is a materialized cursor entry.
type Entry[T any] struct {
	Key   types.TupleID
	Value T
}

// All adapts c to a range-over-func iterator. The cursor is closed when the
// loop ends, including on break. Check c.Err() after the loop.
func All[T any](c Cursor[T]) iter.Seq2[types.TupleID, T] {
	return func(yield func(types.TupleID, T) bool) {
		defer c.Close()
		for c.MoveNext() {
			if !yield(c.Key(), c.Value()) {
				return
			}
		}
	}
}

// Collect drains and closes c.
func Collect[T any](c Cursor[T]) ([]Entry[T], error) {
	var out []Entry[T]
	err := ForEach(c, func(k types.TupleID, v T) error {
		out = append(out, Entry[T]{Key: k, Value: v})
		return nil
	})
	return out, err
}

// Keys drains and closes c, returning only the tuple ids.
func Keys[T any](c Cursor[T]) ([]types.TupleID, error) {
	var out []types.TupleID
	err := ForEach(c, func(k types.TupleID, _ T) error {
		out = append(out, k)
		return nil
	})
	return out, err
}

// ForEach calls fn for every entry and closes c. It stops at the first error
// returned by fn or by the cursor.
func ForEach[T any](c Cursor[T], fn func(types.TupleID, T) error) (err error) {
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	for c.MoveNext() {
		if err := fn(c.Key(), c.Value()); err != nil {
			return err
		}
	}
	return c.Err()
}
