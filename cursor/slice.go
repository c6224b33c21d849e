package cursor

import (
	"sort"

	"github.com/hupe1980/colstore/types"
)

// Slice is a scrollable cursor over entries sorted by key. It serves
// in-memory results and tests.
type Slice[T any] struct {
	entries []Entry[T]
	pos     int
	closed  bool
}

var _ Scrollable[int] = (*Slice[int])(nil)

// FromSlice returns a cursor over entries, which must be sorted by key.
func FromSlice[T any](entries []Entry[T]) *Slice[T] {
	return &Slice[T]{entries: entries, pos: -1}
}

// Empty returns an exhausted cursor.
func Empty[T any]() *Slice[T] { return FromSlice[T](nil) }

func (s *Slice[T]) MoveNext() bool {
	if s.closed || s.pos >= len(s.entries) {
		return false
	}
	s.pos++
	return s.pos < len(s.entries)
}

func (s *Slice[T]) MovePrevious() bool {
	if s.closed {
		return false
	}
	if s.pos > len(s.entries) {
		s.pos = len(s.entries)
	}
	if s.pos < 0 {
		return false
	}
	s.pos--
	return s.pos >= 0
}

func (s *Slice[T]) MoveTo(tid types.TupleID) bool {
	if s.closed {
		return false
	}
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Key >= tid })
	s.pos = i
	return i < len(s.entries) && s.entries[i].Key == tid
}

func (s *Slice[T]) valid() bool { return !s.closed && s.pos >= 0 && s.pos < len(s.entries) }

func (s *Slice[T]) Key() types.TupleID {
	if !s.valid() {
		return types.BOC
	}
	return s.entries[s.pos].Key
}

func (s *Slice[T]) Value() T {
	if !s.valid() {
		var zero T
		return zero
	}
	return s.entries[s.pos].Value
}

func (s *Slice[T]) Err() error { return nil }

func (s *Slice[T]) Close() error {
	s.closed = true
	return nil
}
