// Package tablet implements the fixed-capacity pages that store
// fixed-length column values.
//
// A tablet holds Size consecutive slots. Tuple id t lives in tablet t>>Shift
// at slot t&(Size-1). Each slot is either unoccupied (never written or
// deleted), occupied with null, or occupied with a value.
package tablet

import (
	"math/bits"

	"github.com/hupe1980/colstore/types"
)

const (
	// Size is the number of slots per tablet.
	Size = 128
	// Shift converts a tuple id to its tablet id.
	Shift = 7

	mask  = Size - 1
	words = Size / 64
)

// ID returns the tablet that holds tuple id.
func ID(id types.TupleID) int64 { return int64(id) >> Shift }

// Slot returns the slot of tuple id within its tablet.
func Slot(id types.TupleID) int { return int(int64(id) & mask) }

// TupleID returns the tuple id at slot of tablet tid.
func TupleID(tid int64, slot int) types.TupleID {
	return types.TupleID(tid<<Shift | int64(slot))
}

type bitmap [words]uint64

func (b *bitmap) get(i int) bool { return b[i>>6]&(1<<(i&63)) != 0 }
func (b *bitmap) set(i int)      { b[i>>6] |= 1 << (i & 63) }
func (b *bitmap) clear(i int)    { b[i>>6] &^= 1 << (i & 63) }

func (b *bitmap) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// Tablet is an in-memory page of Size slots of one type.
type Tablet struct {
	typ      types.Type
	occupied bitmap
	nulls    bitmap
	values   [Size]types.Value
}

// New returns an empty tablet of type t.
func New(t types.Type) *Tablet {
	return &Tablet{typ: t}
}

// Type returns the value type of the tablet.
func (t *Tablet) Type() types.Type { return t.typ }

// Occupied reports whether slot holds a value or null.
func (t *Tablet) Occupied(slot int) bool { return t.occupied.get(slot) }

// Len returns the number of occupied slots.
func (t *Tablet) Len() int { return t.occupied.count() }

// Empty reports whether no slot is occupied.
func (t *Tablet) Empty() bool { return t.occupied == bitmap{} }

// Get returns the value at slot. Unoccupied and null slots read as null.
func (t *Tablet) Get(slot int) types.Value {
	if !t.occupied.get(slot) || t.nulls.get(slot) {
		return types.Null()
	}
	return t.values[slot]
}

// Put stores v at slot and returns the previous value.
func (t *Tablet) Put(slot int, v types.Value) types.Value {
	prev := t.Get(slot)
	t.occupied.set(slot)
	if v.IsNull() {
		t.nulls.set(slot)
		t.values[slot] = types.Value{}
	} else {
		t.nulls.clear(slot)
		t.values[slot] = v
	}
	return prev
}

// Delete frees slot and returns the previous value.
func (t *Tablet) Delete(slot int) types.Value {
	prev := t.Get(slot)
	t.occupied.clear(slot)
	t.nulls.clear(slot)
	t.values[slot] = types.Value{}
	return prev
}

// Next returns the first occupied slot >= from, or -1.
func (t *Tablet) Next(from int) int {
	for i := max(from, 0); i < Size; i++ {
		w := t.occupied[i>>6] >> (i & 63)
		if w == 0 {
			i |= 63
			continue
		}
		return i + bits.TrailingZeros64(w)
	}
	return -1
}

// Prev returns the last occupied slot <= from, or -1.
func (t *Tablet) Prev(from int) int {
	for i := min(from, Size-1); i >= 0; i-- {
		if t.occupied.get(i) {
			return i
		}
	}
	return -1
}
