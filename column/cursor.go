package column

import (
	"github.com/hupe1980/colstore/cursor"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/metric"
	"github.com/hupe1980/colstore/tablet"
	"github.com/hupe1980/colstore/types"
	"github.com/hupe1980/colstore/values"
)

// source finds entries in a point-in-time view of one column.
type source interface {
	// forward returns the first entry with id >= from.
	forward(from types.TupleID) (types.TupleID, types.Value, bool, error)
	// backward returns the last entry with id <= from.
	backward(from types.TupleID) (types.TupleID, types.Value, bool, error)
	iter() *kv.Iterator
}

type position uint8

const (
	beforeFirst position = iota
	onEntry
	afterLast
)

// Cursor iterates the entries of a column within [lo, hi] in tuple id
// order. It reads a view fixed when the cursor was opened.
type Cursor struct {
	src    source
	lo, hi types.TupleID
	pos    position
	key    types.TupleID
	value  types.Value
	err    error
	closed bool
}

var _ cursor.Scrollable[types.Value] = (*Cursor)(nil)

func newCursor(src source, lo, hi types.TupleID) *Cursor {
	return &Cursor{src: src, lo: lo, hi: hi, key: types.BOC}
}

func (c *Cursor) usable() bool {
	if c.closed || c.err != nil {
		return false
	}
	if c.src.iter().Closed() {
		c.err = errs.ErrTxClosed
		return false
	}
	return true
}

func (c *Cursor) land(id types.TupleID, v types.Value, ok bool, err error, miss position) bool {
	switch {
	case err != nil:
		c.err = err
	case ok && id >= c.lo && id <= c.hi:
		c.pos, c.key, c.value = onEntry, id, v
		return true
	}
	c.pos, c.key, c.value = miss, types.BOC, types.Null()
	return false
}

// MoveNext advances to the next entry.
func (c *Cursor) MoveNext() bool {
	if !c.usable() {
		return false
	}
	var from types.TupleID
	switch c.pos {
	case beforeFirst:
		from = c.lo
	case onEntry:
		if c.key >= c.hi {
			return c.land(0, types.Null(), false, nil, afterLast)
		}
		from = c.key + 1
	default:
		return false
	}
	id, v, ok, err := c.src.forward(from)
	return c.land(id, v, ok, err, afterLast)
}

// MovePrevious moves to the previous entry. From past the end it moves to
// the last entry.
func (c *Cursor) MovePrevious() bool {
	if !c.usable() {
		return false
	}
	var from types.TupleID
	switch c.pos {
	case afterLast:
		from = c.hi
	case onEntry:
		if c.key <= c.lo {
			return c.land(0, types.Null(), false, nil, beforeFirst)
		}
		from = c.key - 1
	default:
		return false
	}
	id, v, ok, err := c.src.backward(from)
	return c.land(id, v, ok, err, beforeFirst)
}

// MoveTo positions the cursor on the first entry >= id and reports whether
// that entry is id itself.
func (c *Cursor) MoveTo(id types.TupleID) bool {
	if !c.usable() {
		return false
	}
	if id < c.lo || id > c.hi {
		return false
	}
	got, v, ok, err := c.src.forward(id)
	return c.land(got, v, ok, err, afterLast) && got == id
}

func (c *Cursor) Key() types.TupleID { return c.key }

func (c *Cursor) Value() types.Value { return c.value }

func (c *Cursor) Err() error { return c.err }

// Close releases the cursor's view.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.pos, c.key, c.value = afterLast, types.BOC, types.Null()
	return c.src.iter().Close()
}

// tabletSource walks tablet pages. The decoded tablet under the iterator
// is kept so that moving within one tablet does not decode it again.
type tabletSource struct {
	it       *kv.Iterator
	region   kv.RegionID
	typ      types.Type
	observer metric.Observer

	cur   *tablet.Tablet
	curID int64
}

func (s *tabletSource) iter() *kv.Iterator { return s.it }

func (s *tabletSource) decode() (*tablet.Tablet, int64, error) {
	id, err := decodeTupleKey(s.region, s.it.Key())
	if err != nil {
		return nil, 0, err
	}
	raw := s.it.Value()
	t, err := tablet.Unmarshal(raw, s.typ)
	if err != nil {
		return nil, 0, err
	}
	s.observer.RecordTabletLoad(len(raw))
	s.cur, s.curID = t, id
	return t, id, nil
}

func (s *tabletSource) forward(from types.TupleID) (types.TupleID, types.Value, bool, error) {
	want := tablet.ID(from)
	start := tablet.Slot(from)
	var valid bool
	if s.cur != nil && s.curID == want {
		if slot := s.cur.Next(start); slot >= 0 {
			return tablet.TupleID(want, slot), s.cur.Get(slot), true, nil
		}
		valid = s.it.Next()
	} else {
		valid = s.it.SeekGE(tupleKey(s.region, want))
	}
	for ; valid; valid = s.it.Next() {
		t, id, err := s.decode()
		if err != nil {
			return types.BOC, types.Null(), false, err
		}
		if id != want {
			start = 0
		}
		if slot := t.Next(start); slot >= 0 {
			return tablet.TupleID(id, slot), t.Get(slot), true, nil
		}
	}
	s.cur = nil
	return types.BOC, types.Null(), false, s.it.Error()
}

func (s *tabletSource) backward(from types.TupleID) (types.TupleID, types.Value, bool, error) {
	want := tablet.ID(from)
	start := tablet.Slot(from)
	var valid bool
	if s.cur != nil && s.curID == want {
		if slot := s.cur.Prev(start); slot >= 0 {
			return tablet.TupleID(want, slot), s.cur.Get(slot), true, nil
		}
		valid = s.it.Prev()
	} else {
		valid = s.it.SeekLT(tupleKey(s.region, want+1))
	}
	for ; valid; valid = s.it.Prev() {
		t, id, err := s.decode()
		if err != nil {
			return types.BOC, types.Null(), false, err
		}
		if id != want {
			start = tablet.Size - 1
		}
		if slot := t.Prev(start); slot >= 0 {
			return tablet.TupleID(id, slot), t.Get(slot), true, nil
		}
	}
	s.cur = nil
	return types.BOC, types.Null(), false, s.it.Error()
}

// cellSource walks one encoded cell per tuple.
type cellSource struct {
	it     *kv.Iterator
	region kv.RegionID
	typ    types.Type
}

func (s *cellSource) iter() *kv.Iterator { return s.it }

func (s *cellSource) entry(valid bool) (types.TupleID, types.Value, bool, error) {
	if !valid {
		return types.BOC, types.Null(), false, s.it.Error()
	}
	id, err := decodeTupleKey(s.region, s.it.Key())
	if err != nil {
		return types.BOC, types.Null(), false, err
	}
	v, err := values.Decode(s.it.Value(), s.typ)
	if err != nil {
		return types.BOC, types.Null(), false, err
	}
	return types.TupleID(id), v, true, nil
}

func (s *cellSource) forward(from types.TupleID) (types.TupleID, types.Value, bool, error) {
	return s.entry(s.it.SeekGE(tupleKey(s.region, int64(from))))
}

func (s *cellSource) backward(from types.TupleID) (types.TupleID, types.Value, bool, error) {
	return s.entry(s.it.SeekLT(tupleKey(s.region, int64(from)+1)))
}
