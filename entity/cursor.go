package entity

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/colstore/column"
	"github.com/hupe1980/colstore/cursor"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/types"
)

// Cursor iterates the live rows of an entity in tuple id order. The set of
// rows and their values are fixed when the cursor is opened.
type Cursor struct {
	dir     *roaring64.Bitmap
	n       int64
	pos     int64
	columns []*column.Cursor

	cur    types.Tuple
	err    error
	closed bool
}

var _ cursor.Scrollable[types.Tuple] = (*Cursor)(nil)

// Cursor opens a cursor over the live rows in [lo, hi], projected onto cols
// or every column when cols is empty.
func (tx *Tx) Cursor(lo, hi types.TupleID, cols ...string) (*Cursor, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return nil, err
	}
	positions, err := tx.positions(cols)
	if err != nil {
		return nil, err
	}
	lo = max(lo, 0)
	dir := tx.dir.Clone()
	if hi < lo {
		dir.Clear()
	} else {
		if lo > 0 {
			dir.RemoveRange(0, uint64(lo))
		}
		if hi < column.MaxTupleID {
			dir.RemoveRange(uint64(hi)+1, math.MaxUint64)
		}
	}

	c := &Cursor{dir: dir, n: int64(dir.GetCardinality()), pos: -1, cur: types.Tuple{ID: types.BOC}}
	for _, p := range positions {
		cc, err := tx.columns[p].Cursor(lo, hi)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.columns = append(c.columns, cc)
	}
	return c, nil
}

// Scan opens a cursor over every live row.
func (tx *Tx) Scan(cols ...string) (*Cursor, error) {
	return tx.Cursor(0, column.MaxTupleID, cols...)
}

func (c *Cursor) usable() bool { return !c.closed && c.err == nil }

// load positions the cursor on the pos-th live row.
func (c *Cursor) load() bool {
	if c.pos < 0 || c.pos >= c.n {
		c.cur = types.Tuple{ID: types.BOC}
		return false
	}
	v, err := c.dir.Select(uint64(c.pos))
	if err != nil {
		c.err = errs.AsCorruption(err, "tuple directory position %d", c.pos)
		return false
	}
	id := types.TupleID(v)
	row := make([]types.Value, len(c.columns))
	for i, cc := range c.columns {
		switch {
		case cc.MoveTo(id):
			row[i] = cc.Value()
		case cc.Err() != nil:
			c.err = cc.Err()
			c.cur = types.Tuple{ID: types.BOC}
			return false
		default:
			row[i] = types.Null()
		}
	}
	c.cur = types.Tuple{ID: id, Values: row}
	return true
}

func (c *Cursor) MoveNext() bool {
	if !c.usable() {
		return false
	}
	if c.pos < c.n {
		c.pos++
	}
	return c.load()
}

func (c *Cursor) MovePrevious() bool {
	if !c.usable() {
		return false
	}
	if c.pos >= 0 {
		c.pos--
	}
	return c.load()
}

// MoveTo positions the cursor on tid, or on the next live row after it,
// and reports whether tid itself is live.
func (c *Cursor) MoveTo(tid types.TupleID) bool {
	if !c.usable() || !tid.Valid() {
		return false
	}
	rank := int64(c.dir.Rank(uint64(tid)))
	if c.dir.Contains(uint64(tid)) {
		c.pos = rank - 1
		return c.load()
	}
	c.pos = rank
	c.load()
	return false
}

func (c *Cursor) Key() types.TupleID { return c.cur.ID }

func (c *Cursor) Value() types.Tuple { return c.cur }

func (c *Cursor) Err() error { return c.err }

// Close releases the column views.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.cur = types.Tuple{ID: types.BOC}
	var first error
	for _, cc := range c.columns {
		if err := cc.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Range is an inclusive tuple id range.
type Range struct {
	Lo, Hi types.TupleID
}

// Partitions splits [0, LargestTupleID] into at most n contiguous ranges of
// near equal width for partitioned scans.
func (tx *Tx) Partitions(n int) ([]Range, error) {
	largest, err := tx.LargestTupleID()
	if err != nil || n <= 0 || largest < 0 {
		return nil, err
	}
	total := int64(largest) + 1
	width := (total + int64(n) - 1) / int64(n)
	out := make([]Range, 0, n)
	for lo := int64(0); lo < total; lo += width {
		out = append(out, Range{Lo: types.TupleID(lo), Hi: types.TupleID(min(lo+width, total) - 1)})
	}
	return out, nil
}
