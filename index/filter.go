package index

import (
	"bytes"

	"github.com/hupe1980/colstore/cursor"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/keys"
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/predicate"
	"github.com/hupe1980/colstore/types"
	"github.com/hupe1980/colstore/values"
)

// traversal is the seek policy of a filter cursor. Each operator maps to
// exactly one traversal.
type traversal uint8

const (
	// seekPoints visits the entries of each target value in ascending order.
	seekPoints traversal = iota + 1
	// scanUp visits every entry from a start key upwards.
	scanUp
	// scanDown visits every entry from a start key downwards.
	scanDown
	// scanPrefix visits entries sharing a key prefix, filtered by a LIKE
	// pattern.
	scanPrefix
)

func traversalFor(op predicate.Operator) traversal {
	switch op {
	case predicate.OpEqual, predicate.OpIn:
		return seekPoints
	case predicate.OpGreater, predicate.OpGreaterEqual:
		return scanUp
	case predicate.OpLess, predicate.OpLessEqual:
		return scanDown
	case predicate.OpLike:
		return scanPrefix
	}
	return 0
}

// FilterCursor yields the tuples matching a predicate. Each value is a
// one-column tuple holding the indexed value.
type FilterCursor struct {
	ix   *Tx
	it   *kv.Iterator
	mode traversal

	// seekPoints
	targets [][]byte
	target  int
	// scanUp, scanDown: first key to visit (inclusive for scanUp, exclusive
	// for scanDown). scanPrefix: the shared prefix.
	start   []byte
	pattern string

	started bool
	done    bool
	key     types.TupleID
	value   types.Tuple
	err     error
	closed  bool
}

var _ cursor.Cursor[types.Tuple] = (*FilterCursor)(nil)

// Filter returns a cursor over the tuples matching p. Only the indexed
// column can be filtered. The cursor sees the index as of this call.
func (tx *Tx) Filter(p predicate.Comparison) (*FilterCursor, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !tx.covers(p.Column) {
		return nil, errs.Validationf("index %s does not cover column %s", tx.entry.Name, p.Column)
	}
	if p.Not {
		return nil, errs.Unsupportedf("index %s cannot answer negated predicates", tx.entry.Name)
	}
	kind := tx.column.Def.Type.Kind
	for _, v := range p.Values {
		if p.Op != predicate.OpLike && v.Kind != kind {
			return nil, &errs.TypeMismatchError{Column: tx.column.Def.Name, Expected: kind.String(), Actual: v.Kind.String()}
		}
	}
	if p.Op == predicate.OpLike && kind != types.KindString {
		return nil, errs.Validationf("LIKE on non-string column %s", tx.column.Def.Name)
	}

	c := &FilterCursor{ix: tx, mode: traversalFor(p.Op), key: types.BOC}
	switch c.mode {
	case seekPoints:
		for _, v := range p.Targets() {
			k, err := tx.valueKey(v)
			if err != nil {
				return nil, err
			}
			c.targets = append(c.targets, k)
		}
	case scanUp, scanDown:
		k, err := tx.valueKey(p.Value())
		if err != nil {
			return nil, err
		}
		// Duplicates of the bound share its key as prefix, so PrefixEnd
		// steps over the whole run in one seek.
		switch p.Op {
		case predicate.OpGreater, predicate.OpLessEqual:
			k = keys.PrefixEnd(k)
		}
		c.start = k
	case scanPrefix:
		prefix, _ := predicate.LiteralPrefix(p.Value().S)
		k, err := values.AppendKeyPrefix(tx.entry.Region.DataPrefix(), types.String(prefix))
		if err != nil {
			return nil, err
		}
		c.start = k
		c.pattern = p.Value().S
	}

	lower, upper := tx.entry.Region.DataSpan()
	it, err := tx.ctx.KV().NewIter(lower, upper)
	if err != nil {
		return nil, err
	}
	c.it = it
	tx.ctx.Observer().RecordCursor()
	return c, nil
}

// FilterRange would split the filter across tuple id partitions. The index
// is ordered by value, so it cannot.
func (tx *Tx) FilterRange(predicate.Comparison, int, int) (*FilterCursor, error) {
	return nil, errs.Unsupportedf("index %s does not support ranged filtering", tx.entry.Name)
}

func (tx *Tx) covers(column string) bool {
	return column == tx.column.Def.Name || column == tx.column.Def.Simple()
}

// decode splits the current iterator entry into its value and tuple.
func (c *FilterCursor) decode() (types.Value, types.TupleID, error) {
	ix := c.ix
	key := c.it.Key()
	prefix := ix.entry.Region.DataPrefix()
	if !bytes.HasPrefix(key, prefix) {
		return types.Null(), types.BOC, errs.Corruptionf("index %s: foreign key %x", ix.entry.Name, key)
	}
	v, rest, err := values.ReadKey(key[len(prefix):], ix.column.Def.Type.Kind)
	if err != nil {
		return types.Null(), types.BOC, err
	}
	var id uint64
	if ix.unique {
		if len(rest) != 0 {
			return types.Null(), types.BOC, errs.Corruptionf("index %s: trailing key bytes %x", ix.entry.Name, rest)
		}
		_, id, err = keys.DecodeUint64Ascending(c.it.Value())
	} else {
		rest, id, err = keys.DecodeUint64Ascending(rest)
		if err == nil && len(rest) != 0 {
			err = errs.Corruptionf("trailing key bytes %x", rest)
		}
	}
	if err != nil {
		return types.Null(), types.BOC, errs.AsCorruption(err, "index %s entry %x", ix.entry.Name, key)
	}
	return v, types.TupleID(id), nil
}

// MoveNext advances to the next matching tuple.
func (c *FilterCursor) MoveNext() bool {
	if c.closed || c.done || c.err != nil {
		return false
	}
	if c.it.Closed() {
		c.err = errs.ErrTxClosed
		return false
	}
	var ok bool
	switch c.mode {
	case seekPoints:
		ok = c.nextPoint()
	case scanUp:
		ok = c.step(func() bool { return c.it.SeekGE(c.start) }, c.it.Next)
	case scanDown:
		ok = c.step(func() bool { return c.it.SeekLT(c.start) }, c.it.Prev)
	case scanPrefix:
		ok = c.nextLike()
	}
	c.started = true
	if !ok {
		c.done = true
		c.key, c.value = types.BOC, types.Tuple{}
		if c.err == nil {
			c.err = c.it.Error()
		}
	}
	return ok
}

func (c *FilterCursor) land() bool {
	v, id, err := c.decode()
	if err != nil {
		c.err = err
		return false
	}
	c.key = id
	c.value = types.Tuple{ID: id, Values: []types.Value{v}}
	return true
}

func (c *FilterCursor) step(first func() bool, next func() bool) bool {
	var valid bool
	if c.started {
		valid = next()
	} else {
		valid = first()
	}
	return valid && c.land()
}

func (c *FilterCursor) nextPoint() bool {
	var valid bool
	if c.started {
		valid = c.it.Next()
	} else {
		valid = c.it.SeekGE(c.targets[0])
	}
	for c.target < len(c.targets) {
		t := c.targets[c.target]
		if valid && c.matchesTarget(t) {
			return c.land()
		}
		c.target++
		if c.target < len(c.targets) {
			valid = c.it.SeekGE(c.targets[c.target])
		}
	}
	return false
}

func (c *FilterCursor) matchesTarget(t []byte) bool {
	key := c.it.Key()
	if c.ix.unique {
		return bytes.Equal(key, t)
	}
	return bytes.HasPrefix(key, t)
}

func (c *FilterCursor) nextLike() bool {
	var valid bool
	if c.started {
		valid = c.it.Next()
	} else {
		valid = c.it.SeekGE(c.start)
	}
	for ; valid && bytes.HasPrefix(c.it.Key(), c.start); valid = c.it.Next() {
		if !c.land() {
			return false
		}
		if predicate.MatchLike(c.pattern, c.value.Values[0].S) {
			return true
		}
	}
	return false
}

// Key returns the current tuple id.
func (c *FilterCursor) Key() types.TupleID { return c.key }

// Value returns the current tuple.
func (c *FilterCursor) Value() types.Tuple { return c.value }

func (c *FilterCursor) Err() error { return c.err }

// Close releases the cursor.
func (c *FilterCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.it.Close()
}
