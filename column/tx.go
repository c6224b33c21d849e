package column

import (
	"math"
	"sync"

	"github.com/hupe1980/colstore/catalog"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/keys"
	"github.com/hupe1980/colstore/stats"
	"github.com/hupe1980/colstore/txn"
	"github.com/hupe1980/colstore/types"
)

// MaxTupleID is the largest addressable tuple id.
const MaxTupleID = types.TupleID(math.MaxInt64)

// Tx is a column transaction. It is bound to one transaction context and
// serializes its own operations.
type Tx struct {
	mu sync.Mutex

	ctx   *txn.Context
	entry catalog.ColumnEntry
	store storage

	stats        *stats.Statistics
	statsDirty   bool
	largest      types.TupleID
	largestDirty bool
	done         bool
}

var _ txn.Resource = (*Tx)(nil)

func resourceName(e catalog.ColumnEntry) string { return "column/" + e.Def.Name }

// Open returns the transaction of the column described by e within ctx,
// creating and registering it on first use. It fails with a corruption
// error if the column's region is missing.
func Open(ctx *txn.Context, e catalog.ColumnEntry) (*Tx, error) {
	if err := ctx.Check(); err != nil {
		return nil, err
	}
	if r, ok := ctx.Lookup(resourceName(e)); ok {
		return r.(*Tx), nil
	}
	st, largest, err := openState(ctx.KV(), e)
	if err != nil {
		return nil, err
	}
	tx := &Tx{ctx: ctx, entry: e, stats: st, largest: largest}
	if e.Def.Type.FixedLength() {
		tx.store = &fixedStorage{
			tx:       ctx.KV(),
			region:   e.Region,
			def:      e.Def,
			logger:   ctx.Logger(),
			observer: ctx.Observer(),
		}
	} else {
		tx.store = &variableStorage{tx: ctx.KV(), region: e.Region, def: e.Def, observer: ctx.Observer()}
	}
	if err := ctx.Register(resourceName(e), tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Def returns the column definition.
func (tx *Tx) Def() types.ColumnDef { return tx.entry.Def }

// Entry returns the catalogue entry the transaction was opened with.
func (tx *Tx) Entry() catalog.ColumnEntry { return tx.entry }

func (tx *Tx) check() error {
	if tx.done {
		return errs.ErrTxClosed
	}
	return tx.ctx.Check()
}

func (tx *Tx) checkWrite() error {
	if tx.done {
		return errs.ErrTxClosed
	}
	return tx.ctx.CheckWrite()
}

// Validate checks v against the column definition without writing it.
func (tx *Tx) Validate(v types.Value) error { return tx.checkValue(v) }

func (tx *Tx) checkValue(v types.Value) error {
	def := tx.entry.Def
	if v.IsNull() {
		if !def.Nullable {
			return errs.ErrNotNullable
		}
		return nil
	}
	if !v.Conforms(def.Type) {
		return &errs.TypeMismatchError{Column: def.Name, Expected: def.Type.String(), Actual: v.Kind.String()}
	}
	return nil
}

// Read returns the value stored for id. Never-written and deleted tuples
// read as null. Ids outside [0, LargestTupleID] fail with ErrTupleNotFound.
func (tx *Tx) Read(id types.TupleID) (types.Value, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return types.Null(), err
	}
	if !id.Valid() || id > tx.largest {
		return types.Null(), errs.ErrTupleNotFound
	}
	v, _, err := tx.store.get(id)
	return v, err
}

// Contains reports whether id holds an entry, null or not.
func (tx *Tx) Contains(id types.TupleID) (bool, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return false, err
	}
	if !id.Valid() || id > tx.largest {
		return false, nil
	}
	_, ok, err := tx.store.get(id)
	return ok, err
}

// Write stores v for id and returns the previous value.
func (tx *Tx) Write(id types.TupleID, v types.Value) (types.Value, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkWrite(); err != nil {
		return types.Null(), err
	}
	if !id.Valid() {
		return types.Null(), errs.Validationf("invalid tuple id %d", id)
	}
	return tx.write(id, v)
}

func (tx *Tx) write(id types.TupleID, v types.Value) (types.Value, error) {
	if err := tx.checkValue(v); err != nil {
		return types.Null(), err
	}
	prev, existed, err := tx.store.put(id, v)
	if err != nil {
		return types.Null(), err
	}
	if existed {
		tx.stats.Update(prev, v)
	} else {
		tx.stats.Insert(v)
	}
	tx.statsDirty = true
	if id > tx.largest {
		tx.largest = id
		tx.largestDirty = true
	}
	return prev, nil
}

// Insert stores v under a newly assigned tuple id, one past the largest id
// ever assigned in this column.
func (tx *Tx) Insert(v types.Value) (types.TupleID, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkWrite(); err != nil {
		return types.BOC, err
	}
	if tx.largest == MaxTupleID {
		return types.BOC, errs.Validationf("column %s: tuple ids exhausted", tx.entry.Def.Name)
	}
	id := tx.largest + 1
	if _, err := tx.write(id, v); err != nil {
		return types.BOC, err
	}
	return id, nil
}

// Delete removes the entry for id and returns its value. Deleting a
// never-written tuple returns null.
func (tx *Tx) Delete(id types.TupleID) (types.Value, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkWrite(); err != nil {
		return types.Null(), err
	}
	if !id.Valid() || id > tx.largest {
		return types.Null(), nil
	}
	prev, existed, err := tx.store.remove(id)
	if err != nil || !existed {
		return types.Null(), err
	}
	tx.stats.Delete(prev)
	tx.statsDirty = true
	return prev, nil
}

// Cursor opens a cursor over [lo, hi]. Pending writes of this transaction
// are visible to the cursor; later writes are not.
func (tx *Tx) Cursor(lo, hi types.TupleID) (*Cursor, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return nil, err
	}
	lo = max(lo, 0)
	if hi < lo {
		hi = lo - 1
	}
	return tx.store.cursor(lo, hi)
}

// Scan opens a cursor over the whole column.
func (tx *Tx) Scan() (*Cursor, error) { return tx.Cursor(0, MaxTupleID) }

// Count returns the number of entries, null entries included.
func (tx *Tx) Count() (int64, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return 0, err
	}
	return tx.stats.Count(), nil
}

// LargestTupleID returns the largest id ever assigned, or types.BOC.
func (tx *Tx) LargestTupleID() (types.TupleID, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return types.BOC, err
	}
	return tx.largest, nil
}

// Statistics returns a copy of the column statistics.
func (tx *Tx) Statistics() *stats.Statistics {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.stats.Clone()
}

// Flush writes the cached tablet back to the transaction.
func (tx *Tx) Flush() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return err
	}
	return tx.store.flush()
}

// Release drops the transaction's pending changes and removes it from its
// context, so nothing of it is written on commit.
func (tx *Tx) Release() {
	tx.ctx.Unregister(resourceName(tx.entry))
}

// Prepare implements txn.Resource. It flushes the cached tablet and
// persists statistics and the tuple id sequence.
func (tx *Tx) Prepare() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.store.flush(); err != nil {
		return err
	}
	kvtx := tx.ctx.KV()
	if tx.largestDirty {
		next := keys.EncodeUint64Ascending(nil, uint64(tx.largest)+1)
		if err := kvtx.Set(tx.entry.Region.MetaKey(largestKey), next); err != nil {
			return err
		}
	}
	if tx.statsDirty {
		data, err := tx.stats.MarshalBinary()
		if err == nil {
			err = kvtx.Set(tx.entry.Region.StatsKey(), data)
		}
		if err != nil {
			return errs.AsCorruption(err, "persist statistics of %s", tx.entry.Def.Name)
		}
	}
	return nil
}

// Finish implements txn.Resource.
func (tx *Tx) Finish(bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.store.discard()
	tx.done = true
}
