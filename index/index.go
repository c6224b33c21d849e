// Package index implements the secondary index family: an ordered B-tree
// mapping from encoded values to tuple ids, in a non-unique and a unique
// variant.
//
// Index transactions are maintained from the data change events of the
// entity transaction that owns them. They never scan the relation except
// when explicitly rebuilt.
//
// Key layout inside the index region:
//
//	non-unique: data(key(value) ‖ uint64(tuple)) -> ""
//	unique:     data(key(value))                 -> uint64(tuple)
//
// Value keys are self-delimiting, so every key carrying a given value key as
// prefix belongs to that value.
package index

import (
	"sync"

	"github.com/hupe1980/colstore/catalog"
	"github.com/hupe1980/colstore/event"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/keys"
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/txn"
	"github.com/hupe1980/colstore/types"
	"github.com/hupe1980/colstore/values"
)

const headerVersion = 1

const countKey = "count"

func encodeHeader(typ catalog.IndexType, kind types.Kind) []byte {
	h := []byte{headerVersion, 0, byte(kind)}
	if typ == catalog.IndexBTreeUnique {
		h[1] = 1
	}
	return h
}

// Create initializes the region of a new, empty index on column.
func Create(tx *kv.Tx, e catalog.IndexEntry, column types.ColumnDef) error {
	if !e.Type.Valid() {
		return errs.Validationf("unknown index type %q", e.Type)
	}
	if !values.Indexable(column.Type.Kind) {
		return errs.Unsupportedf("cannot index column %s of type %s", column.Name, column.Type)
	}
	return kv.CreateRegion(tx, e.Region, encodeHeader(e.Type, column.Type.Kind))
}

// Drop deletes the index region.
func Drop(tx *kv.Tx, e catalog.IndexEntry) error {
	return kv.DropRegion(tx, e.Region)
}

type state uint8

const (
	stateInit state = iota
	stateApplying
	stateClosed
)

// Tx is an index transaction. It moves from init through any number of
// applied events to closed when the owning transaction ends.
type Tx struct {
	mu sync.Mutex

	ctx    *txn.Context
	entry  catalog.IndexEntry
	entity *catalog.EntityEntry
	column catalog.ColumnEntry
	pos    int
	unique bool

	state      state
	count      int64
	countDirty bool
}

var _ txn.Resource = (*Tx)(nil)

func resourceName(entity string, e catalog.IndexEntry) string {
	return "index/" + entity + "/" + e.Name
}

// Open returns the transaction of index e on entity within ctx, creating
// and registering it on first use. It fails with a corruption error if the
// index column or region is missing.
func Open(ctx *txn.Context, entity *catalog.EntityEntry, e catalog.IndexEntry) (*Tx, error) {
	if err := ctx.Check(); err != nil {
		return nil, err
	}
	if r, ok := ctx.Lookup(resourceName(entity.Name, e)); ok {
		return r.(*Tx), nil
	}
	pos := -1
	for i, c := range entity.Columns {
		if c.Def.Simple() == e.Column || c.Def.Name == e.Column {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, errs.Corruptionf("index %s: column %s missing from entity %s", e.Name, e.Column, entity.Name)
	}
	column := entity.Columns[pos]

	h, err := kv.RegionHeader(ctx.KV(), e.Region)
	if err != nil {
		return nil, errs.AsCorruption(err, "open index %s", e.Name)
	}
	if string(h) != string(encodeHeader(e.Type, column.Def.Type.Kind)) {
		return nil, errs.Corruptionf("index %s: header %x does not match catalogue entry", e.Name, h)
	}

	var count int64
	raw, ok, err := ctx.KV().Get(e.Region.MetaKey(countKey))
	if err != nil {
		return nil, err
	}
	if ok {
		_, n, err := keys.DecodeUint64Ascending(raw)
		if err != nil {
			return nil, errs.AsCorruption(err, "index %s entry count", e.Name)
		}
		count = int64(n)
	}

	tx := &Tx{
		ctx:    ctx,
		entry:  e,
		entity: entity,
		column: column,
		pos:    pos,
		unique: e.Type == catalog.IndexBTreeUnique,
		count:  count,
	}
	if err := ctx.Register(resourceName(entity.Name, e), tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Entry returns the catalogue entry.
func (tx *Tx) Entry() catalog.IndexEntry { return tx.entry }

// Name returns the index name.
func (tx *Tx) Name() string { return tx.entry.Name }

// Column returns the indexed column.
func (tx *Tx) Column() types.ColumnDef { return tx.column.Def }

// Unique reports whether the index rejects duplicate values.
func (tx *Tx) Unique() bool { return tx.unique }

func (tx *Tx) check() error {
	if tx.state == stateClosed {
		return errs.ErrTxClosed
	}
	return tx.ctx.Check()
}

func (tx *Tx) checkWrite() error {
	if tx.state == stateClosed {
		return errs.ErrTxClosed
	}
	return tx.ctx.CheckWrite()
}

// Count returns the number of index entries.
func (tx *Tx) Count() (int64, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return 0, err
	}
	return tx.count, nil
}

func (tx *Tx) valueKey(v types.Value) ([]byte, error) {
	return values.AppendKey(tx.entry.Region.DataPrefix(), v)
}

func (tx *Tx) entryKey(v types.Value, id types.TupleID) ([]byte, error) {
	k, err := tx.valueKey(v)
	if err != nil {
		return nil, err
	}
	if tx.unique {
		return k, nil
	}
	return keys.EncodeUint64Ascending(k, uint64(id)), nil
}

// lookupUnique returns the tuple mapped to the value key k.
func (tx *Tx) lookupUnique(k []byte) (types.TupleID, bool, error) {
	raw, ok, err := tx.ctx.KV().Get(k)
	if err != nil || !ok {
		return types.BOC, false, err
	}
	_, id, err := keys.DecodeUint64Ascending(raw)
	if err != nil {
		return types.BOC, false, errs.AsCorruption(err, "index %s entry %x", tx.entry.Name, k)
	}
	return types.TupleID(id), true, nil
}

func (tx *Tx) violation(v types.Value, existing, id types.TupleID) error {
	return &errs.UniqueViolationError{
		Index:    tx.entry.Name,
		Value:    v.String(),
		Existing: int64(existing),
		Tuple:    int64(id),
	}
}

// checkUnique fails if v already maps to a tuple other than id.
func (tx *Tx) checkUnique(v types.Value, id types.TupleID) error {
	if !tx.unique || v.IsNull() {
		return nil
	}
	k, err := tx.valueKey(v)
	if err != nil {
		return err
	}
	existing, ok, err := tx.lookupUnique(k)
	if err != nil {
		return err
	}
	if ok && existing != id {
		return tx.violation(v, existing, id)
	}
	return nil
}

// Validate checks that applying e would not violate uniqueness. It does
// not modify the index.
func (tx *Tx) Validate(e event.DataChange) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.check(); err != nil {
		return err
	}
	return tx.validate(e)
}

func (tx *Tx) validate(e event.DataChange) error {
	switch e := e.(type) {
	case event.Insert:
		return tx.checkUnique(e.Values[tx.pos], e.ID)
	case event.Update:
		if e.Changed(tx.pos) {
			return tx.checkUnique(e.New[tx.pos], e.ID)
		}
	}
	return nil
}

// TryApply mirrors e into the index and reports whether the index changed.
// Null values never contribute an entry. A unique index rejects a value
// already mapped to another tuple and stays unchanged.
func (tx *Tx) TryApply(e event.DataChange) (bool, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkWrite(); err != nil {
		return false, err
	}
	if e.Entity() != "" && e.Entity() != tx.entity.Name {
		return false, nil
	}
	if err := tx.validate(e); err != nil {
		return false, err
	}
	tx.state = stateApplying

	var changed bool
	switch e := e.(type) {
	case event.Insert:
		return tx.add(e.Values[tx.pos], e.ID)
	case event.Delete:
		return tx.remove(e.Values[tx.pos], e.ID)
	case event.Update:
		if !e.Changed(tx.pos) {
			return false, nil
		}
		removed, err := tx.remove(e.Old[tx.pos], e.ID)
		if err != nil {
			return false, err
		}
		added, err := tx.add(e.New[tx.pos], e.ID)
		if err != nil {
			return false, err
		}
		changed = removed || added
	}
	return changed, nil
}

func (tx *Tx) add(v types.Value, id types.TupleID) (bool, error) {
	if v.IsNull() {
		return false, nil
	}
	k, err := tx.entryKey(v, id)
	if err != nil {
		return false, err
	}
	kvtx := tx.ctx.KV()
	_, exists, err := kvtx.Get(k)
	if err != nil {
		return false, err
	}
	if exists {
		// Unique entries were validated to map to id already.
		return false, nil
	}
	var val []byte
	if tx.unique {
		val = keys.EncodeUint64Ascending(nil, uint64(id))
	}
	if err := kvtx.Set(k, val); err != nil {
		return false, err
	}
	tx.count++
	tx.countDirty = true
	return true, nil
}

func (tx *Tx) remove(v types.Value, id types.TupleID) (bool, error) {
	if v.IsNull() {
		return false, nil
	}
	k, err := tx.entryKey(v, id)
	if err != nil {
		return false, err
	}
	kvtx := tx.ctx.KV()
	if tx.unique {
		existing, ok, err := tx.lookupUnique(k)
		if err != nil || !ok || existing != id {
			return false, err
		}
	} else if _, ok, err := kvtx.Get(k); err != nil || !ok {
		return false, err
	}
	if err := kvtx.Delete(k); err != nil {
		return false, err
	}
	tx.count--
	tx.countDirty = true
	return true, nil
}

// Release finishes the index transaction without committing its pending
// count and removes it from its context. The caller discards the region.
func (tx *Tx) Release() {
	tx.ctx.Unregister(resourceName(tx.entity.Name, tx.entry))
}

// Prepare implements txn.Resource.
func (tx *Tx) Prepare() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.countDirty {
		return nil
	}
	return tx.ctx.KV().Set(tx.entry.Region.MetaKey(countKey), keys.EncodeUint64Ascending(nil, uint64(tx.count)))
}

// Finish implements txn.Resource.
func (tx *Tx) Finish(bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.state = stateClosed
}
