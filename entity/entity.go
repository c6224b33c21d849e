// Package entity orchestrates the column and index transactions of one
// relation as a single unit of isolation.
//
// Every row mutation runs in a fixed order: uniqueness pre-check against
// the unique indexes, column writes, index maintenance in registration
// order, tuple directory update and finally the event sink. A failure after
// the first column write poisons the owning transaction so that it can only
// be rolled back.
package entity

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/colstore/catalog"
	"github.com/hupe1980/colstore/column"
	"github.com/hupe1980/colstore/event"
	"github.com/hupe1980/colstore/index"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/internal/lock"
	"github.com/hupe1980/colstore/txn"
)

const (
	headerVersion = 1
	directoryKey  = "tuples"
)

// Create initializes a new entity: its own region with an empty tuple
// directory and one region per column.
func Create(tx *kv.Tx, e *catalog.EntityEntry) error {
	if len(e.Columns) == 0 {
		return errs.Validationf("entity %s needs at least one column", e.Name)
	}
	if err := kv.CreateRegion(tx, e.Region, []byte{headerVersion}); err != nil {
		return err
	}
	data, err := roaring64.New().MarshalBinary()
	if err != nil {
		return err
	}
	if err := tx.Set(e.Region.MetaKey(directoryKey), data); err != nil {
		return err
	}
	for _, c := range e.Columns {
		if err := column.Create(tx, c); err != nil {
			return err
		}
	}
	return nil
}

// Drop deletes the regions of the entity, its columns and its indexes.
func Drop(tx *kv.Tx, e *catalog.EntityEntry) error {
	for _, ix := range e.Indexes {
		if err := index.Drop(tx, ix); err != nil {
			return err
		}
	}
	for _, c := range e.Columns {
		if err := column.Drop(tx, c); err != nil {
			return err
		}
	}
	return kv.DropRegion(tx, e.Region)
}

// Tx is an entity transaction.
type Tx struct {
	mu sync.Mutex

	ctx     *txn.Context
	entry   *catalog.EntityEntry
	columns []*column.Tx
	indexes []*index.Tx

	dir      *roaring64.Bitmap
	dirDirty bool

	sink        event.Sink
	subscribers []event.Subscriber

	catalogDirty bool
	dropped      []catalog.IndexEntry
	done         bool
}

var _ txn.Resource = (*Tx)(nil)

func resourceName(name string) string { return "entity/" + name }

// Open returns the transaction of entity name within tc, creating it on
// first use. It takes a shared stamp on rel, held until tc ends; ctx bounds
// the wait.
func Open(ctx context.Context, tc *txn.Context, rel *lock.Relation, name string) (*Tx, error) {
	if err := tc.Check(); err != nil {
		return nil, err
	}
	if tx, ok := Lookup(tc, name); ok {
		return tx, nil
	}
	entry, ok := tc.Catalog().Entity(name)
	if !ok {
		return nil, errs.Validationf("entity %s does not exist", name)
	}
	if err := rel.AcquireShared(ctx); err != nil {
		return nil, err
	}
	tx, err := open(tc, entry)
	if err != nil {
		rel.ReleaseShared()
		return nil, err
	}
	tc.OnClose(rel.ReleaseShared)
	return tx, nil
}

// Lookup returns the transaction of entity name if tc already opened it.
func Lookup(tc *txn.Context, name string) (*Tx, bool) {
	r, ok := tc.Lookup(resourceName(name))
	if !ok {
		return nil, false
	}
	return r.(*Tx), true
}

func open(tc *txn.Context, entry *catalog.EntityEntry) (*Tx, error) {
	if _, err := kv.RegionHeader(tc.KV(), entry.Region); err != nil {
		return nil, errs.AsCorruption(err, "open entity %s", entry.Name)
	}
	raw, ok, err := tc.KV().Get(entry.Region.MetaKey(directoryKey))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Corruptionf("entity %s: tuple directory missing", entry.Name)
	}
	dir := roaring64.New()
	if err := dir.UnmarshalBinary(raw); err != nil {
		return nil, errs.AsCorruption(err, "entity %s tuple directory", entry.Name)
	}

	tx := &Tx{ctx: tc, entry: entry, dir: dir}
	for _, c := range entry.Columns {
		ct, err := column.Open(tc, c)
		if err != nil {
			return nil, err
		}
		tx.columns = append(tx.columns, ct)
	}
	for _, e := range entry.Indexes {
		it, err := index.Open(tc, entry, e)
		if err != nil {
			return nil, err
		}
		tx.indexes = append(tx.indexes, it)
	}
	if err := tc.Register(resourceName(entry.Name), tx); err != nil {
		return nil, err
	}
	tc.OnCommit(tx.notify)
	return tx, nil
}

// Name returns the entity name.
func (tx *Tx) Name() string { return tx.entry.Name }

// Entry returns the entity's catalogue entry as seen by this transaction.
func (tx *Tx) Entry() *catalog.EntityEntry {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.entry
}

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

// fail poisons the owning transaction with err and returns it.
func (tx *Tx) fail(err error) error {
	tx.ctx.Poison(err)
	return err
}

// Discard releases the entity transaction together with its column and
// index transactions without writing anything on commit. It is used when the
// entity is dropped by the same transaction.
func (tx *Tx) Discard() {
	tx.mu.Lock()
	indexes, columns := tx.indexes, tx.columns
	tx.indexes, tx.columns = nil, nil
	tx.mu.Unlock()
	for _, it := range indexes {
		it.Release()
	}
	for _, c := range columns {
		c.Release()
	}
	tx.ctx.Unregister(resourceName(tx.entry.Name))
}

// Subscribe registers s to receive the changes of this transaction after
// it commits. Subscribers are called in registration order.
func (tx *Tx) Subscribe(s event.Subscriber) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.subscribers = append(tx.subscribers, s)
}

func (tx *Tx) notify() {
	tx.mu.Lock()
	changes := tx.sink.Drain()
	subs := tx.subscribers
	tx.mu.Unlock()
	if len(changes) == 0 {
		return
	}
	for _, s := range subs {
		s.OnCommit(changes)
	}
}

// Prepare implements txn.Resource. It persists the tuple directory, drops
// the regions of dropped indexes and writes the changed catalogue entry.
func (tx *Tx) Prepare() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	kvtx := tx.ctx.KV()
	if tx.dirDirty {
		tx.dir.RunOptimize()
		data, err := tx.dir.MarshalBinary()
		if err == nil {
			err = kvtx.Set(tx.entry.Region.MetaKey(directoryKey), data)
		}
		if err != nil {
			return errs.AsCorruption(err, "persist tuple directory of %s", tx.entry.Name)
		}
	}
	for _, e := range tx.dropped {
		if err := index.Drop(kvtx, e); err != nil {
			return err
		}
	}
	if tx.catalogDirty {
		if err := tx.ctx.Catalog().Put(kvtx, tx.entry); err != nil {
			return err
		}
	}
	return nil
}

// Finish implements txn.Resource.
func (tx *Tx) Finish(committed bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.done = true
	if !committed {
		tx.sink.Reset()
	}
}
