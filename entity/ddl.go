package entity

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/colstore/catalog"
	"github.com/hupe1980/colstore/column"
	"github.com/hupe1980/colstore/index"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/kv"
)

// CreateIndex creates an index on column and populates it from the current
// rows. The index becomes visible to other transactions on commit. A failed
// build, such as a duplicate in a unique index, leaves the transaction
// usable.
func (tx *Tx) CreateIndex(ctx context.Context, name, col string, typ catalog.IndexType) (*index.Tx, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkWrite(); err != nil {
		return nil, err
	}
	if err := catalog.ValidateName("index", name); err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, errs.Validationf("unknown index type %q", typ)
	}
	if _, ok := tx.entry.Index(name); ok {
		return nil, errs.Validationf("index %s already exists on %s", name, tx.entry.Name)
	}
	ce, ok := tx.entry.Column(col)
	if !ok {
		return nil, errs.Validationf("entity %s has no column %s", tx.entry.Name, col)
	}

	kvtx := tx.ctx.KV()
	region, err := catalog.NextRegion(kvtx)
	if err != nil {
		return nil, err
	}
	ie := catalog.IndexEntry{Name: name, Column: ce.Def.Simple(), Type: typ, Region: region}
	if err := index.Create(kvtx, ie, ce.Def); err != nil {
		return nil, err
	}
	next := tx.entry.Clone()
	next.Indexes = append(next.Indexes, ie)

	it, err := index.Open(tx.ctx, next, ie)
	if err != nil {
		return nil, tx.abandon(ie, err)
	}
	if err := it.Rebuild(ctx); err != nil {
		it.Release()
		return nil, tx.abandon(ie, err)
	}
	tx.entry = next
	tx.indexes = append(tx.indexes, it)
	tx.catalogDirty = true
	return it, nil
}

// abandon removes the region of an index that could not be built and
// returns cause. If even that fails the transaction is poisoned.
func (tx *Tx) abandon(ie catalog.IndexEntry, cause error) error {
	if err := kv.DropRegion(tx.ctx.KV(), ie.Region); err != nil {
		return tx.fail(errs.AsCorruption(err, "discard index %s", ie.Name))
	}
	return cause
}

// DropIndex removes an index. Its region is deleted on commit.
func (tx *Tx) DropIndex(name string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkWrite(); err != nil {
		return err
	}
	ie, ok := tx.entry.Index(name)
	if !ok {
		return errs.Validationf("index %s does not exist on %s", name, tx.entry.Name)
	}
	i := slices.IndexFunc(tx.indexes, func(it *index.Tx) bool { return it.Name() == name })
	if i >= 0 {
		tx.indexes[i].Release()
		tx.indexes = slices.Delete(tx.indexes, i, i+1)
	}
	next := tx.entry.Clone()
	next.Indexes = slices.DeleteFunc(next.Indexes, func(e catalog.IndexEntry) bool { return e.Name == name })
	tx.entry = next
	tx.dropped = append(tx.dropped, ie)
	tx.catalogDirty = true
	tx.ctx.Logger().Info("index dropped", "entity", tx.entry.Name, "index", name)
	return nil
}

// Index returns the transaction of the named index.
func (tx *Tx) Index(name string) (*index.Tx, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for _, it := range tx.indexes {
		if it.Name() == name {
			return it, true
		}
	}
	return nil, false
}

// Indexes returns the index transactions in registration order.
func (tx *Tx) Indexes() []*index.Tx {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return slices.Clone(tx.indexes)
}

// Column returns the transaction of the named column.
func (tx *Tx) Column(name string) (*column.Tx, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if i := tx.position(name); i >= 0 {
		return tx.columns[i], true
	}
	return nil, false
}

// Analyse recomputes the statistics of every column from a full scan. Columns
// are analysed in parallel, bounded by the store's background workers.
func (tx *Tx) Analyse(ctx context.Context) error {
	tx.mu.Lock()
	if err := tx.checkWrite(); err != nil {
		tx.mu.Unlock()
		return err
	}
	columns := slices.Clone(tx.columns)
	name := tx.entry.Name
	tx.mu.Unlock()

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tx.ctx.Limits().Workers())
	for _, c := range columns {
		g.Go(func() error { return c.Analyse(gctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	tx.ctx.Logger().Info("entity analysed",
		"entity", name,
		"columns", len(columns),
		"duration", time.Since(start))
	return nil
}
