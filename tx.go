package colstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/hupe1980/colstore/catalog"
	"github.com/hupe1980/colstore/entity"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/lock"
	"github.com/hupe1980/colstore/txn"
	"github.com/hupe1980/colstore/types"
)

// Tx is a store transaction. It is safe for concurrent use; entity, column
// and index transactions opened through it serialize their own operations.
type Tx struct {
	store *Store
	ctx   *txn.Context
	write bool

	mu sync.Mutex
	// relations holds the locks of names dropped (nil) or created again in
	// this transaction. They reach the store's lock table on commit.
	relations map[string]*lock.Relation
}

// Writable reports whether the transaction accepts writes.
func (tx *Tx) Writable() bool { return tx.ctx.Writable() }

// Context returns the underlying transaction context.
func (tx *Tx) Context() *txn.Context { return tx.ctx }

// Commit commits the transaction. A poisoned transaction is rolled back and
// ErrTxPoisoned returned.
func (tx *Tx) Commit(ctx context.Context) error {
	start := time.Now()
	err := tx.ctx.Commit()
	if tx.write {
		tx.store.opts.logger.LogCommit(ctx, time.Since(start), err)
	}
	return err
}

// Rollback discards the transaction. It is a no-op on a finished
// transaction.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.ctx.Done() {
		return nil
	}
	err := tx.ctx.Rollback()
	tx.store.opts.logger.LogRollback(ctx, tx.write, err)
	return err
}

// Entities returns the entity names visible to the transaction.
func (tx *Tx) Entities() []string { return tx.ctx.Catalog().Entities() }

// Entity opens the named entity. ctx bounds the wait for its relation lock.
func (tx *Tx) Entity(ctx context.Context, name string) (*entity.Tx, error) {
	return entity.Open(ctx, tx.ctx, tx.relation(name), name)
}

func (tx *Tx) relation(name string) *lock.Relation {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if r := tx.relations[name]; r != nil {
		return r
	}
	return tx.store.locks.Get(name)
}

func (tx *Tx) setRelation(name string, r *lock.Relation) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.relations == nil {
		tx.relations = make(map[string]*lock.Relation)
	}
	tx.relations[name] = r
}

// droppedHere reports whether name was dropped earlier in this transaction
// and not created again since.
func (tx *Tx) droppedHere(name string) bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	r, ok := tx.relations[name]
	return ok && r == nil
}

// CreateEntity creates an entity with the given columns and returns its
// transaction. Column names may be simple or qualified with the entity
// name. Fixed-length columns without a compression choice get the store
// default.
func (tx *Tx) CreateEntity(ctx context.Context, name string, columns ...types.ColumnDef) (*entity.Tx, error) {
	err := tx.createEntity(name, columns)
	tx.store.opts.logger.LogCreate(ctx, name, len(columns), err)
	if err != nil {
		return nil, err
	}
	e, err := tx.Entity(ctx, name)
	if err != nil {
		// The entity is staged but unusable.
		tx.ctx.Poison(err)
		return nil, err
	}
	return e, nil
}

func (tx *Tx) createEntity(name string, columns []types.ColumnDef) error {
	if err := tx.ctx.CheckWrite(); err != nil {
		return err
	}
	for _, part := range strings.Split(name, ".") {
		if err := catalog.ValidateName("entity", part); err != nil {
			return err
		}
	}
	snap := tx.ctx.Catalog()
	if _, ok := snap.Entity(name); ok {
		return errs.Validationf("entity %s already exists", name)
	}
	if len(columns) == 0 {
		return errs.Validationf("entity %s needs at least one column", name)
	}

	kvtx := tx.ctx.KV()
	region, err := catalog.NextRegion(kvtx)
	if err != nil {
		return err
	}
	e := &catalog.EntityEntry{Name: name, Region: region}
	seen := make([]string, 0, len(columns))
	for _, def := range columns {
		simple := strings.TrimPrefix(def.Name, name+".")
		if err := catalog.ValidateName("column", simple); err != nil {
			return err
		}
		if slices.Contains(seen, simple) {
			return errs.Validationf("entity %s: duplicate column %s", name, simple)
		}
		seen = append(seen, simple)
		def.Name = name + "." + simple
		if def.Compression == types.CompressionNone && def.Type.FixedLength() {
			def.Compression = tx.store.opts.defaultCompression
		}
		if err := def.Validate(); err != nil {
			return errors.Mark(err, errs.ErrValidation)
		}
		r, err := catalog.NextRegion(kvtx)
		if err != nil {
			return err
		}
		e.Columns = append(e.Columns, catalog.ColumnEntry{Def: def, Region: r})
	}
	if err := entity.Create(kvtx, e); err != nil {
		return err
	}
	if err := snap.Put(kvtx, e); err != nil {
		return err
	}
	if tx.droppedHere(name) {
		// The dropped relation's lock stays exclusively held until this
		// transaction closes, so the new relation needs its own.
		rel := lock.NewRelation()
		tx.setRelation(name, rel)
		tx.ctx.OnPublish(func() { tx.store.locks.Install(name, rel) })
	}
	return nil
}

// DropEntity removes an entity with all its data and indexes. It waits,
// bounded by ctx, until no other transaction uses the entity; from then on
// no new transaction can open it. The drop takes effect on commit.
func (tx *Tx) DropEntity(ctx context.Context, name string) error {
	err := tx.dropEntity(ctx, name)
	tx.store.opts.logger.LogDrop(ctx, name, err)
	return err
}

func (tx *Tx) dropEntity(ctx context.Context, name string) error {
	if err := tx.ctx.CheckWrite(); err != nil {
		return err
	}
	snap := tx.ctx.Catalog()
	e, ok := snap.Entity(name)
	if !ok {
		return errs.Validationf("entity %s does not exist", name)
	}

	rel := tx.relation(name)
	open, upgrade := entity.Lookup(tx.ctx, name)
	if err := rel.AcquireExclusive(ctx, upgrade); err != nil {
		return err
	}
	tx.ctx.OnClose(func() { rel.ReleaseExclusive(upgrade) })
	tx.ctx.OnPublish(func() { tx.store.locks.Retire(name, rel) })
	tx.setRelation(name, nil)
	if upgrade {
		open.Discard()
	}

	kvtx := tx.ctx.KV()
	err := entity.Drop(kvtx, e)
	if err == nil {
		err = snap.Delete(kvtx, name)
	}
	if err != nil {
		tx.ctx.Poison(err)
	}
	return err
}
