package colstore

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/colstore/catalog"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/internal/lock"
	"github.com/hupe1980/colstore/internal/resource"
	"github.com/hupe1980/colstore/txn"
)

// Store is an open column store.
//
// Any number of read transactions run in parallel. Write transactions are
// admitted one at a time; Begin waits for the running writer to finish or
// for ctx to end.
type Store struct {
	db      *kv.DB
	catalog *catalog.Catalog
	locks   *lock.Table
	writer  *semaphore.Weighted
	limits  *resource.Controller
	opts    options

	active atomic.Int64
	closed atomic.Bool
}

// Open opens or creates the store in dir.
func Open(dir string, optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)
	db, err := kv.Open(dir, kv.Options{
		FS:        o.fs,
		Logger:    o.logger.Logger,
		Sync:      o.sync,
		ReadOnly:  o.readOnly,
		CacheSize: o.cacheSize,
	})
	if err != nil {
		return nil, err
	}
	tx := db.Begin(false)
	cat, err := catalog.Load(tx, o.codec)
	_ = tx.Close()
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "load catalogue")
	}
	s := &Store{
		db:      db,
		catalog: cat,
		locks:   lock.NewTable(),
		writer:  semaphore.NewWeighted(1),
		limits: resource.NewController(resource.Config{
			MemoryLimitBytes:     o.memoryLimit,
			MaxBackgroundWorkers: int64(o.backgroundWorkers),
			ScanBytesPerSec:      o.scanBytesPerSec,
		}),
		opts: o,
	}
	o.logger.Info("store opened",
		"dir", dir,
		"entities", len(cat.Snapshot().Entities()),
		"read_only", o.readOnly)
	return s, nil
}

// Close closes the store. Every transaction must have ended.
func (s *Store) Close() error {
	if n := s.active.Load(); n > 0 {
		return errs.TxStatef("close store: %d transactions still open", n)
	}
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// Logger returns the store's logger.
func (s *Store) Logger() *Logger { return s.opts.logger }

// Observer returns the store's metrics observer.
func (s *Store) Observer() Observer { return s.opts.observer }

// Entities returns the names of all committed entities.
func (s *Store) Entities() []string {
	return s.catalog.Snapshot().Entities()
}

// Begin starts a transaction. A write transaction waits for admission
// until the running writer ends or ctx is done.
func (s *Store) Begin(ctx context.Context, write bool) (*Tx, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if write {
		if s.opts.readOnly {
			return nil, ErrReadOnly
		}
		if err := s.writer.Acquire(ctx, 1); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "wait for writer admission"), errs.ErrTxState)
		}
	}
	c := txn.Begin(txn.Env{
		DB:       s.db,
		Catalog:  s.catalog,
		Logger:   s.opts.logger.Logger,
		Observer: s.opts.observer,
		Limits:   s.limits,
	}, write)
	s.active.Add(1)
	c.OnClose(func() { s.active.Add(-1) })
	if write {
		c.OnClose(func() { s.writer.Release(1) })
	}
	return &Tx{store: s, ctx: c, write: write}, nil
}

// View runs fn in a read transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.Begin(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	return fn(tx)
}

// Update runs fn in a write transaction. The transaction commits if fn
// returns nil and rolls back otherwise.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) (err error) {
	tx, err := s.Begin(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.WithSecondaryError(err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
