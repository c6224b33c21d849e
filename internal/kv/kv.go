// Package kv wraps pebble as the ordered, transactional byte store beneath
// the column store.
//
// A write transaction is an indexed batch: reads observe its own writes and
// Commit applies everything atomically. A read transaction is a snapshot.
// Iterators opened from either see a fixed point in time and are closed by
// the transaction when it ends.
package kv

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/hupe1980/colstore/internal/errs"
)

// Options configures the store.
type Options struct {
	// FS is the filesystem pebble writes to. Nil means the OS filesystem.
	FS vfs.FS
	// Logger receives pebble's own log output.
	Logger *slog.Logger
	// Sync makes every commit durable before it returns.
	Sync bool
	// ReadOnly opens the store without write access.
	ReadOnly bool
	// CacheSize is the block cache size in bytes. Zero keeps pebble's default.
	CacheSize int64
}

// DB is an open store.
type DB struct {
	db     *pebble.DB
	opts   Options
	logger *slog.Logger
}

// Open opens or creates the store in dir.
func Open(dir string, opts Options) (*DB, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	po := &pebble.Options{
		FS:       opts.FS,
		Logger:   pebbleLogger{l: opts.Logger},
		ReadOnly: opts.ReadOnly,
	}
	if opts.CacheSize > 0 {
		c := pebble.NewCache(opts.CacheSize)
		defer c.Unref()
		po.Cache = c
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, errors.Wrapf(err, "open store at %q", dir)
	}
	return &DB{db: db, opts: opts, logger: opts.Logger}, nil
}

// Close closes the store. All transactions must be finished.
func (d *DB) Close() error {
	return d.db.Close()
}

// ReadOnly reports whether the store was opened read-only.
func (d *DB) ReadOnly() bool { return d.opts.ReadOnly }

// Begin starts a transaction. Read-only transactions read from a snapshot.
func (d *DB) Begin(write bool) *Tx {
	tx := &Tx{db: d, iters: make(map[*Iterator]struct{})}
	if write && !d.opts.ReadOnly {
		tx.batch = d.db.NewIndexedBatch()
	} else {
		tx.snap = d.db.NewSnapshot()
	}
	return tx
}

// NewScratch returns an unindexed batch for staging writes that are
// applied to a transaction later as one unit.
func (d *DB) NewScratch() *Scratch {
	return &Scratch{b: d.db.NewBatch()}
}

// Tx is a transaction over the store. Tx serializes its own operations and
// is safe for concurrent use; iterators are not.
type Tx struct {
	db    *DB
	batch *pebble.Batch
	snap  *pebble.Snapshot
	opMu  sync.Mutex

	mu     sync.Mutex
	iters  map[*Iterator]struct{}
	closed bool
}

// Writable reports whether the transaction accepts writes.
func (tx *Tx) Writable() bool { return tx.batch != nil }

// Get returns a copy of the value at key. found is false on a miss.
func (tx *Tx) Get(key []byte) (value []byte, found bool, err error) {
	if err := tx.check(); err != nil {
		return nil, false, err
	}
	var (
		v      []byte
		closer io.Closer
	)
	tx.opMu.Lock()
	defer tx.opMu.Unlock()
	if tx.batch != nil {
		v, closer, err = tx.batch.Get(key)
	} else {
		v, closer, err = tx.snap.Get(key)
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "get")
	}
	out := append([]byte(nil), v...)
	return out, true, closer.Close()
}

// Set stores value at key.
func (tx *Tx) Set(key, value []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	tx.opMu.Lock()
	defer tx.opMu.Unlock()
	return errors.Wrap(tx.batch.Set(key, value, nil), "set")
}

// Delete removes key.
func (tx *Tx) Delete(key []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	tx.opMu.Lock()
	defer tx.opMu.Unlock()
	return errors.Wrap(tx.batch.Delete(key, nil), "delete")
}

// DeleteRange removes every key in [start, end).
func (tx *Tx) DeleteRange(start, end []byte) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	tx.opMu.Lock()
	defer tx.opMu.Unlock()
	return errors.Wrap(tx.batch.DeleteRange(start, end, nil), "delete range")
}

// Apply applies the staged writes of s and resets s.
func (tx *Tx) Apply(s *Scratch) error {
	if err := tx.checkWrite(); err != nil {
		return err
	}
	tx.opMu.Lock()
	defer tx.opMu.Unlock()
	if err := tx.batch.Apply(s.b, nil); err != nil {
		return errors.Wrap(err, "apply staged writes")
	}
	s.b.Reset()
	return nil
}

// NewIter opens an iterator over keys in [lower, upper). The iterator sees
// the transaction's writes made before this call and nothing later.
func (tx *Tx) NewIter(lower, upper []byte) (*Iterator, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	o := &pebble.IterOptions{LowerBound: lower, UpperBound: upper}
	var (
		it  *pebble.Iterator
		err error
	)
	tx.opMu.Lock()
	if tx.batch != nil {
		it, err = tx.batch.NewIter(o)
	} else {
		it, err = tx.snap.NewIter(o)
	}
	tx.opMu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "new iterator")
	}
	iter := &Iterator{Iterator: it, tx: tx}

	tx.mu.Lock()
	tx.iters[iter] = struct{}{}
	tx.mu.Unlock()
	return iter, nil
}

// Commit makes the writes durable and visible, then closes the transaction.
// For read-only transactions it only releases the snapshot.
func (tx *Tx) Commit() error {
	if err := tx.check(); err != nil {
		return err
	}
	if tx.batch != nil {
		opts := pebble.NoSync
		if tx.db.opts.Sync {
			opts = pebble.Sync
		}
		tx.closeIters()
		if err := tx.batch.Commit(opts); err != nil {
			_ = tx.Close()
			return errors.Wrap(err, "commit")
		}
	}
	return tx.Close()
}

// Close discards uncommitted writes and releases all resources.
// Closing a closed transaction is a no-op.
func (tx *Tx) Close() error {
	tx.mu.Lock()
	if tx.closed {
		tx.mu.Unlock()
		return nil
	}
	tx.closed = true
	tx.mu.Unlock()

	tx.closeIters()
	if tx.batch != nil {
		return tx.batch.Close()
	}
	return tx.snap.Close()
}

// Closed reports whether the transaction has ended.
func (tx *Tx) Closed() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.closed
}

func (tx *Tx) closeIters() {
	tx.mu.Lock()
	open := make([]*Iterator, 0, len(tx.iters))
	for it := range tx.iters {
		open = append(open, it)
	}
	tx.mu.Unlock()
	for _, it := range open {
		_ = it.Close()
	}
}

func (tx *Tx) check() error {
	if tx.Closed() {
		return errs.ErrTxClosed
	}
	return nil
}

func (tx *Tx) checkWrite() error {
	if err := tx.check(); err != nil {
		return err
	}
	if tx.batch == nil {
		return errs.ErrReadOnly
	}
	return nil
}

// Iterator is a pebble iterator owned by a transaction.
type Iterator struct {
	*pebble.Iterator
	tx     *Tx
	closed bool
}

// Close releases the iterator. It is safe to call more than once.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.tx.mu.Lock()
	delete(it.tx.iters, it)
	it.tx.mu.Unlock()
	return it.Iterator.Close()
}

// Closed reports whether the iterator was closed, possibly by its transaction.
func (it *Iterator) Closed() bool { return it.closed }

// Scratch stages writes outside a transaction.
type Scratch struct {
	b *pebble.Batch
}

func (s *Scratch) Set(key, value []byte) error { return s.b.Set(key, value, nil) }

func (s *Scratch) DeleteRange(start, end []byte) error { return s.b.DeleteRange(start, end, nil) }

// Len returns the number of staged operations.
func (s *Scratch) Len() int { return int(s.b.Count()) }

// Close discards the staged writes.
func (s *Scratch) Close() error { return s.b.Close() }

type pebbleLogger struct {
	l *slog.Logger
}

func (p pebbleLogger) Infof(format string, args ...interface{}) {
	p.l.Debug(fmt.Sprintf(format, args...), "component", "pebble")
}

func (p pebbleLogger) Errorf(format string, args ...interface{}) {
	p.l.Error(fmt.Sprintf(format, args...), "component", "pebble")
}

func (p pebbleLogger) Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.l.Error(msg, "component", "pebble")
	panic(msg)
}
