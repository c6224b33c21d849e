// Package lock implements the structural lock that guards a relation
// against being dropped while transactions use it.
//
// Every transaction that opens a relation holds a shared stamp. Dropping
// the relation takes the exclusive stamp, which waits for all shared holders
// to finish and, because waiters are served in order, keeps new
// transactions out while it waits.
package lock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/colstore/internal/errs"
)

const capacity = 1 << 30

// Relation is the structural lock of one relation.
type Relation struct {
	sem     *semaphore.Weighted
	dropped atomic.Bool
}

// NewRelation returns an unlocked relation lock.
func NewRelation() *Relation {
	return &Relation{sem: semaphore.NewWeighted(capacity)}
}

// AcquireShared takes a shared stamp. It fails with errs.ErrRelationClosed
// once the relation was dropped.
func (r *Relation) AcquireShared(ctx context.Context) error {
	if r.dropped.Load() {
		return errs.ErrRelationClosed
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return errors.Mark(errors.Wrap(err, "acquire relation lock"), errs.ErrTxState)
	}
	if r.dropped.Load() {
		r.sem.Release(1)
		return errs.ErrRelationClosed
	}
	return nil
}

// ReleaseShared returns a shared stamp.
func (r *Relation) ReleaseShared() { r.sem.Release(1) }

// AcquireExclusive takes the exclusive stamp. A caller that already holds a
// shared stamp passes upgrade=true and keeps it counted toward the total.
func (r *Relation) AcquireExclusive(ctx context.Context, upgrade bool) error {
	if r.dropped.Load() {
		return errs.ErrRelationClosed
	}
	if err := r.sem.Acquire(ctx, weight(upgrade)); err != nil {
		return errors.Mark(errors.Wrap(err, "acquire exclusive relation lock"), errs.ErrTxState)
	}
	return nil
}

// ReleaseExclusive returns the exclusive stamp taken with the same upgrade flag.
func (r *Relation) ReleaseExclusive(upgrade bool) { r.sem.Release(weight(upgrade)) }

// MarkDropped makes every later acquisition fail.
func (r *Relation) MarkDropped() { r.dropped.Store(true) }

// Dropped reports whether the relation was dropped.
func (r *Relation) Dropped() bool { return r.dropped.Load() }

func weight(upgrade bool) int64 {
	if upgrade {
		return capacity - 1
	}
	return capacity
}

// Table hands out one Relation per name.
type Table struct {
	mu   sync.Mutex
	rels map[string]*Relation
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{rels: make(map[string]*Relation)}
}

// Get returns the lock for name, creating it on first use.
func (t *Table) Get(name string) *Relation {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rels[name]
	if !ok || r.Dropped() {
		r = NewRelation()
		t.rels[name] = r
	}
	return r
}

// Retire marks r dropped and forgets it if it is still the lock of name,
// so a relation created later under the same name gets a fresh lock.
func (t *Table) Retire(name string, r *Relation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.MarkDropped()
	if t.rels[name] == r {
		delete(t.rels, name)
	}
}

// Install makes r the lock of name. A different lock held for name is
// marked dropped.
func (t *Table) Install(name string, r *Relation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.rels[name]; ok && old != r {
		old.MarkDropped()
	}
	t.rels[name] = r
}
