// Package txn implements the transaction context shared by every
// sub-transaction (column, index, entity) participating in one unit of
// isolation.
//
// Sub-transactions register as resources. Commit asks every resource to
// stage its pending state into the key-value transaction in registration
// order, commits that transaction atomically and then tells every resource
// the outcome. Rollback only tells the outcome; nothing was written.
package txn

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/hupe1980/colstore/catalog"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/internal/resource"
	"github.com/hupe1980/colstore/metric"
)

// Resource is a sub-transaction bound to a Context.
type Resource interface {
	// Prepare writes pending state (dirty tablets, statistics, catalogue
	// changes) into the key-value transaction. It is called once, before
	// the key-value commit.
	Prepare() error
	// Finish releases the resource. committed reports the outcome.
	Finish(committed bool)
}

type state uint8

const (
	stateActive state = iota
	stateEnding
	stateCommitted
	stateRolledBack
)

// Env is what a Context needs from the store.
type Env struct {
	DB       *kv.DB
	Catalog  *catalog.Catalog
	Logger   *slog.Logger
	Observer metric.Observer
	Limits   *resource.Controller
}

// Context is one transaction. It is safe for concurrent use; operations
// are serialized.
type Context struct {
	mu sync.Mutex

	env     Env
	kv      *kv.Tx
	catalog *catalog.Snapshot
	write   bool
	started time.Time

	state     state
	poison    error
	resources []Resource
	named     map[string]Resource
	mutations int

	onPublish []func()
	onCommit  []func()
	onClose   []func()
}

// Begin starts a transaction.
func Begin(env Env, write bool) *Context {
	if env.Logger == nil {
		env.Logger = slog.New(slog.DiscardHandler)
	}
	if env.Observer == nil {
		env.Observer = metric.NoopObserver{}
	}
	var tx *kv.Tx
	snap := env.Catalog.Begin(func() { tx = env.DB.Begin(write) })
	return &Context{
		env:     env,
		kv:      tx,
		catalog: snap,
		write:   tx.Writable(),
		started: time.Now(),
		named:   make(map[string]Resource),
	}
}

// KV returns the key-value transaction.
func (c *Context) KV() *kv.Tx { return c.kv }

// DB returns the store the transaction runs against.
func (c *Context) DB() *kv.DB { return c.env.DB }

// Catalog returns the transaction's private catalogue snapshot.
func (c *Context) Catalog() *catalog.Snapshot { return c.catalog }

// Writable reports whether the transaction accepts writes.
func (c *Context) Writable() bool { return c.write }

func (c *Context) Logger() *slog.Logger { return c.env.Logger }

func (c *Context) Observer() metric.Observer { return c.env.Observer }

// Limits returns the background work controller. It may be nil.
func (c *Context) Limits() *resource.Controller { return c.env.Limits }

// Check returns an error unless the transaction is active and not poisoned.
func (c *Context) Check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkLocked()
}

func (c *Context) checkLocked() error {
	if c.state != stateActive {
		return errs.ErrTxClosed
	}
	if c.poison != nil {
		return errors.WithSecondaryError(errs.ErrTxPoisoned, c.poison)
	}
	return nil
}

// CheckWrite is Check plus a writability check.
func (c *Context) CheckWrite() error {
	if err := c.Check(); err != nil {
		return err
	}
	if !c.write {
		return errs.ErrReadOnly
	}
	return nil
}

// Poison marks the transaction as failed. Every later operation and Commit
// fail; only Rollback is allowed. The first cause wins.
func (c *Context) Poison(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poison == nil && cause != nil {
		c.poison = cause
		c.env.Logger.Warn("transaction poisoned", "error", cause)
	}
}

// Poisoned returns the poisoning cause, if any.
func (c *Context) Poisoned() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poison
}

// Register adds a resource under name. Registering a second resource under
// the same name is an error.
func (c *Context) Register(name string, r Resource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(); err != nil {
		return err
	}
	if _, ok := c.named[name]; ok {
		return errors.AssertionFailedf("resource %q registered twice", name)
	}
	c.named[name] = r
	c.resources = append(c.resources, r)
	return nil
}

// Lookup returns the resource registered under name.
func (c *Context) Lookup(name string) (Resource, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.named[name]
	return r, ok
}

// Unregister finishes and removes the resource registered under name.
func (c *Context) Unregister(name string) {
	c.mu.Lock()
	r, ok := c.named[name]
	if ok {
		delete(c.named, name)
		for i, x := range c.resources {
			if x == r {
				c.resources = append(c.resources[:i], c.resources[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()
	if ok {
		r.Finish(false)
	}
}

// AddMutations counts row mutations for reporting.
func (c *Context) AddMutations(n int) {
	c.mu.Lock()
	c.mutations += n
	c.mu.Unlock()
}

// OnPublish registers fn to run once the writes are durable, before any
// later transaction can begin. fn must not block.
func (c *Context) OnPublish(fn func()) {
	c.mu.Lock()
	c.onPublish = append(c.onPublish, fn)
	c.mu.Unlock()
}

// OnCommit registers fn to run after a successful commit.
func (c *Context) OnCommit(fn func()) {
	c.mu.Lock()
	c.onCommit = append(c.onCommit, fn)
	c.mu.Unlock()
}

// OnClose registers fn to run when the transaction ends either way, after
// every resource has finished.
func (c *Context) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

// Commit prepares every resource, commits the key-value transaction and
// publishes the catalogue snapshot. A poisoned transaction is rolled back
// and its cause returned. Any failure leaves the store unchanged.
func (c *Context) Commit() error {
	c.mu.Lock()
	if c.state != stateActive {
		c.mu.Unlock()
		return errs.ErrTxClosed
	}
	c.state = stateEnding
	cause := c.poison
	resources := append([]Resource(nil), c.resources...)
	c.mu.Unlock()

	if cause != nil {
		_ = c.rollback()
		return errors.WithSecondaryError(errs.ErrTxPoisoned, cause)
	}
	if !c.write {
		err := c.kv.Close()
		c.finish(stateCommitted)
		return err
	}

	start := time.Now()
	err := c.prepare(resources)
	if err == nil {
		err = c.env.Catalog.Commit(c.catalog, c.commitKV)
	}
	if err != nil {
		c.env.Observer.RecordCommit(time.Since(start), 0, err)
		_ = c.kv.Close()
		c.finish(stateRolledBack)
		return err
	}

	c.env.Observer.RecordCommit(time.Since(start), c.mutations, nil)
	c.env.Logger.Debug("transaction committed",
		"mutations", c.mutations,
		"duration", time.Since(c.started))
	c.finish(stateCommitted)
	return nil
}

func (c *Context) commitKV() error {
	if err := c.kv.Commit(); err != nil {
		return err
	}
	c.mu.Lock()
	onPublish := c.onPublish
	c.onPublish = nil
	c.mu.Unlock()
	for _, fn := range onPublish {
		fn()
	}
	return nil
}

func (c *Context) prepare(resources []Resource) error {
	for _, r := range resources {
		if err := r.Prepare(); err != nil {
			return err
		}
	}
	return nil
}

// Rollback discards the transaction. Rolling back a finished transaction
// is a no-op.
func (c *Context) Rollback() error {
	c.mu.Lock()
	if c.state != stateActive {
		c.mu.Unlock()
		return nil
	}
	c.state = stateEnding
	c.mu.Unlock()
	return c.rollback()
}

func (c *Context) rollback() error {
	err := c.kv.Close()
	if c.write {
		c.env.Observer.RecordRollback()
		c.env.Logger.Debug("transaction rolled back",
			"mutations", c.mutations,
			"duration", time.Since(c.started))
	}
	c.finish(stateRolledBack)
	return err
}

func (c *Context) finish(s state) {
	c.mu.Lock()
	c.state = s
	resources := c.resources
	c.resources = nil
	c.named = map[string]Resource{}
	onCommit, onClose := c.onCommit, c.onClose
	c.onPublish, c.onCommit, c.onClose = nil, nil, nil
	c.mu.Unlock()

	for i := len(resources) - 1; i >= 0; i-- {
		resources[i].Finish(s == stateCommitted)
	}
	if s == stateCommitted {
		for _, fn := range onCommit {
			fn()
		}
	}
	for _, fn := range onClose {
		fn()
	}
}

// Done reports whether the transaction has ended.
func (c *Context) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateActive
}
