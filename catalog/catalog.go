// Package catalog persists the metadata of entities, their columns and
// their indexes.
//
// The in-memory catalogue is an ordered btree that write transactions clone
// on begin, modify privately and publish on commit. Readers keep whatever
// tree they cloned, so metadata changes never affect running transactions.
package catalog

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/hupe1980/colstore/codec"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/keys"
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/types"
)

// IndexType names an index implementation.
type IndexType string

const (
	IndexBTree       IndexType = "btree"
	IndexBTreeUnique IndexType = "btree_unique"
)

// Valid reports whether t is a known index type.
func (t IndexType) Valid() bool { return t == IndexBTree || t == IndexBTreeUnique }

// ColumnEntry is the persisted description of a column.
type ColumnEntry struct {
	Def    types.ColumnDef `json:"def"`
	Region kv.RegionID     `json:"region"`
}

// IndexEntry is the persisted description of a secondary index.
type IndexEntry struct {
	Name   string      `json:"name"`
	Column string      `json:"column"`
	Type   IndexType   `json:"type"`
	Region kv.RegionID `json:"region"`
}

// EntityEntry is the persisted description of an entity. Entries stored in
// a tree are immutable; use Clone before changing one.
type EntityEntry struct {
	Name    string        `json:"name"`
	Region  kv.RegionID   `json:"region"`
	Columns []ColumnEntry `json:"columns"`
	Indexes []IndexEntry  `json:"indexes,omitempty"`
}

// Clone returns a deep copy.
func (e *EntityEntry) Clone() *EntityEntry {
	c := *e
	c.Columns = slices.Clone(e.Columns)
	c.Indexes = slices.Clone(e.Indexes)
	return &c
}

// Column returns the column with the given simple or qualified name.
func (e *EntityEntry) Column(name string) (ColumnEntry, bool) {
	for _, c := range e.Columns {
		if c.Def.Name == name || c.Def.Simple() == name {
			return c, true
		}
	}
	return ColumnEntry{}, false
}

// Index returns the index with the given name.
func (e *EntityEntry) Index(name string) (IndexEntry, bool) {
	for _, ix := range e.Indexes {
		if ix.Name == name {
			return ix, true
		}
	}
	return IndexEntry{}, false
}

func lessEntry(a, b *EntityEntry) bool { return a.Name < b.Name }

const btreeDegree = 16

// Catalog is the shared, committed catalogue.
type Catalog struct {
	// view orders transaction starts against commits: a commit holds it
	// exclusively from the key-value commit until its snapshot is published.
	view sync.RWMutex

	mu    sync.Mutex
	tree  *btree.BTreeG[*EntityEntry]
	codec codec.Codec
}

// Load reads every entity entry from the catalogue region.
func Load(tx *kv.Tx, c codec.Codec) (*Catalog, error) {
	if c == nil {
		c = codec.Default
	}
	tree := btree.NewG(btreeDegree, lessEntry)
	start, end := kv.CatalogRegion.DataSpan()
	it, err := tx.NewIter(start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for valid := it.First(); valid; valid = it.Next() {
		e := &EntityEntry{}
		if err := codec.Decode(it.Value(), e); err != nil {
			return nil, errs.AsCorruption(err, "catalogue entry %x", it.Key())
		}
		tree.ReplaceOrInsert(e)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return &Catalog{tree: tree, codec: c}, nil
}

// Snapshot returns a private copy of the committed catalogue.
func (c *Catalog) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Snapshot{tree: c.tree.Clone(), codec: c.codec}
}

// Begin runs open and takes a snapshot with no commit in between, so the
// snapshot describes exactly the key-value state open captured.
func (c *Catalog) Begin(open func()) *Snapshot {
	c.view.RLock()
	defer c.view.RUnlock()
	open()
	return c.Snapshot()
}

// Commit runs commit and, if it succeeds, publishes s before any other
// transaction can begin.
func (c *Catalog) Commit(s *Snapshot, commit func() error) error {
	c.view.Lock()
	defer c.view.Unlock()
	if err := commit(); err != nil {
		return err
	}
	c.Publish(s)
	return nil
}

// Publish installs s as the committed catalogue. Unchanged snapshots are
// ignored.
func (c *Catalog) Publish(s *Snapshot) {
	if !s.dirty {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree = s.tree.Clone()
	s.dirty = false
}

// Snapshot is a transaction-private view of the catalogue.
type Snapshot struct {
	tree  *btree.BTreeG[*EntityEntry]
	codec codec.Codec
	dirty bool
}

// Dirty reports whether the snapshot was modified.
func (s *Snapshot) Dirty() bool { return s.dirty }

// Entity looks up an entity by name.
func (s *Snapshot) Entity(name string) (*EntityEntry, bool) {
	return s.tree.Get(&EntityEntry{Name: name})
}

// Entities returns the names of all entities in order.
func (s *Snapshot) Entities() []string {
	names := make([]string, 0, s.tree.Len())
	s.tree.Ascend(func(e *EntityEntry) bool {
		names = append(names, e.Name)
		return true
	})
	return names
}

// Put writes e to the catalogue region and to the snapshot.
func (s *Snapshot) Put(tx *kv.Tx, e *EntityEntry) error {
	data, err := codec.Encode(s.codec, e)
	if err != nil {
		return err
	}
	if err := tx.Set(entityKey(e.Name), data); err != nil {
		return err
	}
	s.tree.ReplaceOrInsert(e)
	s.dirty = true
	return nil
}

// Delete removes the entity entry.
func (s *Snapshot) Delete(tx *kv.Tx, name string) error {
	if err := tx.Delete(entityKey(name)); err != nil {
		return err
	}
	s.tree.Delete(&EntityEntry{Name: name})
	s.dirty = true
	return nil
}

func entityKey(name string) []byte {
	return kv.CatalogRegion.DataKey(keys.EncodeBytesAscending(nil, []byte(name)))
}

// NextRegion allocates a fresh region id. Ids start at 1.
func NextRegion(tx *kv.Tx) (kv.RegionID, error) {
	key := kv.CatalogRegion.MetaKey("regions")
	var last uint64
	raw, ok, err := tx.Get(key)
	if err != nil {
		return 0, err
	}
	if ok {
		if _, last, err = keys.DecodeUint64Ascending(raw); err != nil {
			return 0, errs.AsCorruption(err, "region sequence")
		}
	}
	next := last + 1
	if err := tx.Set(key, keys.EncodeUint64Ascending(nil, next)); err != nil {
		return 0, err
	}
	return kv.RegionID(next), nil
}

// ValidateName checks an entity, column or index name.
func ValidateName(kind, name string) error {
	if name == "" || strings.ContainsAny(name, ". \t\n") {
		return errs.Validationf("invalid %s name %q", kind, name)
	}
	return nil
}
