package column

import (
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/metric"
	"github.com/hupe1980/colstore/tablet"
	"github.com/hupe1980/colstore/types"
)

// storage is the variant-specific part of a column transaction.
type storage interface {
	get(id types.TupleID) (v types.Value, ok bool, err error)
	put(id types.TupleID, v types.Value) (prev types.Value, existed bool, err error)
	remove(id types.TupleID) (prev types.Value, existed bool, err error)
	flush() error
	discard()
	cursor(lo, hi types.TupleID) (*Cursor, error)
}

// cachedTablet is the one tablet slot of a fixed-length column transaction.
type cachedTablet struct {
	id    int64
	t     *tablet.Tablet
	dirty bool
}

type fixedStorage struct {
	tx       *kv.Tx
	region   kv.RegionID
	def      types.ColumnDef
	logger   *slog.Logger
	observer metric.Observer
	cache    cachedTablet
}

func (s *fixedStorage) load(id int64) (*tablet.Tablet, error) {
	if s.cache.t != nil && s.cache.id == id {
		return s.cache.t, nil
	}
	if err := s.flush(); err != nil {
		return nil, err
	}
	raw, ok, err := s.tx.Get(tupleKey(s.region, id))
	if err != nil {
		return nil, err
	}
	t := tablet.New(s.def.Type)
	if ok {
		if t, err = tablet.Unmarshal(raw, s.def.Type); err != nil {
			return nil, err
		}
		s.observer.RecordTabletLoad(len(raw))
	}
	s.cache = cachedTablet{id: id, t: t}
	return t, nil
}

func (s *fixedStorage) get(id types.TupleID) (types.Value, bool, error) {
	t, err := s.load(tablet.ID(id))
	if err != nil {
		return types.Null(), false, err
	}
	slot := tablet.Slot(id)
	return t.Get(slot), t.Occupied(slot), nil
}

func (s *fixedStorage) put(id types.TupleID, v types.Value) (types.Value, bool, error) {
	t, err := s.load(tablet.ID(id))
	if err != nil {
		return types.Null(), false, err
	}
	slot := tablet.Slot(id)
	existed := t.Occupied(slot)
	prev := t.Put(slot, v)
	s.cache.dirty = true
	return prev, existed, nil
}

func (s *fixedStorage) remove(id types.TupleID) (types.Value, bool, error) {
	t, err := s.load(tablet.ID(id))
	if err != nil {
		return types.Null(), false, err
	}
	slot := tablet.Slot(id)
	if !t.Occupied(slot) {
		return types.Null(), false, nil
	}
	prev := t.Delete(slot)
	s.cache.dirty = true
	return prev, true, nil
}

// flush writes the cached tablet back if it is dirty. Empty tablets are
// removed from the store.
func (s *fixedStorage) flush() error {
	c := &s.cache
	if c.t == nil || !c.dirty {
		return nil
	}
	key := tupleKey(s.region, c.id)
	if c.t.Empty() {
		if err := s.tx.Delete(key); err != nil {
			return err
		}
		c.dirty = false
		return nil
	}
	data, err := tablet.Marshal(c.t, s.def.Compression)
	if err != nil {
		return err
	}
	if err := s.tx.Set(key, data); err != nil {
		return err
	}
	c.dirty = false
	s.observer.RecordTabletFlush(len(data))
	s.logger.Debug("tablet flushed",
		"column", s.def.Name,
		"tablet", c.id,
		"tuples", c.t.Len(),
		"size", humanize.Bytes(uint64(len(data))))
	return nil
}

func (s *fixedStorage) discard() { s.cache = cachedTablet{} }

func (s *fixedStorage) cursor(lo, hi types.TupleID) (*Cursor, error) {
	if err := s.flush(); err != nil {
		return nil, err
	}
	lower := tupleKey(s.region, tablet.ID(lo))
	upper := tupleKey(s.region, tablet.ID(hi)+1)
	it, err := s.tx.NewIter(lower, upper)
	if err != nil {
		return nil, err
	}
	s.observer.RecordCursor()
	return newCursor(&tabletSource{it: it, region: s.region, typ: s.def.Type, observer: s.observer}, lo, hi), nil
}
