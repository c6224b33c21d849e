package column

import (
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/metric"
	"github.com/hupe1980/colstore/types"
	"github.com/hupe1980/colstore/values"
)

// variableStorage keeps one encoded cell per tuple. Every operation is one
// store access.
type variableStorage struct {
	tx       *kv.Tx
	region   kv.RegionID
	def      types.ColumnDef
	observer metric.Observer
}

func (s *variableStorage) get(id types.TupleID) (types.Value, bool, error) {
	raw, ok, err := s.tx.Get(tupleKey(s.region, int64(id)))
	if err != nil || !ok {
		return types.Null(), false, err
	}
	v, err := values.Decode(raw, s.def.Type)
	if err != nil {
		return types.Null(), false, err
	}
	return v, true, nil
}

func (s *variableStorage) put(id types.TupleID, v types.Value) (types.Value, bool, error) {
	prev, existed, err := s.get(id)
	if err != nil {
		return types.Null(), false, err
	}
	cell, err := values.Encode(nil, v, s.def.Type)
	if err != nil {
		return types.Null(), false, err
	}
	if err := s.tx.Set(tupleKey(s.region, int64(id)), cell); err != nil {
		return types.Null(), false, err
	}
	return prev, existed, nil
}

func (s *variableStorage) remove(id types.TupleID) (types.Value, bool, error) {
	prev, existed, err := s.get(id)
	if err != nil || !existed {
		return types.Null(), false, err
	}
	if err := s.tx.Delete(tupleKey(s.region, int64(id))); err != nil {
		return types.Null(), false, err
	}
	return prev, true, nil
}

func (s *variableStorage) flush() error { return nil }

func (s *variableStorage) discard() {}

func (s *variableStorage) cursor(lo, hi types.TupleID) (*Cursor, error) {
	it, err := s.tx.NewIter(tupleKey(s.region, int64(lo)), tupleKey(s.region, int64(hi)+1))
	if err != nil {
		return nil, err
	}
	s.observer.RecordCursor()
	return newCursor(&cellSource{it: it, region: s.region, typ: s.def.Type}, lo, hi), nil
}
