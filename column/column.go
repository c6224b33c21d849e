// Package column implements column storage and column transactions.
//
// Fixed-length columns page their values into tablets of tablet.Size slots
// keyed by tablet id. Variable-length columns store one encoded cell per
// tuple id. Both variants share the transaction contract of Tx; a column
// transaction caches at most one tablet and writes it back when another
// tablet is touched, when a cursor is opened and when the owning
// transaction commits.
package column

import (
	"encoding/binary"

	"github.com/hupe1980/colstore/catalog"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/keys"
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/stats"
	"github.com/hupe1980/colstore/types"
)

const headerVersion = 1

const largestKey = "largest"

func encodeHeader(t types.Type) []byte {
	h := []byte{headerVersion, byte(t.Kind)}
	return binary.AppendUvarint(h, uint64(t.Size))
}

func decodeHeader(h []byte) (types.Type, error) {
	if len(h) < 3 || h[0] != headerVersion {
		return types.Type{}, errs.Corruptionf("bad column header %x", h)
	}
	size, n := binary.Uvarint(h[2:])
	if n <= 0 || 2+n != len(h) {
		return types.Type{}, errs.Corruptionf("bad column header %x", h)
	}
	return types.Type{Kind: types.Kind(h[1]), Size: int(size)}, nil
}

// Create initializes the region of a new column.
func Create(tx *kv.Tx, e catalog.ColumnEntry) error {
	if err := e.Def.Validate(); err != nil {
		return err
	}
	if err := kv.CreateRegion(tx, e.Region, encodeHeader(e.Def.Type)); err != nil {
		return err
	}
	data, err := stats.New(e.Def.Type).MarshalBinary()
	if err != nil {
		return err
	}
	return tx.Set(e.Region.StatsKey(), data)
}

// Drop deletes the column's region.
func Drop(tx *kv.Tx, e catalog.ColumnEntry) error {
	return kv.DropRegion(tx, e.Region)
}

// openState reads the persisted bookkeeping of a column and fails with a
// corruption error if the region is missing or disagrees with the entry.
func openState(tx *kv.Tx, e catalog.ColumnEntry) (*stats.Statistics, types.TupleID, error) {
	h, err := kv.RegionHeader(tx, e.Region)
	if err != nil {
		return nil, types.BOC, errs.AsCorruption(err, "open column %s", e.Def.Name)
	}
	t, err := decodeHeader(h)
	if err != nil {
		return nil, types.BOC, errs.AsCorruption(err, "open column %s", e.Def.Name)
	}
	if t != e.Def.Type {
		return nil, types.BOC, errs.Corruptionf("column %s: region holds %s, catalogue says %s",
			e.Def.Name, t, e.Def.Type)
	}

	raw, ok, err := tx.Get(e.Region.StatsKey())
	if err != nil {
		return nil, types.BOC, err
	}
	if !ok {
		return nil, types.BOC, errs.Corruptionf("column %s: statistics record missing", e.Def.Name)
	}
	st, err := stats.Decode(raw)
	if err != nil {
		return nil, types.BOC, errs.AsCorruption(err, "column %s statistics", e.Def.Name)
	}

	largest := types.BOC
	raw, ok, err = tx.Get(e.Region.MetaKey(largestKey))
	if err != nil {
		return nil, types.BOC, err
	}
	if ok {
		_, next, err := keys.DecodeUint64Ascending(raw)
		if err != nil {
			return nil, types.BOC, errs.AsCorruption(err, "column %s sequence", e.Def.Name)
		}
		largest = types.TupleID(next) - 1
	}
	return st, largest, nil
}

func tupleKey(r kv.RegionID, id int64) []byte {
	return r.DataKey(keys.EncodeUint64Ascending(nil, uint64(id)))
}

func decodeTupleKey(r kv.RegionID, key []byte) (int64, error) {
	prefix := r.DataPrefix()
	if len(key) < len(prefix) {
		return 0, errs.Corruptionf("short data key %x", key)
	}
	_, id, err := keys.DecodeUint64Ascending(key[len(prefix):])
	if err != nil {
		return 0, errs.AsCorruption(err, "data key %x", key)
	}
	return int64(id), nil
}
