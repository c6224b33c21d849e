package index

import (
	"context"
	"time"

	"github.com/hupe1980/colstore/column"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/keys"
	"github.com/hupe1980/colstore/types"
)

// Rebuild truncates the index and repopulates it from a full ordered scan
// of the indexed column. The new entries are staged and replace the old
// ones only if the whole scan succeeds; a unique index fails on the first
// duplicate value and keeps its previous content.
func (tx *Tx) Rebuild(ctx context.Context) error {
	start := time.Now()
	n, err := tx.rebuild(ctx)
	tx.ctx.Observer().RecordRebuild(tx.entry.Name, n, time.Since(start), err)
	if err != nil {
		tx.ctx.Logger().Warn("index rebuild failed", "index", tx.entry.Name, "error", err)
		return err
	}
	tx.ctx.Logger().Info("index rebuilt",
		"index", tx.entry.Name,
		"entries", n,
		"duration", time.Since(start))
	return nil
}

// RebuildAsync is not supported by this index family.
func (tx *Tx) RebuildAsync(context.Context) error {
	return errs.Unsupportedf("index %s only supports synchronous rebuild", tx.entry.Name)
}

func (tx *Tx) rebuild(ctx context.Context) (int64, error) {
	tx.mu.Lock()
	if err := tx.checkWrite(); err != nil {
		tx.mu.Unlock()
		return 0, err
	}
	tx.mu.Unlock()

	limits := tx.ctx.Limits()
	if err := limits.AcquireBackground(ctx); err != nil {
		return 0, err
	}
	defer limits.ReleaseBackground()

	col, err := column.Open(tx.ctx, tx.column)
	if err != nil {
		return 0, err
	}
	cur, err := col.Scan()
	if err != nil {
		return 0, err
	}
	defer cur.Close()

	scratch := tx.ctx.DB().NewScratch()
	defer scratch.Close()
	lower, upper := tx.entry.Region.DataSpan()
	if err := scratch.DeleteRange(lower, upper); err != nil {
		return 0, err
	}

	// Unique rebuilds remember every key to detect duplicates; the memory is
	// charged to the resource controller.
	var (
		seen     map[string]types.TupleID
		reserved int64
		n        int64
	)
	if tx.unique {
		seen = make(map[string]types.TupleID)
		defer func() { limits.ReleaseMemory(reserved) }()
	}
	for cur.MoveNext() {
		v, id := cur.Value(), cur.Key()
		if v.IsNull() {
			continue
		}
		k, err := tx.entryKey(v, id)
		if err != nil {
			return n, err
		}
		var val []byte
		if tx.unique {
			if existing, dup := seen[string(k)]; dup {
				return n, tx.violation(v, existing, id)
			}
			if err := limits.AcquireMemory(int64(len(k))); err != nil {
				return n, err
			}
			reserved += int64(len(k))
			seen[string(k)] = id
			val = keys.EncodeUint64Ascending(nil, uint64(id))
		}
		if err := scratch.Set(k, val); err != nil {
			return n, err
		}
		n++
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
	}
	if err := cur.Err(); err != nil {
		return n, err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.ctx.KV().Apply(scratch); err != nil {
		return n, err
	}
	tx.state = stateApplying
	tx.count = n
	tx.countDirty = true
	return n, nil
}
