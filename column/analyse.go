package column

import (
	"context"
	"hash/maphash"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/colstore/stats"
	"github.com/hupe1980/colstore/values"
)

// scanChunk is the amount of payload charged to the scan rate limiter at once.
const scanChunk = 64 << 10

var distinctSeed = maphash.MakeSeed()

// Analyse recomputes the column statistics from a full scan. The distinct
// count is exact up to 64-bit hash collisions, and the result is fresh.
func (tx *Tx) Analyse(ctx context.Context) error {
	start := time.Now()
	n, err := tx.analyse(ctx)
	tx.ctx.Observer().RecordAnalyse(tx.entry.Def.Name, n, time.Since(start), err)
	if err != nil {
		return err
	}
	tx.ctx.Logger().Info("column analysed",
		"column", tx.entry.Def.Name,
		"values", n,
		"duration", time.Since(start))
	return nil
}

func (tx *Tx) analyse(ctx context.Context) (int64, error) {
	if err := tx.ctx.CheckWrite(); err != nil {
		return 0, err
	}
	limits := tx.ctx.Limits()
	if err := limits.AcquireBackground(ctx); err != nil {
		return 0, err
	}
	defer limits.ReleaseBackground()

	c, err := tx.Scan()
	if err != nil {
		return 0, err
	}
	defer c.Close()

	def := tx.entry.Def
	fresh := stats.New(def.Type)
	seen := roaring64.New()
	var (
		n       int64
		pending int
		buf     []byte
	)
	for c.MoveNext() {
		v := c.Value()
		fresh.Insert(v)
		n++
		if v.IsNull() {
			continue
		}
		if buf, err = values.AppendPayload(buf[:0], v, def.Type); err != nil {
			return n, err
		}
		seen.Add(maphash.Bytes(distinctSeed, buf))
		if pending += len(buf); pending >= scanChunk {
			if err := limits.AcquireScan(ctx, pending); err != nil {
				return n, err
			}
			pending = 0
		}
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
	}
	if err := c.Err(); err != nil {
		return n, err
	}
	fresh.SetDistinct(int64(seen.GetCardinality()))

	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.stats = fresh
	tx.statsDirty = true
	return n, nil
}
