package column

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colstore/catalog"
	"github.com/hupe1980/colstore/cursor"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/metric"
	"github.com/hupe1980/colstore/stats"
	"github.com/hupe1980/colstore/txn"
	"github.com/hupe1980/colstore/types"
)

type harness struct {
	fs       vfs.FS
	db       *kv.DB
	cat      *catalog.Catalog
	observer *metric.BasicObserver
	region   kv.RegionID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{fs: vfs.NewMem(), observer: &metric.BasicObserver{}}
	h.open(t)
	t.Cleanup(func() { _ = h.db.Close() })
	return h
}

func (h *harness) open(t *testing.T) {
	t.Helper()
	db, err := kv.Open("", kv.Options{FS: h.fs})
	require.NoError(t, err)
	tx := db.Begin(false)
	cat, err := catalog.Load(tx, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Close())
	h.db, h.cat = db, cat
}

// reopen simulates a process restart.
func (h *harness) reopen(t *testing.T) {
	t.Helper()
	require.NoError(t, h.db.Close())
	h.open(t)
}

func (h *harness) begin(write bool) *txn.Context {
	return txn.Begin(txn.Env{DB: h.db, Catalog: h.cat, Observer: h.observer}, write)
}

func (h *harness) create(t *testing.T, def types.ColumnDef) catalog.ColumnEntry {
	t.Helper()
	h.region++
	e := catalog.ColumnEntry{Def: def, Region: h.region}
	c := h.begin(true)
	require.NoError(t, Create(c.KV(), e))
	require.NoError(t, c.Commit())
	return e
}

func intColumn(t *testing.T, h *harness) catalog.ColumnEntry {
	return h.create(t, types.NewColumnDef("t", "v", types.Scalar(types.KindInt)))
}

func openTx(t *testing.T, c *txn.Context, e catalog.ColumnEntry) *Tx {
	t.Helper()
	tx, err := Open(c, e)
	require.NoError(t, err)
	return tx
}

func collect(t *testing.T, c cursor.Cursor[types.Value]) []cursor.Entry[types.Value] {
	t.Helper()
	out, err := cursor.Collect(c)
	require.NoError(t, err)
	return out
}

func TestTabletBoundary(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)

	c := h.begin(true)
	tx := openTx(t, c, e)
	_, err := tx.Write(127, types.Int(1270))
	require.NoError(t, err)
	_, err = tx.Write(128, types.Int(1280))
	require.NoError(t, err)
	require.NoError(t, c.Commit())

	rtx := h.db.Begin(false)
	start, end := e.Region.DataSpan()
	it, err := rtx.NewIter(start, end)
	require.NoError(t, err)
	pages := 0
	for valid := it.First(); valid; valid = it.Next() {
		pages++
	}
	require.NoError(t, rtx.Close())
	assert.Equal(t, 2, pages, "127 and 128 live in different tablets")

	h.reopen(t)
	c = h.begin(false)
	defer c.Rollback()
	tx = openTx(t, c, e)
	v, err := tx.Read(127)
	require.NoError(t, err)
	assert.Equal(t, types.Int(1270), v)
	v, err = tx.Read(128)
	require.NoError(t, err)
	assert.Equal(t, types.Int(1280), v)
	assertLargest(t, tx, types.TupleID(128))
}

func TestTx_ReadWriteDelete(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)
	c := h.begin(true)
	defer c.Rollback()
	tx := openTx(t, c, e)

	for i := range 5 {
		id, err := tx.Insert(types.Int(int32(i * 10)))
		require.NoError(t, err)
		assert.Equal(t, types.TupleID(i), id)
	}
	n, err := tx.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	prev, err := tx.Write(2, types.Int(99))
	require.NoError(t, err)
	assert.Equal(t, types.Int(20), prev)

	prev, err = tx.Delete(3)
	require.NoError(t, err)
	assert.Equal(t, types.Int(30), prev)
	v, err := tx.Read(3)
	require.NoError(t, err)
	assert.True(t, v.IsNull(), "deleted slot reads as null")
	ok, err := tx.Contains(3)
	require.NoError(t, err)
	assert.False(t, ok)

	prev, err = tx.Delete(3)
	require.NoError(t, err)
	assert.True(t, prev.IsNull())

	_, err = tx.Read(5)
	assert.True(t, errors.Is(err, errs.ErrTupleNotFound))
	assert.True(t, errors.Is(err, errs.ErrValidation))

	id, err := tx.Insert(types.Int(1))
	require.NoError(t, err)
	assert.Equal(t, types.TupleID(5), id, "ids are never reused")

	n, err = tx.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestTx_Validation(t *testing.T) {
	h := newHarness(t)
	def := types.NewColumnDef("t", "v", types.Scalar(types.KindInt))
	def.Nullable = false
	e := h.create(t, def)
	c := h.begin(true)
	defer c.Rollback()
	tx := openTx(t, c, e)

	_, err := tx.Insert(types.Long(1))
	var mismatch *errs.TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "t.v", mismatch.Column)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = tx.Insert(types.Null())
	assert.True(t, errors.Is(err, errs.ErrNotNullable))
	assertLargest(t, tx, types.BOC)
}

func TestTx_ReadOnly(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)
	c := h.begin(false)
	defer c.Rollback()
	tx := openTx(t, c, e)
	_, err := tx.Insert(types.Int(1))
	assert.True(t, errors.Is(err, errs.ErrReadOnly))
}

func TestOpen_MissingRegion(t *testing.T) {
	h := newHarness(t)
	c := h.begin(false)
	defer c.Rollback()
	e := catalog.ColumnEntry{Def: types.NewColumnDef("t", "v", types.Scalar(types.KindInt)), Region: 42}
	_, err := Open(c, e)
	assert.True(t, errors.Is(err, errs.ErrCorruption))
}

func TestOpen_TypeDisagreement(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)
	e.Def.Type = types.Scalar(types.KindLong)
	c := h.begin(false)
	defer c.Rollback()
	_, err := Open(c, e)
	assert.True(t, errors.Is(err, errs.ErrCorruption))
}

func TestOpen_SameTxReturnsSameColumnTx(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)
	c := h.begin(true)
	defer c.Rollback()
	assert.Same(t, openTx(t, c, e), openTx(t, c, e))
}

func TestRollbackDiscards(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)

	c := h.begin(true)
	tx := openTx(t, c, e)
	_, err := tx.Insert(types.Int(7))
	require.NoError(t, err)
	require.NoError(t, c.Commit())

	c = h.begin(true)
	tx = openTx(t, c, e)
	for range 10 {
		_, err := tx.Insert(types.Int(1))
		require.NoError(t, err)
	}
	_, err = tx.Write(0, types.Int(8))
	require.NoError(t, err)
	require.NoError(t, c.Rollback())
	_, err = tx.Read(0)
	assert.True(t, errors.Is(err, errs.ErrTxClosed))
	largest, err := tx.LargestTupleID()
	assert.True(t, errors.Is(err, errs.ErrTxClosed))
	assert.Equal(t, types.BOC, largest)

	c = h.begin(false)
	defer c.Rollback()
	tx = openTx(t, c, e)
	n, err := tx.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	v, err := tx.Read(0)
	require.NoError(t, err)
	assert.Equal(t, types.Int(7), v)
	assertLargest(t, tx, types.TupleID(0))
}

func TestCursor_Scroll(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)
	c := h.begin(true)
	defer c.Rollback()
	tx := openTx(t, c, e)
	for _, id := range []types.TupleID{1, 5, 127, 128, 300} {
		_, err := tx.Write(id, types.Int(int32(id)))
		require.NoError(t, err)
	}

	cur, err := tx.Cursor(2, 200)
	require.NoError(t, err)
	defer cur.Close()

	assert.Equal(t, types.BOC, cur.Key())
	require.True(t, cur.MoveNext())
	assert.Equal(t, types.TupleID(5), cur.Key())
	require.True(t, cur.MoveNext())
	assert.Equal(t, types.TupleID(127), cur.Key())
	require.True(t, cur.MoveNext())
	assert.Equal(t, types.TupleID(128), cur.Key())
	assert.Equal(t, types.Int(128), cur.Value())
	assert.False(t, cur.MoveNext(), "300 is outside the range")

	require.True(t, cur.MovePrevious())
	assert.Equal(t, types.TupleID(128), cur.Key())
	require.True(t, cur.MovePrevious())
	assert.Equal(t, types.TupleID(127), cur.Key())
	require.True(t, cur.MovePrevious())
	assert.Equal(t, types.TupleID(5), cur.Key())
	assert.False(t, cur.MovePrevious(), "1 is outside the range")

	assert.True(t, cur.MoveTo(127))
	assert.False(t, cur.MoveTo(6))
	assert.Equal(t, types.TupleID(127), cur.Key())
	assert.False(t, cur.MoveTo(300))
	require.NoError(t, cur.Err())
}

func TestCursor_IsolatedFromOwnLaterWrites(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)
	c := h.begin(true)
	defer c.Rollback()
	tx := openTx(t, c, e)
	for i := range 4 {
		_, err := tx.Insert(types.Int(int32(i)))
		require.NoError(t, err)
	}

	cur, err := tx.Cursor(0, 10)
	require.NoError(t, err)
	_, err = tx.Write(2, types.Int(100))
	require.NoError(t, err)
	_, err = tx.Insert(types.Int(4))
	require.NoError(t, err)

	got := collect(t, cur)
	require.Len(t, got, 4)
	assert.Equal(t, types.Int(2), got[2].Value)
}

func TestCursor_IsolatedFromConcurrentCommit(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)
	c := h.begin(true)
	tx := openTx(t, c, e)
	for _, id := range []types.TupleID{0, 1, 2, 3, 4, 6} {
		_, err := tx.Write(id, types.Int(int32(id)))
		require.NoError(t, err)
	}
	require.NoError(t, c.Commit())

	reader := h.begin(false)
	defer reader.Rollback()
	cur, err := openTx(t, reader, e).Cursor(0, 10)
	require.NoError(t, err)
	require.True(t, cur.MoveNext())

	writer := h.begin(true)
	wtx := openTx(t, writer, e)
	_, err = wtx.Write(5, types.Int(5))
	require.NoError(t, err)
	_, err = wtx.Write(1, types.Int(-1))
	require.NoError(t, err)
	require.NoError(t, writer.Commit())

	var keys []types.TupleID
	var vals []types.Value
	for cur.MoveNext() {
		keys = append(keys, cur.Key())
		vals = append(vals, cur.Value())
	}
	require.NoError(t, cur.Err())
	require.NoError(t, cur.Close())
	assert.Equal(t, []types.TupleID{1, 2, 3, 4, 6}, keys)
	assert.Equal(t, types.Int(1), vals[0])
}

func TestCursor_ClosedWithTransaction(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)
	c := h.begin(true)
	tx := openTx(t, c, e)
	_, err := tx.Insert(types.Int(1))
	require.NoError(t, err)
	cur, err := tx.Scan()
	require.NoError(t, err)
	require.NoError(t, c.Rollback())

	assert.False(t, cur.MoveNext())
	assert.True(t, errors.Is(cur.Err(), errs.ErrTxClosed))
	assert.NoError(t, cur.Close())
}

func TestVariableColumn(t *testing.T) {
	h := newHarness(t)
	e := h.create(t, types.NewColumnDef("t", "name", types.Scalar(types.KindString)))

	c := h.begin(true)
	tx := openTx(t, c, e)
	for _, s := range []string{"alpha", "", "gamma"} {
		_, err := tx.Insert(types.String(s))
		require.NoError(t, err)
	}
	_, err := tx.Insert(types.Null())
	require.NoError(t, err)
	prev, err := tx.Delete(2)
	require.NoError(t, err)
	assert.Equal(t, types.String("gamma"), prev)
	require.NoError(t, c.Commit())

	h.reopen(t)
	c = h.begin(false)
	defer c.Rollback()
	tx = openTx(t, c, e)
	cur, err := tx.Scan()
	require.NoError(t, err)
	got := collect(t, cur)
	require.Len(t, got, 3)
	assert.Equal(t, types.String("alpha"), got[0].Value)
	assert.Equal(t, types.String(""), got[1].Value)
	assert.Equal(t, types.TupleID(3), got[2].Key)
	assert.True(t, got[2].Value.IsNull())

	st := tx.Statistics()
	assert.Equal(t, int64(1), st.NullCount())
	assert.Equal(t, int64(2), st.NonNullCount())
	assert.Equal(t, int64(0), st.MinWidth())
	assert.Equal(t, int64(5), st.MaxWidth())
}

func TestCompressedColumnSurvivesReopen(t *testing.T) {
	for _, comp := range []types.Compression{types.CompressionSnappy, types.CompressionLZ4, types.CompressionZstd} {
		t.Run(comp.String(), func(t *testing.T) {
			h := newHarness(t)
			def := types.NewColumnDef("t", "v", types.Scalar(types.KindDouble))
			def.Compression = comp
			e := h.create(t, def)

			c := h.begin(true)
			tx := openTx(t, c, e)
			for i := range 300 {
				_, err := tx.Insert(types.Double(float64(i % 7)))
				require.NoError(t, err)
			}
			require.NoError(t, c.Commit())

			h.reopen(t)
			c = h.begin(false)
			defer c.Rollback()
			tx = openTx(t, c, e)
			v, err := tx.Read(299)
			require.NoError(t, err)
			assert.Equal(t, types.Double(float64(299%7)), v)
			n, err := tx.Count()
			require.NoError(t, err)
			assert.Equal(t, int64(300), n)
		})
	}
}

func TestAnalyse_Idempotence(t *testing.T) {
	h := newHarness(t)
	e := intColumn(t, h)
	c := h.begin(true)
	tx := openTx(t, c, e)

	id1, err := tx.Insert(types.Int(1))
	require.NoError(t, err)
	_, err = tx.Insert(types.Int(9))
	require.NoError(t, err)
	_, err = tx.Delete(id1)
	require.NoError(t, err)
	assert.False(t, tx.Statistics().Fresh(), "deleting the minimum makes statistics stale")

	require.NoError(t, tx.Analyse(context.Background()))
	require.NoError(t, c.Commit())

	want := stats.New(types.Scalar(types.KindInt))
	want.Insert(types.Int(9))

	c = h.begin(false)
	defer c.Rollback()
	got := openTx(t, c, e).Statistics()
	assert.True(t, got.Fresh())
	assert.Equal(t, want.Count(), got.Count())
	assert.Equal(t, want.DistinctCount(), got.DistinctCount())
	wmin, _ := want.Min(0)
	gmin, ok := got.Min(0)
	require.True(t, ok)
	assert.Equal(t, wmin, gmin)
	wmax, _ := want.Max(0)
	gmax, _ := got.Max(0)
	assert.Equal(t, wmax, gmax)
	assert.Equal(t, int64(1), h.observer.GetStats().Analyses)
}

func TestAnalyse_DistinctCount(t *testing.T) {
	h := newHarness(t)
	e := h.create(t, types.NewColumnDef("t", "s", types.Scalar(types.KindString)))
	c := h.begin(true)
	defer c.Rollback()
	tx := openTx(t, c, e)
	for _, s := range []string{"a", "b", "a", "c", "b"} {
		_, err := tx.Insert(types.String(s))
		require.NoError(t, err)
	}
	_, err := tx.Insert(types.Null())
	require.NoError(t, err)
	require.NoError(t, tx.Analyse(context.Background()))
	st := tx.Statistics()
	assert.Equal(t, int64(3), st.DistinctCount())
	assert.Equal(t, int64(1), st.NullCount())
}

func assertLargest(t *testing.T, tx *Tx, want types.TupleID) {
	t.Helper()
	got, err := tx.LargestTupleID()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
