package index

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colstore/catalog"
	"github.com/hupe1980/colstore/column"
	"github.com/hupe1980/colstore/cost"
	"github.com/hupe1980/colstore/cursor"
	"github.com/hupe1980/colstore/event"
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/kv"
	"github.com/hupe1980/colstore/predicate"
	"github.com/hupe1980/colstore/txn"
	"github.com/hupe1980/colstore/types"
)

type fixture struct {
	db     *kv.DB
	cat    *catalog.Catalog
	entity *catalog.EntityEntry
}

// newFixture creates entity "t" with column v of type kind and one index
// of type typ on it.
func newFixture(t *testing.T, kind types.Kind, typ catalog.IndexType) *fixture {
	t.Helper()
	db, err := kv.Open("", kv.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tx := db.Begin(true)
	cat, err := catalog.Load(tx, nil)
	require.NoError(t, err)
	def := types.NewColumnDef("t", "v", types.Scalar(kind))
	ent := &catalog.EntityEntry{
		Name:    "t",
		Region:  1,
		Columns: []catalog.ColumnEntry{{Def: def, Region: 2}},
		Indexes: []catalog.IndexEntry{{Name: "t_v", Column: "v", Type: typ, Region: 3}},
	}
	require.NoError(t, column.Create(tx, ent.Columns[0]))
	require.NoError(t, Create(tx, ent.Indexes[0], def))
	require.NoError(t, tx.Commit())
	return &fixture{db: db, cat: cat, entity: ent}
}

func (f *fixture) begin(write bool) *txn.Context {
	return txn.Begin(txn.Env{DB: f.db, Catalog: f.cat}, write)
}

func (f *fixture) open(t *testing.T, c *txn.Context) *Tx {
	t.Helper()
	ix, err := Open(c, f.entity, f.entity.Indexes[0])
	require.NoError(t, err)
	return ix
}

func insert(id types.TupleID, v types.Value) event.Insert {
	return event.Insert{Ent: "t", ID: id, Values: []types.Value{v}}
}

func ids(t *testing.T, c *FilterCursor, err error) []types.TupleID {
	t.Helper()
	require.NoError(t, err)
	out, err := cursor.Keys[types.Tuple](c)
	require.NoError(t, err)
	return out
}

func TestBTree_Filter(t *testing.T) {
	f := newFixture(t, types.KindInt, catalog.IndexBTree)
	c := f.begin(true)
	defer c.Rollback()
	ix := f.open(t, c)

	// values 10, 20, 20, 20, 30 at tuples 0..4, plus a null
	for i, v := range []int32{10, 20, 20, 20, 30} {
		changed, err := ix.TryApply(insert(types.TupleID(i), types.Int(v)))
		require.NoError(t, err)
		assert.True(t, changed)
	}
	changed, err := ix.TryApply(insert(5, types.Null()))
	require.NoError(t, err)
	assert.False(t, changed, "null never contributes")
	n, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	tests := []struct {
		name string
		p    predicate.Comparison
		want []types.TupleID
	}{
		{"equal", predicate.Equal("v", types.Int(20)), []types.TupleID{1, 2, 3}},
		{"equal miss", predicate.Equal("v", types.Int(15)), nil},
		{"in", predicate.In("v", types.Int(30), types.Int(10), types.Int(30), types.Int(99)), []types.TupleID{0, 4}},
		{"greater", predicate.Greater("v", types.Int(20)), []types.TupleID{4}},
		{"greater equal", predicate.GreaterEqual("v", types.Int(20)), []types.TupleID{1, 2, 3, 4}},
		{"less", predicate.Less("v", types.Int(20)), []types.TupleID{0}},
		{"less equal", predicate.LessEqual("v", types.Int(20)), []types.TupleID{3, 2, 1, 0}},
		{"greater than max", predicate.Greater("v", types.Int(30)), nil},
		{"less than min", predicate.Less("v", types.Int(10)), nil},
		{"qualified column", predicate.Equal("t.v", types.Int(10)), []types.TupleID{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur, err := ix.Filter(tt.p)
			assert.Equal(t, tt.want, ids(t, cur, err))
		})
	}

	cur, err := ix.Filter(predicate.Equal("v", types.Int(20)))
	require.NoError(t, err)
	require.True(t, cur.MoveNext())
	assert.Equal(t, types.Tuple{ID: 1, Values: []types.Value{types.Int(20)}}, cur.Value())
	require.NoError(t, cur.Close())
}

func TestBTree_DeleteAndUpdate(t *testing.T) {
	f := newFixture(t, types.KindInt, catalog.IndexBTree)
	c := f.begin(true)
	defer c.Rollback()
	ix := f.open(t, c)

	for i := range 3 {
		_, err := ix.TryApply(insert(types.TupleID(i), types.Int(7)))
		require.NoError(t, err)
	}
	changed, err := ix.TryApply(event.Delete{Ent: "t", ID: 1, Values: []types.Value{types.Int(7)}})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = ix.TryApply(event.Update{Ent: "t", ID: 2,
		Old: []types.Value{types.Int(7)}, New: []types.Value{types.Int(8)}})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = ix.TryApply(event.Update{Ent: "t", ID: 0,
		Old: []types.Value{types.Int(7)}, New: []types.Value{types.Int(7)}})
	require.NoError(t, err)
	assert.False(t, changed)

	cur, err := ix.Filter(predicate.Equal("v", types.Int(7)))
	assert.Equal(t, []types.TupleID{0}, ids(t, cur, err))
	cur, err = ix.Filter(predicate.Equal("v", types.Int(8)))
	assert.Equal(t, []types.TupleID{2}, ids(t, cur, err))
	n, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBTree_Like(t *testing.T) {
	f := newFixture(t, types.KindString, catalog.IndexBTree)
	c := f.begin(true)
	defer c.Rollback()
	ix := f.open(t, c)
	for i, s := range []string{"apple", "apricot", "banana", "ap", "a\x00p"} {
		_, err := ix.TryApply(insert(types.TupleID(i), types.String(s)))
		require.NoError(t, err)
	}

	cur, err := ix.Filter(predicate.Like("v", "ap%"))
	assert.ElementsMatch(t, []types.TupleID{0, 1, 3}, ids(t, cur, err))
	cur, err = ix.Filter(predicate.Like("v", "ap_i%"))
	assert.Equal(t, []types.TupleID{1}, ids(t, cur, err))
	cur, err = ix.Filter(predicate.Like("v", "%an%"))
	assert.Equal(t, []types.TupleID{2}, ids(t, cur, err))

	assert.True(t, ix.CanProcess(predicate.Like("v", "ap%")))
}

func TestBTree_FilterSeesPointInTime(t *testing.T) {
	f := newFixture(t, types.KindLong, catalog.IndexBTree)
	c := f.begin(true)
	defer c.Rollback()
	ix := f.open(t, c)
	_, err := ix.TryApply(insert(0, types.Long(1)))
	require.NoError(t, err)

	cur, err := ix.Filter(predicate.GreaterEqual("v", types.Long(0)))
	require.NoError(t, err)
	_, err = ix.TryApply(insert(1, types.Long(2)))
	require.NoError(t, err)
	assert.Equal(t, []types.TupleID{0}, ids(t, cur, nil))
}

func TestUnique_Invariant(t *testing.T) {
	f := newFixture(t, types.KindLong, catalog.IndexBTreeUnique)
	c := f.begin(true)
	defer c.Rollback()
	ix := f.open(t, c)

	_, err := ix.TryApply(insert(0, types.Long(42)))
	require.NoError(t, err)
	_, err = ix.TryApply(insert(1, types.Long(43)))
	require.NoError(t, err)

	err = ix.Validate(insert(2, types.Long(42)))
	assert.True(t, errors.Is(err, errs.ErrUniqueViolation))

	_, err = ix.TryApply(insert(2, types.Long(42)))
	var uv *errs.UniqueViolationError
	require.True(t, errors.As(err, &uv))
	assert.Equal(t, int64(0), uv.Existing)
	assert.Equal(t, int64(2), uv.Tuple)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = ix.TryApply(event.Update{Ent: "t", ID: 1,
		Old: []types.Value{types.Long(43)}, New: []types.Value{types.Long(42)}})
	assert.True(t, errors.Is(err, errs.ErrUniqueViolation))

	cur, err := ix.Filter(predicate.Equal("v", types.Long(42)))
	assert.Equal(t, []types.TupleID{0}, ids(t, cur, err), "index unchanged")
	cur, err = ix.Filter(predicate.Equal("v", types.Long(43)))
	assert.Equal(t, []types.TupleID{1}, ids(t, cur, err))
	n, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Re-applying the same mapping is not a violation.
	changed, err := ix.TryApply(insert(0, types.Long(42)))
	require.NoError(t, err)
	assert.False(t, changed)

	cur, err = ix.Filter(predicate.In("v", types.Long(43), types.Long(42)))
	assert.Equal(t, []types.TupleID{0, 1}, ids(t, cur, err))
	cur, err = ix.Filter(predicate.Greater("v", types.Long(42)))
	assert.Equal(t, []types.TupleID{1}, ids(t, cur, err))
	cur, err = ix.Filter(predicate.Less("v", types.Long(43)))
	assert.Equal(t, []types.TupleID{0}, ids(t, cur, err))
}

func TestCanProcessAndCost(t *testing.T) {
	f := newFixture(t, types.KindInt, catalog.IndexBTreeUnique)
	c := f.begin(true)
	defer c.Rollback()
	ix := f.open(t, c)
	for i := range 100 {
		_, err := ix.TryApply(insert(types.TupleID(i), types.Int(int32(i))))
		require.NoError(t, err)
	}

	assert.True(t, ix.CanProcess(predicate.Equal("v", types.Int(1))))
	assert.True(t, ix.CanProcess(predicate.In("v", types.Int(1), types.Int(2))))
	assert.False(t, ix.CanProcess(predicate.Like("v", "1%")))
	assert.False(t, ix.CanProcess(predicate.Greater("v", types.Int(1))))
	assert.False(t, ix.CanProcess(predicate.Equal("w", types.Int(1))))
	assert.False(t, ix.CanProcess(predicate.Equal("v", types.Int(1)).Negate()))

	eq := ix.CostFor(predicate.Equal("v", types.Int(1)))
	assert.InDelta(t, cost.DiskAccessRead*(2+1), eq.IO, 1e-12)
	in := ix.CostFor(predicate.In("v", types.Int(1), types.Int(2), types.Int(3)))
	assert.True(t, eq.Less(in))
	assert.True(t, ix.CostFor(predicate.Greater("v", types.Int(1))).IsInvalid())
}

func TestUnsupportedOperations(t *testing.T) {
	f := newFixture(t, types.KindInt, catalog.IndexBTree)
	c := f.begin(true)
	defer c.Rollback()
	ix := f.open(t, c)

	_, err := ix.FilterRange(predicate.Equal("v", types.Int(1)), 0, 4)
	assert.True(t, errors.Is(err, errs.ErrUnsupported))
	assert.True(t, errors.Is(ix.RebuildAsync(context.Background()), errs.ErrUnsupported))
	_, err = ix.Filter(predicate.Equal("v", types.Int(1)).Negate())
	assert.True(t, errors.Is(err, errs.ErrUnsupported))
	_, err = ix.Filter(predicate.Equal("v", types.Long(1)))
	assert.True(t, errors.Is(err, errs.ErrTypeMismatch))
}

func TestRebuild(t *testing.T) {
	f := newFixture(t, types.KindInt, catalog.IndexBTree)
	c := f.begin(true)
	col, err := column.Open(c, f.entity.Columns[0])
	require.NoError(t, err)
	for i := range 300 {
		_, err := col.Insert(types.Int(int32(i % 10)))
		require.NoError(t, err)
	}
	_, err = col.Insert(types.Null())
	require.NoError(t, err)
	ix := f.open(t, c)
	_, err = ix.TryApply(insert(999, types.Int(5)))
	require.NoError(t, err)

	require.NoError(t, ix.Rebuild(context.Background()))
	n, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(300), n)
	require.NoError(t, c.Commit())

	c = f.begin(false)
	defer c.Rollback()
	ix = f.open(t, c)
	cur, err := ix.Filter(predicate.Equal("v", types.Int(5)))
	got := ids(t, cur, err)
	assert.Len(t, got, 30)
	assert.NotContains(t, got, types.TupleID(999), "stale entries are truncated")
	n, err = ix.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(300), n)
}

func TestRebuild_UniqueDuplicateKeepsIndex(t *testing.T) {
	f := newFixture(t, types.KindInt, catalog.IndexBTreeUnique)
	c := f.begin(true)
	defer c.Rollback()
	ix := f.open(t, c)
	_, err := ix.TryApply(insert(0, types.Int(1)))
	require.NoError(t, err)

	col, err := column.Open(c, f.entity.Columns[0])
	require.NoError(t, err)
	for _, v := range []int32{1, 2, 2} {
		_, err := col.Insert(types.Int(v))
		require.NoError(t, err)
	}

	err = ix.Rebuild(context.Background())
	assert.True(t, errors.Is(err, errs.ErrUniqueViolation))
	cur, err := ix.Filter(predicate.GreaterEqual("v", types.Int(0)))
	assert.Equal(t, []types.TupleID{0}, ids(t, cur, err))
}

func TestOpen_MissingRegion(t *testing.T) {
	f := newFixture(t, types.KindInt, catalog.IndexBTree)
	c := f.begin(false)
	defer c.Rollback()
	bad := f.entity.Indexes[0]
	bad.Region = 77
	_, err := Open(c, f.entity, bad)
	assert.True(t, errors.Is(err, errs.ErrCorruption))

	bad = f.entity.Indexes[0]
	bad.Column = "missing"
	_, err = Open(c, f.entity, bad)
	assert.True(t, errors.Is(err, errs.ErrCorruption))
}
