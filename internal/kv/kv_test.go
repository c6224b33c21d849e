package kv

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colstore/internal/errs"
)

func openMem(t *testing.T) *DB {
	t.Helper()
	db, err := Open("", Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func collect(t *testing.T, it *Iterator) []string {
	t.Helper()
	var out []string
	for valid := it.First(); valid; valid = it.Next() {
		out = append(out, string(it.Key()))
	}
	require.NoError(t, it.Error())
	return out
}

func TestTx_ReadYourWrites(t *testing.T) {
	db := openMem(t)
	tx := db.Begin(true)
	defer tx.Close()

	require.NoError(t, tx.Set([]byte("a"), []byte("1")))
	v, ok, err := tx.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	_, ok, err = tx.Get([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTx_IteratorIsPointInTime(t *testing.T) {
	db := openMem(t)
	tx := db.Begin(true)
	defer tx.Close()

	require.NoError(t, tx.Set([]byte("a"), nil))
	it, err := tx.NewIter(nil, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Set([]byte("b"), nil))

	assert.Equal(t, []string{"a"}, collect(t, it))
	require.NoError(t, it.Close())
}

func TestTx_CommitAndSnapshotIsolation(t *testing.T) {
	db := openMem(t)

	reader := db.Begin(false)
	defer reader.Close()

	tx := db.Begin(true)
	require.NoError(t, tx.Set([]byte("k"), []byte("v")))
	require.NoError(t, tx.Commit())

	_, ok, err := reader.Get([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok, "snapshot must not observe later commits")

	fresh := db.Begin(false)
	defer fresh.Close()
	_, ok, err = fresh.Get([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTx_CloseDiscardsAndClosesIterators(t *testing.T) {
	db := openMem(t)
	tx := db.Begin(true)
	require.NoError(t, tx.Set([]byte("k"), []byte("v")))
	it, err := tx.NewIter(nil, nil)
	require.NoError(t, err)

	require.NoError(t, tx.Close())
	assert.True(t, it.Closed())
	require.NoError(t, it.Close())

	_, _, err = tx.Get([]byte("k"))
	assert.True(t, errors.Is(err, errs.ErrTxClosed))

	check := db.Begin(false)
	defer check.Close()
	_, ok, err := check.Get([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTx_ReadOnlyRejectsWrites(t *testing.T) {
	db := openMem(t)
	tx := db.Begin(false)
	defer tx.Close()
	err := tx.Set([]byte("k"), nil)
	assert.True(t, errors.Is(err, errs.ErrReadOnly))
	assert.True(t, errors.Is(err, errs.ErrTxState))
}

func TestScratch_Apply(t *testing.T) {
	db := openMem(t)
	tx := db.Begin(true)
	defer tx.Close()
	r := RegionID(3)
	require.NoError(t, tx.Set(r.DataKey([]byte("old")), nil))

	s := db.NewScratch()
	defer s.Close()
	start, end := r.DataSpan()
	require.NoError(t, s.DeleteRange(start, end))
	require.NoError(t, s.Set(r.DataKey([]byte("new")), nil))
	assert.Equal(t, 2, s.Len())
	require.NoError(t, tx.Apply(s))

	it, err := tx.NewIter(start, end)
	require.NoError(t, err)
	keys := collect(t, it)
	require.Len(t, keys, 1)
	assert.Equal(t, string(r.DataKey([]byte("new"))), keys[0])
}

func TestRegion_Lifecycle(t *testing.T) {
	db := openMem(t)
	tx := db.Begin(true)
	defer tx.Close()

	r := RegionID(7)
	_, err := RegionHeader(tx, r)
	assert.True(t, errors.Is(err, errs.ErrCorruption))

	require.NoError(t, CreateRegion(tx, r, []byte("hdr")))
	require.NoError(t, tx.Set(r.DataKey([]byte{1}), []byte("x")))
	require.NoError(t, tx.Set(RegionID(8).DataKey([]byte{1}), []byte("y")))
	h, err := RegionHeader(tx, r)
	require.NoError(t, err)
	assert.Equal(t, []byte("hdr"), h)

	require.NoError(t, DropRegion(tx, r))
	_, err = RegionHeader(tx, r)
	assert.True(t, errors.Is(err, errs.ErrCorruption))
	_, ok, err := tx.Get(RegionID(8).DataKey([]byte{1}))
	require.NoError(t, err)
	assert.True(t, ok, "neighbouring region untouched")
}
