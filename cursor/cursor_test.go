package cursor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colstore/types"
)

func sample() *Slice[string] {
	return FromSlice([]Entry[string]{{1, "a"}, {3, "b"}, {7, "c"}})
}

func TestSlice_Scroll(t *testing.T) {
	c := sample()
	assert.Equal(t, types.BOC, c.Key())
	require.True(t, c.MoveNext())
	assert.Equal(t, types.TupleID(1), c.Key())
	require.True(t, c.MoveNext())
	require.True(t, c.MoveNext())
	assert.Equal(t, "c", c.Value())
	assert.False(t, c.MoveNext())
	assert.Equal(t, types.BOC, c.Key())

	require.True(t, c.MovePrevious())
	assert.Equal(t, types.TupleID(7), c.Key())

	assert.True(t, c.MoveTo(3))
	assert.Equal(t, "b", c.Value())
	assert.False(t, c.MoveTo(4))
	assert.Equal(t, types.TupleID(7), c.Key(), "positioned on the next key")

	require.NoError(t, c.Close())
	assert.False(t, c.MoveNext())
}

func TestAll_ClosesOnBreak(t *testing.T) {
	c := sample()
	var keys []types.TupleID
	for k := range All[string](c) {
		keys = append(keys, k)
		break
	}
	assert.Equal(t, []types.TupleID{1}, keys)
	assert.True(t, c.closed)
}

func TestCollect(t *testing.T) {
	got, err := Collect[string](sample())
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, Entry[string]{Key: 7, Value: "c"}, got[2])

	keys, err := Keys[string](sample())
	require.NoError(t, err)
	assert.Equal(t, []types.TupleID{1, 3, 7}, keys)
}

func TestForEach_StopsOnError(t *testing.T) {
	c := sample()
	boom := errors.New("boom")
	n := 0
	err := ForEach[string](c, func(types.TupleID, string) error {
		n++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.True(t, c.closed)
}

func TestEmpty(t *testing.T) {
	c := Empty[int]()
	assert.False(t, c.MoveNext())
	assert.False(t, c.MovePrevious())
}
