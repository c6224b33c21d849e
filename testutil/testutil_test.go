package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/colstore/types"
)

func TestValueConformsToType(t *testing.T) {
	rng := NewRNG(4711)
	for _, typ := range []types.Type{
		types.Scalar(types.KindBoolean),
		types.Scalar(types.KindByte),
		types.Scalar(types.KindShort),
		types.Scalar(types.KindInt),
		types.Scalar(types.KindLong),
		types.Scalar(types.KindFloat),
		types.Scalar(types.KindDouble),
		types.Scalar(types.KindDate),
		types.Scalar(types.KindString),
		types.Scalar(types.KindByteString),
		types.Vector(types.KindBooleanVector, 3),
		types.Vector(types.KindIntVector, 4),
		types.Vector(types.KindLongVector, 2),
		types.Vector(types.KindFloatVector, 8),
		types.Vector(types.KindDoubleVector, 5),
	} {
		v := rng.Value(typ)
		assert.False(t, v.IsNull(), typ.String())
		assert.True(t, v.Conforms(typ), typ.String())
	}
}

func TestRows(t *testing.T) {
	rng := NewRNG(4711)
	defs := []types.ColumnDef{
		types.NewColumnDef("t", "a", types.Scalar(types.KindInt)),
		{Name: "t.b", Type: types.Scalar(types.KindString)},
	}
	rows := rng.Rows(defs, 200, 0.5)
	assert.Len(t, rows, 200)

	var nulls int
	for _, row := range rows {
		assert.Len(t, row, 2)
		assert.False(t, row[1].IsNull(), "non-nullable column never gets nulls")
		if row[0].IsNull() {
			nulls++
		}
	}
	assert.Greater(t, nulls, 50)
	assert.Less(t, nulls, 150)
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.Values(types.Scalar(types.KindLong), 10, 0)
	rng.Reset()
	v2 := rng.Values(types.Scalar(types.KindLong), 10, 0)
	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestZipfInts(t *testing.T) {
	rng := NewRNG(4711)
	vs := rng.ZipfInts(1000, 10, 1.5)
	counts := map[int64]int{}
	for _, v := range vs {
		assert.GreaterOrEqual(t, v.I64, int64(0))
		assert.Less(t, v.I64, int64(10))
		counts[v.I64]++
	}
	assert.Greater(t, counts[0], counts[9])
}
