package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTupleID_BOC(t *testing.T) {
	assert.False(t, BOC.Valid())
	assert.True(t, TupleID(0).Valid())
}

func TestType_FixedLength(t *testing.T) {
	assert.True(t, Scalar(KindInt).FixedLength())
	assert.True(t, Vector(KindFloatVector, 4).FixedLength())
	assert.False(t, Scalar(KindString).FixedLength())
	assert.False(t, Scalar(KindByteString).FixedLength())
}

func TestType_Validate(t *testing.T) {
	require.NoError(t, Scalar(KindDate).Validate())
	require.Error(t, Type{}.Validate())
	require.Error(t, Vector(KindIntVector, 0).Validate())
}

func TestValue_Conforms(t *testing.T) {
	vt := Vector(KindLongVector, 3)
	assert.True(t, LongVector(1, 2, 3).Conforms(vt))
	assert.False(t, LongVector(1, 2).Conforms(vt))
	assert.False(t, Int(1).Conforms(Scalar(KindLong)), "no coercion between kinds")
}

func TestValue_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"null first", Null(), Int(1), -1},
		{"ints", Int(-3), Int(2), -1},
		{"doubles", Double(2.5), Double(2.5), 0},
		{"bools", Bool(true), Bool(false), 1},
		{"strings", String("abc"), String("abd"), -1},
		{"bytes", ByteString([]byte{1}), ByteString([]byte{1, 0}), -1},
		{"vectors", IntVector(1, 2), IntVector(1, 3), -1},
		{"dates", Date(time.UnixMilli(10)), DateMillis(5), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestValue_Canonical(t *testing.T) {
	v := Value{Kind: KindFloat, F64: 0.1}.Canonical()
	assert.Equal(t, float64(float32(0.1)), v.F64)

	src := []int64{1 << 40}
	c := Value{Kind: KindIntVector, Ints: src}.Canonical()
	assert.Equal(t, int64(0), c.Ints[0])
	assert.Equal(t, int64(1<<40), src[0], "source slice must not change")
}

func TestColumnDef_Names(t *testing.T) {
	def := NewColumnDef("warehouse.orders", "price", Scalar(KindDouble))
	assert.Equal(t, "warehouse.orders", def.Entity())
	assert.Equal(t, "price", def.Simple())
	require.NoError(t, def.Validate())

	def.Type = Scalar(KindString)
	def.Compression = CompressionZstd
	require.Error(t, def.Validate())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("double_vector")
	require.True(t, ok)
	assert.Equal(t, KindDoubleVector, k)

	_, ok = ParseKind("INVALID")
	assert.False(t, ok)
}
