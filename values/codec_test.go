package values

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/types"
)

var samples = []struct {
	typ types.Type
	val types.Value
}{
	{types.Scalar(types.KindBoolean), types.Bool(true)},
	{types.Scalar(types.KindByte), types.Byte(-7)},
	{types.Scalar(types.KindShort), types.Short(1024)},
	{types.Scalar(types.KindInt), types.Int(-123456)},
	{types.Scalar(types.KindLong), types.Long(1 << 50)},
	{types.Scalar(types.KindFloat), types.Float(3.25)},
	{types.Scalar(types.KindDouble), types.Double(-0.125)},
	{types.Scalar(types.KindDate), types.DateMillis(1_700_000_000_000)},
	{types.Scalar(types.KindString), types.String("héllo\x00world")},
	{types.Scalar(types.KindByteString), types.ByteString([]byte{0x00, 0xff, 0x01})},
	{types.Vector(types.KindBooleanVector, 10), types.BoolVector(true, false, true, true, false, false, false, false, true, true)},
	{types.Vector(types.KindIntVector, 3), types.IntVector(1, -2, 3)},
	{types.Vector(types.KindLongVector, 2), types.LongVector(-1<<40, 1<<40)},
	{types.Vector(types.KindFloatVector, 2), types.FloatVector(0.5, -1.5)},
	{types.Vector(types.KindDoubleVector, 2), types.DoubleVector(1e-9, 1e9)},
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, s := range samples {
		t.Run(s.typ.String(), func(t *testing.T) {
			b, err := Encode(nil, s.val, s.typ)
			require.NoError(t, err)

			got, err := Decode(b, s.typ)
			require.NoError(t, err)
			assert.True(t, types.Equal(s.val, got), "want %s, got %s", s.val, got)

			b, err = Encode(nil, types.Null(), s.typ)
			require.NoError(t, err)
			got, err = Decode(b, s.typ)
			require.NoError(t, err)
			assert.True(t, got.IsNull())
		})
	}
}

func TestCodec_TypeMismatch(t *testing.T) {
	_, err := Encode(nil, types.Long(1), types.Scalar(types.KindInt))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = Encode(nil, types.IntVector(1, 2), types.Vector(types.KindIntVector, 3))
	require.Error(t, err)
}

func TestCodec_Corrupt(t *testing.T) {
	_, err := Decode(nil, types.Scalar(types.KindInt))
	assert.True(t, errors.Is(err, errs.ErrCorruption))

	_, err = Decode([]byte{0x07}, types.Scalar(types.KindInt))
	assert.True(t, errors.Is(err, errs.ErrCorruption))

	_, err = Decode([]byte{tagPresent, 0x01}, types.Scalar(types.KindDouble))
	assert.True(t, errors.Is(err, errs.ErrCorruption))
}

func TestKey_RoundTripAndOrder(t *testing.T) {
	ordered := [][]types.Value{
		{types.Int(-500), types.Int(-1), types.Int(0), types.Int(7), types.Int(1 << 20)},
		{types.Double(-1e10), types.Double(-0.5), types.Double(0), types.Double(2.5)},
		{types.String(""), types.String("a"), types.String("a\x00"), types.String("ab"), types.String("b")},
		{types.Bool(false), types.Bool(true)},
		{types.DateMillis(-1), types.DateMillis(0), types.DateMillis(86_400_000)},
	}
	for _, seq := range ordered {
		var prev []byte
		for _, v := range seq {
			k, err := AppendKey(nil, v)
			require.NoError(t, err)
			if prev != nil {
				assert.Negative(t, bytes.Compare(prev, k), "%s", v)
			}
			prev = k

			got, rest, err := ReadKey(k, v.Kind)
			require.NoError(t, err)
			assert.Empty(t, rest)
			assert.True(t, types.Equal(v, got))
		}
	}
}

func TestKey_Prefix(t *testing.T) {
	p, err := AppendKeyPrefix(nil, types.String("ab"))
	require.NoError(t, err)
	k, err := AppendKey(nil, types.String("abc"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(k, p))
}

func TestKey_Unsupported(t *testing.T) {
	_, err := AppendKey(nil, types.IntVector(1))
	assert.True(t, errors.Is(err, errs.ErrUnsupported))
	assert.False(t, Indexable(types.KindDoubleVector))
	assert.True(t, Indexable(types.KindString))
}
