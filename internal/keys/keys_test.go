package keys

import (
	"bytes"
	"math"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys_Order(t *testing.T) {
	datadriven.RunTest(t, "testdata/order", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "order":
			var kind string
			d.ScanArgs(t, "kind", &kind)

			type entry struct {
				text string
				key  []byte
			}
			var entries []entry
			for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
				entries = append(entries, entry{text: line, key: encodeLine(t, kind, line)})
			}
			sort.SliceStable(entries, func(i, j int) bool {
				return bytes.Compare(entries[i].key, entries[j].key) < 0
			})

			var sb strings.Builder
			for _, e := range entries {
				sb.WriteString(e.text)
				sb.WriteByte('\n')
			}
			return sb.String()
		default:
			t.Fatalf("unknown command %s", d.Cmd)
			return ""
		}
	})
}

func encodeLine(t *testing.T, kind, line string) []byte {
	t.Helper()
	switch kind {
	case "int":
		v, err := strconv.ParseInt(line, 10, 64)
		require.NoError(t, err)
		return EncodeVarintAscending(nil, v)
	case "float":
		v, err := strconv.ParseFloat(line, 64)
		require.NoError(t, err)
		return EncodeFloatAscending(nil, v)
	case "bytes":
		s, err := strconv.Unquote(line)
		require.NoError(t, err)
		return EncodeBytesAscending(nil, []byte(s))
	}
	t.Fatalf("unknown kind %s", kind)
	return nil
}

func TestKeys_VarintRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 109, 110, 255, 256, -256, -257, 1 << 40, math.MinInt64, math.MaxInt64} {
		b := EncodeVarintAscending([]byte("p"), v)
		rest, got, err := DecodeVarintAscending(b[1:])
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, v, got)
	}
}

func TestKeys_UvarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 109, 110, 1 << 16, math.MaxUint64} {
		rest, got, err := DecodeUvarintAscending(EncodeUvarintAscending(nil, v))
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, v, got)
	}
	_, _, err := DecodeUvarintAscending(nil)
	require.Error(t, err)
}

func TestKeys_FloatRoundTrip(t *testing.T) {
	for _, v := range []float64{0, -1.5, math.Inf(1), math.Inf(-1), math.SmallestNonzeroFloat64} {
		_, got, err := DecodeFloatAscending(EncodeFloatAscending(nil, v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestKeys_BytesRoundTrip(t *testing.T) {
	in := []byte{0x00, 'a', 0x00, 0x00, 0xff}
	b := EncodeBytesAscending(nil, in)
	b = EncodeUint64Ascending(b, 42)

	rest, got, err := DecodeBytesAscending(b, nil)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, tid, err := DecodeUint64Ascending(rest)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), tid)
}

func TestKeys_BytesPrefix(t *testing.T) {
	p := EncodeBytesPrefix(nil, []byte("ab"))
	assert.True(t, bytes.HasPrefix(EncodeBytesAscending(nil, []byte("abc")), p))
	assert.True(t, bytes.HasPrefix(EncodeBytesAscending(nil, []byte("ab")), p))
	assert.False(t, bytes.HasPrefix(EncodeBytesAscending(nil, []byte("a")), p))
}

func TestKeys_PrefixEnd(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x03}, PrefixEnd([]byte{0x01, 0x02}))
	assert.Equal(t, []byte{0x02}, PrefixEnd([]byte{0x01, 0xff}))
	assert.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
	assert.Nil(t, PrefixEnd(nil))
}
