// Package values serializes column values.
//
// Two encodings exist. The payload encoding is compact and used for stored
// cells: tablet slots and variable-length tuples. The key encoding is order
// preserving and used for index entries.
package values

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/types"
)

const (
	tagNull    byte = 0x00
	tagPresent byte = 0x01
)

// Encode appends a self-describing cell: a null tag, or a present tag
// followed by the payload.
func Encode(dst []byte, v types.Value, t types.Type) ([]byte, error) {
	if v.IsNull() {
		return append(dst, tagNull), nil
	}
	dst = append(dst, tagPresent)
	return AppendPayload(dst, v, t)
}

// Decode reads a cell written by Encode.
func Decode(b []byte, t types.Type) (types.Value, error) {
	if len(b) == 0 {
		return types.Null(), errs.Corruptionf("empty cell for %s", t)
	}
	switch b[0] {
	case tagNull:
		return types.Null(), nil
	case tagPresent:
		v, rest, err := ReadPayload(b[1:], t)
		if err != nil {
			return types.Null(), err
		}
		if len(rest) != 0 {
			return types.Null(), errs.Corruptionf("%d trailing bytes in %s cell", len(rest), t)
		}
		return v, nil
	}
	return types.Null(), errs.Corruptionf("unknown cell tag %#x", b[0])
}

// AppendPayload appends the payload of a non-null value. Integral kinds are
// zig-zag varints, Float is a 4-byte IEEE word, Double an 8-byte one.
// Strings and byte strings are written as-is and must be the last field.
func AppendPayload(dst []byte, v types.Value, t types.Type) ([]byte, error) {
	if !v.Conforms(t) {
		return nil, &errs.TypeMismatchError{Expected: t.String(), Actual: v.Kind.String()}
	}
	switch t.Kind {
	case types.KindBoolean:
		return append(dst, boolByte(v.B)), nil
	case types.KindByte, types.KindShort, types.KindInt, types.KindLong, types.KindDate:
		return binary.AppendVarint(dst, v.I64), nil
	case types.KindFloat:
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v.F64))), nil
	case types.KindDouble:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v.F64)), nil
	case types.KindString:
		return append(dst, v.S...), nil
	case types.KindByteString:
		return append(dst, v.Bytes...), nil
	case types.KindBooleanVector:
		packed := make([]byte, (len(v.Bools)+7)/8)
		for i, b := range v.Bools {
			if b {
				packed[i/8] |= 1 << (i % 8)
			}
		}
		return append(dst, packed...), nil
	case types.KindIntVector, types.KindLongVector:
		for _, x := range v.Ints {
			dst = binary.AppendVarint(dst, x)
		}
		return dst, nil
	case types.KindFloatVector:
		for _, x := range v.Floats {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(x)))
		}
		return dst, nil
	case types.KindDoubleVector:
		for _, x := range v.Floats {
			dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(x))
		}
		return dst, nil
	}
	return nil, errs.Unsupportedf("no payload encoding for %s", t)
}

// ReadPayload decodes one payload of type t and returns the remaining bytes.
func ReadPayload(b []byte, t types.Type) (types.Value, []byte, error) {
	short := func() (types.Value, []byte, error) {
		return types.Null(), nil, errs.Corruptionf("truncated %s payload", t)
	}
	switch t.Kind {
	case types.KindBoolean:
		if len(b) < 1 {
			return short()
		}
		return types.Bool(b[0] != 0), b[1:], nil
	case types.KindByte, types.KindShort, types.KindInt, types.KindLong, types.KindDate:
		x, n := binary.Varint(b)
		if n <= 0 {
			return short()
		}
		return types.Value{Kind: t.Kind, I64: x}, b[n:], nil
	case types.KindFloat:
		if len(b) < 4 {
			return short()
		}
		return types.Float(math.Float32frombits(binary.LittleEndian.Uint32(b))), b[4:], nil
	case types.KindDouble:
		if len(b) < 8 {
			return short()
		}
		return types.Double(math.Float64frombits(binary.LittleEndian.Uint64(b))), b[8:], nil
	case types.KindString:
		return types.String(string(b)), nil, nil
	case types.KindByteString:
		return types.ByteString(append([]byte(nil), b...)), nil, nil
	case types.KindBooleanVector:
		dim := t.Dim()
		n := (dim + 7) / 8
		if len(b) < n {
			return short()
		}
		out := make([]bool, dim)
		for i := range out {
			out[i] = b[i/8]&(1<<(i%8)) != 0
		}
		return types.BoolVector(out...), b[n:], nil
	case types.KindIntVector, types.KindLongVector:
		out := make([]int64, t.Dim())
		for i := range out {
			x, n := binary.Varint(b)
			if n <= 0 {
				return short()
			}
			out[i] = x
			b = b[n:]
		}
		return types.Value{Kind: t.Kind, Ints: out}, b, nil
	case types.KindFloatVector:
		dim := t.Dim()
		if len(b) < 4*dim {
			return short()
		}
		out := make([]float64, dim)
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
		}
		return types.Value{Kind: t.Kind, Floats: out}, b[4*dim:], nil
	case types.KindDoubleVector:
		dim := t.Dim()
		if len(b) < 8*dim {
			return short()
		}
		out := make([]float64, dim)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
		}
		return types.Value{Kind: t.Kind, Floats: out}, b[8*dim:], nil
	}
	return types.Null(), nil, errs.Unsupportedf("no payload decoding for %s", t)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
