package values

import (
	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/internal/keys"
	"github.com/hupe1980/colstore/types"
)

// Indexable reports whether values of kind k have an order-preserving key.
func Indexable(k types.Kind) bool {
	return k != types.KindInvalid && !k.IsVector()
}

// AppendKey appends the order-preserving key of a non-null scalar value.
// Strings and byte strings are self-terminating, so keys of every kind can
// be followed by further key fields.
func AppendKey(dst []byte, v types.Value) ([]byte, error) {
	switch v.Kind {
	case types.KindBoolean:
		return append(dst, boolByte(v.B)), nil
	case types.KindByte, types.KindShort, types.KindInt, types.KindLong, types.KindDate:
		return keys.EncodeVarintAscending(dst, v.I64), nil
	case types.KindFloat, types.KindDouble:
		return keys.EncodeFloatAscending(dst, v.F64), nil
	case types.KindString:
		return keys.EncodeBytesAscending(dst, []byte(v.S)), nil
	case types.KindByteString:
		return keys.EncodeBytesAscending(dst, v.Bytes), nil
	case types.KindInvalid:
		return nil, errs.Validationf("null has no index key")
	}
	return nil, errs.Unsupportedf("no index key encoding for %s", v.Kind)
}

// AppendKeyPrefix appends the key prefix shared by every string or byte
// string starting with v. Other kinds append their full key.
func AppendKeyPrefix(dst []byte, v types.Value) ([]byte, error) {
	switch v.Kind {
	case types.KindString:
		return keys.EncodeBytesPrefix(dst, []byte(v.S)), nil
	case types.KindByteString:
		return keys.EncodeBytesPrefix(dst, v.Bytes), nil
	}
	return AppendKey(dst, v)
}

// ReadKey decodes one key of kind k and returns the remaining bytes.
func ReadKey(b []byte, k types.Kind) (types.Value, []byte, error) {
	var (
		v   types.Value
		err error
	)
	switch k {
	case types.KindBoolean:
		if len(b) == 0 {
			return types.Null(), nil, errs.Corruptionf("truncated boolean key")
		}
		return types.Bool(b[0] != 0), b[1:], nil
	case types.KindByte, types.KindShort, types.KindInt, types.KindLong, types.KindDate:
		var x int64
		b, x, err = keys.DecodeVarintAscending(b)
		v = types.Value{Kind: k, I64: x}
	case types.KindFloat, types.KindDouble:
		var f float64
		b, f, err = keys.DecodeFloatAscending(b)
		v = types.Value{Kind: k, F64: f}
	case types.KindString:
		var raw []byte
		b, raw, err = keys.DecodeBytesAscending(b, nil)
		v = types.String(string(raw))
	case types.KindByteString:
		var raw []byte
		b, raw, err = keys.DecodeBytesAscending(b, nil)
		v = types.ByteString(raw)
	default:
		return types.Null(), nil, errs.Unsupportedf("no index key decoding for %s", k)
	}
	if err != nil {
		return types.Null(), nil, errs.AsCorruption(err, "decode %s key", k)
	}
	return v, b, nil
}
