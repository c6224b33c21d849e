package types

import (
	"bytes"
	"cmp"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Value is a small typed value stored in a column.
//
// The zero Value is null. Integral kinds (including Date and integral vectors)
// live in I64/Ints, floating kinds in F64/Floats. Float values are kept
// rounded to float32 precision so they survive a storage round trip unchanged.
type Value struct {
	Kind   Kind      `json:"k,omitempty"`
	I64    int64     `json:"i,omitempty"`
	F64    float64   `json:"f,omitempty"`
	B      bool      `json:"b,omitempty"`
	S      string    `json:"s,omitempty"`
	Bytes  []byte    `json:"y,omitempty"`
	Bools  []bool    `json:"bv,omitempty"`
	Ints   []int64   `json:"iv,omitempty"`
	Floats []float64 `json:"fv,omitempty"`
}

// Null returns the null value.
func Null() Value { return Value{} }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.Kind == KindInvalid }

func Bool(b bool) Value { return Value{Kind: KindBoolean, B: b} }
func Byte(i int8) Value { return Value{Kind: KindByte, I64: int64(i)} }
func Short(i int16) Value { return Value{Kind: KindShort, I64: int64(i)} }
func Int(i int32) Value { return Value{Kind: KindInt, I64: int64(i)} }
func Long(i int64) Value { return Value{Kind: KindLong, I64: i} }
func Float(f float32) Value { return Value{Kind: KindFloat, F64: float64(f)} }
func Double(f float64) Value { return Value{Kind: KindDouble, F64: f} }
func String(s string) Value { return Value{Kind: KindString, S: s} }
func ByteString(b []byte) Value { return Value{Kind: KindByteString, Bytes: b} }

// Date returns a date value at millisecond precision.
func Date(t time.Time) Value { return Value{Kind: KindDate, I64: t.UnixMilli()} }

// DateMillis returns a date value from epoch milliseconds.
func DateMillis(ms int64) Value { return Value{Kind: KindDate, I64: ms} }

func BoolVector(b ...bool) Value { return Value{Kind: KindBooleanVector, Bools: b} }

func IntVector(v ...int32) Value {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return Value{Kind: KindIntVector, Ints: out}
}

func LongVector(v ...int64) Value { return Value{Kind: KindLongVector, Ints: v} }

func FloatVector(v ...float32) Value {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return Value{Kind: KindFloatVector, Floats: out}
}

func DoubleVector(v ...float64) Value { return Value{Kind: KindDoubleVector, Floats: v} }

// Len returns the logical size of the value: the vector length, or 1.
func (v Value) Len() int {
	switch v.Kind {
	case KindBooleanVector:
		return len(v.Bools)
	case KindIntVector, KindLongVector:
		return len(v.Ints)
	case KindFloatVector, KindDoubleVector:
		return len(v.Floats)
	case KindInvalid:
		return 0
	}
	return 1
}

// Conforms reports whether a non-null v is a value of type t.
// No coercion between kinds is attempted.
func (v Value) Conforms(t Type) bool {
	if v.Kind != t.Kind {
		return false
	}
	if t.Kind.IsVector() {
		return v.Len() == t.Dim()
	}
	return true
}

// AsFloat64 returns the numeric value of a scalar as float64.
func (v Value) AsFloat64() (float64, bool) {
	switch {
	case v.Kind.IsIntegral() && !v.Kind.IsVector():
		return float64(v.I64), true
	case v.Kind == KindFloat || v.Kind == KindDouble:
		return v.F64, true
	}
	return 0, false
}

// Component returns element i of a vector as float64. Booleans map to 0/1.
func (v Value) Component(i int) float64 {
	switch v.Kind {
	case KindBooleanVector:
		if v.Bools[i] {
			return 1
		}
		return 0
	case KindIntVector, KindLongVector:
		return float64(v.Ints[i])
	case KindFloatVector, KindDoubleVector:
		return v.Floats[i]
	}
	return 0
}

// Width returns the encoded payload width of a string or byte string.
func (v Value) Width() int {
	switch v.Kind {
	case KindString:
		return len(v.S)
	case KindByteString:
		return len(v.Bytes)
	}
	return 0
}

// Compare orders two values of the same kind. Null sorts before everything.
// Values of different kinds compare by kind.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		return cmp.Compare(a.Kind, b.Kind)
	}
	switch a.Kind {
	case KindInvalid:
		return 0
	case KindBoolean:
		return compareBool(a.B, b.B)
	case KindByte, KindShort, KindInt, KindLong, KindDate:
		return cmp.Compare(a.I64, b.I64)
	case KindFloat, KindDouble:
		return cmp.Compare(a.F64, b.F64)
	case KindString:
		return strings.Compare(a.S, b.S)
	case KindByteString:
		return bytes.Compare(a.Bytes, b.Bytes)
	case KindBooleanVector:
		return slices.CompareFunc(a.Bools, b.Bools, compareBool)
	case KindIntVector, KindLongVector:
		return slices.Compare(a.Ints, b.Ints)
	case KindFloatVector, KindDoubleVector:
		return slices.Compare(a.Floats, b.Floats)
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// Equal reports whether a and b hold the same kind and value.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

func (v Value) String() string {
	switch v.Kind {
	case KindInvalid:
		return "NULL"
	case KindBoolean:
		return strconv.FormatBool(v.B)
	case KindByte, KindShort, KindInt, KindLong:
		return strconv.FormatInt(v.I64, 10)
	case KindDate:
		return time.UnixMilli(v.I64).UTC().Format(time.RFC3339Nano)
	case KindFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.S)
	case KindByteString:
		return "0x" + hex.EncodeToString(v.Bytes)
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i := range v.Len() {
		if i > 0 {
			sb.WriteByte(',')
		}
		switch v.Kind {
		case KindBooleanVector:
			sb.WriteString(strconv.FormatBool(v.Bools[i]))
		case KindIntVector, KindLongVector:
			sb.WriteString(strconv.FormatInt(v.Ints[i], 10))
		default:
			sb.WriteString(strconv.FormatFloat(v.Floats[i], 'g', -1, 64))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	out := v
	out.Bytes = slices.Clone(v.Bytes)
	out.Bools = slices.Clone(v.Bools)
	out.Ints = slices.Clone(v.Ints)
	out.Floats = slices.Clone(v.Floats)
	return out
}

// Canonical rounds float kinds to their storage precision and narrows
// integral kinds to their width.
func (v Value) Canonical() Value {
	switch v.Kind {
	case KindByte:
		v.I64 = int64(int8(v.I64))
	case KindShort:
		v.I64 = int64(int16(v.I64))
	case KindInt:
		v.I64 = int64(int32(v.I64))
	case KindFloat:
		v.F64 = float64(float32(v.F64))
	case KindIntVector:
		ints := make([]int64, len(v.Ints))
		for i, x := range v.Ints {
			ints[i] = int64(int32(x))
		}
		v.Ints = ints
	case KindFloatVector:
		floats := make([]float64, len(v.Floats))
		for i, x := range v.Floats {
			floats[i] = float64(float32(x))
		}
		v.Floats = floats
	}
	return v
}
