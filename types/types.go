// Package types defines the value model of the column store: tuple ids,
// value kinds, typed values and column definitions.
package types

import (
	"fmt"
	"strings"
)

// TupleID identifies a row within a relation. Valid ids are >= 0.
type TupleID int64

// BOC ("beginning of column") means "no tuple here".
const BOC TupleID = -1

// Valid reports whether id addresses a tuple.
func (id TupleID) Valid() bool { return id >= 0 }

// Kind identifies the value type of a column.
type Kind uint8

const (
	// KindInvalid is the zero kind.
	KindInvalid Kind = iota
	KindBoolean
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	// KindDate stores milliseconds since the Unix epoch.
	KindDate
	KindString
	KindByteString
	KindBooleanVector
	KindIntVector
	KindLongVector
	KindFloatVector
	KindDoubleVector
)

var kindNames = [...]string{
	KindInvalid:       "INVALID",
	KindBoolean:       "BOOLEAN",
	KindByte:          "BYTE",
	KindShort:         "SHORT",
	KindInt:           "INT",
	KindLong:          "LONG",
	KindFloat:         "FLOAT",
	KindDouble:        "DOUBLE",
	KindDate:          "DATE",
	KindString:        "STRING",
	KindByteString:    "BYTESTRING",
	KindBooleanVector: "BOOLEAN_VECTOR",
	KindIntVector:     "INT_VECTOR",
	KindLongVector:    "LONG_VECTOR",
	KindFloatVector:   "FLOAT_VECTOR",
	KindDoubleVector:  "DOUBLE_VECTOR",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind resolves a kind by its name.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(k), Kind(k) != KindInvalid
		}
	}
	return KindInvalid, false
}

// IsVector reports whether the kind is a fixed-dimension vector.
func (k Kind) IsVector() bool { return k >= KindBooleanVector && k <= KindDoubleVector }

// IsNumeric reports whether min/max/moment statistics apply to the kind.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindByte, KindShort, KindInt, KindLong, KindFloat, KindDouble, KindDate:
		return true
	}
	return false
}

// IsIntegral reports whether values of the kind are stored as int64.
func (k Kind) IsIntegral() bool {
	switch k {
	case KindByte, KindShort, KindInt, KindLong, KindDate, KindIntVector, KindLongVector:
		return true
	}
	return false
}

// IsFloating reports whether values of the kind are stored as float64.
func (k Kind) IsFloating() bool {
	switch k {
	case KindFloat, KindDouble, KindFloatVector, KindDoubleVector:
		return true
	}
	return false
}

// Element returns the scalar kind of a vector kind, or k itself.
func (k Kind) Element() Kind {
	switch k {
	case KindBooleanVector:
		return KindBoolean
	case KindIntVector:
		return KindInt
	case KindLongVector:
		return KindLong
	case KindFloatVector:
		return KindFloat
	case KindDoubleVector:
		return KindDouble
	}
	return k
}

// Type is a kind plus its logical size. Size is the vector dimension for
// vector kinds and 1 for scalars.
type Type struct {
	Kind Kind `json:"kind"`
	Size int  `json:"size,omitempty"`
}

// Scalar returns the type of a non-vector kind.
func Scalar(k Kind) Type { return Type{Kind: k, Size: 1} }

// Vector returns a vector type of dimension dim.
func Vector(k Kind, dim int) Type { return Type{Kind: k, Size: dim} }

// Dim returns the logical size, never less than one.
func (t Type) Dim() int {
	if t.Size < 1 {
		return 1
	}
	return t.Size
}

// FixedLength reports whether values of the type occupy a tablet slot.
// Strings and byte strings are stored per tuple instead.
func (t Type) FixedLength() bool {
	return t.Kind != KindString && t.Kind != KindByteString && t.Kind != KindInvalid
}

func (t Type) String() string {
	if t.Kind.IsVector() {
		return fmt.Sprintf("%s(%d)", t.Kind, t.Dim())
	}
	return t.Kind.String()
}

// Validate checks that the type is well formed.
func (t Type) Validate() error {
	if t.Kind == KindInvalid || int(t.Kind) >= len(kindNames) {
		return fmt.Errorf("invalid kind %d", t.Kind)
	}
	if t.Kind.IsVector() && t.Size < 1 {
		return fmt.Errorf("vector type %s needs a positive dimension", t.Kind)
	}
	return nil
}
