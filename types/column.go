package types

import (
	"fmt"
	"strings"
)

// Compression selects the block codec applied to fixed-length tablets.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionSnappy
	CompressionLZ4
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ColumnDef describes a column. Name is "entity.column".
type ColumnDef struct {
	Name        string      `json:"name"`
	Type        Type        `json:"type"`
	Nullable    bool        `json:"nullable"`
	Compression Compression `json:"compression,omitempty"`
}

// NewColumnDef returns a nullable, uncompressed column definition.
func NewColumnDef(entity, column string, t Type) ColumnDef {
	return ColumnDef{Name: entity + "." + column, Type: t, Nullable: true}
}

// Entity returns the entity part of the qualified name.
func (c ColumnDef) Entity() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[:i]
	}
	return ""
}

// Simple returns the unqualified column name.
func (c ColumnDef) Simple() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

// Validate checks the definition.
func (c ColumnDef) Validate() error {
	if c.Simple() == "" {
		return fmt.Errorf("column name %q is empty", c.Name)
	}
	if err := c.Type.Validate(); err != nil {
		return fmt.Errorf("column %s: %w", c.Name, err)
	}
	if c.Compression > CompressionZstd {
		return fmt.Errorf("column %s: unknown compression %d", c.Name, c.Compression)
	}
	if c.Compression != CompressionNone && !c.Type.FixedLength() {
		return fmt.Errorf("column %s: compression applies to fixed-length types only", c.Name)
	}
	return nil
}

// Tuple is a row projection: a tuple id plus values in column order.
type Tuple struct {
	ID     TupleID
	Values []Value
}

// Get returns the value at position i, or null when out of range.
func (t Tuple) Get(i int) Value {
	if i < 0 || i >= len(t.Values) {
		return Null()
	}
	return t.Values[i]
}
