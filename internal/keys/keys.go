// Package keys implements order-preserving byte encodings for storage keys.
//
// For every encoder, bytes.Compare on two encodings orders them exactly as
// the source values are ordered, so the backing store's key order doubles as
// value order for index scans and tuple-id order for column scans.
package keys

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
)

const (
	// IntMin is the length byte of the most negative varint.
	IntMin = 0x80
	// IntMax is the length byte of the largest uvarint.
	IntMax      = 0xfd
	intMaxWidth = 8
	intZero     = IntMin + intMaxWidth
	intSmall    = IntMax - intZero - intMaxWidth

	escape      byte = 0x00
	escapedTerm byte = 0x01
	escaped00   byte = 0xff
)

var errShort = errors.New("insufficient bytes to decode")

// EncodeUint64Ascending appends v as 8 big-endian bytes.
func EncodeUint64Ascending(b []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(b, v)
}

// DecodeUint64Ascending decodes a value written by EncodeUint64Ascending.
func DecodeUint64Ascending(b []byte) ([]byte, uint64, error) {
	if len(b) < 8 {
		return nil, 0, errors.Wrap(errShort, "uint64")
	}
	return b[8:], binary.BigEndian.Uint64(b), nil
}

// EncodeUvarintAscending appends v as a length-prefixed big-endian integer.
// Values up to intSmall fit into the length byte itself.
func EncodeUvarintAscending(b []byte, v uint64) []byte {
	if v <= intSmall {
		return append(b, intZero+byte(v))
	}
	n := byteLen(v)
	b = append(b, byte(IntMax-intMaxWidth+n))
	for i := n - 1; i >= 0; i-- {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

// DecodeUvarintAscending decodes a value written by EncodeUvarintAscending.
func DecodeUvarintAscending(b []byte) ([]byte, uint64, error) {
	if len(b) == 0 {
		return nil, 0, errors.Wrap(errShort, "uvarint")
	}
	length := int(b[0]) - intZero
	b = b[1:]
	if length >= 0 && length <= intSmall {
		return b, uint64(length), nil
	}
	length -= intSmall
	if length < 0 || length > intMaxWidth {
		return nil, 0, errors.Newf("invalid uvarint length %d", length)
	}
	if len(b) < length {
		return nil, 0, errors.Wrap(errShort, "uvarint")
	}
	var v uint64
	for _, c := range b[:length] {
		v = v<<8 | uint64(c)
	}
	return b[length:], v, nil
}

// EncodeVarintAscending appends v so that negative values sort before
// positive ones and shorter magnitudes sort towards zero.
func EncodeVarintAscending(b []byte, v int64) []byte {
	if v >= 0 {
		return EncodeUvarintAscending(b, uint64(v))
	}
	n := byteLen(^uint64(v))
	if n == 0 {
		n = 1
	}
	b = append(b, byte(IntMin+intMaxWidth-n))
	for i := n - 1; i >= 0; i-- {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

// DecodeVarintAscending decodes a value written by EncodeVarintAscending.
func DecodeVarintAscending(b []byte) ([]byte, int64, error) {
	if len(b) == 0 {
		return nil, 0, errors.Wrap(errShort, "varint")
	}
	length := int(b[0]) - intZero
	if length < 0 {
		length = -length
		rest := b[1:]
		if len(rest) < length {
			return nil, 0, errors.Wrap(errShort, "varint")
		}
		var v int64
		for _, c := range rest[:length] {
			v = v<<8 | int64(^c)
		}
		return rest[length:], ^v, nil
	}
	rest, u, err := DecodeUvarintAscending(b)
	if err != nil {
		return nil, 0, err
	}
	if u > math.MaxInt64 {
		return nil, 0, errors.Newf("varint %d overflows int64", u)
	}
	return rest, int64(u), nil
}

func byteLen(v uint64) int {
	n := 0
	for v != 0 {
		n++
		v >>= 8
	}
	return n
}

// EncodeFloatAscending appends f as 8 bytes whose unsigned order matches
// the numeric order of f. -0 and +0 encode identically.
func EncodeFloatAscending(b []byte, f float64) []byte {
	if f == 0 {
		f = 0
	}
	u := math.Float64bits(f)
	if u&(1<<63) != 0 {
		u = ^u
	} else {
		u |= 1 << 63
	}
	return binary.BigEndian.AppendUint64(b, u)
}

// DecodeFloatAscending decodes a value written by EncodeFloatAscending.
func DecodeFloatAscending(b []byte) ([]byte, float64, error) {
	if len(b) < 8 {
		return nil, 0, errors.Wrap(errShort, "float")
	}
	u := binary.BigEndian.Uint64(b)
	if u&(1<<63) != 0 {
		u &^= 1 << 63
	} else {
		u = ^u
	}
	return b[8:], math.Float64frombits(u), nil
}

// EncodeBytesAscending appends data escaped so that 0x00 never appears
// unescaped, then the terminator 0x00 0x01. A shorter byte string that is a
// prefix of a longer one sorts first.
func EncodeBytesAscending(b []byte, data []byte) []byte {
	for {
		i := bytes.IndexByte(data, escape)
		if i == -1 {
			break
		}
		b = append(b, data[:i]...)
		b = append(b, escape, escaped00)
		data = data[i+1:]
	}
	b = append(b, data...)
	return append(b, escape, escapedTerm)
}

// EncodeBytesPrefix appends data escaped like EncodeBytesAscending but
// without the terminator. Every encoding of a byte string starting with data
// has the result as a prefix.
func EncodeBytesPrefix(b []byte, data []byte) []byte {
	b = EncodeBytesAscending(b, data)
	return b[:len(b)-2]
}

// DecodeBytesAscending decodes a value written by EncodeBytesAscending,
// appending the result to r.
func DecodeBytesAscending(b []byte, r []byte) ([]byte, []byte, error) {
	for {
		i := bytes.IndexByte(b, escape)
		if i == -1 || i+1 >= len(b) {
			return nil, nil, errors.Newf("missing terminator in %x", b)
		}
		switch b[i+1] {
		case escapedTerm:
			return b[i+2:], append(r, b[:i]...), nil
		case escaped00:
			r = append(r, b[:i]...)
			r = append(r, 0x00)
			b = b[i+2:]
		default:
			return nil, nil, errors.Newf("unknown escape sequence %x %x", escape, b[i+1])
		}
	}
}

// PrefixEnd returns the smallest key greater than every key with prefix p.
// It returns nil when no such key exists (p is empty or all 0xff).
func PrefixEnd(p []byte) []byte {
	end := bytes.Clone(p)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
