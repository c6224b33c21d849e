package stats

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/types"
)

const (
	formatVersion = 1
	fixedSize     = 1 + 1 + 4 + 1 + 7*8 + 1
	dimSize       = 6 * 8
)

const (
	flagFresh byte = 1 << iota
)

// MarshalBinary encodes the statistics in a fixed little-endian layout:
// version, kind, dimension, flags, seven counters, the bounds flag and six
// float64 accumulators per tracked dimension.
func (s *Statistics) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, fixedSize+len(s.dims)*dimSize)
	b = append(b, formatVersion, byte(s.typ.Kind))
	b = binary.LittleEndian.AppendUint32(b, uint32(s.typ.Size))
	var flags byte
	if s.fresh {
		flags |= flagFresh
	}
	b = append(b, flags)
	for _, c := range []int64{
		s.nullCount, s.nonNullCount, s.distinctCount,
		s.trueCount, s.falseCount, s.minWidth, s.maxWidth,
	} {
		b = binary.LittleEndian.AppendUint64(b, uint64(c))
	}
	if s.hasBounds {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	for _, m := range s.dims {
		for _, f := range [...]float64{m.min, m.max, m.sum, m.sum2, m.sum3, m.sum4} {
			b = binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
		}
	}
	return b, nil
}

// UnmarshalBinary decodes statistics written by MarshalBinary.
func (s *Statistics) UnmarshalBinary(b []byte) error {
	if len(b) < fixedSize {
		return errs.Corruptionf("statistics record too small: %d bytes", len(b))
	}
	if b[0] != formatVersion {
		return errs.Corruptionf("unknown statistics format version %d", b[0])
	}
	s.typ = types.Type{Kind: types.Kind(b[1]), Size: int(binary.LittleEndian.Uint32(b[2:]))}
	if err := s.typ.Validate(); err != nil {
		return errs.AsCorruption(err, "statistics type")
	}
	s.Reset()
	s.fresh = b[6]&flagFresh != 0

	p := b[7:]
	for _, c := range []*int64{
		&s.nullCount, &s.nonNullCount, &s.distinctCount,
		&s.trueCount, &s.falseCount, &s.minWidth, &s.maxWidth,
	} {
		*c = int64(binary.LittleEndian.Uint64(p))
		p = p[8:]
	}
	s.hasBounds = p[0] == 1
	p = p[1:]

	if len(p) != len(s.dims)*dimSize {
		return errs.Corruptionf("statistics record has %d accumulator bytes, want %d", len(p), len(s.dims)*dimSize)
	}
	for i := range s.dims {
		m := &s.dims[i]
		for _, f := range [...]*float64{&m.min, &m.max, &m.sum, &m.sum2, &m.sum3, &m.sum4} {
			*f = math.Float64frombits(binary.LittleEndian.Uint64(p))
			p = p[8:]
		}
	}
	return nil
}

// Decode returns the statistics encoded in b.
func Decode(b []byte) (*Statistics, error) {
	s := &Statistics{}
	if err := s.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return s, nil
}
