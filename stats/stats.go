// Package stats maintains per-column statistics incrementally.
//
// Every mutation updates the statistics in O(1). Deleting the current
// minimum or maximum makes the bounds unreliable, which is recorded by
// clearing the fresh flag until the next analyse.
package stats

import (
	"math"

	"github.com/hupe1980/colstore/types"
)

// moments accumulates one numeric dimension.
type moments struct {
	min, max              float64
	sum, sum2, sum3, sum4 float64
}

func (m *moments) add(x, sign float64) {
	x2 := x * x
	m.sum += sign * x
	m.sum2 += sign * x2
	m.sum3 += sign * x2 * x
	m.sum4 += sign * x2 * x2
}

// Statistics describes the values of one column.
//
// Statistics is not safe for concurrent use. Transactions work on a Clone.
type Statistics struct {
	typ   types.Type
	fresh bool

	nullCount     int64
	nonNullCount  int64
	distinctCount int64

	trueCount  int64
	falseCount int64

	minWidth int64
	maxWidth int64

	hasBounds bool
	dims      []moments
}

// New returns empty, fresh statistics for values of type t.
func New(t types.Type) *Statistics {
	s := &Statistics{typ: t}
	s.Reset()
	return s
}

// Reset clears all counters.
func (s *Statistics) Reset() {
	s.fresh = true
	s.nullCount, s.nonNullCount, s.distinctCount = 0, 0, 0
	s.trueCount, s.falseCount = 0, 0
	s.minWidth, s.maxWidth = 0, 0
	s.hasBounds = false
	if s.tracksMoments() {
		s.dims = make([]moments, s.typ.Dim())
	} else {
		s.dims = nil
	}
}

func (s *Statistics) tracksMoments() bool {
	k := s.typ.Kind
	return k.IsNumeric() || (k.IsVector() && k != types.KindBooleanVector)
}

// Clone returns an independent copy.
func (s *Statistics) Clone() *Statistics {
	c := *s
	c.dims = append([]moments(nil), s.dims...)
	return &c
}

// Type returns the value type the statistics describe.
func (s *Statistics) Type() types.Type { return s.typ }

// Insert accounts for a newly stored value.
func (s *Statistics) Insert(v types.Value) {
	if v.IsNull() {
		s.nullCount++
		return
	}
	s.nonNullCount++

	switch {
	case s.typ.Kind == types.KindBoolean:
		if v.B {
			s.trueCount++
		} else {
			s.falseCount++
		}
		s.distinctCount = boolDistinct(s.trueCount, s.falseCount)
	case s.typ.Kind == types.KindBooleanVector:
		for _, b := range v.Bools {
			if b {
				s.trueCount++
			} else {
				s.falseCount++
			}
		}
		s.bumpDistinct(s.nonNullCount == 1)
	case s.typ.Kind == types.KindString || s.typ.Kind == types.KindByteString:
		w := int64(v.Width())
		extreme := !s.hasBounds || w < s.minWidth || w > s.maxWidth
		if !s.hasBounds {
			s.minWidth, s.maxWidth, s.hasBounds = w, w, true
		} else {
			s.minWidth, s.maxWidth = min(s.minWidth, w), max(s.maxWidth, w)
		}
		s.bumpDistinct(extreme)
	case s.tracksMoments():
		extreme := false
		for i := range s.dims {
			x := component(v, i)
			m := &s.dims[i]
			if !s.hasBounds {
				m.min, m.max = x, x
				extreme = true
			} else if x < m.min || x > m.max {
				m.min, m.max = min(m.min, x), max(m.max, x)
				extreme = true
			}
			m.add(x, 1)
		}
		s.hasBounds = true
		s.bumpDistinct(extreme)
	}
}

// Delete accounts for a removed value.
func (s *Statistics) Delete(v types.Value) {
	if v.IsNull() {
		if s.nullCount > 0 {
			s.nullCount--
		}
		return
	}
	if s.nonNullCount > 0 {
		s.nonNullCount--
	}

	switch {
	case s.typ.Kind == types.KindBoolean:
		if v.B {
			s.trueCount = max(s.trueCount-1, 0)
		} else {
			s.falseCount = max(s.falseCount-1, 0)
		}
		s.distinctCount = boolDistinct(s.trueCount, s.falseCount)
	case s.typ.Kind == types.KindBooleanVector:
		for _, b := range v.Bools {
			if b {
				s.trueCount = max(s.trueCount-1, 0)
			} else {
				s.falseCount = max(s.falseCount-1, 0)
			}
		}
	case s.typ.Kind == types.KindString || s.typ.Kind == types.KindByteString:
		w := int64(v.Width())
		if s.hasBounds && (w == s.minWidth || w == s.maxWidth) {
			s.fresh = false
		}
	case s.tracksMoments():
		for i := range s.dims {
			x := component(v, i)
			m := &s.dims[i]
			if s.hasBounds && (x == m.min || x == m.max) {
				s.fresh = false
			}
			m.add(x, -1)
		}
	}

	if s.nonNullCount == 0 {
		nulls := s.nullCount
		s.Reset()
		s.nullCount = nulls
		return
	}
	s.distinctCount = min(s.distinctCount, s.nonNullCount)
}

// Update is Delete(old) followed by Insert(new).
func (s *Statistics) Update(old, new types.Value) {
	s.Delete(old)
	s.Insert(new)
}

func (s *Statistics) bumpDistinct(extreme bool) {
	if extreme || s.distinctCount == 0 {
		s.distinctCount++
	}
}

func boolDistinct(t, f int64) int64 {
	var n int64
	if t > 0 {
		n++
	}
	if f > 0 {
		n++
	}
	return n
}

func component(v types.Value, i int) float64 {
	if v.Kind.IsVector() {
		return v.Component(i)
	}
	x, _ := v.AsFloat64()
	return x
}

// SetDistinct records an exactly computed distinct count and marks the
// statistics fresh. It is called at the end of an analyse scan.
func (s *Statistics) SetDistinct(n int64) {
	s.distinctCount = n
	s.fresh = true
}

// Fresh reports whether min and max are exact.
func (s *Statistics) Fresh() bool { return s.fresh }

func (s *Statistics) NullCount() int64     { return s.nullCount }
func (s *Statistics) NonNullCount() int64  { return s.nonNullCount }
func (s *Statistics) DistinctCount() int64 { return s.distinctCount }

// Count returns the number of stored values including nulls.
func (s *Statistics) Count() int64 { return s.nullCount + s.nonNullCount }

// TrueCount and FalseCount count boolean values (per element for vectors).
func (s *Statistics) TrueCount() int64  { return s.trueCount }
func (s *Statistics) FalseCount() int64 { return s.falseCount }

// MinWidth and MaxWidth bound the payload width of strings and byte strings.
func (s *Statistics) MinWidth() int64 { return s.minWidth }
func (s *Statistics) MaxWidth() int64 { return s.maxWidth }

// Dims returns the number of tracked numeric dimensions.
func (s *Statistics) Dims() int { return len(s.dims) }

// Min returns the minimum of dimension d. ok is false without values.
func (s *Statistics) Min(d int) (float64, bool) {
	if !s.hasBounds || d >= len(s.dims) {
		return 0, false
	}
	return s.dims[d].min, true
}

// Max returns the maximum of dimension d.
func (s *Statistics) Max(d int) (float64, bool) {
	if !s.hasBounds || d >= len(s.dims) {
		return 0, false
	}
	return s.dims[d].max, true
}

// Sum returns the sum of dimension d.
func (s *Statistics) Sum(d int) float64 {
	if d >= len(s.dims) {
		return 0
	}
	return s.dims[d].sum
}

// Mean returns the arithmetic mean of dimension d.
func (s *Statistics) Mean(d int) float64 {
	if d >= len(s.dims) || s.nonNullCount == 0 {
		return 0
	}
	return s.dims[d].sum / float64(s.nonNullCount)
}

// Variance returns the population variance of dimension d.
func (s *Statistics) Variance(d int) float64 {
	if d >= len(s.dims) || s.nonNullCount == 0 {
		return 0
	}
	n := float64(s.nonNullCount)
	mean := s.dims[d].sum / n
	return math.Max(s.dims[d].sum2/n-mean*mean, 0)
}

// Skewness returns the population skewness of dimension d.
func (s *Statistics) Skewness(d int) float64 {
	v := s.Variance(d)
	if v == 0 {
		return 0
	}
	n := float64(s.nonNullCount)
	m := s.dims[d]
	mean := m.sum / n
	third := m.sum3/n - 3*mean*m.sum2/n + 2*mean*mean*mean
	return third / math.Pow(v, 1.5)
}

// Kurtosis returns the population kurtosis (not excess) of dimension d.
func (s *Statistics) Kurtosis(d int) float64 {
	v := s.Variance(d)
	if v == 0 {
		return 0
	}
	n := float64(s.nonNullCount)
	m := s.dims[d]
	mean := m.sum / n
	fourth := m.sum4/n - 4*mean*m.sum3/n + 6*mean*mean*m.sum2/n - 3*mean*mean*mean*mean
	return fourth / (v * v)
}
