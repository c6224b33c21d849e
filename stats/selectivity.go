package stats

// Default selectivities when the statistics carry no usable information.
const (
	DefaultEqualitySelectivity = 0.1
	DefaultRangeSelectivity    = 1.0 / 3.0
)

// EqualitySelectivity estimates the fraction of non-null values equal to a
// single constant, assuming a uniform distribution over distinct values.
func (s *Statistics) EqualitySelectivity() float64 {
	if s.nonNullCount == 0 {
		return 0
	}
	if s.distinctCount <= 0 {
		return DefaultEqualitySelectivity
	}
	return 1 / float64(s.distinctCount)
}

// RangeSelectivity estimates the fraction of non-null values in [lo, hi]
// of the first dimension by linear interpolation between min and max.
func (s *Statistics) RangeSelectivity(lo, hi float64) float64 {
	lmin, ok1 := s.Min(0)
	lmax, ok2 := s.Max(0)
	if !ok1 || !ok2 || !s.fresh {
		return DefaultRangeSelectivity
	}
	lo, hi = max(lo, lmin), min(hi, lmax)
	if hi < lo {
		return 0
	}
	if lmax == lmin {
		return 1
	}
	return (hi - lo) / (lmax - lmin)
}

// Estimate returns the estimated number of values selected by sel.
func (s *Statistics) Estimate(sel float64) float64 {
	return sel * float64(s.nonNullCount)
}
