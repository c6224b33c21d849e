package index

import (
	"math"

	"github.com/hupe1980/colstore/column"
	"github.com/hupe1980/colstore/cost"
	"github.com/hupe1980/colstore/predicate"
	"github.com/hupe1980/colstore/stats"
)

// CanProcess reports whether the index is an access path for p: a
// non-negated Equal, In or Like (non-unique only) on the indexed column.
// Filter additionally answers range comparisons, but they are not offered
// to the planner.
func (tx *Tx) CanProcess(p predicate.Comparison) bool {
	if p.Not || !tx.covers(p.Column) || p.Validate() != nil {
		return false
	}
	switch p.Op {
	case predicate.OpEqual, predicate.OpIn:
		return true
	case predicate.OpLike:
		return !tx.unique && tx.column.Def.Type.Kind == p.Value().Kind
	}
	return false
}

// CostFor estimates the cost of answering p through the index, or returns
// cost.Invalid when the index cannot process p.
func (tx *Tx) CostFor(p predicate.Comparison) cost.Cost {
	if !tx.CanProcess(p) {
		return cost.Invalid
	}
	entries, err := tx.Count()
	if err != nil {
		return cost.Invalid
	}
	return cost.IndexLookup(float64(entries), tx.selected(p, float64(entries)))
}

// selected estimates how many entries p selects.
func (tx *Tx) selected(p predicate.Comparison, entries float64) float64 {
	if entries == 0 {
		return 0
	}
	per := 1.0
	if !tx.unique {
		per = entries * stats.DefaultEqualitySelectivity
		if st := tx.columnStats(); st != nil {
			per = st.Estimate(st.EqualitySelectivity())
		}
	}
	switch p.Op {
	case predicate.OpIn:
		return math.Min(entries, per*float64(len(p.Targets())))
	case predicate.OpLike:
		if _, exact := predicate.LiteralPrefix(p.Value().S); exact {
			return per
		}
		return entries * stats.DefaultRangeSelectivity
	}
	return math.Min(entries, per)
}

func (tx *Tx) columnStats() *stats.Statistics {
	c, err := column.Open(tx.ctx, tx.column)
	if err != nil {
		return nil
	}
	return c.Statistics()
}
