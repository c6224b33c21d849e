// Package predicate models single-column comparisons that indexes can
// answer.
package predicate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/colstore/internal/errs"
	"github.com/hupe1980/colstore/types"
)

// Operator is a comparison operator.
type Operator uint8

const (
	OpEqual Operator = iota + 1
	OpIn
	OpLike
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
)

var operatorNames = map[Operator]string{
	OpEqual:        "=",
	OpIn:           "IN",
	OpLike:         "LIKE",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpLess:         "<",
	OpLessEqual:    "<=",
}

func (o Operator) String() string {
	if s, ok := operatorNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", uint8(o))
}

// Comparison is a predicate over one column: Column Op Values.
// In carries any number of values, every other operator exactly one.
type Comparison struct {
	Column string
	Op     Operator
	Values []types.Value
	Not    bool
}

// Equal returns column = v.
func Equal(column string, v types.Value) Comparison {
	return Comparison{Column: column, Op: OpEqual, Values: []types.Value{v}}
}

// In returns column IN (vs...).
func In(column string, vs ...types.Value) Comparison {
	return Comparison{Column: column, Op: OpIn, Values: vs}
}

// Like returns column LIKE pattern. % matches any run of characters, _ a
// single character and \ escapes the next character.
func Like(column, pattern string) Comparison {
	return Comparison{Column: column, Op: OpLike, Values: []types.Value{types.String(pattern)}}
}

func Greater(column string, v types.Value) Comparison {
	return Comparison{Column: column, Op: OpGreater, Values: []types.Value{v}}
}

func GreaterEqual(column string, v types.Value) Comparison {
	return Comparison{Column: column, Op: OpGreaterEqual, Values: []types.Value{v}}
}

func Less(column string, v types.Value) Comparison {
	return Comparison{Column: column, Op: OpLess, Values: []types.Value{v}}
}

func LessEqual(column string, v types.Value) Comparison {
	return Comparison{Column: column, Op: OpLessEqual, Values: []types.Value{v}}
}

// Negate returns the negation of c.
func (c Comparison) Negate() Comparison {
	c.Not = !c.Not
	return c
}

// Value returns the single operand.
func (c Comparison) Value() types.Value {
	if len(c.Values) == 0 {
		return types.Null()
	}
	return c.Values[0]
}

// Validate checks the operand count and types.
func (c Comparison) Validate() error {
	if _, ok := operatorNames[c.Op]; !ok {
		return errs.Validationf("unknown operator %d", c.Op)
	}
	if c.Op == OpIn {
		if len(c.Values) == 0 {
			return errs.Validationf("IN on %s needs at least one value", c.Column)
		}
	} else if len(c.Values) != 1 {
		return errs.Validationf("%s on %s needs exactly one value", c.Op, c.Column)
	}
	for _, v := range c.Values {
		if v.IsNull() {
			return errs.Validationf("%s on %s: null operand", c.Op, c.Column)
		}
	}
	if c.Op == OpLike && c.Values[0].Kind != types.KindString {
		return errs.Validationf("LIKE on %s needs a string pattern", c.Column)
	}
	return nil
}

// Targets returns the operands of an In comparison sorted and deduplicated.
func (c Comparison) Targets() []types.Value {
	out := slices.Clone(c.Values)
	slices.SortFunc(out, types.Compare)
	return slices.CompactFunc(out, types.Equal)
}

// Matches evaluates c against v. Null never matches, negated or not.
func (c Comparison) Matches(v types.Value) bool {
	if v.IsNull() {
		return false
	}
	return c.matches(v) != c.Not
}

func (c Comparison) matches(v types.Value) bool {
	switch c.Op {
	case OpEqual:
		return types.Equal(v, c.Value())
	case OpIn:
		for _, t := range c.Values {
			if types.Equal(v, t) {
				return true
			}
		}
		return false
	case OpLike:
		return v.Kind == types.KindString && MatchLike(c.Value().S, v.S)
	case OpGreater:
		return v.Kind == c.Value().Kind && types.Compare(v, c.Value()) > 0
	case OpGreaterEqual:
		return v.Kind == c.Value().Kind && types.Compare(v, c.Value()) >= 0
	case OpLess:
		return v.Kind == c.Value().Kind && types.Compare(v, c.Value()) < 0
	case OpLessEqual:
		return v.Kind == c.Value().Kind && types.Compare(v, c.Value()) <= 0
	}
	return false
}

func (c Comparison) String() string {
	var sb strings.Builder
	if c.Not {
		sb.WriteString("NOT ")
	}
	sb.WriteString(c.Column)
	sb.WriteByte(' ')
	sb.WriteString(c.Op.String())
	sb.WriteByte(' ')
	if c.Op == OpIn {
		sb.WriteByte('(')
		for i, v := range c.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.String())
		}
		sb.WriteByte(')')
	} else {
		sb.WriteString(c.Value().String())
	}
	return sb.String()
}
