// Package cost expresses the estimated price of answering a query through
// one access path.
package cost

import (
	"fmt"
	"math"
)

// Unit costs, in abstract units relative to one memory access.
const (
	MemoryAccess    = 1.0e-9
	DiskAccessRead  = 1.0e-7
	DiskAccessWrite = 2.0e-7
)

// Cost has an IO, a CPU and a memory component.
type Cost struct {
	IO     float64
	CPU    float64
	Memory float64
}

// Zero costs nothing.
var Zero = Cost{}

// Invalid marks an access path that cannot answer the query.
var Invalid = Cost{IO: math.Inf(1), CPU: math.Inf(1), Memory: math.Inf(1)}

// IsInvalid reports whether c is the invalid sentinel, or any component is
// infinite or NaN.
func (c Cost) IsInvalid() bool {
	for _, x := range [...]float64{c.IO, c.CPU, c.Memory} {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return true
		}
	}
	return false
}

// Add returns the component-wise sum.
func (c Cost) Add(o Cost) Cost {
	return Cost{IO: c.IO + o.IO, CPU: c.CPU + o.CPU, Memory: c.Memory + o.Memory}
}

// Scale multiplies every component by f.
func (c Cost) Scale(f float64) Cost {
	return Cost{IO: c.IO * f, CPU: c.CPU * f, Memory: c.Memory * f}
}

// Total folds the components into one number.
func (c Cost) Total() float64 { return c.IO + c.CPU + c.Memory }

// Less orders costs by total. Invalid sorts last.
func (c Cost) Less(o Cost) bool {
	switch {
	case c.IsInvalid():
		return false
	case o.IsInvalid():
		return true
	}
	return c.Total() < o.Total()
}

func (c Cost) String() string {
	if c.IsInvalid() {
		return "cost(invalid)"
	}
	return fmt.Sprintf("cost(io=%.3g cpu=%.3g mem=%.3g)", c.IO, c.CPU, c.Memory)
}

// IndexLookup is the closed-form estimate for a lookup in an ordered index
// holding entries entries that selects selected of them: one descent plus
// one read per hit, and one comparison per hit.
func IndexLookup(entries, selected float64) Cost {
	if entries < 1 {
		entries = 1
	}
	if selected < 0 {
		selected = 0
	}
	return Cost{
		IO:  DiskAccessRead * (math.Log10(entries) + selected),
		CPU: MemoryAccess * selected,
	}
}
