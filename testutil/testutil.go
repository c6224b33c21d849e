package testutil

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colstore"
	"github.com/hupe1980/colstore/types"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Value returns a random non-null value conforming to t.
func (r *RNG) Value(t types.Type) types.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.valueLocked(t)
}

func (r *RNG) valueLocked(t types.Type) types.Value {
	dim := t.Dim()
	switch t.Kind {
	case types.KindBoolean:
		return types.Bool(r.rand.Intn(2) == 1)
	case types.KindByte:
		return types.Byte(int8(r.rand.Intn(256) - 128))
	case types.KindShort:
		return types.Short(int16(r.rand.Intn(1<<16) - 1<<15))
	case types.KindInt:
		return types.Int(r.rand.Int31() - math.MaxInt32/2)
	case types.KindLong:
		return types.Long(r.rand.Int63() - math.MaxInt64/2)
	case types.KindFloat:
		return types.Float(float32(r.rand.NormFloat64()))
	case types.KindDouble:
		return types.Double(r.rand.NormFloat64())
	case types.KindDate:
		return types.DateMillis(r.rand.Int63n(4102444800000))
	case types.KindString:
		return types.String(r.stringLocked(1 + r.rand.Intn(16)))
	case types.KindByteString:
		b := make([]byte, r.rand.Intn(32))
		r.rand.Read(b)
		return types.ByteString(b)
	case types.KindBooleanVector:
		v := make([]bool, dim)
		for i := range v {
			v[i] = r.rand.Intn(2) == 1
		}
		return types.BoolVector(v...)
	case types.KindIntVector:
		v := make([]int32, dim)
		for i := range v {
			v[i] = r.rand.Int31()
		}
		return types.IntVector(v...)
	case types.KindLongVector:
		v := make([]int64, dim)
		for i := range v {
			v[i] = r.rand.Int63()
		}
		return types.LongVector(v...)
	case types.KindFloatVector:
		v := make([]float32, dim)
		for i := range v {
			v[i] = r.rand.Float32()
		}
		return types.FloatVector(v...)
	case types.KindDoubleVector:
		v := make([]float64, dim)
		for i := range v {
			v[i] = r.rand.Float64()
		}
		return types.DoubleVector(v...)
	}
	return types.Null()
}

func (r *RNG) stringLocked(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.rand.Intn(len(alphabet))]
	}
	return string(b)
}

// Values returns n random values of type t. Each value is null with
// probability nullRate.
func (r *RNG) Values(t types.Type, n int, nullRate float64) []types.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Value, n)
	for i := range out {
		if r.rand.Float64() < nullRate {
			continue
		}
		out[i] = r.valueLocked(t)
	}
	return out
}

// Rows returns n random rows for the given columns. Values of nullable
// columns are null with probability nullRate.
func (r *RNG) Rows(defs []types.ColumnDef, n int, nullRate float64) [][]types.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([][]types.Value, n)
	for i := range rows {
		row := make([]types.Value, len(defs))
		for j, d := range defs {
			if d.Nullable && r.rand.Float64() < nullRate {
				continue
			}
			row[j] = r.valueLocked(d.Type)
		}
		rows[i] = row
	}
	return rows
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// ZipfInts returns n Int values drawn from a Zipf distribution over
// [0, distinct). Useful for columns with skewed duplicate runs.
func (r *RNG) ZipfInts(n, distinct int, s float64) []types.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Value, n)
	for i := range out {
		out[i] = types.Int(int32(r.zipfLocked(distinct, s)))
	}
	return out
}

// OpenMem opens a store on an in-memory filesystem that is closed when the
// test ends. The filesystem is returned so the test can reopen the store.
func OpenMem(t testing.TB, opts ...colstore.Option) (*colstore.Store, vfs.FS) {
	t.Helper()
	fs := vfs.NewMem()
	return Reopen(t, fs, opts...), fs
}

// Reopen opens the store kept in fs and closes it when the test ends.
func Reopen(t testing.TB, fs vfs.FS, opts ...colstore.Option) *colstore.Store {
	t.Helper()
	s, err := colstore.Open("db", append([]colstore.Option{colstore.WithFS(fs)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
