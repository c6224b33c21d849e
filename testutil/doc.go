// Package testutil provides testing utilities for colstore.
//
// This package is intended for use in tests and benchmarks only.
// It provides deterministic generators for typed values and rows, and an
// in-memory store for tests that need one.
//
// # Random Values
//
//	rng := testutil.NewRNG(seed)
//	v := rng.Value(types.Scalar(types.KindInt))   // one value of the type
//	rows := rng.Rows(defs, 100, 0.1)              // 100 rows, 10% nulls
//
// # In-Memory Store
//
//	store := testutil.OpenMem(t)
package testutil
