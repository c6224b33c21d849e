package colstore

import (
	"github.com/hupe1980/colstore/metric"
)

// Observer receives operational metrics. Package metric provides no-op,
// in-memory and Prometheus implementations.
type Observer = metric.Observer

// Stats is a point-in-time summary of the store.
type Stats struct {
	// Entities is the number of committed entities.
	Entities int
	// ActiveTransactions counts transactions that have not ended.
	ActiveTransactions int64
	// ScanMemory is the scratch memory reserved by background scans.
	ScanMemory int64
}

// Stats returns a summary of the store's current state.
func (s *Store) Stats() Stats {
	return Stats{
		Entities:           len(s.catalog.Snapshot().Entities()),
		ActiveTransactions: s.active.Load(),
		ScanMemory:         s.limits.MemoryUsage(),
	}
}
