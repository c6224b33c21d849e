// Package metric defines the hooks through which the column store reports
// operational metrics.
package metric

import (
	"sync/atomic"
	"time"
)

// Observer receives operational events. Implementations must be safe for
// concurrent use.
type Observer interface {
	// RecordCommit is called after a transaction commit attempt.
	// mutations counts the row-level changes the transaction applied.
	RecordCommit(duration time.Duration, mutations int, err error)

	// RecordRollback is called after a transaction was rolled back.
	RecordRollback()

	// RecordTabletLoad is called when a tablet is read from storage.
	RecordTabletLoad(bytes int)

	// RecordTabletFlush is called when a dirty tablet is written back.
	RecordTabletFlush(bytes int)

	// RecordIndexApply is called for every change event an index processed.
	RecordIndexApply(index string, err error)

	// RecordRebuild is called after an index rebuild.
	RecordRebuild(index string, entries int64, duration time.Duration, err error)

	// RecordAnalyse is called after a column was analysed.
	RecordAnalyse(column string, values int64, duration time.Duration, err error)

	// RecordCursor is called when a cursor is opened.
	RecordCursor()
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) RecordCommit(time.Duration, int, error)            {}
func (NoopObserver) RecordRollback()                                   {}
func (NoopObserver) RecordTabletLoad(int)                              {}
func (NoopObserver) RecordTabletFlush(int)                             {}
func (NoopObserver) RecordIndexApply(string, error)                    {}
func (NoopObserver) RecordRebuild(string, int64, time.Duration, error) {}
func (NoopObserver) RecordAnalyse(string, int64, time.Duration, error) {}
func (NoopObserver) RecordCursor()                                     {}

// BasicObserver counts events in memory.
type BasicObserver struct {
	Commits          atomic.Int64
	CommitErrors     atomic.Int64
	CommitTotalNanos atomic.Int64
	Mutations        atomic.Int64
	Rollbacks        atomic.Int64
	TabletLoads      atomic.Int64
	TabletLoadBytes  atomic.Int64
	TabletFlushes    atomic.Int64
	TabletFlushBytes atomic.Int64
	IndexApplies     atomic.Int64
	IndexErrors      atomic.Int64
	Rebuilds         atomic.Int64
	RebuildErrors    atomic.Int64
	Analyses         atomic.Int64
	AnalyseErrors    atomic.Int64
	Cursors          atomic.Int64
}

// RecordCommit implements Observer.
func (b *BasicObserver) RecordCommit(d time.Duration, mutations int, err error) {
	b.Commits.Add(1)
	b.CommitTotalNanos.Add(d.Nanoseconds())
	b.Mutations.Add(int64(mutations))
	if err != nil {
		b.CommitErrors.Add(1)
	}
}

// RecordRollback implements Observer.
func (b *BasicObserver) RecordRollback() { b.Rollbacks.Add(1) }

// RecordTabletLoad implements Observer.
func (b *BasicObserver) RecordTabletLoad(bytes int) {
	b.TabletLoads.Add(1)
	b.TabletLoadBytes.Add(int64(bytes))
}

// RecordTabletFlush implements Observer.
func (b *BasicObserver) RecordTabletFlush(bytes int) {
	b.TabletFlushes.Add(1)
	b.TabletFlushBytes.Add(int64(bytes))
}

// RecordIndexApply implements Observer.
func (b *BasicObserver) RecordIndexApply(_ string, err error) {
	b.IndexApplies.Add(1)
	if err != nil {
		b.IndexErrors.Add(1)
	}
}

// RecordRebuild implements Observer.
func (b *BasicObserver) RecordRebuild(_ string, _ int64, _ time.Duration, err error) {
	b.Rebuilds.Add(1)
	if err != nil {
		b.RebuildErrors.Add(1)
	}
}

// RecordAnalyse implements Observer.
func (b *BasicObserver) RecordAnalyse(_ string, _ int64, _ time.Duration, err error) {
	b.Analyses.Add(1)
	if err != nil {
		b.AnalyseErrors.Add(1)
	}
}

// RecordCursor implements Observer.
func (b *BasicObserver) RecordCursor() { b.Cursors.Add(1) }

// Stats is a point-in-time copy of a BasicObserver.
type Stats struct {
	Commits        int64
	CommitErrors   int64
	AvgCommitNanos int64
	Mutations      int64
	Rollbacks      int64
	TabletLoads    int64
	TabletFlushes  int64
	IndexApplies   int64
	IndexErrors    int64
	Rebuilds       int64
	Analyses       int64
	Cursors        int64
}

// GetStats returns the current counters.
func (b *BasicObserver) GetStats() Stats {
	s := Stats{
		Commits:       b.Commits.Load(),
		CommitErrors:  b.CommitErrors.Load(),
		Mutations:     b.Mutations.Load(),
		Rollbacks:     b.Rollbacks.Load(),
		TabletLoads:   b.TabletLoads.Load(),
		TabletFlushes: b.TabletFlushes.Load(),
		IndexApplies:  b.IndexApplies.Load(),
		IndexErrors:   b.IndexErrors.Load(),
		Rebuilds:      b.Rebuilds.Load(),
		Analyses:      b.Analyses.Load(),
		Cursors:       b.Cursors.Load(),
	}
	if s.Commits > 0 {
		s.AvgCommitNanos = b.CommitTotalNanos.Load() / s.Commits
	}
	return s
}
