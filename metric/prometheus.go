package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "colstore"

// PrometheusObserver exports events as Prometheus metrics.
type PrometheusObserver struct {
	commits        *prometheus.CounterVec
	commitDuration prometheus.Histogram
	mutations      prometheus.Counter
	rollbacks      prometheus.Counter
	tabletBytes    *prometheus.CounterVec
	tablets        *prometheus.CounterVec
	indexApplies   *prometheus.CounterVec
	rebuilds       *prometheus.CounterVec
	rebuildEntries *prometheus.CounterVec
	analyses       *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	cursors        prometheus.Counter
}

// NewPrometheusObserver creates the collectors and registers them on reg.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Number of write transaction commits by outcome.",
		}, []string{"status"}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Time spent committing write transactions.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		mutations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Number of committed row mutations.",
		}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Number of rolled back write transactions.",
		}),
		tabletBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tablet_bytes_total",
			Help:      "Encoded tablet bytes read or written.",
		}, []string{"op"}),
		tablets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tablets_total",
			Help:      "Number of tablet loads and flushes.",
		}, []string{"op"}),
		indexApplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_events_total",
			Help:      "Number of change events applied to indexes by outcome.",
		}, []string{"index", "status"}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_rebuilds_total",
			Help:      "Number of index rebuilds by outcome.",
		}, []string{"index", "status"}),
		rebuildEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_rebuild_entries_total",
			Help:      "Entries written by index rebuilds.",
		}, []string{"index"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Number of column analyses by outcome.",
		}, []string{"column", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of rebuild and analyse jobs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		cursors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cursors_opened_total",
			Help:      "Number of cursors opened.",
		}),
	}
	reg.MustRegister(o.commits, o.commitDuration, o.mutations, o.rollbacks,
		o.tabletBytes, o.tablets, o.indexApplies, o.rebuilds, o.rebuildEntries,
		o.analyses, o.jobDuration, o.cursors)
	return o
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordCommit implements Observer.
func (o *PrometheusObserver) RecordCommit(d time.Duration, mutations int, err error) {
	o.commits.WithLabelValues(status(err)).Inc()
	o.commitDuration.Observe(d.Seconds())
	if err == nil {
		o.mutations.Add(float64(mutations))
	}
}

// RecordRollback implements Observer.
func (o *PrometheusObserver) RecordRollback() { o.rollbacks.Inc() }

// RecordTabletLoad implements Observer.
func (o *PrometheusObserver) RecordTabletLoad(bytes int) {
	o.tablets.WithLabelValues("load").Inc()
	o.tabletBytes.WithLabelValues("load").Add(float64(bytes))
}

// RecordTabletFlush implements Observer.
func (o *PrometheusObserver) RecordTabletFlush(bytes int) {
	o.tablets.WithLabelValues("flush").Inc()
	o.tabletBytes.WithLabelValues("flush").Add(float64(bytes))
}

// RecordIndexApply implements Observer.
func (o *PrometheusObserver) RecordIndexApply(index string, err error) {
	o.indexApplies.WithLabelValues(index, status(err)).Inc()
}

// RecordRebuild implements Observer.
func (o *PrometheusObserver) RecordRebuild(index string, entries int64, d time.Duration, err error) {
	o.rebuilds.WithLabelValues(index, status(err)).Inc()
	o.rebuildEntries.WithLabelValues(index).Add(float64(entries))
	o.jobDuration.WithLabelValues("rebuild").Observe(d.Seconds())
}

// RecordAnalyse implements Observer.
func (o *PrometheusObserver) RecordAnalyse(column string, _ int64, d time.Duration, err error) {
	o.analyses.WithLabelValues(column, status(err)).Inc()
	o.jobDuration.WithLabelValues("analyse").Observe(d.Seconds())
}

// RecordCursor implements Observer.
func (o *PrometheusObserver) RecordCursor() { o.cursors.Inc() }

var (
	_ Observer = NoopObserver{}
	_ Observer = (*BasicObserver)(nil)
	_ Observer = (*PrometheusObserver)(nil)
)
