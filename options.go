package colstore

import (
	"log/slog"

	"github.com/cockroachdb/pebble/vfs"

	"github.com/hupe1980/colstore/codec"
	"github.com/hupe1980/colstore/metric"
	"github.com/hupe1980/colstore/types"
)

type options struct {
	fs                 vfs.FS
	sync               bool
	readOnly           bool
	cacheSize          int64
	codec              codec.Codec
	observer           metric.Observer
	logger             *Logger
	defaultCompression types.Compression
	backgroundWorkers  int
	scanBytesPerSec    int64
	memoryLimit        int64
}

// Option configures Open.
type Option func(*options)

// WithFS sets the filesystem the store writes to, for example vfs.NewMem()
// for a store that lives only in memory.
func WithFS(fs vfs.FS) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithSync makes every commit durable on disk before Commit returns.
func WithSync(sync bool) Option {
	return func(o *options) {
		o.sync = sync
	}
}

// ReadOnly opens the store without write access. Write transactions fail
// with ErrReadOnly.
func ReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithCacheSize sets the block cache size in bytes.
func WithCacheSize(bytes int64) Option {
	return func(o *options) {
		o.cacheSize = bytes
	}
}

// WithCatalogCodec configures the codec used for catalogue entries.
//
// If nil is passed, codec.Default is used.
func WithCatalogCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetrics configures an observer for operational metrics.
// Pass nil to disable metrics collection.
//
// Example with the Prometheus observer:
//
//	obs := metric.NewPrometheusObserver(prometheus.DefaultRegisterer)
//	store, _ := colstore.Open("./data", colstore.WithMetrics(obs))
func WithMetrics(o metric.Observer) Option {
	return func(opts *options) {
		if o == nil {
			o = metric.NoopObserver{}
		}
		opts.observer = o
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := colstore.NewJSONLogger(slog.LevelInfo)
//	store, _ := colstore.Open("./data", colstore.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithDefaultCompression sets the tablet compression of fixed-length
// columns created without an explicit choice.
func WithDefaultCompression(c types.Compression) Option {
	return func(o *options) {
		o.defaultCompression = c
	}
}

// WithBackgroundWorkers bounds how many analyse and rebuild scans run at
// the same time.
func WithBackgroundWorkers(n int) Option {
	return func(o *options) {
		o.backgroundWorkers = n
	}
}

// WithScanRateLimit limits the read throughput of analyse and rebuild
// scans in bytes per second. Zero means unlimited.
func WithScanRateLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.scanBytesPerSec = bytesPerSec
	}
}

// WithMemoryLimit bounds the scratch memory of background scans in bytes.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:             codec.Default,
		observer:          metric.NoopObserver{},
		logger:            NoopLogger(),
		backgroundWorkers: 1,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
