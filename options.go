package proxima

import (
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/proxima/codec"
	"github.com/hupe1980/proxima/persistence"
	"github.com/hupe1980/proxima/resource"
)

type options struct {
	targetPrecision  float32
	codec            codec.Codec
	compression      persistence.CompressionType
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
}

// Option configures constructor behavior.
type Option func(*options)

// WithTargetPrecision configures the desired recall of the built index.
// Valid values are in (0, 1]. When unset the index is built for exact
// search.
func WithTargetPrecision(p float32) Option {
	return func(o *options) {
		o.targetPrecision = p
	}
}

// WithCodec configures the codec used for snapshot manifests.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the compression applied to snapshot payloads.
func WithCompression(c persistence.CompressionType) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
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

// WithResourceController bounds search concurrency and snapshot IO
// throughput. Pass nil to run unbounded.
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		compression:      persistence.CompressionNone,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// SearchOptions tunes a single search call.
type SearchOptions struct {
	// Allow restricts results to the given dataset indices when non-nil.
	Allow *roaring.Bitmap
}

// WithAllowList restricts search results to the dataset indices contained
// in the bitmap.
func WithAllowList(allow *roaring.Bitmap) func(*SearchOptions) {
	return func(o *SearchOptions) {
		o.Allow = allow
	}
}

func applySearchOptions(optFns []func(*SearchOptions)) SearchOptions {
	var o SearchOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
