package tripod

import "github.com/triplekit/tripod/engine"

type options struct {
	workers int
	engine  engine.Engine
	logger  *Logger
}

// Option configures a Bridge at construction time.
type Option func(*options)

// WithWorkers sets the number of worker goroutines executing open and
// search tasks. Defaults to GOMAXPROCS. Open and search are IO-bound, so a
// value above GOMAXPROCS is reasonable for many concurrent documents.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithEngine replaces the dataset engine. Defaults to the bundled dataset
// format engine reading from the local filesystem.
func WithEngine(e engine.Engine) Option {
	return func(o *options) {
		if e != nil {
			o.engine = e
		}
	}
}

// WithLogger sets the logger for bridge internals. Defaults to no output.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
