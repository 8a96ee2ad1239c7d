package stream

import (
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
)

// Option applies a configuration option to a stream backend.
type Option func(*options)

type options struct {
	confirmDelay time.Duration
	logger       logger.Logger
}

// WithConfirmationDelay makes WaitForConfirmation block for d before reporting success.
func WithConfirmationDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.confirmDelay = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(name string, opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named(name)
	}
	return o
}
