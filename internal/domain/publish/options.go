package publish

import (
	"time"

	"github.com/google/uuid"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/dedupe"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
)

// Option applies a configuration option to the Publisher.
type Option func(*Publisher)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithIdempotencyStore answers resubmitted record ids without a backend call.
func WithIdempotencyStore(s dedupe.Store) Option {
	return func(p *Publisher) {
		p.seen = s
	}
}

// WithTimeout bounds submit plus confirmation.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(p *Publisher) {
		if gen != nil {
			p.newID = gen
		}
	}
}
