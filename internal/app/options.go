package service

import (
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/adapters/stream"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/analysis"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/dedupe"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/internal/domain/schema"
	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBackend sets the stream backend. Without it Start uses an in-memory ledger.
func WithBackend(b stream.Backend) Option {
	return func(s *Service) {
		s.backend = b
	}
}

// WithGenerator sets the language generation backend. Nil means summaries
// are always the degraded placeholder.
func WithGenerator(g analysis.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithIdempotencyStore sets where committed record ids are remembered.
func WithIdempotencyStore(st dedupe.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.seen = st
		}
	}
}

// WithSchema sets the schema name and definition to register.
func WithSchema(name string, def schema.Definition) Option {
	return func(s *Service) {
		if name != "" {
			s.schemaName = name
		}
		if len(def.Fields) > 0 {
			s.definition = def
		}
	}
}

// WithPublisherAddress sets the publisher whose records are read back.
func WithPublisherAddress(addr string) Option {
	return func(s *Service) {
		s.publisherAddr = addr
	}
}

// WithFetchPageSize sets the page size used when reading the corpus.
func WithFetchPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithPublishTimeout bounds submit plus confirmation of one publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithGeneration sets the model configuration and the per-call timeout.
func WithGeneration(cfg analysis.ModelConfig, timeout time.Duration) Option {
	return func(s *Service) {
		s.modelCfg = cfg
		if timeout > 0 {
			s.generationTimeout = timeout
		}
	}
}

// WithSummaryWordCap sets the maximum summary length in words.
func WithSummaryWordCap(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.wordCap = n
		}
	}
}

// WithPromptLimits caps the players and personal entries sent to the generator.
func WithPromptLimits(maxPlayers, maxHistory int) Option {
	return func(s *Service) {
		s.promptMaxPlayers = maxPlayers
		s.promptMaxHistory = maxHistory
	}
}

// WithRegistrationRetry sets how often startup registration is attempted and
// the initial backoff between attempts.
func WithRegistrationRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.regAttempts = attempts
		}
		if backoff > 0 {
			s.regBackoff = backoff
		}
	}
}

// WithMaxLeaderboardLimit caps the leaderboard size.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboardLimit = n
		}
	}
}
