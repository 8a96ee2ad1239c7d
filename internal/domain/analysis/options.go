package analysis

import (
	"time"

	"github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"
)

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithModel sets the model configuration passed to the generator.
func WithModel(cfg ModelConfig) Option {
	return func(a *Analyzer) {
		a.model = cfg
	}
}

// WithTimeout bounds one generation call.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithWordCap sets the maximum summary length in words. Positive values
// below MinWordCap are raised to it.
func WithWordCap(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.limits.WordCap = max(n, MinWordCap)
		}
	}
}

// WithPromptLimits caps the players and personal entries listed in the prompt.
func WithPromptLimits(maxPlayers, maxHistory int) Option {
	return func(a *Analyzer) {
		if maxPlayers > 0 {
			a.limits.MaxPlayers = maxPlayers
		}
		if maxHistory > 0 {
			a.limits.MaxHistory = maxHistory
		}
	}
}
