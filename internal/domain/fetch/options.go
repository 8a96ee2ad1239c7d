package fetch

import "github.com/linHDev0106/Somnia-Datastream-With-AI-Backend/pkg/logger"

// Option applies a configuration option to the Fetcher.
type Option func(*Fetcher)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithPageSize sets how many records are requested per page.
func WithPageSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 && n <= maxPageSize {
			f.pageSize = n
		}
	}
}
