package dedupe

// Option applies a configuration option to the in-memory store.
type Option func(*inMemoryStore)

// WithMaxSize sets the maximum number of record ids to keep in memory.
// If maxSize > 0: bounded mode, oldest ids are evicted first.
// If maxSize <= 0: unbounded mode.
func WithMaxSize(maxSize int) Option {
	return func(s *inMemoryStore) {
		s.maxSize = maxSize
	}
}
