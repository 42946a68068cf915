package contact

import "github.com/okian/patpat/pkg/logger"

// Option applies a configuration option to the store.
type Option func(*arenaStore)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *arenaStore) {
		if l != nil {
			s.logger = l
		}
	}
}
