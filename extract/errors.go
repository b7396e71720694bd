package extract

import "errors"

var (
	// ErrInvalidConfig is returned by NewAdapter for out-of-range settings.
	ErrInvalidConfig = errors.New("invalid extraction config")

	// ErrNoExtractor is returned by NewAdapter when no extractor is given.
	ErrNoExtractor = errors.New("extractor is required")
)
