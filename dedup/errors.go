package dedup

import "errors"

var (
	// ErrUnknownMetric is returned for a similarity metric name that is not supported.
	ErrUnknownMetric = errors.New("unknown similarity metric")

	// ErrInvalidThreshold is returned when the threshold is outside (0, 1].
	ErrInvalidThreshold = errors.New("similarity threshold must be in (0, 1]")
)
