package extract

import (
	"context"
	"errors"

	"github.com/poiesic/minutes/ai"
)

// FailureKind classifies an extraction failure.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTimeout
	FailureRateLimited
	FailureMalformed
	FailureUnavailable
	FailureCanceled
	FailurePermanent
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureRateLimited:
		return "rate_limited"
	case FailureMalformed:
		return "malformed"
	case FailureUnavailable:
		return "unavailable"
	case FailureCanceled:
		return "canceled"
	default:
		return "permanent"
	}
}

// Retryable reports whether another attempt may succeed.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureTimeout, FailureRateLimited, FailureMalformed, FailureUnavailable:
		return true
	}
	return false
}

// Classify maps an error returned by an extractor to a FailureKind.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ai.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ai.ErrRateLimited):
		return FailureRateLimited
	case errors.Is(err, ai.ErrMalformedResponse):
		return FailureMalformed
	case errors.Is(err, ai.ErrUnavailable):
		return FailureUnavailable
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	}
	return FailurePermanent
}
