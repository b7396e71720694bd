package openai

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/poiesic/minutes/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// mapError translates a provider error into the ai failure taxonomy.
// Errors that fit none of the classes are returned in langchaingo's
// standardized form.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	mapped := openai.MapError(err)
	switch {
	case llms.IsTimeoutError(mapped):
		return fmt.Errorf("%w: %w", ai.ErrTimeout, err)
	case llms.IsRateLimitError(mapped), llms.IsQuotaExceededError(mapped):
		return fmt.Errorf("%w: %w", ai.ErrRateLimited, err)
	case llms.IsProviderUnavailableError(mapped), isConnectionError(err):
		return fmt.Errorf("%w: %w", ai.ErrUnavailable, err)
	}
	return mapped
}

func isConnectionError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection reset")
}
