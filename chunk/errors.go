package chunk

import "errors"

var (
	// ErrInvalidConfig is returned when chunk sizes are out of range.
	ErrInvalidConfig = errors.New("invalid chunk config")

	// ErrUnknownEncoding is returned for a tokenizer name tiktoken does not know.
	ErrUnknownEncoding = errors.New("unknown tokenizer encoding")
)
