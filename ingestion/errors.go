package ingestion

import "errors"

var (
	// ErrManagerRequired is returned when no index manager is provided.
	ErrManagerRequired = errors.New("index manager required")

	// ErrSessionLogRequired is returned when no session log is provided.
	ErrSessionLogRequired = errors.New("session log required")

	// ErrCheckpointRepositoryRequired is returned when a checkpoint repository is not provided.
	ErrCheckpointRepositoryRequired = errors.New("checkpoint repository required")

	// ErrExtractorRequired is returned when no extraction adapter is provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrInvalidSource is returned for a source without a session id.
	ErrInvalidSource = errors.New("invalid source")

	// ErrExtractionUnavailable is returned when the extraction backend
	// cannot be reached on the first chunk of a run.
	ErrExtractionUnavailable = errors.New("extraction backend unavailable")

	// ErrAllChunksFailed is returned when no chunk of a run could be extracted.
	ErrAllChunksFailed = errors.New("every chunk failed extraction")
)
