package models

import "errors"

// Error kinds shared by every layer. Callers wrap them with %w and match with errors.Is.
var (
	// ErrConfiguration indicates a missing credential, missing input directory or invalid setting
	ErrConfiguration = errors.New("configuration error")

	// ErrEmptyInput indicates there was nothing to clean or ingest
	ErrEmptyInput = errors.New("empty input")

	// ErrUpstream indicates the embedding or completion service failed or timed out
	ErrUpstream = errors.New("upstream service error")

	// ErrNotInitialized indicates the collection is empty or was never created
	ErrNotInitialized = errors.New("collection not initialized")

	// ErrInvalidInput indicates a malformed request or option
	ErrInvalidInput = errors.New("invalid input")

	// ErrIngestInProgress indicates another ingest run holds the writer lock
	ErrIngestInProgress = errors.New("ingest already in progress")
)

// ErrorKind returns a stable name for the error kind wrapped by err, or "internal".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrIngestInProgress):
		return "ingest_in_progress"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "internal"
	}
}
