package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceNotFound indicates a sync target id resolved to neither a
	// page nor a database. Fatal for that target only.
	ErrSourceNotFound = errors.New("source object not found")

	// ErrCacheMiss indicates a cache key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrFlagUnset indicates a feature flag or tag has no stored value.
	ErrFlagUnset = errors.New("feature flag unset")

	// ErrLLMUnavailable indicates the completion service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. The assistant index cannot be written without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrImageUnavailable indicates the image generation service is not
	// configured.
	ErrImageUnavailable = errors.New("image service unavailable")

	// ErrUnauthorized indicates the acting user may not run the operation.
	ErrUnauthorized = errors.New("unauthorized")
)
