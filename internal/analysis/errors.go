package analysis

import "errors"

var (
	// ErrDimensionMismatch indicates vectors of different lengths were mixed
	// in one computation. This is a caller bug and always propagates.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingUnavailable indicates the embedding provider failed. The
	// ranking and theme paths degrade instead of surfacing it to callers.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrSearchIndexFailure indicates the hybrid search index failed; ranking
	// falls back to local cosine similarity.
	ErrSearchIndexFailure = errors.New("search index failure")

	// ErrGenerationFailed indicates the LLM labeling call failed; themes get
	// deterministic fallback names.
	ErrGenerationFailed = errors.New("generation failed")
)
