package ranking

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned before any scoring when a request cannot be
// served. One of the more specific errors below is always wrapped with it.
var ErrInvalidRequest = errors.New("invalid ranking request")

// Reasons wrapped by ErrInvalidRequest.
var (
	ErrMissingTarget    = errors.New("target record is missing required identity fields")
	ErrInvalidTopK      = errors.New("top_k must be positive")
	ErrInvalidWeights   = errors.New("weights must be non-negative and sum to 1")
	ErrInvalidThreshold = errors.New("min_similarity must be in [0,1]")
	ErrInvalidParams    = errors.New("invalid scoring parameters")
)

func invalid(reason, detail error) error {
	if detail == nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, reason)
	}
	return fmt.Errorf("%w: %w: %w", ErrInvalidRequest, reason, detail)
}
