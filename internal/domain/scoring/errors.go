package scoring

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidWeights = errors.New("invalid weights")
	ErrInvalidParams  = errors.New("invalid scoring parameters")
)
