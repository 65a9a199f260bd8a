package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrPoolTooLarge = errors.New("candidate pool too large")
	ErrInvalidJob   = errors.New("invalid job")
	ErrBackpressure = errors.New("job queue is full")
)
