package service

import "errors"

var (
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")

	// ErrInvalidRequest wraps payload and subgroup validation failures.
	ErrInvalidRequest = errors.New("invalid evaluation request")

	// ErrBackpressure is returned when the evaluation queue is full.
	ErrBackpressure = errors.New("evaluation queue is full")
)
