package repository

import "errors"

// Sentinel kinds for report store errors.
var (
	ErrNotFound     = errors.New("report not found")
	ErrInvalidLimit = errors.New("invalid list limit")
	ErrEmptyID      = errors.New("report id must not be empty")
)
