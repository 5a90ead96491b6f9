package dataset

import "errors"

// Sentinel errors for dataset decoding.
var (
	ErrMissingColumn = errors.New("missing column")
	ErrInvalidRecord = errors.New("invalid record")
)
