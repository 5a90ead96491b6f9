package bias

import "errors"

// Contract violations. An undefined AUC is never reported through these.
var (
	ErrLengthMismatch  = errors.New("labels and scores differ in length")
	ErrInvalidScore    = errors.New("score is not a finite number")
	ErrUnknownSubgroup = errors.New("subgroup not declared by dataset")
	ErrEmptySubgroupID = errors.New("empty subgroup id")
)
