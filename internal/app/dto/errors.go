package dto

import "errors"

// Execution errors
var (
	ErrInvalidConfig     = errors.New("invalid executor configuration")
	ErrNoCheckpointStore = errors.New("no checkpoint store configured")
	ErrEpochFailed       = errors.New("training epoch failed")
	ErrEmptySplit        = errors.New("split leaves the train or test set empty")
	ErrMissingLabels     = errors.New("graph has no labels to evaluate against")
	ErrEmbeddingMismatch = errors.New("embedding rows do not match label count")
	ErrInvalidSplitIndex = errors.New("split index out of range")
)
