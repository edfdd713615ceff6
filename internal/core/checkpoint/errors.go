// Package checkpoint defines domain-specific errors
package checkpoint

import "errors"

var (
	// Key validation errors
	ErrInvalidModel   = errors.New("invalid model name")
	ErrInvalidDataset = errors.New("invalid dataset name")
	ErrInvalidEpoch   = errors.New("epoch cannot be negative")
	ErrEmptyRecord    = errors.New("checkpoint record has no model state")

	// ErrCheckpointNotFound is the missing-checkpoint condition; it aborts
	// the calling operation.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// Filter validation errors
	ErrInvalidLimit = errors.New("limit cannot be negative")

	// Persistence errors
	ErrSaveFailed   = errors.New("failed to save checkpoint")
	ErrLoadFailed   = errors.New("failed to load checkpoint")
	ErrDeleteFailed = errors.New("failed to delete checkpoint")
)
