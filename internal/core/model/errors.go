// Package model defines model-level errors
package model

import "errors"

var (
	// Construction errors
	ErrInvalidModelName = errors.New("invalid model name")
	ErrNilEncoder       = errors.New("encoder cannot be nil")
	ErrNilObjective     = errors.New("objective cannot be nil")

	// State errors
	ErrStateMismatch = errors.New("state dict does not match model parameters")
	ErrInvalidShape  = errors.New("invalid parameter shape")
	ErrMissingView   = errors.New("views are missing a required field")
)
