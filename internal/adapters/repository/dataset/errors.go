package dataset

import "errors"

var (
	ErrUnknownFormat    = errors.New("unknown dataset file format")
	ErrInvalidSynthetic = errors.New("invalid synthetic dataset parameters")
)
