// Package optim defines optimizer errors
package optim

import "errors"

var (
	ErrStateKind     = errors.New("optimizer state belongs to a different algorithm")
	ErrStateMismatch = errors.New("optimizer state does not match parameters")
	ErrInvalidLambda = errors.New("invalid learning rate lambda")
)
