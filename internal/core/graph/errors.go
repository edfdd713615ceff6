// Package graph defines domain-specific errors
package graph

import "errors"

var (
	// Graph errors
	ErrEmptyGraph       = errors.New("graph has no nodes")
	ErrNoFeatures       = errors.New("graph has no node features")
	ErrRaggedFeatures   = errors.New("feature rows differ in length")
	ErrLabelCount       = errors.New("label count does not match node count")
	ErrInvalidLabel     = errors.New("labels must be non-negative")
	ErrGraphNotFound    = errors.New("graph not found")
	ErrInvalidGraphName = errors.New("invalid graph name")

	// Edge errors
	ErrInvalidSource = errors.New("edge source out of range")
	ErrInvalidTarget = errors.New("edge target out of range")
	ErrDuplicateEdge = errors.New("duplicate edge")
	ErrSelfLoop      = errors.New("self-loops are not allowed")
)
