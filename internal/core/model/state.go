package model

import (
	"fmt"
	"slices"
)

// Tensor is a serializable copy of one parameter.
type Tensor struct {
	Name  string    `json:"name" msgpack:"name"`
	Shape []int     `json:"shape" msgpack:"shape"`
	Data  []float64 `json:"data" msgpack:"data"`
}

// StateDict snapshots params in order. The result does not alias params.
func StateDict(params []*Parameter) []Tensor {
	state := make([]Tensor, len(params))
	for i, p := range params {
		state[i] = Tensor{
			Name:  p.Name,
			Shape: slices.Clone(p.Shape),
			Data:  slices.Clone(p.Data),
		}
	}
	return state
}

// LoadStateDict copies state into params in place. Every tensor is checked
// before anything is written, so a mismatch leaves params untouched.
func LoadStateDict(params []*Parameter, state []Tensor) error {
	if len(params) != len(state) {
		return fmt.Errorf("%w: %d tensors for %d parameters", ErrStateMismatch, len(state), len(params))
	}
	for i, p := range params {
		t := state[i]
		if t.Name != p.Name {
			return fmt.Errorf("%w: tensor %d is %q, want %q", ErrStateMismatch, i, t.Name, p.Name)
		}
		if !slices.Equal(t.Shape, p.Shape) || len(t.Data) != len(p.Data) {
			return fmt.Errorf("%w: %s has shape %v, want %v", ErrStateMismatch, p.Name, t.Shape, p.Shape)
		}
	}
	// copy, not assign: matrices handed out by Parameter.Matrix share Data
	for i, p := range params {
		copy(p.Data, state[i].Data)
	}
	return nil
}
