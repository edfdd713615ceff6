// Package model defines the contracts between the training executor and the
// learnable parts of a graph contrastive model.
package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/gclflow/gclflow/internal/core/graph"
)

// Views is the encoder output. Negative views are optional; encoders
// that do not corrupt their input leave them nil.
type Views struct {
	Local         *mat.Dense
	Global        *mat.Dense
	LocalSummary  *mat.VecDense
	GlobalSummary *mat.VecDense
	NegLocal      *mat.Dense
	NegGlobal     *mat.Dense
}

// HasNegatives reports whether both negative views are populated.
func (v *Views) HasNegatives() bool {
	return v.NegLocal != nil && v.NegGlobal != nil
}

// Validate checks that the paired views are present and aligned.
func (v *Views) Validate() error {
	if v.Local == nil || v.Global == nil {
		return ErrMissingView
	}
	lr, lc := v.Local.Dims()
	gr, gc := v.Global.Dims()
	if lr != gr || lc != gc {
		return ErrInvalidShape
	}
	return nil
}

// Combined returns Local + Global, the per-node embedding used for probing.
func (v *Views) Combined() *mat.Dense {
	var z mat.Dense
	z.Add(v.Local, v.Global)
	return &z
}

// ViewGrads holds d(loss)/d(view) for every populated view. A nil field
// means the loss does not depend on that view.
type ViewGrads struct {
	Local         *mat.Dense
	Global        *mat.Dense
	LocalSummary  *mat.VecDense
	GlobalSummary *mat.VecDense
	NegLocal      *mat.Dense
	NegGlobal     *mat.Dense
}

// Encoder maps a graph to paired representation views.
type Encoder interface {
	// Forward runs a full-batch pass and caches what Backward needs
	Forward(g *graph.Graph) (*Views, error)

	// Backward accumulates parameter gradients from the last Forward
	Backward(grads *ViewGrads) error

	// Parameters returns the trainable parameters in a stable order
	Parameters() []*Parameter

	// SetTraining toggles training mode (negatives, stochastic parts)
	SetTraining(training bool)
}

// Objective turns paired views into a scalar contrastive loss.
type Objective interface {
	Loss(views *Views) (float64, *ViewGrads, error)
}

// Model pairs an encoder with its contrastive objective.
// PRINCIPLES:
// - SRP: owns no training state, the executor does
type Model struct {
	Name      string
	Encoder   Encoder
	Objective Objective
}

// Validate ensures the model can be trained.
func (m *Model) Validate() error {
	if m.Name == "" {
		return ErrInvalidModelName
	}
	if m.Encoder == nil {
		return ErrNilEncoder
	}
	if m.Objective == nil {
		return ErrNilObjective
	}
	return nil
}

// Parameters returns the encoder's trainable parameters.
func (m *Model) Parameters() []*Parameter {
	return m.Encoder.Parameters()
}

// NumParameters returns the total scalar parameter count.
func (m *Model) NumParameters() int {
	return CountParameters(m.Encoder.Parameters())
}

// ZeroGrad clears every parameter gradient.
func (m *Model) ZeroGrad() {
	for _, p := range m.Encoder.Parameters() {
		p.ZeroGrad()
	}
}
