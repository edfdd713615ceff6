// Package optim implements first-order optimizers and learning-rate
// schedulers over model parameters.
package optim

import (
	"fmt"

	"github.com/gclflow/gclflow/internal/core/model"
)

// Hyper carries every optimizer hyperparameter; each algorithm reads the
// fields it needs.
type Hyper struct {
	LR          float64
	WeightDecay float64
	Beta1       float64
	Beta2       float64
	Alpha       float64
	Epsilon     float64
	Momentum    float64
}

// Optimizer updates parameters in place from their gradients.
// PRINCIPLES:
// - ISP: only what the executor and checkpoint store need
type Optimizer interface {
	Kind() Kind
	Step()
	ZeroGrad()
	LR() float64
	SetLR(lr float64)
	State() State
	LoadState(state State) error
}

// State is the serializable optimizer state.
type State struct {
	Kind  string  `json:"kind" msgpack:"kind"`
	LR    float64 `json:"lr" msgpack:"lr"`
	Step  int     `json:"step" msgpack:"step"`
	Slots []Slot  `json:"slots" msgpack:"slots"`
}

// Slot is one named per-parameter buffer (moments, accumulators).
type Slot struct {
	Name    string      `json:"name" msgpack:"name"`
	Tensors [][]float64 `json:"tensors" msgpack:"tensors"`
}

// base holds what every algorithm shares.
type base struct {
	kind   Kind
	params []*model.Parameter
	hyper  Hyper
	step   int
	slots  []Slot
}

func newBase(kind Kind, params []*model.Parameter, hyper Hyper, slotNames ...string) base {
	b := base{kind: kind, params: params, hyper: hyper}
	for _, name := range slotNames {
		tensors := make([][]float64, len(params))
		for i, p := range params {
			tensors[i] = make([]float64, p.Size())
		}
		b.slots = append(b.slots, Slot{Name: name, Tensors: tensors})
	}
	return b
}

func (b *base) Kind() Kind { return b.kind }

// LR returns the current learning rate.
func (b *base) LR() float64 { return b.hyper.LR }

// SetLR overrides the learning rate; schedulers drive it through here.
func (b *base) SetLR(lr float64) { b.hyper.LR = lr }

func (b *base) slot(i int) [][]float64 { return b.slots[i].Tensors }

// ZeroGrad clears the gradients of the bound parameters.
func (b *base) ZeroGrad() {
	for _, p := range b.params {
		p.ZeroGrad()
	}
}

// State deep-copies the optimizer state.
func (b *base) State() State {
	s := State{Kind: b.kind.String(), LR: b.hyper.LR, Step: b.step}
	for _, slot := range b.slots {
		tensors := make([][]float64, len(slot.Tensors))
		for i, t := range slot.Tensors {
			tensors[i] = append([]float64(nil), t...)
		}
		s.Slots = append(s.Slots, Slot{Name: slot.Name, Tensors: tensors})
	}
	return s
}

// LoadState validates state fully, then copies it in.
func (b *base) LoadState(state State) error {
	if state.Kind != b.kind.String() {
		return fmt.Errorf("%w: got %q, want %q", ErrStateKind, state.Kind, b.kind)
	}
	if len(state.Slots) != len(b.slots) {
		return fmt.Errorf("%w: %d slots, want %d", ErrStateMismatch, len(state.Slots), len(b.slots))
	}
	for i, slot := range b.slots {
		in := state.Slots[i]
		if in.Name != slot.Name || len(in.Tensors) != len(slot.Tensors) {
			return fmt.Errorf("%w: slot %q", ErrStateMismatch, in.Name)
		}
		for j := range slot.Tensors {
			if len(in.Tensors[j]) != len(slot.Tensors[j]) {
				return fmt.Errorf("%w: slot %q tensor %d", ErrStateMismatch, in.Name, j)
			}
		}
	}
	for i, slot := range b.slots {
		for j := range slot.Tensors {
			copy(slot.Tensors[j], state.Slots[i].Tensors[j])
		}
	}
	b.hyper.LR = state.LR
	b.step = state.Step
	return nil
}
