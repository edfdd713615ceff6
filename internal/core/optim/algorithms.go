package optim

import (
	"math"

	"github.com/gclflow/gclflow/internal/core/model"
)

// Adam with bias correction and L2 weight decay.
type Adam struct{ base }

func NewAdam(params []*model.Parameter, h Hyper) *Adam {
	return &Adam{newBase(KindAdam, params, h, "exp_avg", "exp_avg_sq")}
}

func (o *Adam) Step() {
	o.step++
	h := o.hyper
	bc1 := 1 - math.Pow(h.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(h.Beta2, float64(o.step))
	m, v := o.slot(0), o.slot(1)
	for i, p := range o.params {
		for j, g := range p.Grad {
			g += h.WeightDecay * p.Data[j]
			m[i][j] = h.Beta1*m[i][j] + (1-h.Beta1)*g
			v[i][j] = h.Beta2*v[i][j] + (1-h.Beta2)*g*g
			denom := math.Sqrt(v[i][j])/math.Sqrt(bc2) + h.Epsilon
			p.Data[j] -= h.LR / bc1 * m[i][j] / denom
		}
	}
}

// SGD with optional momentum (no dampening).
type SGD struct{ base }

func NewSGD(params []*model.Parameter, h Hyper) *SGD {
	return &SGD{newBase(KindSGD, params, h, "momentum_buffer")}
}

func (o *SGD) Step() {
	o.step++
	h := o.hyper
	buf := o.slot(0)
	for i, p := range o.params {
		for j, g := range p.Grad {
			g += h.WeightDecay * p.Data[j]
			if h.Momentum != 0 {
				if o.step == 1 {
					buf[i][j] = g
				} else {
					buf[i][j] = h.Momentum*buf[i][j] + g
				}
				g = buf[i][j]
			}
			p.Data[j] -= h.LR * g
		}
	}
}

// Adagrad accumulates squared gradients per coordinate.
type Adagrad struct{ base }

func NewAdagrad(params []*model.Parameter, h Hyper) *Adagrad {
	return &Adagrad{newBase(KindAdagrad, params, h, "sum")}
}

func (o *Adagrad) Step() {
	o.step++
	h := o.hyper
	sum := o.slot(0)
	for i, p := range o.params {
		for j, g := range p.Grad {
			g += h.WeightDecay * p.Data[j]
			sum[i][j] += g * g
			p.Data[j] -= h.LR * g / (math.Sqrt(sum[i][j]) + h.Epsilon)
		}
	}
}

// RMSprop keeps a moving average of squared gradients, with optional momentum.
type RMSprop struct{ base }

func NewRMSprop(params []*model.Parameter, h Hyper) *RMSprop {
	return &RMSprop{newBase(KindRMSprop, params, h, "square_avg", "momentum_buffer")}
}

func (o *RMSprop) Step() {
	o.step++
	h := o.hyper
	sq, buf := o.slot(0), o.slot(1)
	for i, p := range o.params {
		for j, g := range p.Grad {
			g += h.WeightDecay * p.Data[j]
			sq[i][j] = h.Alpha*sq[i][j] + (1-h.Alpha)*g*g
			avg := math.Sqrt(sq[i][j]) + h.Epsilon
			if h.Momentum > 0 {
				buf[i][j] = h.Momentum*buf[i][j] + g/avg
				p.Data[j] -= h.LR * buf[i][j]
			} else {
				p.Data[j] -= h.LR * g / avg
			}
		}
	}
}

// SparseAdam only touches coordinates whose gradient is non-zero.
// Weight decay is not applied.
type SparseAdam struct{ base }

func NewSparseAdam(params []*model.Parameter, h Hyper) *SparseAdam {
	return &SparseAdam{newBase(KindSparseAdam, params, h, "exp_avg", "exp_avg_sq")}
}

func (o *SparseAdam) Step() {
	o.step++
	h := o.hyper
	bc1 := 1 - math.Pow(h.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(h.Beta2, float64(o.step))
	stepSize := h.LR * math.Sqrt(bc2) / bc1
	m, v := o.slot(0), o.slot(1)
	for i, p := range o.params {
		for j, g := range p.Grad {
			if g == 0 {
				continue
			}
			m[i][j] = h.Beta1*m[i][j] + (1-h.Beta1)*g
			v[i][j] = h.Beta2*v[i][j] + (1-h.Beta2)*g*g
			p.Data[j] -= stepSize * m[i][j] / (math.Sqrt(v[i][j]) + h.Epsilon)
		}
	}
}
