// Package objective provides a reference contrastive objective for
// two-view encoders.
package objective

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/gclflow/gclflow/internal/core/model"
)

// Alignment pulls the two views of each node together, keeps each view's
// feature covariance close to identity so the views cannot collapse, and
// pushes each node's embedding away from the other view's corrupted
// embedding when negatives are present:
//
//	L = ‖Z1-Z2‖²/2n + λ Σv ‖ZvᵀZv/n - I‖²/4 + γ‖s1-s2‖²/2
//	  + β/2n Σi (z1ᵢ·ñ2ᵢ)² + (z2ᵢ·ñ1ᵢ)²
type Alignment struct {
	Lambda float64 // decorrelation weight
	Gamma  float64 // summary agreement weight
	Beta   float64 // negative orthogonality weight
}

// NewAlignment returns the objective with the default weights.
func NewAlignment() *Alignment {
	return &Alignment{Lambda: 1, Gamma: 1, Beta: 1}
}

// Loss implements model.Objective.
func (a *Alignment) Loss(v *model.Views) (float64, *model.ViewGrads, error) {
	if err := v.Validate(); err != nil {
		return 0, nil, err
	}
	n, _ := v.Local.Dims()
	nf := float64(n)

	var diff mat.Dense
	diff.Sub(v.Local, v.Global)
	norm := mat.Norm(&diff, 2)
	loss := norm * norm / (2 * nf)

	grads := &model.ViewGrads{
		Local:  mat.NewDense(n, v.Local.RawMatrix().Cols, nil),
		Global: mat.NewDense(n, v.Global.RawMatrix().Cols, nil),
	}
	var scaled mat.Dense
	scaled.Scale(1/nf, &diff)
	grads.Local.Add(grads.Local, &scaled)
	grads.Global.Sub(grads.Global, &scaled)

	if a.Lambda != 0 {
		loss += a.decorrelate(v.Local, grads.Local, nf)
		loss += a.decorrelate(v.Global, grads.Global, nf)
	}

	if a.Gamma != 0 && v.LocalSummary != nil && v.GlobalSummary != nil {
		var ds mat.VecDense
		ds.SubVec(v.LocalSummary, v.GlobalSummary)
		loss += a.Gamma * mat.Dot(&ds, &ds) / 2
		grads.LocalSummary = mat.NewVecDense(ds.Len(), nil)
		grads.LocalSummary.ScaleVec(a.Gamma, &ds)
		grads.GlobalSummary = mat.NewVecDense(ds.Len(), nil)
		grads.GlobalSummary.ScaleVec(-a.Gamma, &ds)
	}

	if a.Beta != 0 && v.HasNegatives() {
		if r, _ := v.NegLocal.Dims(); r != n {
			return 0, nil, fmt.Errorf("%w: negative views have %d rows, want %d", model.ErrInvalidShape, r, n)
		}
		grads.NegLocal = mat.NewDense(n, v.NegLocal.RawMatrix().Cols, nil)
		grads.NegGlobal = mat.NewDense(n, v.NegGlobal.RawMatrix().Cols, nil)
		loss += a.orthogonal(v.Local, v.NegGlobal, grads.Local, grads.NegGlobal, nf)
		loss += a.orthogonal(v.Global, v.NegLocal, grads.Global, grads.NegLocal, nf)
	}

	return loss, grads, nil
}

// decorrelate adds λ‖ZᵀZ/n - I‖²/4 and its gradient λ Z C / n.
func (a *Alignment) decorrelate(z, grad *mat.Dense, n float64) float64 {
	var c mat.Dense
	c.Mul(z.T(), z)
	c.Scale(1/n, &c)
	d, _ := c.Dims()
	for i := 0; i < d; i++ {
		c.Set(i, i, c.At(i, i)-1)
	}
	norm := mat.Norm(&c, 2)

	var g mat.Dense
	g.Mul(z, &c)
	g.Scale(a.Lambda/n, &g)
	grad.Add(grad, &g)
	return a.Lambda * norm * norm / 4
}

// orthogonal adds β/2n Σ (zᵢ·ñᵢ)² with gradients β/n sᵢ ñᵢ and β/n sᵢ zᵢ.
func (a *Alignment) orthogonal(z, neg, gz, gneg *mat.Dense, n float64) float64 {
	rows, _ := z.Dims()
	var loss float64
	for i := 0; i < rows; i++ {
		zi, ni := z.RowView(i), neg.RowView(i)
		s := mat.Dot(zi, ni)
		loss += s * s
		coef := a.Beta * s / n
		for j := 0; j < zi.Len(); j++ {
			gz.Set(i, j, gz.At(i, j)+coef*ni.AtVec(j))
			gneg.Set(i, j, gneg.At(i, j)+coef*zi.AtVec(j))
		}
	}
	return a.Beta * loss / (2 * n)
}
