// Package encoder provides a reference two-view graph encoder: a
// one-hop normalised-adjacency view and a personalised-PageRank diffusion
// view, each followed by its own linear projection.
package encoder

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/gclflow/gclflow/internal/core/graph"
	"github.com/gclflow/gclflow/internal/core/model"
)

var (
	ErrNoForward        = errors.New("backward called before forward")
	ErrFeatureDimension = errors.New("graph feature dimension does not match encoder")
)

// Config sizes the encoder.
type Config struct {
	InDim     int
	HiddenDim int
	Alpha     float64 // PPR teleport probability
	Steps     int     // PPR power iterations
	Seed      uint64
}

// TwoView implements model.Encoder.
//
//	Local  = Â X W1,  Â = D^-1/2 (A+I) D^-1/2
//	Global = S X W2,  S X ≈ α Σ (1-α)^k Â^k X
//
// Summaries are column means. In training mode the negative views use the
// same weights on row-shifted propagated features.
type TwoView struct {
	cfg      Config
	wLocal   *model.Parameter
	wGlobal  *model.Parameter
	training bool

	// propagated features depend only on the graph
	cached *graph.Graph
	pLocal *mat.Dense
	pGlob  *mat.Dense

	// saved by Forward for Backward
	last *forwardCache
}

type forwardCache struct {
	pLocal, pGlob       *mat.Dense
	negLocal, negGlob   *mat.Dense
	meanLocal, meanGlob *mat.VecDense
}

// NewTwoView builds an encoder with Glorot-uniform weights.
func NewTwoView(cfg Config) (*TwoView, error) {
	if cfg.InDim < 1 || cfg.HiddenDim < 1 {
		return nil, fmt.Errorf("encoder dimensions must be positive: in=%d hidden=%d", cfg.InDim, cfg.HiddenDim)
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		return nil, fmt.Errorf("encoder alpha must be in (0, 1]: %v", cfg.Alpha)
	}
	if cfg.Steps < 1 {
		cfg.Steps = 1
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	e := &TwoView{
		cfg:      cfg,
		wLocal:   model.NewParameter("encoder.local.weight", cfg.InDim, cfg.HiddenDim),
		wGlobal:  model.NewParameter("encoder.global.weight", cfg.InDim, cfg.HiddenDim),
		training: true,
	}
	glorot(rng, e.wLocal)
	glorot(rng, e.wGlobal)
	return e, nil
}

func glorot(rng *rand.Rand, p *model.Parameter) {
	limit := math.Sqrt(6 / float64(p.Shape[0]+p.Shape[1]))
	for i := range p.Data {
		p.Data[i] = (rng.Float64()*2 - 1) * limit
	}
}

func (e *TwoView) Parameters() []*model.Parameter {
	return []*model.Parameter{e.wLocal, e.wGlobal}
}

func (e *TwoView) SetTraining(training bool) {
	e.training = training
}

// Forward runs both views over the whole graph.
func (e *TwoView) Forward(g *graph.Graph) (*model.Views, error) {
	if g.NumFeatures() != e.cfg.InDim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureDimension, g.NumFeatures(), e.cfg.InDim)
	}
	if e.cached != g {
		if err := g.Validate(); err != nil {
			return nil, err
		}
		e.pLocal, e.pGlob = propagate(g, e.cfg.Alpha, e.cfg.Steps)
		e.cached = g
	}

	c := &forwardCache{
		pLocal:    e.pLocal,
		pGlob:     e.pGlob,
		meanLocal: colMean(e.pLocal),
		meanGlob:  colMean(e.pGlob),
	}
	wl, wg := e.wLocal.Matrix(), e.wGlobal.Matrix()

	views := &model.Views{
		Local:  project(c.pLocal, wl),
		Global: project(c.pGlob, wg),
	}
	views.LocalSummary = colMean(views.Local)
	views.GlobalSummary = colMean(views.Global)

	if e.training {
		c.negLocal = shiftRows(c.pLocal)
		c.negGlob = shiftRows(c.pGlob)
		views.NegLocal = project(c.negLocal, wl)
		views.NegGlobal = project(c.negGlob, wg)
	}

	e.last = c
	return views, nil
}

// Backward accumulates dL/dW for both projections.
func (e *TwoView) Backward(grads *model.ViewGrads) error {
	c := e.last
	if c == nil {
		return ErrNoForward
	}
	if grads == nil {
		return nil
	}
	if err := accumulate(e.wLocal, c.pLocal, grads.Local, c.negLocal, grads.NegLocal, c.meanLocal, grads.LocalSummary); err != nil {
		return err
	}
	return accumulate(e.wGlobal, c.pGlob, grads.Global, c.negGlob, grads.NegGlobal, c.meanGlob, grads.GlobalSummary)
}

func accumulate(w *model.Parameter, p, dz, pn, dzn *mat.Dense, mean, ds *mat.VecDense) error {
	r, cols := w.Shape[0], w.Shape[1]
	dw := mat.NewDense(r, cols, nil)
	if dz != nil {
		dw.Mul(p.T(), dz)
	}
	if dzn != nil && pn != nil {
		var t mat.Dense
		t.Mul(pn.T(), dzn)
		dw.Add(dw, &t)
	}
	if ds != nil {
		var t mat.Dense
		t.Outer(1, mean, ds)
		dw.Add(dw, &t)
	}
	return w.AccumulateGrad(dw)
}

func project(p, w *mat.Dense) *mat.Dense {
	var z mat.Dense
	z.Mul(p, w)
	return &z
}

func colMean(m *mat.Dense) *mat.VecDense {
	r, c := m.Dims()
	out := mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		out.SetVec(j, mat.Sum(m.ColView(j))/float64(r))
	}
	return out
}

// shiftRows returns m with row i replaced by row (i+1) mod n.
func shiftRows(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, m.RawRowView((i+1)%r))
	}
	return out
}

// propagate returns Â X and the truncated PPR diffusion of X.
func propagate(g *graph.Graph, alpha float64, steps int) (*mat.Dense, *mat.Dense) {
	adj := normalizedAdjacency(g)
	x := g.FeatureMatrix()

	var local mat.Dense
	local.Mul(adj, x)

	h := mat.DenseCopyOf(x)
	var next, teleport mat.Dense
	teleport.Scale(alpha, x)
	for k := 0; k < steps; k++ {
		next.Mul(adj, h)
		next.Scale(1-alpha, &next)
		next.Add(&next, &teleport)
		h.Copy(&next)
	}
	return &local, h
}

// normalizedAdjacency builds D^-1/2 (A+I) D^-1/2 densely. Zero edge
// weights count as 1.
func normalizedAdjacency(g *graph.Graph) *mat.SymDense {
	n := g.NumNodes()
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		a.SetSym(i, i, 1)
	}
	for _, e := range g.Edges {
		w := e.Weight
		if w == 0 {
			w = 1
		}
		a.SetSym(e.Source, e.Target, w)
	}

	inv := make([]float64, n)
	for i := 0; i < n; i++ {
		var deg float64
		for j := 0; j < n; j++ {
			deg += a.At(i, j)
		}
		inv[i] = 1 / math.Sqrt(deg)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if v := a.At(i, j); v != 0 {
				a.SetSym(i, j, v*inv[i]*inv[j])
			}
		}
	}
	return a
}
