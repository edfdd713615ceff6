package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Parameter is a trainable tensor stored row-major with its gradient buffer.
type Parameter struct {
	Name  string
	Shape []int
	Data  []float64
	Grad  []float64
}

// NewParameter allocates a zeroed parameter of the given shape.
func NewParameter(name string, shape ...int) *Parameter {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return &Parameter{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, size),
		Grad:  make([]float64, size),
	}
}

// Size returns the number of scalar entries.
func (p *Parameter) Size() int {
	return len(p.Data)
}

// ZeroGrad clears the gradient buffer.
func (p *Parameter) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// Matrix views the parameter as a matrix sharing Data.
// One-dimensional parameters become a single row.
func (p *Parameter) Matrix() *mat.Dense {
	r, c := p.dims()
	return mat.NewDense(r, c, p.Data)
}

// GradMatrix views the gradient as a matrix sharing Grad.
func (p *Parameter) GradMatrix() *mat.Dense {
	r, c := p.dims()
	return mat.NewDense(r, c, p.Grad)
}

// AccumulateGrad adds g to the gradient buffer.
func (p *Parameter) AccumulateGrad(g mat.Matrix) error {
	r, c := p.dims()
	gr, gc := g.Dims()
	if r != gr || c != gc {
		return fmt.Errorf("%w: %s grad %dx%d, want %dx%d", ErrInvalidShape, p.Name, gr, gc, r, c)
	}
	for i := 0; i < r; i++ {
		row := p.Grad[i*c : (i+1)*c]
		for j := range row {
			row[j] += g.At(i, j)
		}
	}
	return nil
}

func (p *Parameter) dims() (int, int) {
	switch len(p.Shape) {
	case 0:
		return 1, 1
	case 1:
		return 1, p.Shape[0]
	default:
		return p.Shape[0], len(p.Data) / p.Shape[0]
	}
}

// ClipGradNorm rescales all gradients so their joint L2 norm is at most
// maxNorm and returns the norm measured before clipping.
func ClipGradNorm(params []*Parameter, maxNorm float64) float64 {
	var sq float64
	for _, p := range params {
		for _, g := range p.Grad {
			sq += g * g
		}
	}
	total := math.Sqrt(sq)
	coef := maxNorm / (total + 1e-6)
	if coef < 1 {
		for _, p := range params {
			for i := range p.Grad {
				p.Grad[i] *= coef
			}
		}
	}
	return total
}

// CountParameters sums the sizes of params.
func CountParameters(params []*Parameter) int {
	n := 0
	for _, p := range params {
		n += p.Size()
	}
	return n
}
