package probe

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/gclflow/gclflow/internal/app/dto"
	"github.com/gclflow/gclflow/internal/core/model"
	"github.com/gclflow/gclflow/internal/core/optim"
)

// Config controls probe training.
type Config struct {
	Epochs       int
	LR           float64
	WeightDecay  float64
	TestInterval int
	Seed         uint64
}

// DefaultConfig mirrors common linear-probe settings.
func DefaultConfig() Config {
	return Config{Epochs: 500, LR: 0.01, WeightDecay: 0, TestInterval: 20, Seed: 0}
}

// LogisticRegression trains a softmax classifier on the training nodes,
// selects the checkpoint with the best validation micro-F1 and reports its
// test scores.
type LogisticRegression struct {
	cfg Config
}

func NewLogisticRegression(cfg Config) *LogisticRegression {
	if cfg.Epochs < 1 {
		cfg.Epochs = 1
	}
	if cfg.TestInterval < 1 {
		cfg.TestInterval = 1
	}
	return &LogisticRegression{cfg: cfg}
}

// Evaluate fits the probe. Cancellation is checked between epochs.
func (l *LogisticRegression) Evaluate(ctx context.Context, x *mat.Dense, labels []int, split dto.Split) (dto.ProbeResult, error) {
	n, d := x.Dims()
	if len(labels) == 0 {
		return dto.ProbeResult{}, dto.ErrMissingLabels
	}
	if len(labels) != n {
		return dto.ProbeResult{}, fmt.Errorf("%w: %d rows, %d labels", dto.ErrEmbeddingMismatch, n, len(labels))
	}
	if err := split.Validate(n); err != nil {
		return dto.ProbeResult{}, err
	}
	classes := 0
	for _, y := range labels {
		if y < 0 {
			return dto.ProbeResult{}, fmt.Errorf("negative label %d", y)
		}
		classes = max(classes, y+1)
	}

	w := model.NewParameter("probe.weight", d, classes)
	b := model.NewParameter("probe.bias", classes)
	rng := rand.New(rand.NewPCG(l.cfg.Seed, l.cfg.Seed+1))
	limit := math.Sqrt(6 / float64(d+classes))
	for i := range w.Data {
		w.Data[i] = (rng.Float64()*2 - 1) * limit
	}
	opt := optim.NewAdam([]*model.Parameter{w, b}, optim.Hyper{
		LR: l.cfg.LR, WeightDecay: l.cfg.WeightDecay, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8,
	})

	xTrain := rows(x, split.Train)
	yTrain := pick(labels, split.Train)
	selectOn := split.Val
	if len(selectOn) == 0 {
		selectOn = split.Test
	}

	best := dto.ProbeResult{}
	bestVal := -1.0
	for epoch := 0; epoch < l.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return dto.ProbeResult{}, err
		}
		opt.ZeroGrad()
		if err := backward(xTrain, yTrain, w, b); err != nil {
			return dto.ProbeResult{}, err
		}
		opt.Step()

		if (epoch+1)%l.cfg.TestInterval != 0 && epoch+1 != l.cfg.Epochs {
			continue
		}
		val := MicroF1(pick(labels, selectOn), predict(rows(x, selectOn), w, b))
		if val >= bestVal {
			bestVal = val
			yTest := pick(labels, split.Test)
			pred := predict(rows(x, split.Test), w, b)
			best = dto.ProbeResult{MicroF1: MicroF1(yTest, pred), MacroF1: MacroF1(yTest, pred)}
		}
	}
	return best, nil
}

// backward accumulates the mean softmax cross-entropy gradient.
func backward(x *mat.Dense, y []int, w, b *model.Parameter) error {
	m, _ := x.Dims()
	p := logits(x, w, b)
	softmaxRows(p)
	for i := 0; i < m; i++ {
		p.Set(i, y[i], p.At(i, y[i])-1)
	}
	p.Scale(1/float64(m), p)

	var dw mat.Dense
	dw.Mul(x.T(), p)
	if err := w.AccumulateGrad(&dw); err != nil {
		return err
	}

	_, c := p.Dims()
	db := mat.NewDense(1, c, nil)
	for j := 0; j < c; j++ {
		db.Set(0, j, mat.Sum(p.ColView(j)))
	}
	return b.AccumulateGrad(db)
}

func predict(x *mat.Dense, w, b *model.Parameter) []int {
	z := logits(x, w, b)
	r, c := z.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		arg := 0
		for j := 1; j < c; j++ {
			if z.At(i, j) > z.At(i, arg) {
				arg = j
			}
		}
		out[i] = arg
	}
	return out
}

func logits(x *mat.Dense, w, b *model.Parameter) *mat.Dense {
	var z mat.Dense
	z.Mul(x, w.Matrix())
	r, c := z.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			z.Set(i, j, z.At(i, j)+b.Data[j])
		}
	}
	return &z
}

func softmaxRows(z *mat.Dense) {
	r, c := z.Dims()
	for i := 0; i < r; i++ {
		row := z.RawRowView(i)
		peak := row[0]
		for _, v := range row[1:] {
			peak = math.Max(peak, v)
		}
		var sum float64
		for j := 0; j < c; j++ {
			row[j] = math.Exp(row[j] - peak)
			sum += row[j]
		}
		for j := 0; j < c; j++ {
			row[j] /= sum
		}
	}
}

func rows(x *mat.Dense, idx []int) *mat.Dense {
	_, d := x.Dims()
	out := mat.NewDense(len(idx), d, nil)
	for i, r := range idx {
		out.SetRow(i, x.RawRowView(r))
	}
	return out
}

func pick(labels, idx []int) []int {
	out := make([]int, len(idx))
	for i, r := range idx {
		out[i] = labels[r]
	}
	return out
}
