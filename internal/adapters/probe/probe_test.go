package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gclflow/gclflow/internal/app/dto"
	"github.com/gclflow/gclflow/internal/core/model"
)

func TestRandomSplit(t *testing.T) {
	split, err := RandomSplit(100, DefaultTrainRatio, DefaultTestRatio, 42)
	require.NoError(t, err)
	assert.Len(t, split.Train, 10)
	assert.Len(t, split.Test, 80)
	assert.Len(t, split.Val, 10)

	seen := make(map[int]bool)
	for _, set := range [][]int{split.Train, split.Test, split.Val} {
		for _, i := range set {
			assert.False(t, seen[i], "index %d assigned twice", i)
			seen[i] = true
		}
	}
	assert.Len(t, seen, 100)

	again, err := RandomSplit(100, DefaultTrainRatio, DefaultTestRatio, 42)
	require.NoError(t, err)
	assert.Equal(t, split, again)
}

func TestRandomSplit_TooSmall(t *testing.T) {
	// int(9 * 0.1) == 0 training nodes
	_, err := RandomSplit(9, DefaultTrainRatio, DefaultTestRatio, 0)
	assert.ErrorIs(t, err, dto.ErrEmptySplit)

	split, err := RandomSplit(10, DefaultTrainRatio, DefaultTestRatio, 0)
	require.NoError(t, err)
	assert.Len(t, split.Train, 1)
	assert.Len(t, split.Test, 8)
	assert.Len(t, split.Val, 1)
}

func TestF1(t *testing.T) {
	yTrue := []int{0, 0, 1, 1}
	yPred := []int{0, 1, 1, 1}

	assert.InDelta(t, 0.75, MicroF1(yTrue, yPred), 1e-12)
	assert.InDelta(t, (2.0/3+0.8)/2, MacroF1(yTrue, yPred), 1e-12)

	// a predicted label absent from yTrue still counts as a class
	assert.InDelta(t, (1.0+0+0)/3, MacroF1([]int{0, 1}, []int{0, 2}), 1e-12)

	assert.Equal(t, 0.0, MicroF1(nil, nil))
	assert.Equal(t, 0.0, MacroF1(nil, nil))
	assert.Equal(t, 1.0, MacroF1([]int{2, 2}, []int{2, 2}))
}

func clusters() (*mat.Dense, []int) {
	const n = 40
	x := mat.NewDense(n, 2, nil)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		y := i % 2
		labels[i] = y
		sign := 1.0
		if y == 1 {
			sign = -1
		}
		x.Set(i, 0, sign*3+float64(i%5)*0.01)
		x.Set(i, 1, float64(i%3)*0.1)
	}
	return x, labels
}

func TestLogisticRegression_SeparableClusters(t *testing.T) {
	x, labels := clusters()
	split := dto.Split{
		Train: []int{0, 1, 2, 3, 4, 5},
		Val:   []int{6, 7, 8, 9},
		Test:  []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23},
	}

	clf := NewLogisticRegression(Config{Epochs: 200, LR: 0.1, TestInterval: 10, Seed: 3})
	res, err := clf.Evaluate(context.Background(), x, labels, split)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.MicroF1)
	assert.Equal(t, 1.0, res.MacroF1)
}

func TestLogisticRegression_NoValidationUsesTest(t *testing.T) {
	x, labels := clusters()
	split := dto.Split{Train: []int{0, 1, 2, 3}, Test: []int{4, 5, 6, 7, 8, 9}}

	res, err := NewLogisticRegression(Config{Epochs: 100, LR: 0.1, TestInterval: 25}).
		Evaluate(context.Background(), x, labels, split)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.MicroF1)
}

func TestLogisticRegression_Errors(t *testing.T) {
	x, labels := clusters()
	clf := NewLogisticRegression(DefaultConfig())
	ctx := context.Background()
	split := dto.Split{Train: []int{0}, Test: []int{1}}

	_, err := clf.Evaluate(ctx, x, nil, split)
	assert.ErrorIs(t, err, dto.ErrMissingLabels)

	_, err = clf.Evaluate(ctx, x, labels[:3], split)
	assert.ErrorIs(t, err, dto.ErrEmbeddingMismatch)

	_, err = clf.Evaluate(ctx, x, labels, dto.Split{Train: []int{0}})
	assert.ErrorIs(t, err, dto.ErrEmptySplit)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = clf.Evaluate(canceled, x, labels, split)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackward_ShapeMismatch(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	y := []int{0, 1}

	tests := []struct {
		name    string
		w, b    *model.Parameter
		wantErr bool
	}{
		{name: "matching shapes", w: model.NewParameter("w", 2, 2), b: model.NewParameter("b", 2)},
		{name: "oversized bias", w: model.NewParameter("w", 2, 2), b: model.NewParameter("b", 3), wantErr: true},
		{name: "two-dimensional bias", w: model.NewParameter("w", 2, 2), b: model.NewParameter("b", 2, 1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := backward(x, y, tt.w, tt.b)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidShape)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, make([]float64, 4), tt.w.Grad)
		})
	}
}
