// Package savertest holds the behaviour every checkpoint.Saver must share.
package savertest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gclflow/gclflow/internal/core/checkpoint"
	"github.com/gclflow/gclflow/internal/core/model"
	"github.com/gclflow/gclflow/internal/core/optim"
)

// Record builds a small record whose values depend on epoch.
func Record(epoch int) *checkpoint.Record {
	f := float64(epoch)
	return &checkpoint.Record{
		ModelState: []model.Tensor{
			{Name: "w_local", Shape: []int{2, 2}, Data: []float64{f, 0.5, -0.25, 1e-9}},
			{Name: "w_global", Shape: []int{2, 2}, Data: []float64{1, 2, 3, f}},
		},
		OptimizerState: optim.State{
			Kind: "adam",
			LR:   0.01,
			Step: epoch + 1,
			Slots: []optim.Slot{
				{Name: "exp_avg", Tensors: [][]float64{{0.1, 0.2, 0.3, 0.4}, {0, 0, 0, f}}},
				{Name: "exp_avg_sq", Tensors: [][]float64{{1, 1, 1, 1}, {2, 2, 2, 2}}},
			},
		},
		Epoch: epoch,
	}
}

// Run exercises a saver created fresh for each subtest.
func Run(t *testing.T, newSaver func(t *testing.T) checkpoint.Saver) {
	ctx := context.Background()

	t.Run("save and load round trip", func(t *testing.T) {
		saver := newSaver(t)
		key := checkpoint.Key{Model: "MVGRL", Dataset: "Cora", Epoch: 49}

		path, err := saver.Save(ctx, key, Record(49))
		require.NoError(t, err)
		assert.Contains(t, path, key.ID())

		loaded, err := saver.Load(ctx, key)
		require.NoError(t, err)
		if diff := cmp.Diff(Record(49), loaded); diff != "" {
			t.Errorf("loaded record mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("load missing epoch", func(t *testing.T) {
		saver := newSaver(t)
		_, err := saver.Load(ctx, checkpoint.Key{Model: "MVGRL", Dataset: "Cora", Epoch: 99})
		assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
	})

	t.Run("save replaces previous record", func(t *testing.T) {
		saver := newSaver(t)
		key := checkpoint.Key{Model: "MVGRL", Dataset: "Cora", Epoch: 3}

		_, err := saver.Save(ctx, key, Record(1))
		require.NoError(t, err)
		_, err = saver.Save(ctx, key, Record(3))
		require.NoError(t, err)

		loaded, err := saver.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 3, loaded.Epoch)
	})

	t.Run("list filters and orders by epoch", func(t *testing.T) {
		saver := newSaver(t)
		for _, k := range []checkpoint.Key{
			{Model: "MVGRL", Dataset: "Cora", Epoch: 99},
			{Model: "MVGRL", Dataset: "Cora", Epoch: 9},
			{Model: "MVGRL", Dataset: "CiteSeer", Epoch: 49},
			{Model: "GRACE", Dataset: "Cora", Epoch: 0},
		} {
			_, err := saver.Save(ctx, k, Record(k.Epoch))
			require.NoError(t, err)
		}

		keys, err := saver.List(ctx, checkpoint.Filter{Model: "MVGRL", Dataset: "Cora"})
		require.NoError(t, err)
		assert.Equal(t, []checkpoint.Key{
			{Model: "MVGRL", Dataset: "Cora", Epoch: 9},
			{Model: "MVGRL", Dataset: "Cora", Epoch: 99},
		}, keys)

		all, err := saver.List(ctx, checkpoint.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 4)

		limited, err := saver.List(ctx, checkpoint.Filter{Model: "MVGRL", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		_, err = saver.List(ctx, checkpoint.Filter{Limit: -1})
		assert.ErrorIs(t, err, checkpoint.ErrInvalidLimit)
	})

	t.Run("delete", func(t *testing.T) {
		saver := newSaver(t)
		key := checkpoint.Key{Model: "MVGRL", Dataset: "Cora", Epoch: 5}
		_, err := saver.Save(ctx, key, Record(5))
		require.NoError(t, err)

		require.NoError(t, saver.Delete(ctx, key))
		_, err = saver.Load(ctx, key)
		assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)

		err = saver.Delete(ctx, key)
		assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		saver := newSaver(t)
		_, err := saver.Save(ctx, checkpoint.Key{Model: "a/b", Dataset: "Cora"}, Record(0))
		assert.ErrorIs(t, err, checkpoint.ErrInvalidModel)

		_, err = saver.Save(ctx, checkpoint.Key{Model: "m", Dataset: "d"}, &checkpoint.Record{})
		assert.ErrorIs(t, err, checkpoint.ErrEmptyRecord)
	})
}
