package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gclflow/gclflow/internal/adapters/repository/savertest"
	"github.com/gclflow/gclflow/internal/core/checkpoint"
)

func TestFileCheckpointSaver_Conformance(t *testing.T) {
	savertest.Run(t, func(t *testing.T) checkpoint.Saver {
		return NewCheckpointSaver(filepath.Join(t.TempDir(), "model_cache"), nil)
	})
}

func TestFileCheckpointSaver_Path(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache", "exp", "model_cache")
	saver := NewCheckpointSaver(dir, nil)
	key := checkpoint.Key{Model: "MVGRL", Dataset: "Cora", Epoch: 49}

	path, err := saver.Save(context.Background(), key, savertest.Record(49))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "MVGRL_Cora_epoch49.tar"), path)
	assert.FileExists(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileCheckpointSaver_ByteIdenticalSaves(t *testing.T) {
	dir := t.TempDir()
	saver := NewCheckpointSaver(dir, nil)
	ctx := context.Background()

	first, err := saver.Save(ctx, checkpoint.Key{Model: "m", Dataset: "d", Epoch: 1}, savertest.Record(7))
	require.NoError(t, err)
	a, err := os.ReadFile(first)
	require.NoError(t, err)

	second, err := saver.Save(ctx, checkpoint.Key{Model: "m", Dataset: "d", Epoch: 1}, savertest.Record(7))
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, bytes.Equal(a, b))
}

func TestFileCheckpointSaver_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	saver := NewCheckpointSaver(dir, nil)
	ctx := context.Background()

	_, err := saver.Save(ctx, checkpoint.Key{Model: "MVGRL", Dataset: "ogbn-arxiv", Epoch: 2}, savertest.Record(2))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MVGRL_Cora_epochX.tar"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	keys, err := saver.List(ctx, checkpoint.Filter{Model: "MVGRL", Dataset: "ogbn-arxiv"})
	require.NoError(t, err)
	assert.Equal(t, []checkpoint.Key{{Model: "MVGRL", Dataset: "ogbn-arxiv", Epoch: 2}}, keys)

	all, err := saver.List(ctx, checkpoint.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []checkpoint.Key{{Model: "MVGRL", Dataset: "ogbn-arxiv", Epoch: 2}}, all)
}

func TestFileCheckpointSaver_MissingDir(t *testing.T) {
	saver := NewCheckpointSaver(filepath.Join(t.TempDir(), "absent"), nil)

	keys, err := saver.List(context.Background(), checkpoint.Filter{})
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = saver.Load(context.Background(), checkpoint.Key{Model: "m", Dataset: "d"})
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}

func TestFileCheckpointSaver_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	saver := NewCheckpointSaver(dir, nil)
	key := checkpoint.Key{Model: "m", Dataset: "d", Epoch: 0}
	require.NoError(t, os.WriteFile(saver.Path(key), []byte("garbage"), 0o644))

	_, err := saver.Load(context.Background(), key)
	require.Error(t, err)
	assert.NotErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}

func TestFileCheckpointSaver_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	saver := NewCheckpointSaver(t.TempDir(), nil)

	_, err := saver.Save(ctx, checkpoint.Key{Model: "m", Dataset: "d"}, savertest.Record(0))
	assert.ErrorIs(t, err, context.Canceled)
}
