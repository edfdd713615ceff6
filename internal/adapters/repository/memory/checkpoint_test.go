package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gclflow/gclflow/internal/adapters/repository/savertest"
	"github.com/gclflow/gclflow/internal/core/checkpoint"
)

func TestInMemorySaver_Conformance(t *testing.T) {
	savertest.Run(t, func(t *testing.T) checkpoint.Saver {
		saver := DefaultInMemorySaver()
		t.Cleanup(func() { _ = saver.Close() })
		return saver
	})
}

func TestInMemorySaver_LoadDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	saver := DefaultInMemorySaver()
	key := checkpoint.Key{Model: "m", Dataset: "d", Epoch: 1}

	record := savertest.Record(1)
	_, err := saver.Save(ctx, key, record)
	require.NoError(t, err)
	record.ModelState[0].Data[0] = 1000

	loaded, err := saver.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1.0, loaded.ModelState[0].Data[0])
}

func TestInMemorySaver_Stats(t *testing.T) {
	ctx := context.Background()
	saver := DefaultInMemorySaver()

	_, err := saver.Save(ctx, checkpoint.Key{Model: "m", Dataset: "d", Epoch: 1}, savertest.Record(1))
	require.NoError(t, err)

	stats := saver.GetStats()
	assert.Equal(t, 1, stats.Count)
	assert.Positive(t, stats.SizeBytes)
	assert.Equal(t, int64(1024*1024*1024), stats.MaxBytes)

	require.NoError(t, saver.Delete(ctx, checkpoint.Key{Model: "m", Dataset: "d", Epoch: 1}))
	assert.Equal(t, int64(0), saver.GetStats().SizeBytes)
}

func TestInMemorySaver_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	saver := DefaultInMemorySaver()

	first := checkpoint.Key{Model: "m", Dataset: "d", Epoch: 1}
	second := checkpoint.Key{Model: "m", Dataset: "d", Epoch: 2}
	_, err := saver.Save(ctx, first, savertest.Record(1))
	require.NoError(t, err)
	size := saver.GetStats().SizeBytes

	// room for exactly two records
	saver.maxBytes = 2*size + size/2
	_, err = saver.Save(ctx, second, savertest.Record(2))
	require.NoError(t, err)

	_, err = saver.Load(ctx, first)
	require.NoError(t, err)

	_, err = saver.Save(ctx, checkpoint.Key{Model: "m", Dataset: "d", Epoch: 3}, savertest.Record(3))
	require.NoError(t, err)

	_, err = saver.Load(ctx, first)
	assert.NoError(t, err, "recently loaded record must survive")
	_, err = saver.Load(ctx, second)
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
}

func TestInMemorySaver_RecordLargerThanLimit(t *testing.T) {
	saver := DefaultInMemorySaver()
	saver.maxBytes = 8

	_, err := saver.Save(context.Background(), checkpoint.Key{Model: "m", Dataset: "d"}, savertest.Record(0))
	assert.ErrorIs(t, err, checkpoint.ErrSaveFailed)
}

func TestInMemorySaver_Concurrent(t *testing.T) {
	ctx := context.Background()
	saver := DefaultInMemorySaver()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(epoch int) {
			defer wg.Done()
			key := checkpoint.Key{Model: "m", Dataset: "d", Epoch: epoch}
			_, err := saver.Save(ctx, key, savertest.Record(epoch))
			assert.NoError(t, err)
			_, err = saver.Load(ctx, key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	keys, err := saver.List(ctx, checkpoint.Filter{})
	require.NoError(t, err)
	assert.Len(t, keys, 16)
}
