package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	k := Key{Model: "MVGRL", Dataset: "Cora", Epoch: 49}
	assert.Equal(t, "MVGRL_Cora_epoch49", k.ID())
	assert.Equal(t, "MVGRL_Cora_epoch49.tar", k.FileName())
	assert.NoError(t, k.Validate())
}

func TestKey_Validate(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		wantErr error
	}{
		{"empty model", Key{Dataset: "Cora"}, ErrInvalidModel},
		{"path in model", Key{Model: "../x", Dataset: "Cora"}, ErrInvalidModel},
		{"slash in dataset", Key{Model: "m", Dataset: "a/b"}, ErrInvalidDataset},
		{"negative epoch", Key{Model: "m", Dataset: "d", Epoch: -1}, ErrInvalidEpoch},
		{"underscore in model", Key{Model: "a_b", Dataset: "c"}, ErrInvalidModel},
		{"underscore in dataset", Key{Model: "a", Dataset: "b_c"}, ErrInvalidDataset},
		{"dotted names", Key{Model: "gcl.v2", Dataset: "ogbn-arxiv"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRecord_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Record{}).Validate(), ErrEmptyRecord)
}

func TestFilter(t *testing.T) {
	f := Filter{Model: "m"}
	assert.NoError(t, f.Validate())
	assert.True(t, f.Matches(Key{Model: "m", Dataset: "x"}))
	assert.False(t, f.Matches(Key{Model: "n", Dataset: "x"}))

	f = Filter{Limit: -1}
	assert.ErrorIs(t, f.Validate(), ErrInvalidLimit)
}

func TestSortKeys(t *testing.T) {
	keys := []Key{
		{Model: "m", Dataset: "b", Epoch: 1},
		{Model: "m", Dataset: "a", Epoch: 99},
		{Model: "m", Dataset: "a", Epoch: 9},
		{Model: "a", Dataset: "z", Epoch: 0},
	}
	got := SortKeys(keys, 0)
	assert.Equal(t, []Key{
		{Model: "a", Dataset: "z", Epoch: 0},
		{Model: "m", Dataset: "a", Epoch: 9},
		{Model: "m", Dataset: "a", Epoch: 99},
		{Model: "m", Dataset: "b", Epoch: 1},
	}, got)

	assert.Len(t, SortKeys(got, 2), 2)
}
