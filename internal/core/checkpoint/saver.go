package checkpoint

import (
	"context"
	"slices"
)

// Saver persists checkpoint records.
// PRINCIPLES:
// - ISP: four methods, all keyed by Key
// - DIP: the executor depends on this, not on a backend
type Saver interface {
	// Save persists a record and returns where it was written
	Save(ctx context.Context, key Key, record *Record) (string, error)

	// Load retrieves a record; ErrCheckpointNotFound when absent
	Load(ctx context.Context, key Key) (*Record, error)

	// List returns stored keys matching the filter, ordered by epoch
	List(ctx context.Context, filter Filter) ([]Key, error)

	// Delete removes a record; ErrCheckpointNotFound when absent
	Delete(ctx context.Context, key Key) error
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Model   string `json:"model,omitempty"`
	Dataset string `json:"dataset,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// Validate ensures filter parameters are valid.
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	return nil
}

// Matches reports whether key passes the filter.
func (f *Filter) Matches(key Key) bool {
	if f.Model != "" && f.Model != key.Model {
		return false
	}
	if f.Dataset != "" && f.Dataset != key.Dataset {
		return false
	}
	return true
}

// SortKeys orders keys by model, dataset, then epoch and applies the limit.
func SortKeys(keys []Key, limit int) []Key {
	slices.SortFunc(keys, func(a, b Key) int {
		if a.Model != b.Model {
			if a.Model < b.Model {
				return -1
			}
			return 1
		}
		if a.Dataset != b.Dataset {
			if a.Dataset < b.Dataset {
				return -1
			}
			return 1
		}
		return a.Epoch - b.Epoch
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
