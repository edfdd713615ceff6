// Package memory provides an in-process checkpoint.Saver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gclflow/gclflow/internal/core/checkpoint"
	"github.com/gclflow/gclflow/pkg/serialization"
)

// InMemorySaver implements checkpoint.Saver on a map of serialized records.
// Records are stored encoded so a loaded record never aliases a saved one.
// PRINCIPLES:
// - KISS: one map, one mutex
// - DIP: implements checkpoint.Saver
type InMemorySaver struct {
	mu          sync.Mutex
	entries     map[checkpoint.Key]*entry
	currentSize int64
	maxBytes    int64
	clock       uint64
	serializer  *serialization.Serializer
}

// InMemoryConfig holds configuration for InMemorySaver
type InMemoryConfig struct {
	MaxMemoryMB int64                     // 0 means 1024
	Serializer  *serialization.Serializer // optional
}

type entry struct {
	data    []byte
	lastUse uint64
}

// MemoryStats reports current usage.
type MemoryStats struct {
	Count     int   `json:"count"`
	SizeBytes int64 `json:"size_bytes"`
	MaxBytes  int64 `json:"max_bytes"`
}

// NewInMemorySaver creates a new in-memory checkpoint saver
func NewInMemorySaver(config InMemoryConfig) *InMemorySaver {
	if config.MaxMemoryMB == 0 {
		config.MaxMemoryMB = 1024
	}
	if config.Serializer == nil {
		config.Serializer = serialization.DefaultSerializer()
	}
	return &InMemorySaver{
		entries:    make(map[checkpoint.Key]*entry),
		maxBytes:   config.MaxMemoryMB * 1024 * 1024,
		serializer: config.Serializer,
	}
}

// DefaultInMemorySaver creates an InMemorySaver with default configuration
func DefaultInMemorySaver() *InMemorySaver {
	return NewInMemorySaver(InMemoryConfig{})
}

// Save stores a record, evicting least recently used records when the
// memory limit would be exceeded.
func (s *InMemorySaver) Save(_ context.Context, key checkpoint.Key, record *checkpoint.Record) (string, error) {
	if err := key.Validate(); err != nil {
		return "", fmt.Errorf("checkpoint key validation failed: %w", err)
	}
	if err := record.Validate(); err != nil {
		return "", fmt.Errorf("checkpoint validation failed: %w", err)
	}

	data, err := s.serializer.Serialize(record)
	if err != nil {
		return "", fmt.Errorf("checkpoint serialization failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[key]; ok {
		s.currentSize -= int64(len(old.data))
		delete(s.entries, key)
	}
	if err := s.makeRoom(int64(len(data))); err != nil {
		return "", err
	}
	s.clock++
	s.entries[key] = &entry{data: data, lastUse: s.clock}
	s.currentSize += int64(len(data))

	return "memory://" + key.FileName(), nil
}

// Load retrieves a record
func (s *InMemorySaver) Load(_ context.Context, key checkpoint.Key) (*checkpoint.Record, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		s.clock++
		e.lastUse = s.clock
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, key.ID())
	}

	var record checkpoint.Record
	if err := s.serializer.Deserialize(e.data, &record); err != nil {
		return nil, fmt.Errorf("checkpoint deserialization failed: %w", err)
	}
	return &record, nil
}

// List returns stored keys matching the filter
func (s *InMemorySaver) List(_ context.Context, filter checkpoint.Filter) ([]checkpoint.Key, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	s.mu.Lock()
	var keys []checkpoint.Key
	for k := range s.entries {
		if filter.Matches(k) {
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()

	return checkpoint.SortKeys(keys, filter.Limit), nil
}

// Delete removes a record
func (s *InMemorySaver) Delete(_ context.Context, key checkpoint.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, key.ID())
	}
	s.currentSize -= int64(len(e.data))
	delete(s.entries, key)
	return nil
}

// GetStats returns memory usage statistics
func (s *InMemorySaver) GetStats() MemoryStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MemoryStats{Count: len(s.entries), SizeBytes: s.currentSize, MaxBytes: s.maxBytes}
}

// Close releases nothing; it exists so all savers share a shutdown path.
func (s *InMemorySaver) Close() error {
	return nil
}

// makeRoom evicts least recently used entries until size fits. Caller holds mu.
func (s *InMemorySaver) makeRoom(size int64) error {
	if size > s.maxBytes {
		return fmt.Errorf("%w: record of %d bytes exceeds memory limit of %d bytes",
			checkpoint.ErrSaveFailed, size, s.maxBytes)
	}
	if s.currentSize+size <= s.maxBytes {
		return nil
	}

	type accessInfo struct {
		key     checkpoint.Key
		lastUse uint64
	}
	items := make([]accessInfo, 0, len(s.entries))
	for k, e := range s.entries {
		items = append(items, accessInfo{key: k, lastUse: e.lastUse})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].lastUse < items[j].lastUse })

	for _, item := range items {
		if s.currentSize+size <= s.maxBytes {
			break
		}
		s.currentSize -= int64(len(s.entries[item.key].data))
		delete(s.entries, item.key)
	}
	return nil
}
