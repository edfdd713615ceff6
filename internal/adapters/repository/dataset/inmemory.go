// Package dataset loads graphs for training: JSON or msgpack graph files,
// a seeded synthetic generator, and an in-memory registry.
package dataset

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gclflow/gclflow/internal/core/graph"
)

// InMemoryRepository keeps validated graphs by name
// PRINCIPLES:
// - KISS: Simple map-based storage
// - SRP: Only responsible for graph lookup
// - Thread-safe
type InMemoryRepository struct {
	mu     sync.RWMutex
	graphs map[string]*graph.Graph
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		graphs: make(map[string]*graph.Graph),
	}
}

// Save validates and stores g under g.Name.
func (r *InMemoryRepository) Save(_ context.Context, g *graph.Graph) error {
	if g == nil || g.Name == "" {
		return graph.ErrInvalidGraphName
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("invalid graph %q: %w", g.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[g.Name] = g
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, name string) (*graph.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrGraphNotFound, name)
	}
	return g, nil
}

// List returns graphs ordered by name.
func (r *InMemoryRepository) List(_ context.Context) ([]*graph.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*graph.Graph, 0, len(r.graphs))
	for _, g := range r.graphs {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
