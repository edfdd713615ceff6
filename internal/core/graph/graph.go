// Package graph provides the graph data consumed by encoders: a node feature
// matrix, an undirected edge list and optional node labels.
package graph

import (
	"gonum.org/v1/gonum/mat"
)

// Graph is a single attributed graph processed full-batch.
// PRINCIPLES:
// - KISS: plain rows of features, no sparse formats
// - SRP: holds data only, propagation belongs to encoders
type Graph struct {
	Name     string      `json:"name"`
	Features [][]float64 `json:"features"`
	Edges    []Edge      `json:"edges"`
	Labels   []int       `json:"labels,omitempty"`
}

// NumNodes returns the number of nodes (feature rows).
func (g *Graph) NumNodes() int {
	return len(g.Features)
}

// NumFeatures returns the feature dimension, or 0 for an empty graph.
func (g *Graph) NumFeatures() int {
	if len(g.Features) == 0 {
		return 0
	}
	return len(g.Features[0])
}

// NumClasses returns max(label)+1, or 0 when the graph is unlabelled.
func (g *Graph) NumClasses() int {
	classes := 0
	for _, y := range g.Labels {
		if y+1 > classes {
			classes = y + 1
		}
	}
	return classes
}

// Validate ensures the graph can be fed to an encoder.
func (g *Graph) Validate() error {
	n := g.NumNodes()
	if n == 0 {
		return ErrEmptyGraph
	}
	dim := g.NumFeatures()
	if dim == 0 {
		return ErrNoFeatures
	}
	for _, row := range g.Features {
		if len(row) != dim {
			return ErrRaggedFeatures
		}
	}
	for i := range g.Edges {
		if err := g.Edges[i].Validate(n); err != nil {
			return err
		}
	}
	if len(g.Labels) > 0 && len(g.Labels) != n {
		return ErrLabelCount
	}
	for _, y := range g.Labels {
		if y < 0 {
			return ErrInvalidLabel
		}
	}
	return nil
}

// AddEdge appends an undirected edge after bounds and duplicate checks.
func (g *Graph) AddEdge(edge Edge) error {
	if err := edge.Validate(g.NumNodes()); err != nil {
		return err
	}
	for _, e := range g.Edges {
		if e.Connects(edge.Source, edge.Target) {
			return ErrDuplicateEdge
		}
	}
	g.Edges = append(g.Edges, edge)
	return nil
}

// FeatureMatrix copies the features into an n×d dense matrix.
func (g *Graph) FeatureMatrix() *mat.Dense {
	n, d := g.NumNodes(), g.NumFeatures()
	data := make([]float64, 0, n*d)
	for _, row := range g.Features {
		data = append(data, row...)
	}
	return mat.NewDense(n, d, data)
}

// Neighbors returns deduplicated undirected adjacency lists.
func (g *Graph) Neighbors() [][]int {
	n := g.NumNodes()
	seen := make([]map[int]struct{}, n)
	adj := make([][]int, n)
	link := func(a, b int) {
		if seen[a] == nil {
			seen[a] = make(map[int]struct{})
		}
		if _, ok := seen[a][b]; ok {
			return
		}
		seen[a][b] = struct{}{}
		adj[a] = append(adj[a], b)
	}
	for _, e := range g.Edges {
		link(e.Source, e.Target)
		link(e.Target, e.Source)
	}
	return adj
}
