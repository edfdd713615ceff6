package dataset

import (
	"fmt"
	"math/rand/v2"

	"github.com/gclflow/gclflow/internal/core/graph"
)

// SyntheticConfig describes a stochastic block graph with class-dependent
// Gaussian features.
type SyntheticConfig struct {
	Name      string
	Nodes     int
	Features  int
	Classes   int
	Degree    int     // edges drawn per node
	Homophily float64 // probability an edge stays inside the class
	Noise     float64 // feature standard deviation around the class centre
	Seed      uint64
}

// Synthetic builds a labelled graph. The same config always yields the
// same graph.
func Synthetic(cfg SyntheticConfig) (*graph.Graph, error) {
	if cfg.Nodes < 2 || cfg.Features < 1 || cfg.Classes < 1 || cfg.Classes > cfg.Nodes {
		return nil, fmt.Errorf("%w: nodes=%d features=%d classes=%d",
			ErrInvalidSynthetic, cfg.Nodes, cfg.Features, cfg.Classes)
	}
	if cfg.Homophily < 0 || cfg.Homophily > 1 {
		return nil, fmt.Errorf("%w: homophily %v", ErrInvalidSynthetic, cfg.Homophily)
	}
	name := cfg.Name
	if name == "" {
		name = "synthetic"
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	centres := make([][]float64, cfg.Classes)
	for c := range centres {
		centres[c] = make([]float64, cfg.Features)
		for j := range centres[c] {
			centres[c][j] = rng.Float64()*2 - 1
		}
	}

	g := &graph.Graph{
		Name:     name,
		Features: make([][]float64, cfg.Nodes),
		Labels:   make([]int, cfg.Nodes),
	}
	byClass := make([][]int, cfg.Classes)
	for i := 0; i < cfg.Nodes; i++ {
		// round-robin keeps every class populated
		y := i % cfg.Classes
		g.Labels[i] = y
		byClass[y] = append(byClass[y], i)
		row := make([]float64, cfg.Features)
		for j := range row {
			row[j] = centres[y][j] + rng.NormFloat64()*cfg.Noise
		}
		g.Features[i] = row
	}

	seen := make(map[[2]int]struct{})
	for i := 0; i < cfg.Nodes; i++ {
		for d := 0; d < cfg.Degree; d++ {
			var j int
			if rng.Float64() < cfg.Homophily {
				peers := byClass[g.Labels[i]]
				j = peers[rng.IntN(len(peers))]
			} else {
				j = rng.IntN(cfg.Nodes)
			}
			if i == j {
				continue
			}
			a, b := min(i, j), max(i, j)
			if _, dup := seen[[2]int{a, b}]; dup {
				continue
			}
			seen[[2]int{a, b}] = struct{}{}
			g.Edges = append(g.Edges, graph.Edge{Source: a, Target: b})
		}
	}
	return g, nil
}
