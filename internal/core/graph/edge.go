// Package graph provides edge definitions
package graph

// Edge is an undirected connection between two node indices.
type Edge struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Weight float64 `json:"weight,omitempty"`
}

// Validate checks the edge against a graph of n nodes.
func (e Edge) Validate(n int) error {
	if e.Source < 0 || e.Source >= n {
		return ErrInvalidSource
	}
	if e.Target < 0 || e.Target >= n {
		return ErrInvalidTarget
	}
	if e.Source == e.Target {
		return ErrSelfLoop
	}
	return nil
}

// Connects reports whether the edge joins a and b in either direction.
func (e Edge) Connects(a, b int) bool {
	return (e.Source == a && e.Target == b) || (e.Source == b && e.Target == a)
}
