package graph

import "fmt"

// ---------------------------------------------------------------------------
// Edge
// ---------------------------------------------------------------------------

// Edge is a directed import relationship from Source to Target. An edge
// whose endpoint is not in the current node set is skipped by every
// consumer rather than treated as an error.
type Edge struct {
	ID      string   `json:"id" yaml:"id"`
	Source  string   `json:"source" yaml:"source"`
	Target  string   `json:"target" yaml:"target"`
	Imports []string `json:"imports,omitempty" yaml:"imports,omitempty"`
	Weight  float64  `json:"weight" yaml:"weight"`
	Color   string   `json:"color,omitempty" yaml:"color,omitempty"`
}

// DefaultEdgeID derives an id for an edge that arrived without one.
func DefaultEdgeID(source, target string) string {
	return fmt.Sprintf("%s->%s", source, target)
}

// IsSelfLoop returns true when the edge starts and ends at the same node.
func (e *Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}
