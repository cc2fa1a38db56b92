// Package layout assigns 3D coordinates to graph nodes.
//
// The algorithms are pure functions over a node list that return a position
// per node id. Engine binds them to a position.Store, keeps the original
// snapshot for reset, and refuses to run while a drag is in progress.
package layout

import (
	"errors"
	"fmt"

	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrDragInProgress is returned when a layout is requested while a node
	// is being dragged.
	ErrDragInProgress = errors.New("layout: drag in progress")

	// ErrUnknownAlgorithm is returned for an unrecognised algorithm name.
	ErrUnknownAlgorithm = errors.New("layout: unknown algorithm")
)

// ---------------------------------------------------------------------------
// Algorithms
// ---------------------------------------------------------------------------

// Algorithm names a layout strategy.
type Algorithm string

const (
	AlgorithmCircular Algorithm = "circular"
	AlgorithmForce    Algorithm = "force"
	AlgorithmReset    Algorithm = "reset"
)

// ParseAlgorithm validates a user-supplied algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case AlgorithmCircular, AlgorithmForce, AlgorithmReset:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// Resolver supplies a node's current position. *position.Store satisfies it.
type Resolver interface {
	Resolve(n *graph.Node) geom.Vec3
}

// embedded resolves to the node's own embedded position.
type embedded struct{}

func (embedded) Resolve(n *graph.Node) geom.Vec3 { return n.Position }

// Embedded is a Resolver that ignores any store.
var Embedded Resolver = embedded{}

// Result maps node id to position.
type Result map[string]geom.Vec3
