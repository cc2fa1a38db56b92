package layout

import (
	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// Originals is the retained position of every node as first loaded.
type Originals map[string]geom.Vec3

// CaptureOriginals records the embedded positions of nodes.
func CaptureOriginals(nodes []*graph.Node) Originals {
	out := make(Originals, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n.Position
	}
	return out
}

// Reset returns each node's original position, falling back to the node's
// own embedded position when the originals lack it.
func Reset(nodes []*graph.Node, originals Originals) Result {
	out := make(Result, len(nodes))
	for _, n := range nodes {
		if p, ok := originals[n.ID]; ok {
			out[n.ID] = p
			continue
		}
		out[n.ID] = n.Position
	}
	return out
}
