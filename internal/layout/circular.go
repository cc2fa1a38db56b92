package layout

import (
	"math"

	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// DefaultRadius is the circle radius used when none is configured.
const DefaultRadius = 70.0

// Circular places nodes evenly on a horizontal circle of the given radius
// centred on the origin, in input order. The output depends only on the
// node order and count.
func Circular(nodes []*graph.Node, radius float64) Result {
	out := make(Result, len(nodes))
	if len(nodes) == 0 {
		return out
	}
	if radius <= 0 {
		radius = DefaultRadius
	}

	angleStep := 2 * math.Pi / float64(len(nodes))
	for i, n := range nodes {
		angle := float64(i) * angleStep
		out[n.ID] = geom.V(radius*math.Cos(angle), 0, radius*math.Sin(angle))
	}
	return out
}
