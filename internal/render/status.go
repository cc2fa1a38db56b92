package render

import (
	"math"

	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// DefaultMaxRings bounds the number of status rings per frame.
const DefaultMaxRings = 2000

// Category is a status indicator kind.
type Category string

const (
	CategoryHotCritical  Category = "hot_critical"
	CategoryHotWarning   Category = "hot_warning"
	CategoryCircular     Category = "circular"
	CategoryHighCoupling Category = "high_coupling"
)

var categoryColors = map[Category]string{
	CategoryHotCritical:  ColorHotCritical,
	CategoryHotWarning:   ColorHotWarning,
	CategoryCircular:     ColorCircular,
	CategoryHighCoupling: ColorHighCoupling,
}

// RingOrientation lays the shared ring geometry flat in the horizontal
// plane.
var RingOrientation = geom.QuaternionFromAxisAngle(geom.V(1, 0, 0), -math.Pi/2)

// Ring appearance.
const (
	ringScale         = 1.0
	ringFilteredScale = 0.6
	ringOpacity       = 0.9
	ringFilteredAlpha = 0.35
	ringDarken        = 0.6
)

// Classify returns the highest-priority status of n. suppressHot disables
// the hot-zone categories only.
func Classify(n *graph.Node, suppressHot bool) (Category, bool) {
	m := n.Metrics
	switch {
	case !suppressHot && n.IsCriticalHotZone():
		return CategoryHotCritical, true
	case !suppressHot && m.IsHotZone:
		return CategoryHotWarning, true
	case m.IsCircular:
		return CategoryCircular, true
	case m.IsHighCoupling:
		return CategoryHighCoupling, true
	}
	return "", false
}

// StatusRenderer places one ring per anomalous node.
type StatusRenderer struct {
	MaxRings int
}

// NewStatusRenderer returns a renderer capped at maxRings.
func NewStatusRenderer(maxRings int) *StatusRenderer {
	if maxRings <= 0 {
		maxRings = DefaultMaxRings
	}
	return &StatusRenderer{MaxRings: maxRings}
}

func (r *StatusRenderer) render(nodes []*graph.Node, pos Resolver, v *viewContext) ([]RingInstance, int) {
	rings := make([]RingInstance, 0)
	dropped := 0
	for _, n := range nodes {
		if n.IsThirdParty() || v.Modifiers.NodeMarked(n.ID) {
			continue
		}
		cat, ok := Classify(n, v.SuppressHot)
		if !ok {
			continue
		}
		if len(rings) >= r.MaxRings {
			dropped++
			continue
		}

		ring := RingInstance{
			NodeID:   n.ID,
			Category: cat,
			Position: pos.Resolve(n),
			Scale:    ringScale,
			Color:    categoryColors[cat],
			Opacity:  ringOpacity,
		}
		if !v.matches(n) {
			ring.Scale = ringFilteredScale
			ring.Color = darken(ring.Color, ringDarken)
			ring.Opacity = ringFilteredAlpha
		}
		rings = append(rings, ring)
	}
	if dropped > 0 {
		ringsDropped.Add(float64(dropped))
	}
	return rings, dropped
}
