package render

import (
	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// Edge geometry defaults.
const (
	DefaultSegments    = 12
	DefaultArrowOffset = 2.0
	DefaultTubeRadius  = 0.6
	DefaultTolerance   = 0.005
)

type edgeEntry struct {
	src, dst geom.Vec3
	points   []geom.Vec3
	arrow    geom.Arrowhead
	seen     uint64
}

// EdgeStats counts what the last render did.
type EdgeStats struct {
	Recomputed int
	Reused     int
	Skipped    int
	Evicted    int
}

// EdgeRenderer turns edges into arched polylines with arrowheads. Geometry
// is cached per edge id and recomputed only when an endpoint moved by more
// than Tolerance on any axis.
type EdgeRenderer struct {
	Segments    int
	ArrowOffset float64
	TubeRadius  float64
	Tolerance   float64

	cache map[string]*edgeEntry
	tick  uint64
	last  EdgeStats
}

// NewEdgeRenderer returns a renderer with default geometry settings.
func NewEdgeRenderer() *EdgeRenderer {
	return &EdgeRenderer{
		Segments:    DefaultSegments,
		ArrowOffset: DefaultArrowOffset,
		TubeRadius:  DefaultTubeRadius,
		Tolerance:   DefaultTolerance,
		cache:       make(map[string]*edgeEntry),
	}
}

// Stats returns the counters from the most recent render.
func (r *EdgeRenderer) Stats() EdgeStats { return r.last }

// Reset drops every cached entry.
func (r *EdgeRenderer) Reset() {
	r.cache = make(map[string]*edgeEntry)
}

func (r *EdgeRenderer) render(edges []*graph.Edge, nodes NodeLookup, pos Resolver, v *viewContext) []EdgeInstance {
	r.tick++
	var st EdgeStats
	out := make([]EdgeInstance, 0, len(edges))

	for _, e := range edges {
		if nodes == nil {
			st.Skipped++
			continue
		}
		src, okS := nodes.GetNode(e.Source)
		dst, okT := nodes.GetNode(e.Target)
		if !okS || !okT {
			st.Skipped++
			continue
		}
		a, b := pos.Resolve(src), pos.Resolve(dst)

		entry, ok := r.cache[e.ID]
		if ok && entry.src.ApproxEqual(a, r.Tolerance) && entry.dst.ApproxEqual(b, r.Tolerance) {
			st.Reused++
		} else {
			arc := geom.NewArc(a, b)
			entry = &edgeEntry{
				src:    a,
				dst:    b,
				points: arc.Sample(r.Segments),
				arrow:  arc.ArrowheadAt(r.ArrowOffset),
			}
			r.cache[e.ID] = entry
			st.Recomputed++
		}
		entry.seen = r.tick

		out = append(out, EdgeInstance{
			ID:       e.ID,
			Source:   e.Source,
			Target:   e.Target,
			Points:   entry.points,
			Arrow:    entry.arrow,
			Style:    edgeStyle(e, src, dst, v),
			Selected: e.ID == v.SelectedEdge,
		})
	}

	for id, entry := range r.cache {
		if entry.seen != r.tick {
			delete(r.cache, id)
			st.Evicted++
		}
	}

	r.last = st
	edgeGeometry.WithLabelValues("recomputed").Add(float64(st.Recomputed))
	edgeGeometry.WithLabelValues("reused").Add(float64(st.Reused))
	edgeGeometry.WithLabelValues("skipped").Add(float64(st.Skipped))
	return out
}

// edgeStyle applies the style priority: filter mismatch, removed, added,
// override colour, selected-module highlight or dim, default.
func edgeStyle(e *graph.Edge, src, dst *graph.Node, v *viewContext) EdgeStyle {
	switch {
	case v.active && (!v.matches(src) || !v.matches(dst)):
		return EdgeStyle{Tier: TierFiltered, Color: ColorMuted, Opacity: 0.05, Width: 0.5}
	case v.Modifiers.EdgeRemoved(e.ID):
		return EdgeStyle{Tier: TierRemoved, Color: ColorRemoved, Opacity: 1, Width: 2.5}
	case v.Modifiers.EdgeAdded(e.ID):
		return EdgeStyle{Tier: TierAdded, Color: ColorAdded, Opacity: 1, Width: 2.5}
	case e.Color != "":
		return EdgeStyle{Tier: TierOverride, Color: e.Color, Opacity: 0.9, Width: weightWidth(e.Weight)}
	case v.SelectedNode != "":
		if v.belongsToSelection(src) || v.belongsToSelection(dst) {
			return EdgeStyle{Tier: TierModule, Color: ColorModule, Opacity: 0.9, Width: 2}
		}
		return EdgeStyle{Tier: TierDimmed, Color: ColorNeutral, Opacity: 0.08, Width: 0.5}
	}
	return EdgeStyle{Tier: TierDefault, Color: ColorNeutral, Opacity: 0.35, Width: weightWidth(e.Weight)}
}

// PickEdge returns the cached edge whose hit tube r passes through nearest
// the ray origin. Only edges rendered on the last tick are pickable.
func (r *EdgeRenderer) PickEdge(ray geom.Ray) (id string, dist float64, ok bool) {
	for eid, entry := range r.cache {
		for i := 1; i < len(entry.points); i++ {
			d, t := ray.DistanceToSegment(entry.points[i-1], entry.points[i])
			if d > r.TubeRadius {
				continue
			}
			if !ok || t < dist || (t == dist && eid < id) {
				id, dist, ok = eid, t, true
			}
		}
	}
	return id, dist, ok
}
