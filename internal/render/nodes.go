package render

import "github.com/vyuha/vyuha-scene/internal/graph"

// NodeRenderer computes one instance per node slot.
type NodeRenderer struct {
	BaseScale float64
	MaxScale  float64
}

// NewNodeRenderer returns a renderer with default scaling.
func NewNodeRenderer() *NodeRenderer {
	return &NodeRenderer{BaseScale: 1, MaxScale: 2.5}
}

func (r *NodeRenderer) render(nodes []*graph.Node, pos Resolver, v *viewContext) []NodeInstance {
	out := make([]NodeInstance, len(nodes))
	for i, n := range nodes {
		inst := NodeInstance{
			Slot:     i,
			ID:       n.ID,
			Label:    n.DisplayName(),
			Position: pos.Resolve(n),
			Scale:    r.scale(n),
			Color:    nodeColor(n, v.Modifiers),
			Opacity:  1,
			Selected: n.ID == v.SelectedNode,
			Hovered:  n.ID == v.HoveredNode,
		}
		if !v.matches(n) {
			inst.Opacity = 0.15
		}
		out[i] = inst
	}
	return out
}

// scale grows with total coupling.
func (r *NodeRenderer) scale(n *graph.Node) float64 {
	s := r.BaseScale + float64(n.Metrics.TotalCoupling())*0.05
	if s > r.MaxScale {
		return r.MaxScale
	}
	return s
}

// nodeColor picks override, then modifier, then language, then kind.
func nodeColor(n *graph.Node, mods graph.ModifierSet) string {
	switch {
	case n.Color != "":
		return n.Color
	case mods.NodeRemoved(n.ID):
		return ColorRemoved
	case mods.NodeAdded(n.ID):
		return ColorAdded
	}
	if c, ok := languageColors[n.Language]; ok {
		return c
	}
	if n.IsThirdParty() {
		return ColorThirdPart
	}
	return ColorInternal
}
