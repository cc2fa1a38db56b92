// Package render derives per-tick visual state from the position store.
//
// Renderers are immediate-mode: every tick they recompute instance
// transforms from the live store and the current view state. The edge
// renderer caches arcs and only recomputes when an endpoint moved. Nothing
// here draws; the resulting Frame is shipped to the client.
package render

import (
	"github.com/vyuha/vyuha-scene/internal/filter"
	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// ---------------------------------------------------------------------------
// Inputs
// ---------------------------------------------------------------------------

// NodeLookup resolves node ids within the loaded snapshot. *graph.Index
// satisfies it.
type NodeLookup interface {
	GetNode(id string) (*graph.Node, bool)
}

// Resolver supplies live positions. *position.Store satisfies it.
type Resolver interface {
	Resolve(n *graph.Node) geom.Vec3
}

// View is the read-only UI state a tick is rendered against.
type View struct {
	Filters      graph.Filters
	Modifiers    graph.ModifierSet
	SelectedNode string
	SelectedEdge string
	HoveredNode  string
	SuppressHot  bool
}

// viewContext is View with the derived per-tick values.
type viewContext struct {
	View
	active         bool
	selectedModule string
}

func (v *viewContext) matches(n *graph.Node) bool {
	return filter.Matches(n, v.Filters, v.active)
}

// belongsToSelection reports whether n is the selected node or lives in its
// module subtree.
func (v *viewContext) belongsToSelection(n *graph.Node) bool {
	if v.SelectedNode == "" {
		return false
	}
	return n.ID == v.SelectedNode || graph.InModule(n, v.selectedModule)
}

// Input is everything one frame is built from.
type Input struct {
	SnapshotID string
	// Nodes in slot order, already truncated to the renderable capacity.
	Nodes     []*graph.Node
	Edges     []*graph.Edge
	Lookup    NodeLookup
	Positions Resolver
	View      View
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

// NodeInstance is one instanced node mesh.
type NodeInstance struct {
	Slot     int       `json:"slot"`
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Position geom.Vec3 `json:"position"`
	Scale    float64   `json:"scale"`
	Color    string    `json:"color"`
	Opacity  float64   `json:"opacity"`
	Selected bool      `json:"selected,omitempty"`
	Hovered  bool      `json:"hovered,omitempty"`
}

// EdgeInstance is one rendered edge: polyline, arrowhead and style.
type EdgeInstance struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Points   []geom.Vec3    `json:"points"`
	Arrow    geom.Arrowhead `json:"arrow"`
	Style    EdgeStyle      `json:"style"`
	Selected bool           `json:"selected,omitempty"`
}

// RingInstance is one status indicator ring.
type RingInstance struct {
	NodeID   string    `json:"node_id"`
	Category Category  `json:"category"`
	Position geom.Vec3 `json:"position"`
	Scale    float64   `json:"scale"`
	Color    string    `json:"color"`
	Opacity  float64   `json:"opacity"`
}

// Frame is the retained scene state for one tick.
type Frame struct {
	Seq        uint64         `json:"seq"`
	SnapshotID string         `json:"snapshot_id"`
	Nodes      []NodeInstance `json:"nodes"`
	Edges      []EdgeInstance `json:"edges"`
	Rings      []RingInstance `json:"rings"`
	// RingOrientation is shared by every ring instance.
	RingOrientation geom.Quaternion `json:"ring_orientation"`
	Cursor          string          `json:"cursor,omitempty"`
	DroppedRings    int             `json:"dropped_rings,omitempty"`
}

// ---------------------------------------------------------------------------
// Renderer
// ---------------------------------------------------------------------------

// Renderer bundles the node, edge and status renderers for one scene. It
// is not goroutine-safe.
type Renderer struct {
	Nodes  *NodeRenderer
	Edges  *EdgeRenderer
	Status *StatusRenderer
	seq    uint64
}

// NewRenderer returns a renderer with default settings and maxRings status
// capacity.
func NewRenderer(maxRings int) *Renderer {
	return &Renderer{
		Nodes:  NewNodeRenderer(),
		Edges:  NewEdgeRenderer(),
		Status: NewStatusRenderer(maxRings),
	}
}

// Frame builds the frame for in.
func (r *Renderer) Frame(in Input) Frame {
	vc := &viewContext{View: in.View, active: filter.Active(in.View.Filters)}
	if in.View.SelectedNode != "" && in.Lookup != nil {
		if n, ok := in.Lookup.GetNode(in.View.SelectedNode); ok {
			vc.selectedModule = n.ModulePath
		}
	}

	r.seq++
	rings, dropped := r.Status.render(in.Nodes, in.Positions, vc)
	f := Frame{
		Seq:             r.seq,
		SnapshotID:      in.SnapshotID,
		Nodes:           r.Nodes.render(in.Nodes, in.Positions, vc),
		Edges:           r.Edges.render(in.Edges, in.Lookup, in.Positions, vc),
		Rings:           rings,
		RingOrientation: RingOrientation,
		DroppedRings:    dropped,
	}
	framesRendered.Inc()
	return f
}

// Reset forgets cached edge geometry, e.g. after a snapshot reload.
func (r *Renderer) Reset() {
	r.Edges.Reset()
}
