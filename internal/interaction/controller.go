// Package interaction turns world-space pointer rays into selection, hover
// and drag-to-reposition.
//
// A Controller is driven from a single goroutine (the owning scene) and holds
// no locks. The only shared state it writes is the position store.
package interaction

import (
	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
	"github.com/vyuha/vyuha-scene/internal/position"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// Sink receives selection and hover changes. It owns that state.
type Sink interface {
	SelectNode(id string)
	SelectEdge(id string)
	HoverNode(id string)
}

// SelectionSource reports the currently selected node id ("" for none).
type SelectionSource interface {
	SelectedNode() string
}

// EdgePicker resolves a ray against the edge hit tubes.
type EdgePicker interface {
	PickEdge(r geom.Ray) (id string, dist float64, ok bool)
}

// MoveFunc is told about every position written during a drag.
type MoveFunc func(id string, x, y, z float64)

// Cursor is the pointer affordance the client should show.
type Cursor string

const (
	CursorDefault  Cursor = "auto"
	CursorPointer  Cursor = "pointer"
	CursorGrabbing Cursor = "grabbing"
)

// Options configures a Controller.
type Options struct {
	MaxNodes  int
	HitRadius float64
}

// ---------------------------------------------------------------------------
// Controller
// ---------------------------------------------------------------------------

type dragState struct {
	id     string
	plane  geom.Plane
	offset geom.Vec3
}

// Controller is the pointer state machine for one scene.
type Controller struct {
	store    *position.Store
	hits     *HitIndex
	sink     Sink
	sel      SelectionSource
	edges    EdgePicker
	onMove   MoveFunc
	drag     *dragState
	hovered  string
	detached bool
}

// NewController builds a controller writing to store and reporting to sink.
func NewController(store *position.Store, sink Sink, sel SelectionSource, opts Options) *Controller {
	return &Controller{
		store: store,
		hits:  NewHitIndex(opts.MaxNodes, opts.HitRadius),
		sink:  sink,
		sel:   sel,
	}
}

// SetEdgePicker installs the edge hit-test used by Click.
func (c *Controller) SetEdgePicker(p EdgePicker) { c.edges = p }

// OnNodeMoved installs the drag callback.
func (c *Controller) OnNodeMoved(fn MoveFunc) { c.onMove = fn }

// HitIndex exposes the slot mapping.
func (c *Controller) HitIndex() *HitIndex { return c.hits }

// Rebuild refreshes the hit index after the node set changed. Any drag on a
// node no longer present is dropped and hover is cleared, so the next move
// over a node reports it afresh. It returns the number of nodes that did not
// fit.
func (c *Controller) Rebuild(nodes []*graph.Node) int {
	overflow := c.hits.Rebuild(nodes)
	if c.drag != nil {
		if _, ok := c.hits.Lookup(c.drag.id); !ok {
			c.drag = nil
		}
	}
	if c.hovered != "" {
		c.hovered = ""
		c.sink.HoverNode("")
	}
	if overflow > 0 {
		hitIndexOverflow.Add(float64(overflow))
	}
	return overflow
}

// pickNode returns the nearest node hit by r.
func (c *Controller) pickNode(r geom.Ray) (*graph.Node, float64, bool) {
	slot, dist, ok := c.hits.Pick(r, c.store)
	if !ok {
		return nil, 0, false
	}
	n, _ := c.hits.Node(slot)
	return n, dist, true
}

// Click selects the nearest node or edge under r. Node and edge selection
// are mutually exclusive. Clicking empty space clears the edge selection.
func (c *Controller) Click(r geom.Ray) {
	if c.detached {
		return
	}
	pointerEvents.WithLabelValues("click").Inc()

	node, nodeDist, nodeHit := c.pickNode(r)
	var (
		edgeID   string
		edgeDist float64
		edgeHit  bool
	)
	if c.edges != nil {
		edgeID, edgeDist, edgeHit = c.edges.PickEdge(r)
	}

	switch {
	case nodeHit && (!edgeHit || nodeDist <= edgeDist):
		c.sink.SelectNode(node.ID)
		c.sink.SelectEdge("")
	case edgeHit:
		c.sink.SelectEdge(edgeID)
		c.sink.SelectNode("")
	default:
		c.sink.SelectEdge("")
	}
}

// PointerDown starts a drag when r hits the currently selected node. It
// reports whether a drag began; on any other target it is a no-op.
func (c *Controller) PointerDown(r geom.Ray) bool {
	if c.detached || c.drag != nil {
		return false
	}
	pointerEvents.WithLabelValues("down").Inc()

	selected := c.sel.SelectedNode()
	if selected == "" {
		return false
	}
	node, _, ok := c.pickNode(r)
	if !ok || node.ID != selected {
		return false
	}

	center := c.store.Resolve(node)
	plane := geom.HorizontalPlane(center)
	hit, ok := r.IntersectPlane(plane)
	if !ok {
		return false
	}
	c.drag = &dragState{
		id:     node.ID,
		plane:  plane,
		offset: center.Sub(hit),
	}
	dragsStarted.Inc()
	return true
}

// PointerMove continues an active drag, or updates hover otherwise. During
// a drag r need not touch the node.
func (c *Controller) PointerMove(r geom.Ray) {
	if c.detached {
		return
	}
	pointerEvents.WithLabelValues("move").Inc()

	if c.drag != nil {
		hit, ok := r.IntersectPlane(c.drag.plane)
		if !ok {
			return
		}
		p := hit.Add(c.drag.offset)
		if !c.store.SetVec(c.drag.id, p) {
			return
		}
		if c.onMove != nil {
			c.onMove(c.drag.id, p.X, p.Y, p.Z)
		}
		return
	}

	id := ""
	if node, _, ok := c.pickNode(r); ok {
		id = node.ID
	}
	if id != c.hovered {
		c.hovered = id
		c.sink.HoverNode(id)
	}
}

// PointerUp ends any drag.
func (c *Controller) PointerUp() {
	if c.detached {
		return
	}
	pointerEvents.WithLabelValues("up").Inc()
	c.drag = nil
}

// Detach cancels any drag and ignores pointer input from then on. It is
// called when the owning scene tears down.
func (c *Controller) Detach() {
	c.drag = nil
	c.detached = true
	if c.hovered != "" {
		c.hovered = ""
		c.sink.HoverNode("")
	}
}

// Dragging reports whether a drag is active.
func (c *Controller) Dragging() bool { return c.drag != nil }

// Hovered returns the hovered node id, or "".
func (c *Controller) Hovered() string { return c.hovered }

// Cursor returns the affordance for the current state.
func (c *Controller) Cursor() Cursor {
	switch {
	case c.drag != nil:
		return CursorGrabbing
	case c.hovered != "":
		return CursorPointer
	}
	return CursorDefault
}
