package interaction

import (
	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// DefaultMaxNodes bounds the number of pickable nodes.
const DefaultMaxNodes = 5000

// DefaultHitRadius is the radius of the invisible pick sphere around each
// node. It is larger than any rendered node scale.
const DefaultHitRadius = 3.0

// Resolver supplies a node's live position.
type Resolver interface {
	Resolve(n *graph.Node) geom.Vec3
}

// HitIndex is the bidirectional mapping between pick slots and node ids.
// It is rebuilt whenever the node set changes; slot order is not identity
// across rebuilds.
type HitIndex struct {
	max    int
	radius float64
	slots  []*graph.Node
	byID   map[string]int
}

// NewHitIndex returns an empty index holding at most capacity nodes.
func NewHitIndex(capacity int, radius float64) *HitIndex {
	if capacity <= 0 {
		capacity = DefaultMaxNodes
	}
	if radius <= 0 {
		radius = DefaultHitRadius
	}
	return &HitIndex{max: capacity, radius: radius, byID: make(map[string]int)}
}

// Rebuild replaces the slots with nodes in order. Nodes beyond capacity are
// not represented; their count is returned.
func (h *HitIndex) Rebuild(nodes []*graph.Node) (overflow int) {
	n := len(nodes)
	if n > h.max {
		overflow = n - h.max
		n = h.max
	}
	h.slots = make([]*graph.Node, 0, n)
	h.byID = make(map[string]int, n)
	for _, node := range nodes[:n] {
		if _, dup := h.byID[node.ID]; dup {
			continue
		}
		h.byID[node.ID] = len(h.slots)
		h.slots = append(h.slots, node)
	}
	return overflow
}

// Node returns the node in slot.
func (h *HitIndex) Node(slot int) (*graph.Node, bool) {
	if slot < 0 || slot >= len(h.slots) {
		return nil, false
	}
	return h.slots[slot], true
}

// Slot returns the slot holding id.
func (h *HitIndex) Slot(id string) (int, bool) {
	s, ok := h.byID[id]
	return s, ok
}

// Lookup returns the node with id if it is pickable.
func (h *HitIndex) Lookup(id string) (*graph.Node, bool) {
	s, ok := h.byID[id]
	if !ok {
		return nil, false
	}
	return h.slots[s], true
}

// Nodes returns the pickable nodes in slot order.
func (h *HitIndex) Nodes() []*graph.Node {
	return append([]*graph.Node(nil), h.slots...)
}

// Len returns the number of pickable nodes.
func (h *HitIndex) Len() int { return len(h.slots) }

// Cap returns the capacity.
func (h *HitIndex) Cap() int { return h.max }

// Radius returns the pick sphere radius.
func (h *HitIndex) Radius() float64 { return h.radius }

// Pick returns the slot whose pick sphere r hits first.
func (h *HitIndex) Pick(r geom.Ray, pos Resolver) (slot int, dist float64, ok bool) {
	slot = -1
	for i, n := range h.slots {
		d, hit := r.IntersectSphere(pos.Resolve(n), h.radius)
		if !hit {
			continue
		}
		if !ok || d < dist {
			slot, dist, ok = i, d, true
		}
	}
	return slot, dist, ok
}
