// Package position holds the live location of every node in a loaded graph.
//
// A Store is the single source of truth for where a node is right now. The
// layout engine and the drag handler write to it, and every renderer reads
// it on every frame. Callers share one *Store; it is never copied.
package position

import (
	"sync"

	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// Store maps node ids to positions.
//
// All public methods are goroutine-safe. Version increases on every
// accepted write so frame producers can skip unchanged ticks.
type Store struct {
	mu        sync.RWMutex
	positions map[string]geom.Vec3
	version   uint64
	rejected  uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{positions: make(map[string]geom.Vec3)}
}

// Get returns the stored position for id.
func (s *Store) Get(id string) (geom.Vec3, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	return p, ok
}

// Set records a position. Writes with a NaN or infinite component are
// dropped and counted.
func (s *Store) Set(id string, x, y, z float64) {
	s.SetVec(id, geom.V(x, y, z))
}

// SetVec is Set for a vector.
func (s *Store) SetVec(id string, p geom.Vec3) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !p.IsFinite() {
		s.rejected++
		return false
	}
	s.positions[id] = p
	s.version++
	return true
}

// SetAll writes many positions under a single version bump. Non-finite
// entries are skipped. It returns the number written.
func (s *Store) SetAll(ps map[string]geom.Vec3) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range ps {
		if !p.IsFinite() {
			s.rejected++
			continue
		}
		s.positions[id] = p
		n++
	}
	if n > 0 {
		s.version++
	}
	return n
}

// Resolve returns the live position of n, falling back to the node's
// embedded position when the store has no entry yet.
func (s *Store) Resolve(n *graph.Node) geom.Vec3 {
	if p, ok := s.Get(n.ID); ok {
		return p
	}
	return n.Position
}

// Seed fills entries for nodes that have none, from their embedded
// positions. Existing entries are kept.
func (s *Store) Seed(nodes []*graph.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, n := range nodes {
		if _, ok := s.positions[n.ID]; ok {
			continue
		}
		if !n.Position.IsFinite() {
			s.rejected++
			continue
		}
		s.positions[n.ID] = n.Position
		changed = true
	}
	if changed {
		s.version++
	}
}

// Positions returns a copy of every entry.
func (s *Store) Positions() map[string]geom.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]geom.Vec3, len(s.positions))
	for id, p := range s.positions {
		out[id] = p
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Version returns the write counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Rejected returns how many non-finite writes were dropped.
func (s *Store) Rejected() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rejected
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = make(map[string]geom.Vec3)
	s.version++
}
