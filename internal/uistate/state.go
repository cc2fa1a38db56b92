// Package uistate is the per-view UI state container: selection, hover,
// filters, visual modifiers and the hot-zone suppression flag.
//
// The interaction layer writes selection and hover into it through the
// interaction.Sink methods; renderers read a consistent View from it each
// tick. Every change bumps Version so the scene can skip unchanged frames.
package uistate

import (
	"sync"

	"github.com/vyuha/vyuha-scene/internal/graph"
	"github.com/vyuha/vyuha-scene/internal/render"
)

// EventKind names a selection change.
type EventKind string

const (
	EventNodeSelected EventKind = "node_selected"
	EventEdgeSelected EventKind = "edge_selected"
	EventNodeHovered  EventKind = "node_hovered"
)

// Event is delivered to listeners after a change.
type Event struct {
	Kind EventKind `json:"kind"`
	ID   string    `json:"id"`
}

// Listener observes selection changes. It is called without locks held.
type Listener func(Event)

// State holds one view's UI state.
//
// All public methods are goroutine-safe.
type State struct {
	mu           sync.RWMutex
	selectedNode string
	selectedEdge string
	hovered      string
	filters      graph.Filters
	modifiers    graph.Modifiers
	modSet       graph.ModifierSet
	suppressHot  bool
	version      uint64
	listeners    []Listener
}

// New returns an empty state.
func New() *State {
	return &State{}
}

// Subscribe registers l for selection and hover events.
func (s *State) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// ============================ SELECTION ==================================

// SelectNode sets the selected node ("" clears it).
func (s *State) SelectNode(id string) {
	s.setAndNotify(&s.selectedNode, id, EventNodeSelected)
}

// SelectEdge sets the selected edge ("" clears it).
func (s *State) SelectEdge(id string) {
	s.setAndNotify(&s.selectedEdge, id, EventEdgeSelected)
}

// HoverNode sets the hovered node ("" clears it).
func (s *State) HoverNode(id string) {
	s.setAndNotify(&s.hovered, id, EventNodeHovered)
}

func (s *State) setAndNotify(field *string, id string, kind EventKind) {
	s.mu.Lock()
	if *field == id {
		s.mu.Unlock()
		return
	}
	*field = id
	s.version++
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	ev := Event{Kind: kind, ID: id}
	for _, l := range listeners {
		l(ev)
	}
}

// SelectedNode returns the selected node id.
func (s *State) SelectedNode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedNode
}

// SelectedEdge returns the selected edge id.
func (s *State) SelectedEdge() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedEdge
}

// Hovered returns the hovered node id.
func (s *State) Hovered() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hovered
}

// ClearSelection drops selection and hover, e.g. when a new snapshot loads.
// Listeners get an empty-id event for every field that was set.
func (s *State) ClearSelection() {
	s.mu.Lock()
	var cleared []Event
	for _, f := range []struct {
		field *string
		kind  EventKind
	}{
		{&s.selectedNode, EventNodeSelected},
		{&s.selectedEdge, EventEdgeSelected},
		{&s.hovered, EventNodeHovered},
	} {
		if *f.field != "" {
			*f.field = ""
			cleared = append(cleared, Event{Kind: f.kind})
		}
	}
	s.version++
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, ev := range cleared {
		for _, l := range listeners {
			l(ev)
		}
	}
}

// ========================= FILTERS & MODIFIERS ===========================

// SetFilters replaces the active filters.
func (s *State) SetFilters(f graph.Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = f.Clone()
	s.version++
}

// Filters returns a copy of the active filters.
func (s *State) Filters() graph.Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters.Clone()
}

// SetModifiers replaces the visual modifiers.
func (s *State) SetModifiers(m graph.Modifiers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modifiers = m
	s.modSet = m.Set()
	s.version++
}

// Modifiers returns the visual modifiers.
func (s *State) Modifiers() graph.Modifiers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modifiers
}

// SetSuppressHot toggles the impact-analysis suppression of hot-zone rings.
func (s *State) SetSuppressHot(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suppressHot == on {
		return
	}
	s.suppressHot = on
	s.version++
}

// ============================== READERS ==================================

// Version increases on every change.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// View returns a consistent read-only view for one render tick.
func (s *State) View() render.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return render.View{
		Filters:      s.filters,
		Modifiers:    s.modSet,
		SelectedNode: s.selectedNode,
		SelectedEdge: s.selectedEdge,
		HoveredNode:  s.hovered,
		SuppressHot:  s.suppressHot,
	}
}
