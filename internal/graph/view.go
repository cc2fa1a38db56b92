package graph

// ---------------------------------------------------------------------------
// Filters
// ---------------------------------------------------------------------------

// Status is a filterable anomaly category.
type Status string

const (
	StatusHotZone      Status = "hotZone"
	StatusCircular     Status = "circular"
	StatusHighCoupling Status = "highCoupling"
)

// ValidStatus reports whether s names a known status category.
func ValidStatus(s Status) bool {
	switch s {
	case StatusHotZone, StatusCircular, StatusHighCoupling:
		return true
	}
	return false
}

// Filters narrows the visible graph. Categories combine with AND; values
// within a category combine with OR. ThirdPartyOnly overrides the rest.
type Filters struct {
	Languages      []string `json:"languages,omitempty"`
	Services       []string `json:"services,omitempty"`
	Statuses       []Status `json:"statuses,omitempty"`
	ThirdPartyOnly bool     `json:"third_party_only,omitempty"`
}

// Empty returns true when no criterion is set.
func (f Filters) Empty() bool {
	return len(f.Languages) == 0 && len(f.Services) == 0 &&
		len(f.Statuses) == 0 && !f.ThirdPartyOnly
}

// Clone returns a deep copy.
func (f Filters) Clone() Filters {
	return Filters{
		Languages:      append([]string(nil), f.Languages...),
		Services:       append([]string(nil), f.Services...),
		Statuses:       append([]Status(nil), f.Statuses...),
		ThirdPartyOnly: f.ThirdPartyOnly,
	}
}

// ---------------------------------------------------------------------------
// Visual modifiers
// ---------------------------------------------------------------------------

// Modifiers marks nodes and edges as added or removed for what-if previews.
type Modifiers struct {
	AddedNodes   []string `json:"added_nodes,omitempty"`
	RemovedNodes []string `json:"removed_nodes,omitempty"`
	AddedEdges   []string `json:"added_edges,omitempty"`
	RemovedEdges []string `json:"removed_edges,omitempty"`
}

// ModifierSet is the lookup form of Modifiers used on the render path.
type ModifierSet struct {
	addedNodes   map[string]struct{}
	removedNodes map[string]struct{}
	addedEdges   map[string]struct{}
	removedEdges map[string]struct{}
}

// Set builds the lookup form.
func (m Modifiers) Set() ModifierSet {
	return ModifierSet{
		addedNodes:   toSet(m.AddedNodes),
		removedNodes: toSet(m.RemovedNodes),
		addedEdges:   toSet(m.AddedEdges),
		removedEdges: toSet(m.RemovedEdges),
	}
}

func (s ModifierSet) NodeAdded(id string) bool   { return has(s.addedNodes, id) }
func (s ModifierSet) NodeRemoved(id string) bool { return has(s.removedNodes, id) }
func (s ModifierSet) EdgeAdded(id string) bool   { return has(s.addedEdges, id) }
func (s ModifierSet) EdgeRemoved(id string) bool { return has(s.removedEdges, id) }

// NodeMarked returns true when the node is either added or removed.
func (s ModifierSet) NodeMarked(id string) bool {
	return s.NodeAdded(id) || s.NodeRemoved(id)
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func has(m map[string]struct{}, id string) bool {
	_, ok := m[id]
	return ok
}
