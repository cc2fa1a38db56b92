package uistate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vyuha/vyuha-scene/internal/graph"
)

func TestSelectionEvents(t *testing.T) {
	s := New()
	var got []Event
	s.Subscribe(func(ev Event) { got = append(got, ev) })

	s.SelectNode("a")
	s.SelectNode("a")
	s.SelectEdge("e")
	s.HoverNode("b")
	s.SelectNode("")

	assert.Equal(t, []Event{
		{Kind: EventNodeSelected, ID: "a"},
		{Kind: EventEdgeSelected, ID: "e"},
		{Kind: EventNodeHovered, ID: "b"},
		{Kind: EventNodeSelected, ID: ""},
	}, got)
	assert.Equal(t, uint64(4), s.Version(), "repeated selection does not bump the version")
}

func TestViewReflectsState(t *testing.T) {
	s := New()
	s.SelectNode("a")
	s.HoverNode("b")
	s.SetFilters(graph.Filters{Languages: []string{"go"}})
	s.SetModifiers(graph.Modifiers{AddedEdges: []string{"e1"}})
	s.SetSuppressHot(true)

	v := s.View()
	assert.Equal(t, "a", v.SelectedNode)
	assert.Equal(t, "b", v.HoveredNode)
	assert.Equal(t, []string{"go"}, v.Filters.Languages)
	assert.True(t, v.Modifiers.EdgeAdded("e1"))
	assert.True(t, v.SuppressHot)
}

func TestFiltersAreCopied(t *testing.T) {
	s := New()
	langs := []string{"go"}
	s.SetFilters(graph.Filters{Languages: langs})
	langs[0] = "rust"
	assert.Equal(t, []string{"go"}, s.Filters().Languages)
}

func TestClearSelection(t *testing.T) {
	s := New()
	s.SelectNode("a")
	s.SelectEdge("e")
	before := s.Version()

	var got []Event
	s.Subscribe(func(ev Event) { got = append(got, ev) })

	s.ClearSelection()
	assert.Empty(t, s.SelectedNode())
	assert.Empty(t, s.SelectedEdge())
	assert.Greater(t, s.Version(), before)
	assert.Equal(t, []Event{
		{Kind: EventNodeSelected},
		{Kind: EventEdgeSelected},
	}, got, "only fields that were set are reported, hover was not")

	got = nil
	s.ClearSelection()
	assert.Empty(t, got)
}
