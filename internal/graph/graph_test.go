package graph

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-scene/internal/geom"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		ID: "snap-test",
		Nodes: []Node{
			{ID: "api", ModulePath: "app/api", Language: "go", Service: "gateway"},
			{ID: "api/auth", ModulePath: "app/api/auth", Language: "go", Service: "gateway",
				Metrics: Metrics{IsCircular: true}},
			{ID: "worker", ModulePath: "app/worker", Language: "python", Service: "jobs",
				Metrics: Metrics{IsHotZone: true, HotZoneSeverity: SeverityCritical}},
			{ID: "lodash", Kind: KindThirdParty, ModulePath: "lodash"},
			{ID: "api", Label: "duplicate"},
		},
		Edges: []Edge{
			{ID: "e1", Source: "api", Target: "api/auth", Weight: 2},
			{ID: "e2", Source: "api/auth", Target: "worker", Weight: 1},
			{Source: "worker", Target: "lodash"},
			{ID: "e4", Source: "worker", Target: "ghost"},
		},
	}
}

func TestIndexLoad(t *testing.T) {
	idx := NewIndex()
	idx.Load(sampleSnapshot())

	assert.Equal(t, "snap-test", idx.SnapshotID())
	assert.Equal(t, 4, idx.NodeCount())
	assert.Equal(t, 4, idx.EdgeCount())

	n, ok := idx.GetNode("api")
	require.True(t, ok)
	assert.Empty(t, n.Label, "first occurrence of a duplicate id wins")

	e, ok := idx.GetEdge("worker->lodash")
	require.True(t, ok, "unnamed edges get a derived id")
	assert.Equal(t, "lodash", e.Target)

	assert.Len(t, idx.GetOutEdges("worker"), 2)
	assert.Len(t, idx.GetInEdges("api/auth"), 1)
	assert.Equal(t, []string{"go", "python"}, idx.Languages())
	assert.Equal(t, []string{"gateway", "jobs"}, idx.Services())

	ids := make([]string, 0)
	for _, n := range idx.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"api", "api/auth", "worker", "lodash"}, ids)
}

func TestIndexStats(t *testing.T) {
	idx := NewIndex()
	idx.Load(sampleSnapshot())

	st := idx.Stats()
	assert.Equal(t, 4, st.TotalNodes)
	assert.Equal(t, 1, st.DanglingEdges)
	assert.Equal(t, 1, st.ThirdPartyNodes)
	assert.Equal(t, 2, st.NodesByLanguage["go"])
	assert.Equal(t, 1, st.StatusCounts["circular"])
	assert.Equal(t, 1, st.StatusCounts["hotZone"])
}

func TestIndexReloadReplaces(t *testing.T) {
	idx := NewIndex()
	idx.Load(sampleSnapshot())
	idx.Load(&Snapshot{ID: "other", Nodes: []Node{{ID: "solo"}}})

	assert.Equal(t, 1, idx.NodeCount())
	assert.Equal(t, 0, idx.EdgeCount())
	_, ok := idx.GetNode("api")
	assert.False(t, ok)
}

func TestInModule(t *testing.T) {
	tests := []struct {
		path   string
		module string
		want   bool
	}{
		{"app/api", "app/api", true},
		{"app/api/auth", "app/api", true},
		{"app.api.auth", "app.api", true},
		{"app/apix", "app/api", false},
		{"app", "app/api", false},
		{"", "app", false},
		{"app", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path+"|"+tt.module, func(t *testing.T) {
			assert.Equal(t, tt.want, InModule(&Node{ModulePath: tt.path}, tt.module))
		})
	}
}

func TestSnapshotNormalize(t *testing.T) {
	snap := sampleSnapshot()
	snap.ID = ""
	snap.Nodes = append(snap.Nodes, Node{ID: "bad", Position: geom.V(math.NaN(), 0, 0)})

	rep, err := snap.Normalize()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(snap.ID, SnapshotIDPrefix))
	assert.False(t, snap.CreatedAt.IsZero())
	assert.Equal(t, []string{"api"}, rep.DuplicateNodes)
	assert.Equal(t, []string{"e4"}, rep.DanglingEdges)
	assert.Equal(t, []string{"bad"}, rep.NonFinite)
	assert.Len(t, snap.Nodes, 5)
	assert.Equal(t, KindInternal, snap.Nodes[0].Kind)
	assert.Equal(t, "worker->lodash", snap.Edges[2].ID)
	assert.True(t, snap.Nodes[4].Position.IsZero())
}

func TestNewSnapshotIDUnique(t *testing.T) {
	a, err := NewSnapshotID()
	require.NoError(t, err)
	b, err := NewSnapshotID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len(SnapshotIDPrefix)+snapshotIDLength)
}

func TestModifierSet(t *testing.T) {
	set := Modifiers{AddedNodes: []string{"a"}, RemovedEdges: []string{"e"}}.Set()
	assert.True(t, set.NodeAdded("a"))
	assert.True(t, set.NodeMarked("a"))
	assert.False(t, set.NodeRemoved("a"))
	assert.True(t, set.EdgeRemoved("e"))
	assert.False(t, ModifierSet{}.EdgeAdded("e"))
}
