package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

func openTest(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "scene.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot(id string, created time.Time) *graph.Snapshot {
	return &graph.Snapshot{
		ID:        id,
		Label:     "main@" + id,
		CommitSHA: "c-" + id,
		CreatedAt: created,
		Nodes: []graph.Node{
			{
				ID: "api", Label: "api", Kind: graph.KindInternal, ModulePath: "svc/api",
				Position: geom.V(1, 2, 3), Language: "go", Service: "gateway",
				Metrics: graph.Metrics{
					AfferentCoupling: 4, EfferentCoupling: 2, IsHotZone: true,
					HotZoneSeverity: graph.SeverityCritical,
				},
			},
			{ID: "lodash", Kind: graph.KindThirdParty, Color: "#ff00ff"},
		},
		Edges: []graph.Edge{
			{ID: "e1", Source: "api", Target: "lodash", Imports: []string{"map", "filter"}, Weight: 2},
			{ID: "e2", Source: "api", Target: "missing"},
		},
	}
}

func TestMigrationsApplied(t *testing.T) {
	s := openTest(t)
	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot("s1", time.Now())))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.GetSnapshot(ctx, "s1")
	assert.NoError(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot("s1", created)))

	got, err := s.GetSnapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "main@s1", got.Label)
	assert.Equal(t, "c-s1", got.CommitSHA)
	assert.True(t, created.Equal(got.CreatedAt))

	require.Len(t, got.Nodes, 2)
	assert.Equal(t, []string{"api", "lodash"}, got.NodeIDs())
	api := got.Nodes[0]
	assert.Equal(t, geom.V(1, 2, 3), api.Position)
	assert.Equal(t, "svc/api", api.ModulePath)
	assert.Equal(t, 4, api.Metrics.AfferentCoupling)
	assert.True(t, api.IsCriticalHotZone())
	assert.True(t, got.Nodes[1].IsThirdParty())
	assert.Equal(t, "#ff00ff", got.Nodes[1].Color)

	require.Len(t, got.Edges, 2)
	assert.Equal(t, []string{"map", "filter"}, got.Edges[0].Imports)
	assert.Equal(t, 2.0, got.Edges[0].Weight)
	assert.Nil(t, got.Edges[1].Imports)
	assert.Equal(t, "missing", got.Edges[1].Target, "dangling edges are stored as-is")
}

func TestSaveSnapshotReplaces(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot("s1", time.Now())))

	smaller := &graph.Snapshot{ID: "s1", Nodes: []graph.Node{{ID: "only"}}}
	require.NoError(t, s.SaveSnapshot(ctx, smaller))

	got, err := s.GetSnapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, got.NodeIDs())
	assert.Empty(t, got.Edges)
}

func TestSaveSnapshotAssignsID(t *testing.T) {
	s := openTest(t)
	snap := &graph.Snapshot{Nodes: []graph.Node{{ID: "a"}, {ID: "a"}}}
	require.NoError(t, s.SaveSnapshot(context.Background(), snap))

	assert.Contains(t, snap.ID, graph.SnapshotIDPrefix)
	got, err := s.GetSnapshot(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 1, "duplicate node ids collapse")
}

func TestGetSnapshotNotFound(t *testing.T) {
	s := openTest(t)
	_, err := s.GetSnapshot(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	_, err = s.GetSnapshotByCommit(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	_, err = s.LatestSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestListAndDelete(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot(id, base.Add(time.Duration(i)*time.Hour))))
	}

	all, err := s.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "s3", all[0].ID, "newest first")
	assert.Equal(t, 2, all[0].NodeCount)
	assert.Equal(t, 2, all[0].EdgeCount)

	two, err := s.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3", latest.ID)

	byCommit, err := s.GetSnapshotByCommit(ctx, "c-s2")
	require.NoError(t, err)
	assert.Equal(t, "s2", byCommit.ID)

	require.NoError(t, s.DeleteSnapshot(ctx, "s2"))
	assert.ErrorIs(t, s.DeleteSnapshot(ctx, "s2"), ErrSnapshotNotFound)

	stats, err := s.GetCatalogStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Snapshots)
	assert.Equal(t, 4, stats.TotalNodes)
	assert.True(t, base.Equal(stats.Oldest))
	assert.True(t, base.Add(2*time.Hour).Equal(stats.Newest))
}
