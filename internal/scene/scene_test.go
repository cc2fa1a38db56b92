package scene

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
	"github.com/vyuha/vyuha-scene/internal/layout"
	"github.com/vyuha/vyuha-scene/internal/render"
)

// topDown maps a 200x200 viewport pixel (px, py) onto ground point
// (px-100, 0, py-100).
var topDown = geom.Camera{Position: geom.V(0, 100, 0), Up: geom.V(0, 0, -1), FovY: 90}

func px(x, z float64, typ PointerType) PointerEvent {
	return PointerEvent{Type: typ, X: x + 100, Y: z + 100, Width: 200, Height: 200}
}

type recorder struct {
	mu     sync.Mutex
	frames []render.Frame
	moves  []geom.Vec3
	layout []layout.Algorithm
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnFrame: func(f render.Frame) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.frames = append(r.frames, f)
		},
		OnNodeMoved: func(_, _ string, p geom.Vec3) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.moves = append(r.moves, p)
		},
		OnLayout: func(_ string, alg layout.Algorithm, _ int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.layout = append(r.layout, alg)
		},
	}
}

func (r *recorder) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func start(t *testing.T) (*Scene, *recorder, context.CancelFunc) {
	t.Helper()
	return startWith(t, Options{})
}

func startWith(t *testing.T, opts Options) (*Scene, *recorder, context.CancelFunc) {
	t.Helper()
	rec := &recorder{}
	opts.FrameRate = 200
	opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	s := New(opts, rec.hooks())

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})

	require.NoError(t, s.SetCamera(ctx, topDown))
	require.NoError(t, s.Load(ctx, &graph.Snapshot{
		ID: "snap-scene",
		Nodes: []graph.Node{
			{ID: "a", Position: geom.V(5, 0, 5), Metrics: graph.Metrics{IsCircular: true}},
			{ID: "b", Position: geom.V(-20, 0, -20)},
		},
		Edges: []graph.Edge{
			{ID: "ab", Source: "a", Target: "b"},
			{ID: "dangling", Source: "a", Target: "gone"},
		},
	}))
	return s, rec, cancel
}

func TestSceneLoadEmitsFrame(t *testing.T) {
	s, rec, _ := start(t)

	require.Eventually(t, func() bool { return rec.frameCount() > 0 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	f := rec.frames[len(rec.frames)-1]
	rec.mu.Unlock()
	assert.Equal(t, "snap-scene", f.SnapshotID)
	assert.Len(t, f.Nodes, 2)
	assert.Len(t, f.Edges, 1)
	assert.Len(t, f.Rings, 1)
	assert.Equal(t, 2, s.Store().Len())
}

func TestSceneSkipsUnchangedFrames(t *testing.T) {
	_, rec, _ := start(t)
	require.Eventually(t, func() bool { return rec.frameCount() > 0 }, time.Second, 5*time.Millisecond)

	n := rec.frameCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, rec.frameCount(), "no frames while nothing changes")
}

func TestSceneDragAndLayoutGuard(t *testing.T) {
	s, rec, _ := start(t)
	ctx := context.Background()

	require.NoError(t, s.Pointer(ctx, px(5, 5, PointerClick)))
	assert.Equal(t, "a", s.UI().SelectedNode())

	require.NoError(t, s.Pointer(ctx, px(6, 5, PointerDown)))
	dragging, err := s.Dragging(ctx)
	require.NoError(t, err)
	require.True(t, dragging)

	require.NoError(t, s.Pointer(ctx, px(16, 8, PointerMove)))
	p, ok := s.Store().Get("a")
	require.True(t, ok)
	assert.True(t, p.ApproxEqual(geom.V(15, 0, 8), 1e-6), "got %+v", p)

	err = s.ApplyLayout(ctx, layout.AlgorithmCircular)
	assert.ErrorIs(t, err, layout.ErrDragInProgress)

	require.NoError(t, s.Pointer(ctx, px(16, 8, PointerUp)))
	require.NoError(t, s.ApplyLayout(ctx, layout.AlgorithmReset))

	p, _ = s.Store().Get("a")
	assert.Equal(t, geom.V(5, 0, 5), p)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.moves, 1)
	assert.Equal(t, []layout.Algorithm{layout.AlgorithmReset}, rec.layout)
}

func TestSceneFilters(t *testing.T) {
	s, _, _ := start(t)
	s.SetFilters(graph.Filters{Statuses: []graph.Status{graph.StatusCircular}})

	f, err := s.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, f.Nodes[0].Opacity)
	assert.Less(t, f.Nodes[1].Opacity, 1.0)
	assert.Equal(t, render.TierFiltered, f.Edges[0].Style.Tier)
}

func TestSceneUnknownPointer(t *testing.T) {
	s, _, _ := start(t)
	err := s.Pointer(context.Background(), PointerEvent{Type: "wheel"})
	assert.Error(t, err)
}

func TestSceneCapacitySkipsEdgesToDroppedNodes(t *testing.T) {
	s, _, _ := startWith(t, Options{MaxNodes: 2})
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, &graph.Snapshot{
		ID: "snap-capped",
		Nodes: []graph.Node{
			{ID: "a", Position: geom.V(0, 0, 0)},
			{ID: "b", Position: geom.V(10, 0, 0)},
			{ID: "c", Position: geom.V(20, 0, 0)},
		},
		Edges: []graph.Edge{
			{ID: "ab", Source: "a", Target: "b"},
			{ID: "ac", Source: "a", Target: "c"},
		},
	}))

	f, err := s.Frame(ctx)
	require.NoError(t, err)
	require.Len(t, f.Nodes, 2)
	require.Len(t, f.Edges, 1)
	assert.Equal(t, "ab", f.Edges[0].ID)
}

func TestSceneReloadResetsHover(t *testing.T) {
	s, _, _ := start(t)
	ctx := context.Background()

	require.NoError(t, s.Pointer(ctx, px(5, 5, PointerMove)))
	require.Equal(t, "a", s.UI().Hovered())

	require.NoError(t, s.Load(ctx, &graph.Snapshot{
		ID:    "snap-reloaded",
		Nodes: []graph.Node{{ID: "a", Position: geom.V(5, 0, 5)}},
	}))
	assert.Empty(t, s.UI().Hovered())

	require.NoError(t, s.Pointer(ctx, px(5, 5, PointerMove)))
	f, err := s.Frame(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", s.UI().Hovered())
	require.Len(t, f.Nodes, 1)
	assert.True(t, f.Nodes[0].Hovered)
	assert.Equal(t, "pointer", f.Cursor)
}

func TestSceneClose(t *testing.T) {
	s, _, cancel := start(t)
	cancel()
	<-s.Done()

	assert.Equal(t, 0, s.Store().Len())
	err := s.Load(context.Background(), &graph.Snapshot{ID: "late"})
	assert.ErrorIs(t, err, ErrClosed)
}
