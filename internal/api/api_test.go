package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyuha/vyuha-scene/internal/events"
	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
	"github.com/vyuha/vyuha-scene/internal/scene"
	"github.com/vyuha/vyuha-scene/internal/storage"
	"github.com/vyuha/vyuha-scene/internal/uistate"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, ev any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, ev)
	return nil
}

// selections returns the selection payloads published on topic, in order.
func (p *recordingPublisher) selections(topic string) []events.SelectionChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.SelectionChanged
	for i, t := range p.topics {
		if sc, ok := p.events[i].(events.SelectionChanged); ok && t == topic {
			out = append(out, sc)
		}
	}
	return out
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) has(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.topics {
		if t == topic {
			return true
		}
	}
	return false
}

type fixture struct {
	srv   *Server
	store *storage.Storage
	pub   *recordingPublisher
	http  *httptest.Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)

	pub := &recordingPublisher{}
	srv := NewServer(store, NewSSEBroadcaster(), pub, opts)
	srv.RegisterRoutes()
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ts.Close()
		store.Close()
	})
	return &fixture{srv: srv, store: store, pub: pub, http: ts}
}

func sceneSnapshot() *graph.Snapshot {
	return &graph.Snapshot{
		ID:    "snap-api",
		Label: "main",
		Nodes: []graph.Node{
			{ID: "a", Position: geom.V(5, 0, 5), Language: "go", Service: "core"},
			{ID: "b", Position: geom.V(-20, 0, -20), Language: "ts", Service: "web"},
			{ID: "c", Position: geom.V(30, 0, -10), Language: "go", Service: "core"},
		},
		Edges: []graph.Edge{
			{ID: "ab", Source: "a", Target: "b"},
			{ID: "bc", Source: "b", Target: "c"},
		},
	}
}

func (f *fixture) post(t *testing.T, path, contentType string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(f.http.URL+path, contentType, bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.http.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// ---------------------------------------------------------------------------
// REST
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, storage.SchemaVersion, body["schema_version"])
}

func TestSnapshotLifecycle(t *testing.T) {
	f := newFixture(t, Options{})
	raw, err := json.Marshal(sceneSnapshot())
	require.NoError(t, err)

	resp := f.post(t, "/api/snapshots", "application/json", raw)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data graph.Summary `json:"data"`
	}
	decode(t, resp, &created)
	assert.Equal(t, "snap-api", created.Data.ID)
	assert.Equal(t, 3, created.Data.NodeCount)
	assert.True(t, f.pub.has(events.TopicSnapshotAdded))

	resp = f.get(t, "/api/snapshots")
	var list struct {
		Data  []graph.Summary `json:"data"`
		Count int             `json:"count"`
	}
	decode(t, resp, &list)
	assert.Equal(t, 1, list.Count)

	resp = f.get(t, "/api/snapshots/snap-api")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Data graph.Snapshot `json:"data"`
	}
	decode(t, resp, &got)
	assert.Len(t, got.Data.Edges, 2)

	resp = f.get(t, "/api/snapshots/snap-api/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		Languages []string `json:"languages"`
		Services  []string `json:"services"`
	}
	decode(t, resp, &stats)
	assert.ElementsMatch(t, []string{"go", "ts"}, stats.Languages)
	assert.ElementsMatch(t, []string{"core", "web"}, stats.Services)

	req, err := http.NewRequest(http.MethodDelete, f.http.URL+"/api/snapshots/snap-api", nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	resp = f.get(t, "/api/snapshots/snap-api")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSnapshotCreateYAML(t *testing.T) {
	f := newFixture(t, Options{})
	body := []byte(`
id: snap-yaml
nodes:
  - id: x
  - id: y
edges:
  - id: xy
    source: x
    target: y
`)
	resp := f.post(t, "/api/snapshots", "application/yaml", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	snap, err := f.store.GetSnapshot(context.Background(), "snap-yaml")
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 2)
}

func TestSnapshotCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t, Options{})

	resp := f.post(t, "/api/snapshots", "application/json", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.post(t, "/api/snapshots", "application/json", []byte(`{"id":"empty"}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "EMPTY_SNAPSHOT", body["code"])
}

func TestLayoutPreview(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.store.SaveSnapshot(context.Background(), sceneSnapshot()))

	req, _ := json.Marshal(LayoutPreviewRequest{SnapshotID: "snap-api", Algorithm: "circular"})
	resp := f.post(t, "/api/layout/preview", "application/json", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data LayoutPreviewResult `json:"data"`
	}
	decode(t, resp, &out)
	require.Len(t, out.Data.Positions, 3)
	assert.False(t, out.Data.Partial)
	for id, p := range out.Data.Positions {
		assert.InDelta(t, 70, math.Hypot(p.X, p.Z), 1e-9, "node %s", id)
		assert.Zero(t, p.Y)
	}
	assert.True(t, f.pub.has(events.TopicLayoutApplied))

	// Previews never touch the stored placement.
	snap, err := f.store.GetSnapshot(context.Background(), "snap-api")
	require.NoError(t, err)
	assert.Equal(t, geom.V(5, 0, 5), snap.Nodes[0].Position)
}

func TestLayoutPreviewErrors(t *testing.T) {
	f := newFixture(t, Options{})

	req, _ := json.Marshal(LayoutPreviewRequest{Algorithm: "spiral"})
	resp := f.post(t, "/api/layout/preview", "application/json", req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ = json.Marshal(LayoutPreviewRequest{SnapshotID: "nope", Algorithm: "force"})
	resp = f.post(t, "/api/layout/preview", "application/json", req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIngestRateLimit(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 0.001, RateBurst: 1})

	resp := f.post(t, "/api/snapshots", "application/json", []byte("{}"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.post(t, "/api/snapshots", "application/json", []byte("{}"))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestReplayStatusDisabled(t *testing.T) {
	f := newFixture(t, Options{})
	resp := f.get(t, "/api/replay")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ---------------------------------------------------------------------------
// SSE
// ---------------------------------------------------------------------------

func TestSSEEventName(t *testing.T) {
	assert.Equal(t, "node_moved", sseEventName(events.TopicNodeMoved))
	assert.Equal(t, "snapshot_added", sseEventName(events.TopicSnapshotAdded))
	assert.Equal(t, "custom", sseEventName("custom"))
}

func TestSSEPublishReachesSubscribers(t *testing.T) {
	b := NewSSEBroadcaster()
	ch := b.Subscribe("c1")

	require.NoError(t, b.Publish(context.Background(), events.TopicLayoutApplied, events.LayoutApplied{Nodes: 3}))
	evt := <-ch
	assert.Equal(t, "layout_applied", evt.Event)

	require.NoError(t, b.Close())
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, b.ClientCount())
}

// ---------------------------------------------------------------------------
// View sockets
// ---------------------------------------------------------------------------

// topDown maps a 200x200 viewport pixel (px, py) onto ground point
// (px-100, 0, py-100).
var topDown = geom.Camera{Position: geom.V(0, 100, 0), Up: geom.V(0, 0, -1), FovY: 90}

func pointer(x, z float64, typ scene.PointerType) *scene.PointerEvent {
	return &scene.PointerEvent{Type: typ, X: x + 100, Y: z + 100, Width: 200, Height: 200}
}

func dialView(t *testing.T, f *fixture, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/api/view" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// await reads until a message of the wanted type arrives.
func await(t *testing.T, conn *websocket.Conn, typ string) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == typ {
			return msg
		}
	}
}

func TestViewSessionFramesAndSelection(t *testing.T) {
	f := newFixture(t, Options{Scene: scene.Options{FrameRate: 100}})
	require.NoError(t, f.store.SaveSnapshot(context.Background(), sceneSnapshot()))

	conn := dialView(t, f, "")

	hello := await(t, conn, MsgSession)
	assert.NotEmpty(t, hello.Session)
	assert.Equal(t, "snap-api", hello.SnapshotID)

	frame := await(t, conn, MsgFrame)
	require.NotNil(t, frame.Frame)
	assert.Len(t, frame.Frame.Nodes, 3)
	require.Eventually(t, func() bool { return f.srv.ViewCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgCamera, Camera: &topDown}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgPointer, Pointer: pointer(5, 5, scene.PointerClick)}))

	sel := await(t, conn, MsgSelection)
	require.NotNil(t, sel.Selection)
	assert.Equal(t, uistate.EventNodeSelected, sel.Selection.Kind)
	assert.Equal(t, "a", sel.Selection.ID)
	require.Eventually(t, func() bool { return len(f.pub.selections(events.TopicNodeSelected)) > 0 }, time.Second, 5*time.Millisecond)

	published := f.pub.selections(events.TopicNodeSelected)[0]
	assert.Equal(t, "a", published.ID)
	assert.Equal(t, []string{"b"}, published.Imports)
	assert.Empty(t, published.ImportedBy)
}

func TestViewSessionEdgeSelectionPayload(t *testing.T) {
	f := newFixture(t, Options{Scene: scene.Options{FrameRate: 100}})
	require.NoError(t, f.store.SaveSnapshot(context.Background(), sceneSnapshot()))

	conn := dialView(t, f, "")
	await(t, conn, MsgSession)
	await(t, conn, MsgFrame)

	var sess *viewSession
	require.Eventually(t, func() bool {
		f.srv.views.Range(func(_, v any) bool {
			sess = v.(*viewSession)
			return false
		})
		return sess != nil
	}, time.Second, 5*time.Millisecond)
	sess.scene.UI().SelectEdge("bc")

	require.Eventually(t, func() bool { return len(f.pub.selections(events.TopicEdgeSelected)) > 0 }, time.Second, 5*time.Millisecond)
	published := f.pub.selections(events.TopicEdgeSelected)[0]
	assert.Equal(t, "bc", published.ID)
	assert.Equal(t, "b", published.Source)
	assert.Equal(t, "c", published.Target)
}

func TestViewSessionReloadClearsSelection(t *testing.T) {
	f := newFixture(t, Options{Scene: scene.Options{FrameRate: 100}})
	require.NoError(t, f.store.SaveSnapshot(context.Background(), sceneSnapshot()))

	conn := dialView(t, f, "")
	await(t, conn, MsgSession)
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgCamera, Camera: &topDown}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgPointer, Pointer: pointer(5, 5, scene.PointerClick)}))
	sel := await(t, conn, MsgSelection)
	require.Equal(t, "a", sel.Selection.ID)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgLoad, SnapshotID: "snap-api"}))
	cleared := await(t, conn, MsgSelection)
	assert.Equal(t, uistate.EventNodeSelected, cleared.Selection.Kind)
	assert.Empty(t, cleared.Selection.ID)

	require.Eventually(t, func() bool { return len(f.pub.selections(events.TopicNodeSelected)) == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, f.pub.selections(events.TopicNodeSelected)[1].ID)
}

func TestViewSessionDragPublishesMove(t *testing.T) {
	f := newFixture(t, Options{Scene: scene.Options{FrameRate: 100}})
	require.NoError(t, f.store.SaveSnapshot(context.Background(), sceneSnapshot()))

	conn := dialView(t, f, "?snapshot_id=snap-api")
	await(t, conn, MsgSession)

	for _, msg := range []ClientMessage{
		{Type: MsgCamera, Camera: &topDown},
		{Type: MsgPointer, Pointer: pointer(6, 5, scene.PointerDown)},
		{Type: MsgPointer, Pointer: pointer(16, 8, scene.PointerMove)},
		{Type: MsgPointer, Pointer: pointer(16, 8, scene.PointerUp)},
	} {
		require.NoError(t, conn.WriteJSON(msg))
	}

	require.Eventually(t, func() bool { return f.pub.has(events.TopicNodeMoved) }, 2*time.Second, 10*time.Millisecond)

	var moved bool
	f.srv.views.Range(func(_, v any) bool {
		p, ok := v.(*viewSession).scene.Store().Get("a")
		moved = ok && p.ApproxEqual(geom.V(15, 0, 8), 1e-6)
		return false
	})
	assert.True(t, moved)

	snap, err := f.store.GetSnapshot(context.Background(), "snap-api")
	require.NoError(t, err)
	assert.Equal(t, geom.V(5, 0, 5), snap.Nodes[0].Position, "drags stay in the view")
}

func TestViewSessionRejectsUnknownMessages(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.store.SaveSnapshot(context.Background(), sceneSnapshot()))

	conn := dialView(t, f, "")
	await(t, conn, MsgSession)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgLayout, Algorithm: "spiral"}))
	msg := await(t, conn, MsgError)
	assert.Equal(t, "UNKNOWN_ALGORITHM", msg.Code)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "teleport"}))
	msg = await(t, conn, MsgError)
	assert.Equal(t, "BAD_REQUEST", msg.Code)
}

func TestViewWithoutSnapshots(t *testing.T) {
	f := newFixture(t, Options{})
	resp := f.get(t, "/api/view")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
