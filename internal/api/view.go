package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vyuha/vyuha-scene/internal/events"
	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
	"github.com/vyuha/vyuha-scene/internal/layout"
	"github.com/vyuha/vyuha-scene/internal/render"
	"github.com/vyuha/vyuha-scene/internal/scene"
	"github.com/vyuha/vyuha-scene/internal/uistate"
)

// ---------------------------------------------------------------------------
// Wire messages
// ---------------------------------------------------------------------------

// Client -> server message types.
const (
	MsgPointer     = "pointer"
	MsgLayout      = "layout"
	MsgFilters     = "filters"
	MsgModifiers   = "modifiers"
	MsgSuppressHot = "suppress_hot"
	MsgCamera      = "camera"
	MsgLoad        = "load"
)

// Server -> client message types.
const (
	MsgSession   = "session"
	MsgFrame     = "frame"
	MsgSelection = "selection"
	MsgLayoutOK  = "layout_applied"
	MsgError     = "error"
)

// ClientMessage is one request on a view socket. Only the field matching
// Type is read.
type ClientMessage struct {
	Type        string              `json:"type"`
	Pointer     *scene.PointerEvent `json:"pointer,omitempty"`
	Algorithm   string              `json:"algorithm,omitempty"`
	Filters     *graph.Filters      `json:"filters,omitempty"`
	Modifiers   *graph.Modifiers    `json:"modifiers,omitempty"`
	SuppressHot *bool               `json:"suppress_hot,omitempty"`
	Camera      *geom.Camera        `json:"camera,omitempty"`
	SnapshotID  string              `json:"snapshot_id,omitempty"`
}

// ServerMessage is one push on a view socket.
type ServerMessage struct {
	Type       string         `json:"type"`
	Session    string         `json:"session,omitempty"`
	SnapshotID string         `json:"snapshot_id,omitempty"`
	Frame      *render.Frame  `json:"frame,omitempty"`
	Selection  *uistate.Event `json:"selection,omitempty"`
	Algorithm  string         `json:"algorithm,omitempty"`
	Code       string         `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 64 << 10
)

// ---------------------------------------------------------------------------
// View session
// ---------------------------------------------------------------------------

// viewSession binds one websocket to one scene. The socket reader feeds
// the scene; a single writer goroutine drains frames and notifications.
type viewSession struct {
	id     string
	srv    *Server
	conn   *websocket.Conn
	scene  *scene.Scene
	cancel context.CancelFunc
	log    *slog.Logger

	// frames holds at most the newest undelivered frame.
	frames chan render.Frame
	out    chan ServerMessage

	limiter *rate.Limiter

	closeOnce sync.Once
}

// handleView upgrades to a websocket and runs one interactive view until
// the client disconnects.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r, r.URL.Query().Get("snapshot_id"))
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade the websocket", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	v := &viewSession{
		id:      uuid.New().String(),
		srv:     s,
		conn:    conn,
		cancel:  cancel,
		frames:  make(chan render.Frame, 1),
		out:     make(chan ServerMessage, 32),
		limiter: rate.NewLimiter(rate.Limit(s.opts.PointerRate), s.opts.PointerBurst),
	}
	v.log = slog.With("session", v.id)

	opts := s.opts.Scene
	opts.Logger = v.log
	v.scene = scene.New(opts, scene.Hooks{
		OnFrame:     v.offerFrame,
		OnNodeMoved: v.nodeMoved,
		OnLayout:    v.layoutApplied,
	})
	v.scene.UI().Subscribe(v.selectionChanged)

	s.views.Store(v.id, v)
	viewSessions.Inc()
	defer func() {
		s.views.Delete(v.id)
		viewSessions.Dec()
	}()

	// The session message goes out before the writer starts so it is
	// always the first message on the socket.
	if err := v.write(ServerMessage{Type: MsgSession, Session: v.id, SnapshotID: snap.ID}); err != nil {
		cancel()
		conn.Close()
		return
	}
	v.log.Info("view session opened", "snapshot_id", snap.ID, "remote_addr", r.RemoteAddr)

	go v.scene.Run(ctx)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		v.writeLoop(ctx)
	}()

	if err := v.scene.Load(ctx, snap); err != nil {
		v.sendError("LOAD_FAILED", err)
	}

	v.readLoop(ctx)

	v.close()
	<-v.scene.Done()
	<-writerDone
	v.log.Info("view session closed")
}

// close stops the scene and the socket. Safe to call more than once.
func (v *viewSession) close() {
	v.closeOnce.Do(func() {
		v.cancel()
		v.conn.Close()
	})
}

func (v *viewSession) readLoop(ctx context.Context) {
	v.conn.SetReadLimit(maxMessage)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := v.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				v.log.Warn("view socket read failed", "error", err)
			}
			return
		}
		if err := v.dispatch(ctx, msg); err != nil {
			if errors.Is(err, scene.ErrClosed) || ctx.Err() != nil {
				return
			}
			v.sendError(errorCode(err), err)
		}
	}
}

func (v *viewSession) dispatch(ctx context.Context, msg ClientMessage) error {
	result := "ok"
	defer func() { viewMessages.WithLabelValues(msg.Type, result).Inc() }()

	switch msg.Type {
	case MsgPointer:
		if msg.Pointer == nil {
			result = "invalid"
			return fmt.Errorf("pointer message without pointer")
		}
		// Moves are droppable; down, up and click are not.
		if msg.Pointer.Type == scene.PointerMove && !v.limiter.Allow() {
			result = "throttled"
			return nil
		}
		if err := v.scene.Pointer(ctx, *msg.Pointer); err != nil {
			result = "error"
			return err
		}

	case MsgLayout:
		alg, err := layout.ParseAlgorithm(msg.Algorithm)
		if err != nil {
			result = "invalid"
			return err
		}
		if err := v.scene.ApplyLayout(ctx, alg); err != nil {
			result = "refused"
			return err
		}

	case MsgFilters:
		if msg.Filters == nil {
			msg.Filters = &graph.Filters{}
		}
		v.scene.SetFilters(*msg.Filters)

	case MsgModifiers:
		if msg.Modifiers == nil {
			msg.Modifiers = &graph.Modifiers{}
		}
		v.scene.SetModifiers(*msg.Modifiers)

	case MsgSuppressHot:
		v.scene.SetSuppressHot(msg.SuppressHot != nil && *msg.SuppressHot)

	case MsgCamera:
		if msg.Camera == nil {
			result = "invalid"
			return fmt.Errorf("camera message without camera")
		}
		return v.scene.SetCamera(ctx, *msg.Camera)

	case MsgLoad:
		snap, err := v.srv.store.GetSnapshot(ctx, msg.SnapshotID)
		if err != nil {
			result = "error"
			return err
		}
		if err := v.scene.Load(ctx, snap); err != nil {
			result = "error"
			return err
		}

	default:
		result = "unknown"
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scene hooks (run on the scene goroutine; never block)
// ---------------------------------------------------------------------------

func (v *viewSession) offerFrame(f render.Frame) {
	select {
	case v.frames <- f:
		return
	default:
	}
	// Replace the stale frame with the newer one.
	select {
	case <-v.frames:
		framesCoalesced.Inc()
	default:
	}
	select {
	case v.frames <- f:
	default:
	}
}

func (v *viewSession) nodeMoved(snapshotID, nodeID string, p geom.Vec3) {
	v.srv.publish(context.Background(), events.TopicNodeMoved, events.NodeMoved{
		SnapshotID: snapshotID,
		NodeID:     nodeID,
		Position:   p,
		At:         time.Now().UTC(),
	})
}

func (v *viewSession) layoutApplied(snapshotID string, alg layout.Algorithm, nodes int) {
	v.send(ServerMessage{Type: MsgLayoutOK, SnapshotID: snapshotID, Algorithm: string(alg)})
	v.srv.publish(context.Background(), events.TopicLayoutApplied, events.LayoutApplied{
		SnapshotID: snapshotID,
		Algorithm:  string(alg),
		Nodes:      nodes,
	})
}

func (v *viewSession) selectionChanged(ev uistate.Event) {
	v.send(ServerMessage{Type: MsgSelection, Selection: &ev})

	payload := events.SelectionChanged{
		SnapshotID: v.scene.SnapshotID(),
		Session:    v.id,
		ID:         ev.ID,
	}
	idx := v.scene.Graph()
	topic := events.TopicNodeSelected
	switch ev.Kind {
	case uistate.EventEdgeSelected:
		topic = events.TopicEdgeSelected
		if e, ok := idx.GetEdge(ev.ID); ok {
			payload.Source, payload.Target = e.Source, e.Target
		}
	case uistate.EventNodeHovered:
		// Hover is too chatty for the shared event stream.
		return
	default:
		if n, ok := idx.GetNode(ev.ID); ok {
			payload.Label = n.DisplayName()
			for _, e := range idx.GetOutEdges(n.ID) {
				payload.Imports = append(payload.Imports, e.Target)
			}
			for _, e := range idx.GetInEdges(n.ID) {
				payload.ImportedBy = append(payload.ImportedBy, e.Source)
			}
		}
	}
	v.srv.publish(context.Background(), topic, payload)
}

// ---------------------------------------------------------------------------
// Writer
// ---------------------------------------------------------------------------

func (v *viewSession) send(msg ServerMessage) {
	select {
	case v.out <- msg:
	default:
		v.log.Warn("view socket backlog full, dropping message", "type", msg.Type)
	}
}

func (v *viewSession) sendError(code string, err error) {
	v.send(ServerMessage{Type: MsgError, Code: code, Error: err.Error()})
}

func (v *viewSession) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			v.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return

		case msg := <-v.out:
			if err := v.write(msg); err != nil {
				v.close()
				return
			}

		case f := <-v.frames:
			if err := v.write(ServerMessage{Type: MsgFrame, Frame: &f}); err != nil {
				v.close()
				return
			}
			framesSent.Inc()

		case <-ping.C:
			if err := v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				v.close()
				return
			}
		}
	}
}

func (v *viewSession) write(msg ServerMessage) error {
	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := v.conn.WriteJSON(msg); err != nil {
		v.log.Debug("view socket write failed", "type", msg.Type, "error", err)
		return err
	}
	return nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, layout.ErrDragInProgress):
		return "DRAG_IN_PROGRESS"
	case errors.Is(err, layout.ErrUnknownAlgorithm):
		return "UNKNOWN_ALGORITHM"
	default:
		return "BAD_REQUEST"
	}
}
