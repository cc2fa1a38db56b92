package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SSE Types
// ---------------------------------------------------------------------------

// SSEEvent is a single server-sent event.
type SSEEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ---------------------------------------------------------------------------
// SSEBroadcaster
// ---------------------------------------------------------------------------

// SSEBroadcaster fans out SSE events to all connected HTTP clients.
// Each client is identified by a unique string ID and receives events
// through a buffered channel. It also satisfies events.Publisher so scene
// notifications reach browsers alongside NATS.
type SSEBroadcaster struct {
	mu      sync.RWMutex
	clients map[string]chan SSEEvent
}

// NewSSEBroadcaster creates a ready-to-use broadcaster.
func NewSSEBroadcaster() *SSEBroadcaster {
	return &SSEBroadcaster{
		clients: make(map[string]chan SSEEvent),
	}
}

// Subscribe registers a new client and returns its event channel.
// The channel is buffered (64) so slow consumers don't block the
// broadcaster.
func (b *SSEBroadcaster) Subscribe(clientID string) chan SSEEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan SSEEvent, 64)
	b.clients[clientID] = ch
	slog.Debug("sse: client subscribed", "client_id", clientID, "total", len(b.clients))
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *SSEBroadcaster) Unsubscribe(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[clientID]; ok {
		close(ch)
		delete(b.clients, clientID)
		slog.Debug("sse: client unsubscribed", "client_id", clientID, "remaining", len(b.clients))
	}
}

// Broadcast sends an event to every connected client. If a client's channel
// is full the event is dropped for that client (non-blocking send).
func (b *SSEBroadcaster) Broadcast(event SSEEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.clients {
		select {
		case ch <- event:
		default:
			sseDropped.Inc()
			slog.Warn("sse: dropping event for slow client", "event", event.Event, "client_id", id)
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *SSEBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish implements events.Publisher. The SSE event name is the topic
// without its "scene." prefix, dots replaced by underscores:
// scene.node.moved becomes node_moved.
func (b *SSEBroadcaster) Publish(_ context.Context, topic string, event any) error {
	b.Broadcast(SSEEvent{Event: sseEventName(topic), Data: event})
	return nil
}

// Close implements events.Publisher by disconnecting every client.
func (b *SSEBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
	return nil
}

func sseEventName(topic string) string {
	return strings.ReplaceAll(strings.TrimPrefix(topic, "scene."), ".", "_")
}

// ---------------------------------------------------------------------------
// HTTP handler: GET /api/events
// ---------------------------------------------------------------------------

// handleSSE is the HTTP handler for the Server-Sent Events stream endpoint.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SSE_NOT_SUPPORTED",
			"streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientID := uuid.New().String()
	ch := s.sse.Subscribe(clientID)
	defer s.sse.Unsubscribe(clientID)

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-ch:
			if !ok {
				return // channel closed
			}
			if err := writeSSEEvent(w, flusher, evt); err != nil {
				return
			}

		case t := <-heartbeat.C:
			hb := SSEEvent{
				Event: "heartbeat",
				Data:  map[string]int64{"t": t.Unix()},
			}
			if err := writeSSEEvent(w, flusher, hb); err != nil {
				return
			}
		}
	}
}

// writeSSEEvent formats and writes a single SSE frame.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, evt SSEEvent) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, data)
	if err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
