package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/vyuha/vyuha-scene/internal/events"
	"github.com/vyuha/vyuha-scene/internal/layout"
	"github.com/vyuha/vyuha-scene/internal/scene"
	"github.com/vyuha/vyuha-scene/internal/source"
	"github.com/vyuha/vyuha-scene/internal/storage"
)

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Options tunes the HTTP layer and every view it opens.
type Options struct {
	Scene  scene.Options
	Layout layout.Params

	// RateLimit and RateBurst bound snapshot ingest and layout requests.
	RateLimit float64
	RateBurst int
	// PointerRate and PointerBurst bound pointer events per view socket.
	PointerRate  float64
	PointerBurst int
}

func (o Options) withDefaults() Options {
	if o.RateLimit <= 0 {
		o.RateLimit = 100
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 200
	}
	if o.PointerRate <= 0 {
		o.PointerRate = 120
	}
	if o.PointerBurst <= 0 {
		o.PointerBurst = 240
	}
	if o.Scene.LayoutBudget <= 0 {
		o.Scene.LayoutBudget = 2 * time.Second
	}
	o.Scene.Layout = o.Layout
	return o
}

// Server is the HTTP API layer for the scene service.
type Server struct {
	store         *storage.Storage
	sse           *SSEBroadcaster
	pub           events.Publisher
	opts          Options
	mux           *http.ServeMux
	server        *http.Server
	ingestLimiter *rate.Limiter
	upgrader      websocket.Upgrader

	// Open view sockets: session id -> *viewSession.
	views sync.Map

	replayMu sync.RWMutex
	replay   *source.Watcher
}

// NewServer creates a new Server wired to the given storage, SSE
// broadcaster and event publisher. pub may be nil; events then reach SSE
// clients only.
func NewServer(store *storage.Storage, sse *SSEBroadcaster, pub events.Publisher, opts Options) *Server {
	if sse == nil {
		sse = NewSSEBroadcaster()
	}
	if pub == nil {
		pub = sse
	}
	opts = opts.withDefaults()
	return &Server{
		store:         store,
		sse:           sse,
		pub:           pub,
		opts:          opts,
		mux:           http.NewServeMux(),
		ingestLimiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     allowedOrigin,
		},
	}
}

// SetReplayWatcher exposes a running replay watcher's status.
func (s *Server) SetReplayWatcher(w *source.Watcher) {
	s.replayMu.Lock()
	defer s.replayMu.Unlock()
	s.replay = w
}

// RegisterRoutes wires up every API endpoint.
func (s *Server) RegisterRoutes() {
	// -- Snapshot catalogue -----------------------------------------------
	s.mux.HandleFunc("POST /api/snapshots",
		s.withRateLimit(s.ingestLimiter, s.handleSnapshotCreate))
	s.mux.HandleFunc("GET /api/snapshots", s.handleSnapshotList)
	s.mux.HandleFunc("GET /api/snapshots/{id}", s.handleSnapshotGet)
	s.mux.HandleFunc("GET /api/snapshots/{id}/stats", s.handleSnapshotStats)
	s.mux.HandleFunc("DELETE /api/snapshots/{id}", s.handleSnapshotDelete)
	s.mux.HandleFunc("GET /api/catalog/stats", s.handleCatalogStats)

	// -- Layout -----------------------------------------------------------
	s.mux.HandleFunc("POST /api/layout/preview",
		s.withRateLimit(s.ingestLimiter, s.handleLayoutPreview))

	// -- Interactive views ------------------------------------------------
	s.mux.HandleFunc("GET /api/view", s.handleView)
	s.mux.HandleFunc("GET /api/replay", s.handleReplayStatus)

	// -- SSE event stream -------------------------------------------------
	s.mux.HandleFunc("GET /api/events", s.handleSSE)

	// -- Health & metrics -------------------------------------------------
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the fully-wrapped http.Handler (middleware chain + mux).
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = recoveryMiddleware(h)
	h = loggingMiddleware(h)
	h = corsMiddleware(h)
	return h
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// View sockets and SSE streams are long-lived; per-write deadlines
		// are set on the connection instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown closes every open view, then gracefully shuts down the HTTP
// server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.views.Range(func(_, v any) bool {
		v.(*viewSession).close()
		return true
	})
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// publish sends an event and logs delivery failures.
func (s *Server) publish(ctx context.Context, topic string, event any) {
	if err := s.pub.Publish(ctx, topic, event); err != nil {
		slog.Warn("event publish failed", "topic", topic, "error", err)
	}
}

// ViewCount returns the number of open view sockets.
func (s *Server) ViewCount() int {
	n := 0
	s.views.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":      "ok",
		"service":     "vyuha-scene",
		"views":       s.ViewCount(),
		"sse_clients": s.sse.ClientCount(),
	}
	if v, err := s.store.SchemaVersion(r.Context()); err == nil {
		status["schema_version"] = v
	} else {
		status["status"] = "degraded"
		status["storage_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleReplayStatus(w http.ResponseWriter, r *http.Request) {
	s.replayMu.RLock()
	watcher := s.replay
	s.replayMu.RUnlock()

	if watcher == nil {
		writeError(w, http.StatusNotFound, "REPLAY_DISABLED", "no replay directory configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": watcher.Status()})
}

// ---------------------------------------------------------------------------
// JSON response helpers
// ---------------------------------------------------------------------------

// writeJSON writes an arbitrary value as JSON with the given HTTP status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a standardised JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// allowedOrigin accepts same-host requests and any localhost dev server.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" ||
		strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		strings.HasSuffix(origin, "://"+r.Host)
}

// corsMiddleware allows requests from localhost dev servers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseRecorder captures the status code written by downstream handlers.
// It also implements http.Flusher so SSE streaming works through the
// logging middleware, and Unwrap so the websocket upgrade can hijack the
// connection.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher by delegating to the underlying writer.
func (rr *responseRecorder) Flush() {
	if f, ok := rr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

// Hijack implements http.Hijacker for the websocket upgrade.
func (rr *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: response writer does not support hijacking")
	}
	rr.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// loggingMiddleware logs method, path, duration and status code.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		httpRequests.WithLabelValues(r.Method, r.Pattern, fmt.Sprint(rec.statusCode)).Inc()
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware catches panics and returns a 500 response.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()
				slog.Error("panic recovered",
					"error", err,
					"stack", string(stack),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, `{"error":"internal server error"}`)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRateLimit wraps a handler with a token-bucket rate limiter.
// Returns 429 when the limiter is exhausted.
// NOTE: this is a per-server limiter (not per-IP).
func (s *Server) withRateLimit(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%g", float64(limiter.Limit())))
			w.Header().Set("X-RateLimit-Remaining",
				fmt.Sprintf("%d", int(limiter.Tokens())))
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"rate limit exceeded","retry_after_ms":1000}`)
			slog.Warn("rate limit exceeded",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			return
		}
		next(w, r)
	}
}
