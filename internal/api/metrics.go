package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_http_requests_total",
		Help: "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "pattern", "status"})

	viewSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scene_view_sessions",
		Help: "Open interactive view sockets.",
	})

	viewMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_view_messages_total",
		Help: "Messages received on view sockets by type and outcome.",
	}, []string{"type", "result"})

	framesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_view_frames_sent_total",
		Help: "Frames written to view sockets.",
	})

	framesCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_view_frames_coalesced_total",
		Help: "Frames replaced by a newer frame before the socket could take them.",
	})

	sseDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_sse_events_dropped_total",
		Help: "SSE events dropped for slow clients.",
	})
)
