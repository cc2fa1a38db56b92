package render

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_frames_rendered_total",
		Help: "Frames built across all scenes",
	})

	edgeGeometry = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_edge_geometry_total",
		Help: "Per-edge geometry outcomes: recomputed, reused or skipped",
	}, []string{"result"})

	ringsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_status_rings_dropped_total",
		Help: "Status rings not rendered because the ring capacity was reached",
	})
)
