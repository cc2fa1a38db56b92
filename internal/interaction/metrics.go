package interaction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pointerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_pointer_events_total",
		Help: "Pointer events handled by type",
	}, []string{"type"})

	dragsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_drags_started_total",
		Help: "Drags started on a selected node",
	})

	hitIndexOverflow = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scene_hit_index_overflow_total",
		Help: "Nodes left unpickable because the hit index was full",
	})
)
