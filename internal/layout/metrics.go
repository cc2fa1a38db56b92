package layout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	layoutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scene_layout_duration_seconds",
		Help:    "Time to compute one layout",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
	}, []string{"algorithm"})

	layoutRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_layout_runs_total",
		Help: "Layout runs by algorithm and result",
	}, []string{"algorithm", "result"})
)
