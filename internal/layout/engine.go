package layout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vyuha/vyuha-scene/internal/graph"
	"github.com/vyuha/vyuha-scene/internal/position"
)

// DragGuard reports whether a node drag is active.
type DragGuard interface {
	Dragging() bool
}

// Engine runs layouts against a position store. It is not goroutine-safe;
// the owning scene serialises calls.
type Engine struct {
	store     *position.Store
	params    Params
	guard     DragGuard
	nodes     []*graph.Node
	edges     []*graph.Edge
	originals Originals
}

// NewEngine binds an engine to store.
func NewEngine(store *position.Store, params Params) *Engine {
	return &Engine{store: store, params: params.withDefaults()}
}

// SetGuard installs the drag guard consulted before every layout.
func (e *Engine) SetGuard(g DragGuard) {
	e.guard = g
}

// Params returns the effective parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Load replaces the working node set, retains the embedded positions as
// originals and seeds the store. When no node carries a position yet the
// circular layout provides the initial placement, and that placement becomes
// the originals reset returns to.
func (e *Engine) Load(nodes []*graph.Node, edges []*graph.Edge) {
	e.nodes = nodes
	e.edges = edges
	e.originals = CaptureOriginals(nodes)

	placed := false
	for _, n := range nodes {
		if !n.Position.IsZero() {
			placed = true
			break
		}
	}
	if !placed && len(nodes) > 1 {
		initial := Circular(nodes, e.params.Radius)
		e.write(initial)
		for id, p := range initial {
			e.originals[id] = p
		}
		return
	}
	e.store.Seed(nodes)
}

// Originals returns the retained original positions.
func (e *Engine) Originals() Originals {
	return e.originals
}

// Apply runs alg over the loaded nodes and writes the result into the store.
func (e *Engine) Apply(ctx context.Context, alg Algorithm) (Result, error) {
	if e.guard != nil && e.guard.Dragging() {
		layoutRunsTotal.WithLabelValues(string(alg), "refused").Inc()
		return nil, ErrDragInProgress
	}
	if len(e.nodes) == 0 {
		return Result{}, nil
	}

	start := time.Now()
	var (
		res Result
		err error
	)
	switch alg {
	case AlgorithmCircular:
		res = Circular(e.nodes, e.params.Radius)
	case AlgorithmForce:
		res, err = ForceDirected(ctx, e.nodes, e.edges, e.store, e.params)
	case AlgorithmReset:
		res = Reset(e.nodes, e.originals)
	default:
		layoutRunsTotal.WithLabelValues("unknown", "error").Inc()
		return nil, ErrUnknownAlgorithm
	}
	layoutDuration.WithLabelValues(string(alg)).Observe(time.Since(start).Seconds())

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		layoutRunsTotal.WithLabelValues(string(alg), "error").Inc()
		return nil, err
	}

	written := e.write(res)
	result := "ok"
	if err != nil {
		result = "cancelled"
	}
	layoutRunsTotal.WithLabelValues(string(alg), result).Inc()
	slog.Debug("layout: applied",
		"algorithm", alg,
		"nodes", len(e.nodes),
		"written", written,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, err
}

// write commits finite positions to the store.
func (e *Engine) write(res Result) int {
	dropped := 0
	for id, p := range res {
		if !p.IsFinite() {
			delete(res, id)
			dropped++
		}
	}
	if dropped > 0 {
		slog.Warn("layout: dropped non-finite positions", "count", dropped)
	}
	return e.store.SetAll(res)
}
