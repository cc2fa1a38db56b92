// Package scene owns one interactive graph view.
//
// A Scene runs a single goroutine (Run) that serialises every frame tick,
// pointer event, layout request and snapshot load, so the interaction layer
// and renderers need no locks. Layout requests made during a drag are
// refused. Cancelling Run's context (the view unmounting) detaches pointer
// handling, cancels any drag and tears the position store down.
package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
	"github.com/vyuha/vyuha-scene/internal/interaction"
	"github.com/vyuha/vyuha-scene/internal/layout"
	"github.com/vyuha/vyuha-scene/internal/position"
	"github.com/vyuha/vyuha-scene/internal/render"
	"github.com/vyuha/vyuha-scene/internal/uistate"
)

// ErrClosed is returned by calls made after the scene stopped.
var ErrClosed = errors.New("scene: closed")

// ---------------------------------------------------------------------------
// Options & hooks
// ---------------------------------------------------------------------------

// Options configures a Scene. Zero values take defaults.
type Options struct {
	FrameRate    int
	MaxNodes     int
	MaxRings     int
	HitRadius    float64
	Layout       layout.Params
	LayoutBudget time.Duration
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.FrameRate <= 0 {
		o.FrameRate = 30
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = interaction.DefaultMaxNodes
	}
	if o.MaxRings <= 0 {
		o.MaxRings = render.DefaultMaxRings
	}
	if o.HitRadius <= 0 {
		o.HitRadius = interaction.DefaultHitRadius
	}
	if o.LayoutBudget <= 0 {
		o.LayoutBudget = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Hooks are invoked on the scene goroutine and must not block.
type Hooks struct {
	OnFrame     func(render.Frame)
	OnNodeMoved func(snapshotID, nodeID string, p geom.Vec3)
	OnLayout    func(snapshotID string, alg layout.Algorithm, nodes int)
}

// ---------------------------------------------------------------------------
// Pointer input
// ---------------------------------------------------------------------------

// PointerType names a pointer event.
type PointerType string

const (
	PointerDown  PointerType = "down"
	PointerMove  PointerType = "move"
	PointerUp    PointerType = "up"
	PointerClick PointerType = "click"
)

// PointerEvent is a pointer action in viewport pixels.
type PointerEvent struct {
	Type   PointerType `json:"type"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Width  float64     `json:"width"`
	Height float64     `json:"height"`
}

// ---------------------------------------------------------------------------
// Scene
// ---------------------------------------------------------------------------

// Scene is one mounted graph view.
type Scene struct {
	opts  Options
	hooks Hooks
	log   *slog.Logger

	cmds chan func()
	done chan struct{}

	// Shared with HTTP readers; goroutine-safe.
	store *position.Store
	ui    *uistate.State

	// Owned by the loop goroutine.
	index     *graph.Index
	engine    *layout.Engine
	ctrl      *interaction.Controller
	renderer  *render.Renderer
	camera    geom.Camera
	lastStore uint64
	lastUI    uint64
	force     bool
	warned    bool
}

// New builds a scene. Call Run to start it.
func New(opts Options, hooks Hooks) *Scene {
	opts = opts.withDefaults()
	store := position.NewStore()
	ui := uistate.New()

	ctrl := interaction.NewController(store, ui, ui, interaction.Options{
		MaxNodes:  opts.MaxNodes,
		HitRadius: opts.HitRadius,
	})
	engine := layout.NewEngine(store, opts.Layout)
	engine.SetGuard(ctrl)
	renderer := render.NewRenderer(opts.MaxRings)
	ctrl.SetEdgePicker(renderer.Edges)

	s := &Scene{
		opts:     opts,
		hooks:    hooks,
		log:      opts.Logger,
		cmds:     make(chan func(), 64),
		done:     make(chan struct{}),
		store:    store,
		ui:       ui,
		index:    graph.NewIndex(),
		engine:   engine,
		ctrl:     ctrl,
		renderer: renderer,
		camera:   geom.DefaultCamera(),
	}
	ctrl.OnNodeMoved(s.nodeMoved)
	return s
}

// Store returns the live position store.
func (s *Scene) Store() *position.Store { return s.store }

// Graph returns the index of the loaded snapshot.
func (s *Scene) Graph() *graph.Index { return s.index }

// UI returns the UI state container.
func (s *Scene) UI() *uistate.State { return s.ui }

// Done is closed once Run has returned.
func (s *Scene) Done() <-chan struct{} { return s.done }

// Run processes commands and frame ticks until ctx is cancelled.
func (s *Scene) Run(ctx context.Context) {
	defer close(s.done)
	defer s.teardown()

	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FrameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.cmds:
			fn()
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scene) teardown() {
	s.ctrl.Detach()
	s.store.Clear()
	s.renderer.Reset()
	s.log.Debug("scene: torn down", "snapshot_id", s.index.SnapshotID())
}

// do runs fn on the scene goroutine and waits for it.
func (s *Scene) do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	cmd := func() { errCh <- fn() }

	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errCh:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ============================== COMMANDS =================================

// Load replaces the scene's snapshot. The store, selection, hit index and
// edge cache are rebuilt from scratch.
func (s *Scene) Load(ctx context.Context, snap *graph.Snapshot) error {
	return s.do(ctx, func() error {
		s.ctrl.PointerUp()
		s.store.Clear()
		s.renderer.Reset()
		s.ui.ClearSelection()
		s.index.Load(snap)

		nodes := s.index.Nodes()
		s.engine.Load(nodes, s.index.Edges())
		if overflow := s.ctrl.Rebuild(nodes); overflow > 0 {
			s.log.Warn("scene: node capacity exceeded",
				"snapshot_id", snap.ID,
				"max_nodes", s.opts.MaxNodes,
				"dropped", overflow,
			)
		}
		s.warned = false
		s.force = true
		s.log.Info("scene: snapshot loaded",
			"snapshot_id", snap.ID,
			"nodes", len(nodes),
			"edges", s.index.EdgeCount(),
		)
		return nil
	})
}

// Pointer feeds one pointer event through the interaction layer.
func (s *Scene) Pointer(ctx context.Context, ev PointerEvent) error {
	return s.do(ctx, func() error {
		r := s.camera.RayFromScreen(ev.X, ev.Y, ev.Width, ev.Height)
		switch ev.Type {
		case PointerDown:
			s.ctrl.PointerDown(r)
		case PointerMove:
			s.ctrl.PointerMove(r)
		case PointerUp:
			s.ctrl.PointerUp()
		case PointerClick:
			s.ctrl.Click(r)
		default:
			return fmt.Errorf("scene: unknown pointer event %q", ev.Type)
		}
		return nil
	})
}

// ApplyLayout runs alg. It fails with layout.ErrDragInProgress while a node
// is being dragged. Long force layouts are cut off after the configured
// budget and keep the positions reached so far.
func (s *Scene) ApplyLayout(ctx context.Context, alg layout.Algorithm) error {
	return s.do(ctx, func() error {
		lctx, cancel := context.WithTimeout(ctx, s.opts.LayoutBudget)
		defer cancel()

		res, err := s.engine.Apply(lctx, alg)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if err != nil {
			s.log.Warn("scene: layout budget exhausted",
				"algorithm", alg,
				"budget", s.opts.LayoutBudget,
			)
		}
		if s.hooks.OnLayout != nil {
			s.hooks.OnLayout(s.index.SnapshotID(), alg, len(res))
		}
		return nil
	})
}

// SetFilters replaces the active filters.
func (s *Scene) SetFilters(f graph.Filters) { s.ui.SetFilters(f) }

// SetModifiers replaces the visual modifiers.
func (s *Scene) SetModifiers(m graph.Modifiers) { s.ui.SetModifiers(m) }

// SetSuppressHot toggles hot-zone ring suppression.
func (s *Scene) SetSuppressHot(on bool) { s.ui.SetSuppressHot(on) }

// SetCamera replaces the camera used to unproject pointer events.
func (s *Scene) SetCamera(ctx context.Context, cam geom.Camera) error {
	return s.do(ctx, func() error {
		s.camera = cam
		return nil
	})
}

// SnapshotID returns the loaded snapshot id.
func (s *Scene) SnapshotID() string { return s.index.SnapshotID() }

// Dragging reports whether a drag is active.
func (s *Scene) Dragging(ctx context.Context) (bool, error) {
	var dragging bool
	err := s.do(ctx, func() error {
		dragging = s.ctrl.Dragging()
		return nil
	})
	return dragging, err
}

// Frame builds a frame immediately, regardless of change tracking.
func (s *Scene) Frame(ctx context.Context) (render.Frame, error) {
	var f render.Frame
	err := s.do(ctx, func() error {
		f = s.build()
		return nil
	})
	return f, err
}

// ================================ LOOP ===================================

func (s *Scene) nodeMoved(id string, x, y, z float64) {
	if s.hooks.OnNodeMoved != nil {
		s.hooks.OnNodeMoved(s.index.SnapshotID(), id, geom.V(x, y, z))
	}
}

// tick emits a frame when the store or UI state changed since the last one.
func (s *Scene) tick() {
	sv, uv := s.store.Version(), s.ui.Version()
	if !s.force && sv == s.lastStore && uv == s.lastUI {
		return
	}
	f := s.build()
	if s.hooks.OnFrame != nil {
		s.hooks.OnFrame(f)
	}
}

// lookupFunc adapts a lookup method to render.NodeLookup. Edges resolve
// through the hit index so an edge to a node dropped by the capacity limit
// is skipped like any other dangling edge.
type lookupFunc func(id string) (*graph.Node, bool)

func (f lookupFunc) GetNode(id string) (*graph.Node, bool) { return f(id) }

func (s *Scene) build() render.Frame {
	s.lastStore, s.lastUI, s.force = s.store.Version(), s.ui.Version(), false

	f := s.renderer.Frame(render.Input{
		SnapshotID: s.index.SnapshotID(),
		Nodes:      s.ctrl.HitIndex().Nodes(),
		Edges:      s.index.Edges(),
		Lookup:     lookupFunc(s.ctrl.HitIndex().Lookup),
		Positions:  s.store,
		View:       s.ui.View(),
	})
	f.Cursor = string(s.ctrl.Cursor())

	if f.DroppedRings > 0 && !s.warned {
		s.warned = true
		s.log.Warn("scene: status ring capacity exceeded",
			"snapshot_id", f.SnapshotID,
			"max_rings", s.opts.MaxRings,
			"dropped", f.DroppedRings,
		)
	}
	return f
}
