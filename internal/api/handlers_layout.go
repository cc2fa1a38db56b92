package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vyuha/vyuha-scene/internal/events"
	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
	"github.com/vyuha/vyuha-scene/internal/layout"
	"github.com/vyuha/vyuha-scene/internal/position"
)

// LayoutPreviewRequest is the body of POST /api/layout/preview.
type LayoutPreviewRequest struct {
	SnapshotID string         `json:"snapshot_id"`
	Algorithm  string         `json:"algorithm"`
	Params     *layout.Params `json:"params,omitempty"`
}

// LayoutPreviewResult is the computed placement.
type LayoutPreviewResult struct {
	SnapshotID string               `json:"snapshot_id"`
	Algorithm  layout.Algorithm     `json:"algorithm"`
	Positions  map[string]geom.Vec3 `json:"positions"`
	Partial    bool                 `json:"partial,omitempty"`
}

// RunLayout computes a headless layout of snap without any view attached.
// A layout cut short by ctx still returns the positions reached so far,
// flagged as partial.
func RunLayout(ctx context.Context, snap *graph.Snapshot, alg layout.Algorithm, params layout.Params) (*LayoutPreviewResult, error) {
	idx := graph.NewIndex()
	idx.Load(snap)

	store := position.NewStore()
	engine := layout.NewEngine(store, params)
	engine.Load(idx.Nodes(), idx.Edges())

	partial := false
	if _, err := engine.Apply(ctx, alg); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		partial = true
	}
	return &LayoutPreviewResult{
		SnapshotID: snap.ID,
		Algorithm:  alg,
		Positions:  store.Positions(),
		Partial:    partial,
	}, nil
}

// handleLayoutPreview runs a layout over a stored snapshot and returns the
// resulting positions.
func (s *Server) handleLayoutPreview(w http.ResponseWriter, r *http.Request) {
	var req LayoutPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	alg, err := layout.ParseAlgorithm(req.Algorithm)
	if err != nil {
		writeError(w, http.StatusBadRequest, "UNKNOWN_ALGORITHM", err.Error())
		return
	}

	snap, ok := s.loadSnapshot(w, r, req.SnapshotID)
	if !ok {
		return
	}

	params := s.opts.Layout
	if req.Params != nil {
		params = *req.Params
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.Scene.LayoutBudget)
	defer cancel()

	res, err := RunLayout(ctx, snap, alg, params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LAYOUT_ERROR", err.Error())
		return
	}

	s.publish(r.Context(), events.TopicLayoutApplied, events.LayoutApplied{
		SnapshotID: snap.ID,
		Algorithm:  string(alg),
		Nodes:      len(res.Positions),
	})
	writeJSON(w, http.StatusOK, map[string]any{"data": res})
}
