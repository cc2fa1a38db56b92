package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vyuha/vyuha-scene/internal/events"
	"github.com/vyuha/vyuha-scene/internal/graph"
	"github.com/vyuha/vyuha-scene/internal/source"
	"github.com/vyuha/vyuha-scene/internal/storage"
)

// maxSnapshotBytes caps an ingested snapshot body.
const maxSnapshotBytes = 64 << 20

// ---------------------------------------------------------------------------
// POST /api/snapshots
// ---------------------------------------------------------------------------

// handleSnapshotCreate ingests a JSON (or, with a YAML content type, YAML)
// snapshot and stores it.
func (s *Server) handleSnapshotCreate(w http.ResponseWriter, r *http.Request) {
	format := source.FormatJSON
	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		format = source.FormatYAML
	}

	snap, rep, err := source.Decode(http.MaxBytesReader(w, r.Body, maxSnapshotBytes), format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SNAPSHOT", err.Error())
		return
	}
	if len(snap.Nodes) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_SNAPSHOT", "snapshot has no nodes")
		return
	}

	if err := s.Ingest(r.Context(), snap); err != nil {
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "failed to save snapshot")
		return
	}

	if len(rep.DuplicateNodes) > 0 || len(rep.DanglingEdges) > 0 || len(rep.NonFinite) > 0 {
		slog.Warn("snapshot normalised",
			"snapshot_id", snap.ID,
			"duplicate_nodes", len(rep.DuplicateNodes),
			"dangling_edges", len(rep.DanglingEdges),
			"non_finite", len(rep.NonFinite),
		)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"data":   snap.Summary(),
		"report": rep,
	})
}

// Ingest stores snap and announces it. Replay watchers and imports share it
// with the HTTP endpoint.
func (s *Server) Ingest(ctx context.Context, snap *graph.Snapshot) error {
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		slog.Error("save snapshot failed", "snapshot_id", snap.ID, "error", err)
		return err
	}
	s.publish(ctx, events.TopicSnapshotAdded, events.SnapshotAdded{Snapshot: snap.Summary()})
	return nil
}

// ---------------------------------------------------------------------------
// GET /api/snapshots
// ---------------------------------------------------------------------------

func (s *Server) handleSnapshotList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sums, err := s.store.ListSnapshots(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}
	if sums == nil {
		sums = []graph.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  sums,
		"count": len(sums),
	})
}

// ---------------------------------------------------------------------------
// GET /api/snapshots/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleSnapshotGet(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.loadSnapshot(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": snap})
}

// handleSnapshotStats indexes a stored snapshot and reports its shape.
func (s *Server) handleSnapshotStats(w http.ResponseWriter, r *http.Request) {
	idx := graph.NewIndex()
	if _, err := idx.LoadFromStorage(r.Context(), s.store, r.PathValue("id")); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":      idx.Stats(),
		"languages": idx.Languages(),
		"services":  idx.Services(),
	})
}

// ---------------------------------------------------------------------------
// DELETE /api/snapshots/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSnapshot(r.Context(), r.PathValue("id")); err != nil {
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCatalogStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetCatalogStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": stats})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// loadSnapshot fetches id, or the newest snapshot when id is empty, and
// writes the error response itself on failure.
func (s *Server) loadSnapshot(w http.ResponseWriter, r *http.Request, id string) (*graph.Snapshot, bool) {
	var (
		snap *graph.Snapshot
		err  error
	)
	if id == "" {
		snap, err = s.store.LatestSnapshot(r.Context())
	} else {
		snap, err = s.store.GetSnapshot(r.Context(), id)
	}
	if err != nil {
		writeStorageError(w, err)
		return nil, false
	}
	return snap, true
}

func writeStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		writeError(w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", err.Error())
		return
	}
	slog.Error("storage error", "error", err)
	writeError(w, http.StatusInternalServerError, "STORAGE_ERROR", "storage failure")
}
