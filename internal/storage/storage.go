package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vyuha/vyuha-scene/internal/graph"
)

// ErrSnapshotNotFound is returned when a snapshot id or commit is unknown.
var ErrSnapshotNotFound = errors.New("storage: snapshot not found")

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// CatalogStats summarises the snapshot catalogue.
type CatalogStats struct {
	Snapshots  int       `json:"snapshots"`
	TotalNodes int       `json:"total_nodes"`
	TotalEdges int       `json:"total_edges"`
	Oldest     time.Time `json:"oldest,omitempty"`
	Newest     time.Time `json:"newest,omitempty"`
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ---------------------------------------------------------------------------
// Storage
// ---------------------------------------------------------------------------

// Storage is a thread-safe wrapper around a SQLite database that persists
// dependency-graph snapshots.
type Storage struct {
	db *sql.DB
	mu sync.RWMutex
}

// ============================= LIFECYCLE ==================================

// New opens (or creates) the SQLite database at dbPath, applies the
// recommended PRAGMAs, runs any pending migrations and returns a ready
// *Storage.
func New(dbPath string) (*Storage, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open db %q: %w", dbPath, err)
	}

	// Only one writer at a time for SQLite.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("storage: set pragma %q: %w", p, err)
		}
	}

	s := &Storage{db: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ============================ MIGRATIONS ==================================

// migrate ensures the schema_migrations table exists, then applies every
// unapplied Migration from the package-level Migrations slice.
func (s *Storage) migrate() error {
	const createMigTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		description TEXT
	)`
	if _, err := s.db.Exec(createMigTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range Migrations {
		var exists int
		err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration v%d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := s.db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration v%d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Storage) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("storage: schema version: %w", err)
	}
	return int(v.Int64), nil
}

// ======================== SNAPSHOT OPERATIONS =============================

// SaveSnapshot normalises snap and writes it, replacing any snapshot with
// the same id. Nodes and edges are written in chunks of 500 inside a single
// transaction so readers never see a half-written snapshot.
func (s *Storage) SaveSnapshot(ctx context.Context, snap *graph.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("storage: save snapshot: nil snapshot")
	}
	if _, err := snap.Normalize(); err != nil {
		return fmt.Errorf("storage: save snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx (save snapshot): %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Cascades to snapshot_nodes and snapshot_edges.
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, snap.ID); err != nil {
		return fmt.Errorf("storage: replace snapshot %q: %w", snap.ID, err)
	}

	const q = `INSERT INTO snapshots (id, label, commit_sha, created_at, node_count, edge_count)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		snap.ID, snap.Label, snap.CommitSHA, snap.CreatedAt.UTC().Format(timeLayout),
		len(snap.Nodes), len(snap.Edges),
	); err != nil {
		return fmt.Errorf("storage: insert snapshot %q: %w", snap.ID, err)
	}

	const chunkSize = 500
	for i := 0; i < len(snap.Nodes); i += chunkSize {
		end := min(i+chunkSize, len(snap.Nodes))
		if err := saveNodesChunk(ctx, tx, snap.ID, i, snap.Nodes[i:end]); err != nil {
			return err
		}
	}
	for i := 0; i < len(snap.Edges); i += chunkSize {
		end := min(i+chunkSize, len(snap.Edges))
		if err := saveEdgesChunk(ctx, tx, snap.ID, i, snap.Edges[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit snapshot %q: %w", snap.ID, err)
	}
	return nil
}

func saveNodesChunk(ctx context.Context, tx *sql.Tx, snapshotID string, offset int, nodes []graph.Node) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshot_nodes
		(snapshot_id, ord, id, label, kind, module_path, x, y, z,
		 language, service, cluster_id, color, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare save nodes: %w", err)
	}
	defer stmt.Close()

	for i, n := range nodes {
		metrics, err := json.Marshal(n.Metrics)
		if err != nil {
			return fmt.Errorf("storage: marshal metrics for %q: %w", n.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			snapshotID, offset+i, n.ID, n.Label, string(n.Kind), n.ModulePath,
			n.Position.X, n.Position.Y, n.Position.Z,
			n.Language, n.Service, n.ClusterID, n.Color, string(metrics),
		); err != nil {
			return fmt.Errorf("storage: insert node %q: %w", n.ID, err)
		}
	}
	return nil
}

func saveEdgesChunk(ctx context.Context, tx *sql.Tx, snapshotID string, offset int, edges []graph.Edge) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO snapshot_edges
		(snapshot_id, ord, id, source, target, imports, weight, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare save edges: %w", err)
	}
	defer stmt.Close()

	for i, e := range edges {
		imports := e.Imports
		if imports == nil {
			imports = []string{}
		}
		raw, err := json.Marshal(imports)
		if err != nil {
			return fmt.Errorf("storage: marshal imports for %q: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			snapshotID, offset+i, e.ID, e.Source, e.Target, string(raw), e.Weight, e.Color,
		); err != nil {
			return fmt.Errorf("storage: insert edge %q: %w", e.ID, err)
		}
	}
	return nil
}

// GetSnapshot loads a full snapshot with nodes and edges in their original
// order. Returns ErrSnapshotNotFound for unknown ids.
func (s *Storage) GetSnapshot(ctx context.Context, id string) (*graph.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, label, commit_sha, created_at, node_count, edge_count
		FROM snapshots WHERE id = ?`, id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get snapshot %q: %w", id, err)
	}

	snap := &graph.Snapshot{
		ID:        sum.ID,
		Label:     sum.Label,
		CommitSHA: sum.CommitSHA,
		CreatedAt: sum.CreatedAt,
	}

	nodeRows, err := s.db.QueryContext(ctx, `SELECT id, label, kind, module_path, x, y, z,
		language, service, cluster_id, color, metrics
		FROM snapshot_nodes WHERE snapshot_id = ? ORDER BY ord`, id)
	if err != nil {
		return nil, fmt.Errorf("storage: get nodes of %q: %w", id, err)
	}
	defer nodeRows.Close()
	if snap.Nodes, err = scanNodes(nodeRows); err != nil {
		return nil, err
	}

	edgeRows, err := s.db.QueryContext(ctx, `SELECT id, source, target, imports, weight, color
		FROM snapshot_edges WHERE snapshot_id = ? ORDER BY ord`, id)
	if err != nil {
		return nil, fmt.Errorf("storage: get edges of %q: %w", id, err)
	}
	defer edgeRows.Close()
	if snap.Edges, err = scanEdges(edgeRows); err != nil {
		return nil, err
	}
	return snap, nil
}

// GetSnapshotByCommit returns the most recent snapshot recorded for sha.
func (s *Storage) GetSnapshotByCommit(ctx context.Context, sha string) (*graph.Snapshot, error) {
	var id string
	s.mu.RLock()
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM snapshots WHERE commit_sha = ? ORDER BY created_at DESC LIMIT 1`, sha,
	).Scan(&id)
	s.mu.RUnlock()
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: commit %q", ErrSnapshotNotFound, sha)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get snapshot by commit %q: %w", sha, err)
	}
	return s.GetSnapshot(ctx, id)
}

// LatestSnapshot returns the newest snapshot in the catalogue.
func (s *Storage) LatestSnapshot(ctx context.Context) (*graph.Snapshot, error) {
	sums, err := s.ListSnapshots(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(sums) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return s.GetSnapshot(ctx, sums[0].ID)
}

// ListSnapshots returns summaries newest first. A non-positive limit lists
// everything.
func (s *Storage) ListSnapshots(ctx context.Context, limit int) ([]graph.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, commit_sha, created_at, node_count, edge_count
		FROM snapshots ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list snapshots: %w", err)
	}
	defer rows.Close()

	var result []graph.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan snapshot row: %w", err)
		}
		result = append(result, sum)
	}
	return result, rows.Err()
}

// DeleteSnapshot removes a snapshot with its nodes and edges.
func (s *Storage) DeleteSnapshot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete snapshot %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrSnapshotNotFound, id)
	}
	return nil
}

// ============================== STATS ====================================

// GetCatalogStats returns aggregate counts over all stored snapshots.
func (s *Storage) GetCatalogStats(ctx context.Context) (*CatalogStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &CatalogStats{}
	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(node_count), 0),
		COALESCE(SUM(edge_count), 0), MIN(created_at), MAX(created_at) FROM snapshots`,
	).Scan(&stats.Snapshots, &stats.TotalNodes, &stats.TotalEdges, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("storage: catalog stats: %w", err)
	}
	if oldest.Valid {
		stats.Oldest, _ = time.Parse(timeLayout, oldest.String)
	}
	if newest.Valid {
		stats.Newest, _ = time.Parse(timeLayout, newest.String)
	}
	return stats, nil
}

// ============================== SCANNERS ==================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(r rowScanner) (graph.Summary, error) {
	var (
		sum     graph.Summary
		created string
	)
	if err := r.Scan(&sum.ID, &sum.Label, &sum.CommitSHA, &created, &sum.NodeCount, &sum.EdgeCount); err != nil {
		return sum, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return sum, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	sum.CreatedAt = t
	return sum, nil
}

func scanNodes(rows *sql.Rows) ([]graph.Node, error) {
	var result []graph.Node
	for rows.Next() {
		var (
			n       graph.Node
			kind    string
			metrics string
		)
		if err := rows.Scan(
			&n.ID, &n.Label, &kind, &n.ModulePath,
			&n.Position.X, &n.Position.Y, &n.Position.Z,
			&n.Language, &n.Service, &n.ClusterID, &n.Color, &metrics,
		); err != nil {
			return nil, fmt.Errorf("storage: scan node row: %w", err)
		}
		n.Kind = graph.Kind(kind)
		if metrics != "" {
			if err := json.Unmarshal([]byte(metrics), &n.Metrics); err != nil {
				return nil, fmt.Errorf("storage: unmarshal metrics for %q: %w", n.ID, err)
			}
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func scanEdges(rows *sql.Rows) ([]graph.Edge, error) {
	var result []graph.Edge
	for rows.Next() {
		var (
			e       graph.Edge
			imports string
		)
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &imports, &e.Weight, &e.Color); err != nil {
			return nil, fmt.Errorf("storage: scan edge row: %w", err)
		}
		if imports != "" {
			if err := json.Unmarshal([]byte(imports), &e.Imports); err != nil {
				return nil, fmt.Errorf("storage: unmarshal imports for %q: %w", e.ID, err)
			}
		}
		if len(e.Imports) == 0 {
			e.Imports = nil
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
