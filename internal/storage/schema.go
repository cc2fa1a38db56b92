package storage

// ---------------------------------------------------------------------------
// Schema version
// ---------------------------------------------------------------------------

// SchemaVersion is the current database schema version.
const SchemaVersion = 2

// schemaSQL creates the snapshot catalogue. Edges keep no foreign keys on
// their endpoints: a snapshot may reference nodes it does not contain and
// renderers skip such edges.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
    id          TEXT PRIMARY KEY,
    label       TEXT NOT NULL DEFAULT '',
    commit_sha  TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL,
    node_count  INTEGER NOT NULL DEFAULT 0,
    edge_count  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snapshot_nodes (
    snapshot_id  TEXT NOT NULL,
    ord          INTEGER NOT NULL,
    id           TEXT NOT NULL,
    label        TEXT NOT NULL DEFAULT '',
    kind         TEXT NOT NULL DEFAULT 'internal',
    module_path  TEXT NOT NULL DEFAULT '',
    x            REAL NOT NULL DEFAULT 0,
    y            REAL NOT NULL DEFAULT 0,
    z            REAL NOT NULL DEFAULT 0,
    language     TEXT NOT NULL DEFAULT '',
    service      TEXT NOT NULL DEFAULT '',
    cluster_id   TEXT NOT NULL DEFAULT '',
    color        TEXT NOT NULL DEFAULT '',
    metrics      TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (snapshot_id, id),
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS snapshot_edges (
    snapshot_id  TEXT NOT NULL,
    ord          INTEGER NOT NULL,
    id           TEXT NOT NULL,
    source       TEXT NOT NULL,
    target       TEXT NOT NULL,
    imports      TEXT NOT NULL DEFAULT '[]',
    weight       REAL NOT NULL DEFAULT 0,
    color        TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (snapshot_id, id),
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snapshot_nodes_ord ON snapshot_nodes(snapshot_id, ord);
CREATE INDEX IF NOT EXISTS idx_snapshot_edges_ord ON snapshot_edges(snapshot_id, ord);
`

// GetSchema returns the base schema as a string.
func GetSchema() string {
	return schemaSQL
}

// ---------------------------------------------------------------------------
// Migration support
// ---------------------------------------------------------------------------

// Migration describes a single schema migration that can be applied to the
// database. Migrations are ordered by Version and are idempotent.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the ordered list of all schema migrations.
// Apply them sequentially; skip any whose Version is already recorded
// in the schema_migrations table.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: snapshots, snapshot_nodes, snapshot_edges",
		SQL:         schemaSQL,
	},
	{
		Version:     2,
		Description: "Index snapshots by commit and creation time for temporal replay",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_snapshots_commit ON snapshots(commit_sha);
CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
`,
	},
}
