package graph

import (
	"fmt"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/vyuha/vyuha-scene/internal/geom"
)

// ---------------------------------------------------------------------------
// Snapshot ids
// ---------------------------------------------------------------------------

// SnapshotIDPrefix is prepended to generated snapshot ids.
var SnapshotIDPrefix = "snap-"

// snapshotIDAlphabet is the character set for the random part of an id.
var snapshotIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// snapshotIDLength is the number of random characters after the prefix.
var snapshotIDLength = 12

// NewSnapshotID returns a short, URL-safe snapshot id.
func NewSnapshotID() (string, error) {
	id, err := nanoid.Generate(snapshotIDAlphabet, snapshotIDLength)
	if err != nil {
		return "", fmt.Errorf("graph: snapshot id: %w", err)
	}
	return SnapshotIDPrefix + id, nil
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Snapshot is one complete graph as delivered by the analysis pipeline or
// by temporal replay (one per sampled commit).
type Snapshot struct {
	ID        string    `json:"id" yaml:"id"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
	CommitSHA string    `json:"commit_sha,omitempty" yaml:"commit_sha,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Nodes     []Node    `json:"nodes" yaml:"nodes"`
	Edges     []Edge    `json:"edges" yaml:"edges"`
}

// NormalizeReport lists what Normalize changed.
type NormalizeReport struct {
	DuplicateNodes []string `json:"duplicate_nodes,omitempty"`
	DanglingEdges  []string `json:"dangling_edges,omitempty"`
	NonFinite      []string `json:"non_finite,omitempty"`
}

// Normalize prepares a freshly decoded snapshot: it assigns a missing id and
// timestamp, drops duplicate node ids (first occurrence wins), names unnamed
// edges and zeroes non-finite embedded positions. Dangling edges are reported
// but kept; renderers skip them.
func (s *Snapshot) Normalize() (NormalizeReport, error) {
	var rep NormalizeReport

	if s.ID == "" {
		id, err := NewSnapshotID()
		if err != nil {
			return rep, err
		}
		s.ID = id
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	seen := make(map[string]struct{}, len(s.Nodes))
	nodes := s.Nodes[:0]
	for _, n := range s.Nodes {
		if _, dup := seen[n.ID]; dup {
			rep.DuplicateNodes = append(rep.DuplicateNodes, n.ID)
			continue
		}
		seen[n.ID] = struct{}{}
		if !n.Position.IsFinite() {
			rep.NonFinite = append(rep.NonFinite, n.ID)
			n.Position = geom.Vec3{}
		}
		if n.Kind == "" {
			n.Kind = KindInternal
		}
		nodes = append(nodes, n)
	}
	s.Nodes = nodes

	for i := range s.Edges {
		e := &s.Edges[i]
		if e.ID == "" {
			e.ID = DefaultEdgeID(e.Source, e.Target)
		}
		_, okS := seen[e.Source]
		_, okT := seen[e.Target]
		if !okS || !okT {
			rep.DanglingEdges = append(rep.DanglingEdges, e.ID)
		}
	}
	return rep, nil
}

// NodeIDs returns node ids in snapshot order.
func (s *Snapshot) NodeIDs() []string {
	ids := make([]string, len(s.Nodes))
	for i := range s.Nodes {
		ids[i] = s.Nodes[i].ID
	}
	return ids
}

// Summary is the catalogue view of a snapshot without its payload.
type Summary struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	CommitSHA string    `json:"commit_sha,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
}

// Summary returns the catalogue view.
func (s *Snapshot) Summary() Summary {
	return Summary{
		ID:        s.ID,
		Label:     s.Label,
		CommitSHA: s.CommitSHA,
		CreatedAt: s.CreatedAt,
		NodeCount: len(s.Nodes),
		EdgeCount: len(s.Edges),
	}
}
