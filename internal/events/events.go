// Package events carries scene notifications out of the server: node moves,
// selection changes, applied layouts and newly ingested snapshots.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// Event topic constants
const (
	TopicNodeMoved     = "scene.node.moved"
	TopicNodeSelected  = "scene.node.selected"
	TopicEdgeSelected  = "scene.edge.selected"
	TopicLayoutApplied = "scene.layout.applied"
	TopicSnapshotAdded = "scene.snapshot.added"
)

// Event types

type NodeMoved struct {
	SnapshotID string    `json:"snapshot_id"`
	NodeID     string    `json:"node_id"`
	Position   geom.Vec3 `json:"position"`
	At         time.Time `json:"at"`
}

// SelectionChanged carries the selected id; an empty ID means cleared.
// Node selections list the node's direct imports in both directions, edge
// selections their endpoints.
type SelectionChanged struct {
	SnapshotID string   `json:"snapshot_id"`
	Session    string   `json:"session,omitempty"`
	ID         string   `json:"id"`
	Label      string   `json:"label,omitempty"`
	Imports    []string `json:"imports,omitempty"`
	ImportedBy []string `json:"imported_by,omitempty"`
	Source     string   `json:"source,omitempty"`
	Target     string   `json:"target,omitempty"`
}

type LayoutApplied struct {
	SnapshotID string `json:"snapshot_id"`
	Algorithm  string `json:"algorithm"`
	Nodes      int    `json:"nodes"`
}

type SnapshotAdded struct {
	Snapshot graph.Summary `json:"snapshot"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// ---------------------------------------------------------------------------
// Multi
// ---------------------------------------------------------------------------

// Multi fans every event out to several publishers.
type Multi []Publisher

// Publish delivers to every publisher and joins their errors.
func (m Multi) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
