package graph

import (
	"github.com/vyuha/vyuha-scene/internal/geom"
)

// ---------------------------------------------------------------------------
// Node kinds
// ---------------------------------------------------------------------------

// Kind distinguishes first-party modules from aggregated external dependencies.
type Kind string

const (
	KindInternal   Kind = "internal"
	KindThirdParty Kind = "third_party"
)

// HotZoneSeverity grades a hot zone.
type HotZoneSeverity string

const (
	SeverityCritical HotZoneSeverity = "critical"
	SeverityWarning  HotZoneSeverity = "warning"
)

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// Metrics is the precomputed dependency profile of a node. It is produced by
// the analysis pipeline and never derived here.
type Metrics struct {
	AfferentCoupling     int             `json:"afferent_coupling" yaml:"afferent_coupling"`
	EfferentCoupling     int             `json:"efferent_coupling" yaml:"efferent_coupling"`
	Instability          float64         `json:"instability" yaml:"instability"`
	Complexity           float64         `json:"complexity_score" yaml:"complexity_score"`
	Maintainability      float64         `json:"maintainability_score" yaml:"maintainability_score"`
	ComplexityGrade      string          `json:"complexity_grade,omitempty" yaml:"complexity_grade,omitempty"`
	MaintainabilityGrade string          `json:"maintainability_grade,omitempty" yaml:"maintainability_grade,omitempty"`
	IsHotZone            bool            `json:"is_hot_zone" yaml:"is_hot_zone"`
	HotZoneSeverity      HotZoneSeverity `json:"hot_zone_severity,omitempty" yaml:"hot_zone_severity,omitempty"`
	IsCircular           bool            `json:"is_circular" yaml:"is_circular"`
	IsHighCoupling       bool            `json:"is_high_coupling" yaml:"is_high_coupling"`
}

// TotalCoupling is afferent plus efferent coupling.
func (m Metrics) TotalCoupling() int {
	return m.AfferentCoupling + m.EfferentCoupling
}

// ---------------------------------------------------------------------------
// Node
// ---------------------------------------------------------------------------

// Node is a module (or an aggregated third-party dependency) in the analysed
// codebase. Position is only the initial/fallback placement; once a scene
// owns the node, the position store holds the live value.
type Node struct {
	ID         string    `json:"id" yaml:"id"`
	Label      string    `json:"label" yaml:"label"`
	Kind       Kind      `json:"kind" yaml:"kind"`
	ModulePath string    `json:"module_path" yaml:"module_path"`
	Position   geom.Vec3 `json:"position" yaml:"position"`
	Language   string    `json:"language,omitempty" yaml:"language,omitempty"`
	Service    string    `json:"service,omitempty" yaml:"service,omitempty"`
	Metrics    Metrics   `json:"metrics" yaml:"metrics"`
	ClusterID  string    `json:"cluster_id,omitempty" yaml:"cluster_id,omitempty"`
	Color      string    `json:"color,omitempty" yaml:"color,omitempty"`
}

// IsThirdParty returns true for aggregated external dependencies.
func (n *Node) IsThirdParty() bool {
	return n.Kind == KindThirdParty
}

// IsCriticalHotZone returns true when the node is a hot zone graded critical.
func (n *Node) IsCriticalHotZone() bool {
	return n.Metrics.IsHotZone && n.Metrics.HotZoneSeverity == SeverityCritical
}

// HasStatus reports whether the node exhibits the given filter status.
func (n *Node) HasStatus(s Status) bool {
	switch s {
	case StatusHotZone:
		return n.Metrics.IsHotZone
	case StatusCircular:
		return n.Metrics.IsCircular
	case StatusHighCoupling:
		return n.Metrics.IsHighCoupling
	}
	return false
}

// DisplayName returns the label, falling back to the id.
func (n *Node) DisplayName() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}
