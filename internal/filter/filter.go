// Package filter decides whether a node passes the active graph filters.
package filter

import (
	"slices"

	"github.com/vyuha/vyuha-scene/internal/graph"
)

// Active reports whether any criterion in f is set.
func Active(f graph.Filters) bool {
	return !f.Empty()
}

// Matches reports whether n passes f. When active is false every node
// matches. ThirdPartyOnly short-circuits the other criteria; otherwise the
// language, service and status criteria must all hold, and an empty
// criterion always holds.
func Matches(n *graph.Node, f graph.Filters, active bool) bool {
	if !active {
		return true
	}
	if f.ThirdPartyOnly {
		return n.IsThirdParty()
	}
	if len(f.Languages) > 0 && !slices.Contains(f.Languages, n.Language) {
		return false
	}
	if len(f.Services) > 0 && !slices.Contains(f.Services, n.Service) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.ContainsFunc(f.Statuses, n.HasStatus) {
		return false
	}
	return true
}

// Predicate binds f so callers on the render path can test many nodes.
func Predicate(f graph.Filters) func(*graph.Node) bool {
	active := Active(f)
	return func(n *graph.Node) bool { return Matches(n, f, active) }
}
