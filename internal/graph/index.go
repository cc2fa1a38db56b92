package graph

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// snapshotLoader is the minimal interface the Index needs to load from the
// persistence layer without importing the storage package (which already
// imports graph).
// ---------------------------------------------------------------------------

type snapshotLoader interface {
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
}

// ---------------------------------------------------------------------------
// IndexStats
// ---------------------------------------------------------------------------

// IndexStats summarises the contents of one indexed snapshot.
type IndexStats struct {
	SnapshotID      string         `json:"snapshot_id"`
	TotalNodes      int            `json:"total_nodes"`
	TotalEdges      int            `json:"total_edges"`
	DanglingEdges   int            `json:"dangling_edges"`
	ThirdPartyNodes int            `json:"third_party_nodes"`
	NodesByLanguage map[string]int `json:"nodes_by_language"`
	NodesByService  map[string]int `json:"nodes_by_service"`
	StatusCounts    map[string]int `json:"status_counts"`
}

// ---------------------------------------------------------------------------
// Index
// ---------------------------------------------------------------------------

// Index is a read-mostly lookup over a single snapshot. It is rebuilt
// wholesale on every Load.
//
// All public methods are goroutine-safe.
type Index struct {
	mu         sync.RWMutex
	snapshotID string
	order      []string           // node ids in snapshot order
	nodes      map[string]*Node   // id → node
	edges      map[string]*Edge   // id → edge
	edgeOrder  []string           // edge ids in snapshot order
	outEdges   map[string][]*Edge // source → edges
	inEdges    map[string][]*Edge // target → edges
	byLanguage map[string][]string
	byService  map[string][]string
	dangling   int
}

// NewIndex returns an empty Index ready for use.
func NewIndex() *Index {
	return &Index{
		nodes:      make(map[string]*Node),
		edges:      make(map[string]*Edge),
		outEdges:   make(map[string][]*Edge),
		inEdges:    make(map[string][]*Edge),
		byLanguage: make(map[string][]string),
		byService:  make(map[string][]string),
	}
}

// ============================= LOADING ====================================

// LoadFromStorage fetches the snapshot by id and indexes it.
func (g *Index) LoadFromStorage(ctx context.Context, store snapshotLoader, id string) (*Snapshot, error) {
	snap, err := store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Load(snap)
	return snap, nil
}

// Load replaces the index contents with snap. Duplicate node ids keep their
// first occurrence. Nodes and edges are copied so later mutation of snap
// does not leak in.
func (g *Index) Load(snap *Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.snapshotID = snap.ID
	g.order = make([]string, 0, len(snap.Nodes))
	g.nodes = make(map[string]*Node, len(snap.Nodes))
	g.edges = make(map[string]*Edge, len(snap.Edges))
	g.edgeOrder = make([]string, 0, len(snap.Edges))
	g.outEdges = make(map[string][]*Edge)
	g.inEdges = make(map[string][]*Edge)
	g.byLanguage = make(map[string][]string)
	g.byService = make(map[string][]string)
	g.dangling = 0

	for i := range snap.Nodes {
		n := snap.Nodes[i]
		if _, dup := g.nodes[n.ID]; dup {
			continue
		}
		g.indexNodeLocked(&n)
	}
	for i := range snap.Edges {
		e := snap.Edges[i]
		if e.ID == "" {
			e.ID = DefaultEdgeID(e.Source, e.Target)
		}
		if _, dup := g.edges[e.ID]; dup {
			continue
		}
		g.indexEdgeLocked(&e)
	}

	slog.Debug("graph-index: loaded",
		"snapshot_id", snap.ID,
		"nodes", len(g.nodes),
		"edges", len(g.edges),
		"dangling", g.dangling,
	)
}

// indexNodeLocked inserts a node into every secondary map.
// Caller MUST hold g.mu write lock.
func (g *Index) indexNodeLocked(n *Node) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	if n.Language != "" {
		g.byLanguage[n.Language] = append(g.byLanguage[n.Language], n.ID)
	}
	if n.Service != "" {
		g.byService[n.Service] = append(g.byService[n.Service], n.ID)
	}
}

// indexEdgeLocked inserts an edge into the adjacency maps.
// Caller MUST hold g.mu write lock.
func (g *Index) indexEdgeLocked(e *Edge) {
	g.edges[e.ID] = e
	g.edgeOrder = append(g.edgeOrder, e.ID)
	g.outEdges[e.Source] = append(g.outEdges[e.Source], e)
	g.inEdges[e.Target] = append(g.inEdges[e.Target], e)
	_, okS := g.nodes[e.Source]
	_, okT := g.nodes[e.Target]
	if !okS || !okT {
		g.dangling++
	}
}

// ============================== LOOKUPS ==================================

// SnapshotID returns the id of the indexed snapshot.
func (g *Index) SnapshotID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshotID
}

// GetNode returns the node with the given id.
func (g *Index) GetNode(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// GetEdge returns the edge with the given id.
func (g *Index) GetEdge(id string) (*Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[id]
	return e, ok
}

// Nodes returns every node in snapshot order.
func (g *Index) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.resolveIDsLocked(g.order)
}

// Edges returns every edge in snapshot order, dangling ones included.
func (g *Index) Edges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, g.edges[id])
	}
	return out
}

// GetOutEdges returns edges whose source is nodeID.
func (g *Index) GetOutEdges(nodeID string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Edge(nil), g.outEdges[nodeID]...)
}

// GetInEdges returns edges whose target is nodeID.
func (g *Index) GetInEdges(nodeID string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]*Edge(nil), g.inEdges[nodeID]...)
}

// Languages returns the sorted set of language tags present.
func (g *Index) Languages() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.byLanguage)
}

// Services returns the sorted set of service tags present.
func (g *Index) Services() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.byService)
}

// resolveIDsLocked maps ids to nodes, skipping unknown ids.
// Caller MUST hold g.mu.RLock.
func (g *Index) resolveIDsLocked(ids []string) []*Node {
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// InModule reports whether the node belongs to modulePath: its own module
// path equals it or is nested below it ("/" or "." separated).
func InModule(n *Node, modulePath string) bool {
	if modulePath == "" || n.ModulePath == "" {
		return false
	}
	if n.ModulePath == modulePath {
		return true
	}
	if !strings.HasPrefix(n.ModulePath, modulePath) {
		return false
	}
	sep := n.ModulePath[len(modulePath)]
	return sep == '/' || sep == '.'
}

// ============================== STATS ====================================

// NodeCount returns the number of distinct nodes.
func (g *Index) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of distinct edges.
func (g *Index) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Stats returns a full IndexStats snapshot.
func (g *Index) Stats() IndexStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	byLang := make(map[string]int, len(g.byLanguage))
	for l, ids := range g.byLanguage {
		byLang[l] = len(ids)
	}
	bySvc := make(map[string]int, len(g.byService))
	for s, ids := range g.byService {
		bySvc[s] = len(ids)
	}

	statusCounts := make(map[string]int)
	third := 0
	for _, n := range g.nodes {
		if n.IsThirdParty() {
			third++
		}
		for _, s := range []Status{StatusHotZone, StatusCircular, StatusHighCoupling} {
			if n.HasStatus(s) {
				statusCounts[string(s)]++
			}
		}
	}

	return IndexStats{
		SnapshotID:      g.snapshotID,
		TotalNodes:      len(g.nodes),
		TotalEdges:      len(g.edges),
		DanglingEdges:   g.dangling,
		ThirdPartyNodes: third,
		NodesByLanguage: byLang,
		NodesByService:  bySvc,
		StatusCounts:    statusCounts,
	}
}

func sortedKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
