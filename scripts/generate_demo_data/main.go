// ===========================================================================
// scripts/generate_demo_data: Generate synthetic dependency-graph snapshots
//
// Usage:
//   go run ./scripts/generate_demo_data --out demo.json --modules 120
//   go run ./scripts/generate_demo_data --out demo.yaml --modules 40
//
//   # Temporal replay: write a numbered series into a watched directory
//   go run ./scripts/generate_demo_data --series 8 --out-dir ./replay
// ===========================================================================
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vyuha/vyuha-scene/internal/graph"
)

// ---------------------------------------------------------------------------
// Flags
// ---------------------------------------------------------------------------

var (
	out      = flag.String("out", "demo-snapshot.json", "Output file (.json, .yaml or .yml)")
	outDir   = flag.String("out-dir", "", "Directory for a replay series (enables --series)")
	series   = flag.Int("series", 0, "Number of snapshots in the replay series")
	modules  = flag.Int("modules", 80, "Number of internal modules")
	external = flag.Int("external", 12, "Number of third-party dependencies")
	seed     = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var services = []string{"gateway", "billing", "catalog", "identity", "search"}

var languages = []string{"go", "typescript", "python"}

var thirdParty = []string{
	"lodash", "react", "express", "axios", "zod", "grpc", "protobuf",
	"redis", "pg", "kafkajs", "jsonwebtoken", "dayjs", "uuid", "yaml",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	log.Println("══════════════════════════════════════════")
	log.Println("  VYUHA SCENE — Snapshot Generator")
	log.Println("══════════════════════════════════════════")

	if *series > 0 {
		if *outDir == "" {
			log.Fatal("  ✗ --series needs --out-dir")
		}
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			log.Fatalf("  ✗ create %s: %v", *outDir, err)
		}
		base := generate(rng, *modules, *external)
		start := time.Now().UTC().Add(-time.Duration(*series) * time.Hour)
		for i := 0; i < *series; i++ {
			snap := evolve(rng, base, i)
			snap.ID = fmt.Sprintf("replay-%03d", i)
			snap.Label = fmt.Sprintf("main~%d", *series-1-i)
			snap.CommitSHA = fmt.Sprintf("%040x", rng.Int63())
			snap.CreatedAt = start.Add(time.Duration(i) * time.Hour)

			path := filepath.Join(*outDir, fmt.Sprintf("%03d-%s.json", i, snap.ID))
			if err := write(path, snap); err != nil {
				log.Fatalf("  ✗ %v", err)
			}
			log.Printf("  ✓ %s (%d nodes, %d edges)", path, len(snap.Nodes), len(snap.Edges))
		}
		return
	}

	snap := generate(rng, *modules, *external)
	if err := write(*out, snap); err != nil {
		log.Fatalf("  ✗ %v", err)
	}
	log.Printf("  ✓ %s (%d nodes, %d edges)", *out, len(snap.Nodes), len(snap.Edges))
}

// ---------------------------------------------------------------------------
// Generation
// ---------------------------------------------------------------------------

func generate(rng *rand.Rand, nModules, nExternal int) *graph.Snapshot {
	id, err := graph.NewSnapshotID()
	if err != nil {
		log.Fatalf("  ✗ snapshot id: %v", err)
	}
	snap := &graph.Snapshot{
		ID:        id,
		Label:     "demo",
		CreatedAt: time.Now().UTC(),
	}

	for i := 0; i < nModules; i++ {
		svc := services[rng.Intn(len(services))]
		path := fmt.Sprintf("%s/%s/mod%03d", svc, []string{"api", "core", "store", "util"}[rng.Intn(4)], i)
		snap.Nodes = append(snap.Nodes, graph.Node{
			ID:         path,
			Label:      filepath.Base(path),
			Kind:       graph.KindInternal,
			ModulePath: path,
			Language:   languages[rng.Intn(len(languages))],
			Service:    svc,
			ClusterID:  svc,
		})
	}
	if nExternal > len(thirdParty) {
		nExternal = len(thirdParty)
	}
	for _, name := range thirdParty[:nExternal] {
		snap.Nodes = append(snap.Nodes, graph.Node{
			ID:         "npm:" + name,
			Label:      name,
			Kind:       graph.KindThirdParty,
			ModulePath: name,
		})
	}

	// Mostly same-service imports, a few cross-service and external ones.
	for i := 0; i < nModules; i++ {
		src := &snap.Nodes[i]
		for k := rng.Intn(4); k > 0; k-- {
			var dst *graph.Node
			switch r := rng.Float64(); {
			case r < 0.6:
				dst = &snap.Nodes[rng.Intn(nModules)]
				if dst.Service != src.Service {
					continue
				}
			case r < 0.8 || nExternal == 0:
				dst = &snap.Nodes[rng.Intn(nModules)]
			default:
				dst = &snap.Nodes[nModules+rng.Intn(nExternal)]
			}
			if dst.ID == src.ID {
				continue
			}
			snap.Edges = append(snap.Edges, graph.Edge{
				ID:      src.ID + "->" + dst.ID,
				Source:  src.ID,
				Target:  dst.ID,
				Imports: []string{"default"},
				Weight:  float64(1 + rng.Intn(5)),
			})
		}
	}

	annotate(rng, snap)
	return snap
}

// annotate derives coupling metrics from the edges and flags a few hot zones.
func annotate(rng *rand.Rand, snap *graph.Snapshot) {
	in := map[string]int{}
	outDeg := map[string]int{}
	pairs := map[string]bool{}
	for _, e := range snap.Edges {
		outDeg[e.Source]++
		in[e.Target]++
		pairs[e.Source+"\x00"+e.Target] = true
	}

	for i := range snap.Nodes {
		n := &snap.Nodes[i]
		m := &n.Metrics
		m.AfferentCoupling = in[n.ID]
		m.EfferentCoupling = outDeg[n.ID]
		if total := m.TotalCoupling(); total > 0 {
			m.Instability = float64(m.EfferentCoupling) / float64(total)
		}
		m.Complexity = 1 + rng.Float64()*40
		m.Maintainability = 100 - m.Complexity*rng.Float64()*2
		m.IsHighCoupling = m.TotalCoupling() >= 8
		if n.Kind == graph.KindInternal && m.Complexity > 30 && m.AfferentCoupling >= 3 {
			m.IsHotZone = true
			m.HotZoneSeverity = graph.SeverityWarning
			if m.Complexity > 36 {
				m.HotZoneSeverity = graph.SeverityCritical
			}
		}
	}

	for _, e := range snap.Edges {
		if pairs[e.Target+"\x00"+e.Source] {
			for i := range snap.Nodes {
				if snap.Nodes[i].ID == e.Source {
					snap.Nodes[i].Metrics.IsCircular = true
				}
			}
		}
	}
}

// evolve returns a copy of base drifted by step: edges appear and vanish so
// consecutive snapshots differ the way successive commits do.
func evolve(rng *rand.Rand, base *graph.Snapshot, step int) *graph.Snapshot {
	snap := &graph.Snapshot{
		Nodes: append([]graph.Node(nil), base.Nodes...),
	}
	for _, e := range base.Edges {
		if rng.Float64() < 0.05*float64(step%4) {
			continue
		}
		snap.Edges = append(snap.Edges, e)
	}
	for i := 0; i < step*2 && len(snap.Nodes) > 1; i++ {
		a := snap.Nodes[rng.Intn(len(snap.Nodes))]
		b := snap.Nodes[rng.Intn(len(snap.Nodes))]
		if a.ID == b.ID || a.Kind == graph.KindThirdParty {
			continue
		}
		snap.Edges = append(snap.Edges, graph.Edge{
			ID:     fmt.Sprintf("%s->%s#%d", a.ID, b.ID, step),
			Source: a.ID,
			Target: b.ID,
			Weight: 1,
		})
	}
	for i := range snap.Nodes {
		snap.Nodes[i].Metrics = graph.Metrics{}
	}
	annotate(rng, snap)
	return snap
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func write(path string, snap *graph.Snapshot) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(snap)
	default:
		data, err = json.MarshalIndent(snap, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	// Write then rename so a watcher never sees a half-written file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
