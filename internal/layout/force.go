package layout

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/vyuha/vyuha-scene/internal/geom"
	"github.com/vyuha/vyuha-scene/internal/graph"
)

// Params tunes the force-directed relaxation.
type Params struct {
	Iterations int     `json:"iterations" koanf:"iterations"`
	Repulsion  float64 `json:"repulsion" koanf:"repulsion"`
	Attraction float64 `json:"attraction" koanf:"attraction"`
	Damping    float64 `json:"damping" koanf:"damping"`
	Epsilon    float64 `json:"epsilon" koanf:"epsilon"`
	// InitSpread is the side of the cube unset nodes are scattered in.
	InitSpread float64 `json:"init_spread" koanf:"init_spread"`
	// Seed makes random scattering reproducible. Zero seeds from the clock.
	Seed int64 `json:"seed" koanf:"seed"`
	// Radius is used by the circular layout.
	Radius float64 `json:"radius" koanf:"radius"`
}

// DefaultParams returns the stock parameter set.
func DefaultParams() Params {
	return Params{
		Iterations: 50,
		Repulsion:  1000,
		Attraction: 0.01,
		Damping:    0.5,
		Epsilon:    0.01,
		InitSpread: 100,
		Radius:     DefaultRadius,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Iterations <= 0 {
		p.Iterations = d.Iterations
	}
	if p.Repulsion <= 0 {
		p.Repulsion = d.Repulsion
	}
	if p.Attraction <= 0 {
		p.Attraction = d.Attraction
	}
	if p.Damping <= 0 || p.Damping >= 1 {
		p.Damping = d.Damping
	}
	if p.Epsilon <= 0 {
		p.Epsilon = d.Epsilon
	}
	if p.InitSpread <= 0 {
		p.InitSpread = d.InitSpread
	}
	if p.Radius <= 0 {
		p.Radius = d.Radius
	}
	return p
}

// repulsionCheck is how many rows of the O(n²) repulsion pass run between
// context checks.
const repulsionCheck = 64

// ForceDirected relaxes the graph with pairwise inverse-square repulsion and
// per-edge linear attraction. Each node starts at its current position, or
// at a random point in a cube of side InitSpread when that position is the
// origin. Edges with an endpoint outside nodes are ignored.
//
// ctx is checked between iterations and every repulsionCheck rows of the
// pairwise pass. On cancellation the positions reached by the last complete
// iteration are returned together with ctx.Err().
func ForceDirected(ctx context.Context, nodes []*graph.Node, edges []*graph.Edge, current Resolver, p Params) (Result, error) {
	p = p.withDefaults()
	n := len(nodes)
	if n == 0 {
		return Result{}, nil
	}
	if current == nil {
		current = Embedded
	}

	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	slot := make(map[string]int, n)
	pos := make([]geom.Vec3, n)
	vel := make([]geom.Vec3, n)
	for i, node := range nodes {
		slot[node.ID] = i
		start := current.Resolve(node)
		if start.IsZero() || !start.IsFinite() {
			half := p.InitSpread / 2
			start = geom.V(
				rng.Float64()*p.InitSpread-half,
				rng.Float64()*p.InitSpread-half,
				rng.Float64()*p.InitSpread-half,
			)
		}
		pos[i] = start
	}

	type spring struct{ s, t int }
	springs := make([]spring, 0, len(edges))
	for _, e := range edges {
		if e.IsSelfLoop() {
			continue
		}
		s, okS := slot[e.Source]
		t, okT := slot[e.Target]
		if !okS || !okT {
			continue
		}
		springs = append(springs, spring{s, t})
	}

	var err error
relax:
	for iter := 0; iter < p.Iterations; iter++ {
		if err = ctx.Err(); err != nil {
			break
		}

		// Repulsion.
		for i := 0; i < n; i++ {
			if i%repulsionCheck == 0 {
				if err = ctx.Err(); err != nil {
					break relax
				}
			}
			for j := i + 1; j < n; j++ {
				d := pos[i].Sub(pos[j])
				distSq := d.LengthSq()
				if distSq == 0 {
					continue
				}
				f := d.Scale(p.Repulsion / (distSq + p.Epsilon) / math.Sqrt(distSq))
				vel[i] = vel[i].Add(f)
				vel[j] = vel[j].Sub(f)
			}
		}

		// Attraction.
		for _, sp := range springs {
			f := pos[sp.t].Sub(pos[sp.s]).Scale(p.Attraction)
			vel[sp.s] = vel[sp.s].Add(f)
			vel[sp.t] = vel[sp.t].Sub(f)
		}

		// Integrate and damp.
		for i := range pos {
			pos[i] = pos[i].Add(vel[i])
			vel[i] = vel[i].Scale(p.Damping)
		}
	}

	out := make(Result, n)
	for i, node := range nodes {
		out[node.ID] = pos[i]
	}
	return out, err
}
