package geom

// ArcLift is the fraction of the straight-line endpoint distance by which the
// control point is raised. It keeps overlapping straight edges apart.
const ArcLift = 0.15

// Arc is a quadratic Bézier from Start to End through the raised midpoint Mid.
type Arc struct {
	Start Vec3 `json:"start"`
	Mid   Vec3 `json:"mid"`
	End   Vec3 `json:"end"`
}

// NewArc lifts the midpoint of start→end by ArcLift of their distance.
func NewArc(start, end Vec3) Arc {
	mid := start.Lerp(end, 0.5)
	mid.Y += start.Distance(end) * ArcLift
	return Arc{Start: start, Mid: mid, End: end}
}

// Point evaluates the curve at t ∈ [0, 1].
func (a Arc) Point(t float64) Vec3 {
	u := 1 - t
	return a.Start.Scale(u * u).
		Add(a.Mid.Scale(2 * u * t)).
		Add(a.End.Scale(t * t))
}

// Tangent returns the (unnormalized) derivative at t.
func (a Arc) Tangent(t float64) Vec3 {
	return a.Mid.Sub(a.Start).Scale(2 * (1 - t)).
		Add(a.End.Sub(a.Mid).Scale(2 * t))
}

// Sample returns segments+1 points along the curve, inclusive of both ends.
// The first and last points are the literal endpoints.
func (a Arc) Sample(segments int) []Vec3 {
	if segments < 1 {
		segments = 1
	}
	pts := make([]Vec3, segments+1)
	for i := 0; i <= segments; i++ {
		pts[i] = a.Point(float64(i) / float64(segments))
	}
	pts[0] = a.Start
	pts[segments] = a.End
	return pts
}

// Arrowhead is the transform of a cone marking an edge's direction.
type Arrowhead struct {
	Position    Vec3       `json:"position"`
	Direction   Vec3       `json:"direction"`
	Orientation Quaternion `json:"orientation"`
}

// ArrowheadAt places an arrowhead back from the arc's end by offset along the
// end tangent, oriented so the cone's +Y axis points along that tangent.
// Degenerate arcs (start == end) yield an unrotated arrowhead at the end.
func (a Arc) ArrowheadAt(offset float64) Arrowhead {
	dir := a.Tangent(1).Normalize()
	if dir.IsZero() {
		return Arrowhead{Position: a.End, Orientation: IdentityQuaternion}
	}
	return Arrowhead{
		Position:    a.End.Sub(dir.Scale(offset)),
		Direction:   dir,
		Orientation: QuaternionFromUnitVectors(Up, dir),
	}
}
