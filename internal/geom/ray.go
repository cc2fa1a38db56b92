package geom

import "math"

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin    Vec3 `json:"origin"`
	Direction Vec3 `json:"direction"`
}

// NewRay normalizes dir.
func NewRay(origin, dir Vec3) Ray {
	return Ray{Origin: origin, Direction: dir.Normalize()}
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// Plane is the set of points p with Normal·p + Constant = 0.
type Plane struct {
	Normal   Vec3    `json:"normal"`
	Constant float64 `json:"constant"`
}

// HorizontalPlane returns the plane with an upward normal passing through p.
// It is the drag plane: pointer motion projected onto it never changes height.
func HorizontalPlane(p Vec3) Plane {
	return Plane{Normal: Up, Constant: -p.Y}
}

// IntersectPlane returns where r meets pl. It reports false when the ray is
// parallel to the plane or the plane lies behind the origin.
func (r Ray) IntersectPlane(pl Plane) (Vec3, bool) {
	denom := pl.Normal.Dot(r.Direction)
	if math.Abs(denom) < 1e-12 {
		return Vec3{}, false
	}
	t := -(r.Origin.Dot(pl.Normal) + pl.Constant) / denom
	if t < 0 {
		return Vec3{}, false
	}
	return r.At(t), true
}

// IntersectSphere returns the distance along r to the first intersection
// with the sphere, or false on a miss. An origin inside the sphere hits at
// the exit point.
func (r Ray) IntersectSphere(center Vec3, radius float64) (float64, bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Direction)
	c := oc.LengthSq() - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// DistanceToSegment returns the shortest distance between r and the segment
// [a, b] together with the ray parameter of the closest point.
func (r Ray) DistanceToSegment(a, b Vec3) (dist, rayT float64) {
	d1 := r.Direction
	d2 := b.Sub(a)
	w := r.Origin.Sub(a)

	aa := d1.Dot(d1)
	bb := d1.Dot(d2)
	cc := d2.Dot(d2)
	dd := d1.Dot(w)
	ee := d2.Dot(w)
	den := aa*cc - bb*bb

	var s, t float64
	if cc < 1e-12 {
		// Degenerate segment.
		s = math.Max(-dd/aa, 0)
		t = 0
	} else if den < 1e-12 {
		// Parallel: clamp segment to its start.
		s = 0
		t = clamp01(ee / cc)
	} else {
		s = (bb*ee - cc*dd) / den
		t = (aa*ee - bb*dd) / den
		if s < 0 {
			s = 0
			t = ee / cc
		}
		if t < 0 || t > 1 {
			t = clamp01(t)
			s = math.Max((bb*t-dd)/aa, 0)
		}
	}

	p1 := r.At(s)
	p2 := a.Add(d2.Scale(t))
	return p1.Distance(p2), s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
