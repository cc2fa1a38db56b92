// Package geom holds the small amount of 3D math the scene needs: vectors,
// quaternions, rays, planes, a look-at camera and the arched edge curve.
// Everything here is a pure value type; nothing keeps state.
package geom

import "math"

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// V is shorthand for constructing a Vec3.
func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

// Up is the world vertical axis.
var Up = Vec3{Y: 1}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) LengthSq() float64 { return a.Dot(a) }
func (a Vec3) Length() float64 { return math.Sqrt(a.LengthSq()) }
func (a Vec3) Distance(b Vec3) float64 { return a.Sub(b).Length() }

// Cross returns a × b.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

// Normalize returns a unit vector in the direction of a, or the zero vector
// when a has no length.
func (a Vec3) Normalize() Vec3 {
	l := a.Length()
	if l == 0 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// Lerp interpolates between a and b.
func (a Vec3) Lerp(b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

// IsZero reports whether all components are exactly zero. An unset position
// in a snapshot decodes to the zero vector.
func (a Vec3) IsZero() bool { return a.X == 0 && a.Y == 0 && a.Z == 0 }

// IsFinite reports whether no component is NaN or ±Inf.
func (a Vec3) IsFinite() bool {
	return isFinite(a.X) && isFinite(a.Y) && isFinite(a.Z)
}

// ApproxEqual compares component-wise within tol.
func (a Vec3) ApproxEqual(b Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// ---------------------------------------------------------------------------
// Quaternion
// ---------------------------------------------------------------------------

// Quaternion is a unit rotation.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityQuaternion performs no rotation.
var IdentityQuaternion = Quaternion{W: 1}

// QuaternionFromUnitVectors returns the shortest rotation taking unit vector
// from onto unit vector to.
func QuaternionFromUnitVectors(from, to Vec3) Quaternion {
	r := from.Dot(to) + 1
	var q Quaternion
	if r < 1e-9 {
		// Opposite vectors: rotate half a turn around any perpendicular axis.
		if math.Abs(from.X) > math.Abs(from.Z) {
			q = Quaternion{X: -from.Y, Y: from.X, Z: 0, W: 0}
		} else {
			q = Quaternion{X: 0, Y: -from.Z, Z: from.Y, W: 0}
		}
	} else {
		c := from.Cross(to)
		q = Quaternion{X: c.X, Y: c.Y, Z: c.Z, W: r}
	}
	return q.Normalize()
}

// QuaternionFromAxisAngle builds a rotation of angle radians around a unit axis.
func QuaternionFromAxisAngle(axis Vec3, angle float64) Quaternion {
	s := math.Sin(angle / 2)
	return Quaternion{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: math.Cos(angle / 2)}
}

// Normalize scales q to unit length.
func (q Quaternion) Normalize() Quaternion {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return IdentityQuaternion
	}
	return Quaternion{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Rotate applies q to v.
func (q Quaternion) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}
