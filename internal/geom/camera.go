package geom

import "math"

// Camera is a perspective look-at camera. The client keeps it in sync with
// its own orbit controls so pointer coordinates can be unprojected here.
type Camera struct {
	Position Vec3    `json:"position"`
	Target   Vec3    `json:"target"`
	Up       Vec3    `json:"up"`
	FovY     float64 `json:"fov"` // degrees
}

// DefaultCamera looks at the origin from above and to the side, framing a
// circular layout of the default radius.
func DefaultCamera() Camera {
	return Camera{
		Position: V(0, 120, 160),
		Target:   Vec3{},
		Up:       Up,
		FovY:     60,
	}
}

// RayFromNDC builds a world-space ray through normalized device coordinates
// (x right, y up, both in [-1, 1]).
func (c Camera) RayFromNDC(ndcX, ndcY, aspect float64) Ray {
	forward := c.Target.Sub(c.Position).Normalize()
	up := c.Up
	if up.IsZero() {
		up = Up
	}
	right := forward.Cross(up).Normalize()
	if right.IsZero() {
		// Looking straight along up; pick any horizontal right vector.
		right = V(1, 0, 0)
	}
	trueUp := right.Cross(forward)

	fov := c.FovY
	if fov <= 0 {
		fov = 60
	}
	tanHalf := math.Tan(fov * math.Pi / 360)
	if aspect <= 0 {
		aspect = 1
	}

	dir := forward.
		Add(right.Scale(ndcX * tanHalf * aspect)).
		Add(trueUp.Scale(ndcY * tanHalf))
	return NewRay(c.Position, dir)
}

// RayFromScreen unprojects a pixel coordinate in a viewport of the given size.
func (c Camera) RayFromScreen(px, py, width, height float64) Ray {
	if width <= 0 || height <= 0 {
		return c.RayFromNDC(0, 0, 1)
	}
	ndcX := (px/width)*2 - 1
	ndcY := -(py/height)*2 + 1
	return c.RayFromNDC(ndcX, ndcY, width/height)
}
