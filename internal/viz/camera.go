package viz

import "math"

// Camera is an orthographic view of the cluster: rotate about the x and y
// axes, then drop everything but the first two coordinates. Extent is the
// half-width of the visible region at zoom 1.
type Camera struct {
	RotX, RotY float64
	Zoom       float64
	Extent     float64
}

func NewCamera(extent float64) *Camera {
	if !(extent > 0) {
		extent = 1
	}
	return &Camera{Zoom: 1, Extent: extent}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(50, c.Zoom*1.25) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.02, c.Zoom/1.25) }

// Project maps a particle position of any dimension to normalized screen
// coordinates; points with |u|, |v| <= 1 are visible.
func (c *Camera) Project(p []float64) (u, v float64) {
	var x, y, z float64
	switch len(p) {
	case 0:
	case 1:
		x = p[0]
	case 2:
		x, y = p[0], p[1]
	default:
		x, y, z = p[0], p[1], p[2]
	}

	cx, sx := math.Cos(c.RotX), math.Sin(c.RotX)
	y, z = y*cx-z*sx, y*sx+z*cx
	cy, sy := math.Cos(c.RotY), math.Sin(c.RotY)
	x = x*cy + z*sy

	s := c.Zoom / c.Extent
	return x * s, y * s
}
