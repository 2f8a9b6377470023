package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"go.viam.com/rgbdview/utils"
)

// Initial camera of a new or reset viewer.
const (
	DefaultFOV  = 45.
	DefaultNear = 0.1
	DefaultFar  = 20000.
)

// DefaultCameraPosition looks at the origin from the (+,+,+) octant.
var DefaultCameraPosition = r3.Vector{X: 250, Y: 250, Z: 250}

// PerspectiveCamera is a look-at camera. Fields may be edited freely; call
// UpdateProjectionMatrix afterwards.
type PerspectiveCamera struct {
	FOV    float64
	Aspect float64
	Near   float64
	Far    float64

	Position r3.Vector
	Target   r3.Vector
	Up       r3.Vector

	view       mgl64.Mat4
	projection mgl64.Mat4
}

// NewPerspectiveCamera returns the default camera for the given aspect ratio.
func NewPerspectiveCamera(aspect float64) *PerspectiveCamera {
	cam := &PerspectiveCamera{
		FOV:      DefaultFOV,
		Aspect:   aspect,
		Near:     DefaultNear,
		Far:      DefaultFar,
		Position: DefaultCameraPosition,
		Up:       r3.Vector{Y: 1},
	}
	cam.UpdateProjectionMatrix()
	return cam
}

func toVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// UpdateProjectionMatrix recomputes the view and projection matrices.
func (c *PerspectiveCamera) UpdateProjectionMatrix() {
	c.projection = mgl64.Perspective(utils.DegToRad(c.FOV), c.Aspect, c.Near, c.Far)
	c.view = mgl64.LookAtV(toVec3(c.Position), toVec3(c.Target), toVec3(c.Up))
}

// View is the world-to-camera matrix.
func (c *PerspectiveCamera) View() mgl64.Mat4 {
	return c.view
}

// Projection is the camera-to-clip matrix.
func (c *PerspectiveCamera) Projection() mgl64.Mat4 {
	return c.projection
}

// ViewVector points from the target to the camera.
func (c *PerspectiveCamera) ViewVector() r3.Vector {
	return c.Position.Sub(c.Target)
}

// FocalPixels is the focal length in pixels for an output of the given height.
func (c *PerspectiveCamera) FocalPixels(height int) float64 {
	return float64(height) / 2 / math.Tan(utils.DegToRad(c.FOV)/2)
}

// ProjectToScreen maps a world point to pixel coordinates of a width x height output. depth is
// the distance along the viewing axis; ok is false outside the near/far range.
func (c *PerspectiveCamera) ProjectToScreen(p r3.Vector, width, height int) (x, y, depth float64, ok bool) {
	clip := c.projection.Mul4(c.view).Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	if clip.W() <= 0 {
		return 0, 0, 0, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	if ndc.Z() < -1 || ndc.Z() > 1 {
		return 0, 0, 0, false
	}
	x = (ndc.X() + 1) / 2 * float64(width)
	y = (1 - ndc.Y()) / 2 * float64(height)
	return x, y, clip.W(), true
}
