// Package controls turns pointer input into camera motion. Input is accumulated and applied
// by Update, which the frame loop polls once per tick.
package controls

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rgbdview/utils"
	"go.viam.com/rgbdview/viz/render"
)

// Scheme names a camera-control behavior.
type Scheme string

// The supported schemes.
const (
	// SchemeOrbit keeps the camera's up direction fixed and stops at the poles.
	SchemeOrbit = Scheme("Orbit")
	// SchemeTrackball rotates freely, tilting the up direction with vertical motion.
	SchemeTrackball = Scheme("Trackball")
)

// Schemes lists every supported scheme.
var Schemes = []Scheme{SchemeOrbit, SchemeTrackball}

// ErrUnknownControlScheme is returned for scheme names that are not in Schemes.
var ErrUnknownControlScheme = errors.New("unknown camera control scheme")

// ParseScheme matches a scheme name case-insensitively.
func ParseScheme(name string) (Scheme, error) {
	for _, s := range Schemes {
		if strings.EqualFold(string(s), strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownControlScheme, "%q", name)
}

// MinDistance is the closest the camera may zoom to its target.
const MinDistance = 1e-3

// polar angle margin for orbit mode
const minPolar = 1e-4

// Controls moves a PerspectiveCamera. It is not safe for concurrent use; callers serialize input
// with the frame loop.
type Controls struct {
	cam    *render.PerspectiveCamera
	scheme Scheme

	rotX, rotY float64
	panX, panY float64
	zoom       float64
	pending    bool
}

// New returns controls of the given scheme attached to cam.
func New(scheme Scheme, cam *render.PerspectiveCamera) (*Controls, error) {
	if _, err := ParseScheme(string(scheme)); err != nil {
		return nil, err
	}
	if cam == nil {
		return nil, errors.New("camera controls need a camera")
	}
	return &Controls{cam: cam, scheme: scheme}, nil
}

// Scheme returns the control scheme.
func (c *Controls) Scheme() Scheme {
	return c.scheme
}

// Camera returns the controlled camera.
func (c *Controls) Camera() *render.PerspectiveCamera {
	return c.cam
}

// Rotate queues a rotation in degrees: dx around the up direction, dy around the camera's right.
func (c *Controls) Rotate(dx, dy float64) {
	c.rotX += dx
	c.rotY += dy
	c.pending = true
}

// Pan queues a translation of camera and target, in fractions of the visible height.
func (c *Controls) Pan(dx, dy float64) {
	c.panX += dx
	c.panY += dy
	c.pending = true
}

// Zoom queues a dolly along the view axis. Positive values move away from the target by that
// fraction of the current distance.
func (c *Controls) Zoom(fraction float64) {
	c.zoom += fraction
	c.pending = true
}

// Update applies queued input and reports whether the camera moved.
func (c *Controls) Update() bool {
	if !c.pending {
		return false
	}
	before := c.cam.Position
	beforeTarget := c.cam.Target

	if c.rotX != 0 || c.rotY != 0 {
		switch c.scheme {
		case SchemeTrackball:
			c.trackball(c.rotX, c.rotY)
		default:
			c.orbit(c.rotX, c.rotY)
		}
	}
	if c.panX != 0 || c.panY != 0 {
		c.pan(c.panX, c.panY)
	}
	if c.zoom != 0 {
		c.dolly(c.zoom)
	}
	c.rotX, c.rotY, c.panX, c.panY, c.zoom = 0, 0, 0, 0, 0
	c.pending = false

	c.cam.UpdateProjectionMatrix()
	return c.cam.Position != before || c.cam.Target != beforeTarget
}

func toVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func fromVec3(v mgl64.Vec3) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

func (c *Controls) viewVector() r3.Vector {
	v := c.cam.ViewVector()
	if v.Norm() == 0 {
		return r3.Vector{Z: 1}
	}
	return v
}

// orbit works in spherical coordinates around the up axis so the camera never flips.
func (c *Controls) orbit(dx, dy float64) {
	toY := mgl64.QuatBetweenVectors(toVec3(c.cam.Up.Normalize()), mgl64.Vec3{0, 1, 0})
	offset := toY.Rotate(toVec3(c.viewVector()))
	radius := offset.Len()

	theta := math.Atan2(offset.X(), offset.Z()) - utils.DegToRad(dx)
	phi := math.Acos(utils.Clamp(offset.Y()/radius, -1, 1)) - utils.DegToRad(dy)
	phi = utils.Clamp(phi, minPolar, math.Pi-minPolar)

	offset = mgl64.Vec3{
		radius * math.Sin(phi) * math.Sin(theta),
		radius * math.Cos(phi),
		radius * math.Sin(phi) * math.Cos(theta),
	}
	c.cam.Position = c.cam.Target.Add(fromVec3(toY.Inverse().Rotate(offset)))
}

func (c *Controls) trackball(dx, dy float64) {
	ctdir := toVec3(c.viewVector())
	up := toVec3(c.cam.Up.Normalize())
	right := up.Cross(ctdir.Normalize()).Normalize()

	dxq := mgl64.QuatRotate(utils.DegToRad(-dx), up)
	dyq := mgl64.QuatRotate(utils.DegToRad(-dy), right)
	rotated := dyq.Rotate(dxq.Rotate(ctdir))

	c.cam.Position = c.cam.Target.Add(fromVec3(rotated))
	c.cam.Up = fromVec3(dyq.Rotate(up)).Normalize()
}

func (c *Controls) pan(dx, dy float64) {
	view := c.viewVector()
	forward := view.Mul(-1).Normalize()
	right := forward.Cross(c.cam.Up).Normalize()
	up := right.Cross(forward).Normalize()

	visible := 2 * view.Norm() * math.Tan(utils.DegToRad(c.cam.FOV)/2)
	delta := right.Mul(-dx * visible).Add(up.Mul(dy * visible))
	c.cam.Position = c.cam.Position.Add(delta)
	c.cam.Target = c.cam.Target.Add(delta)
}

func (c *Controls) dolly(fraction float64) {
	view := c.viewVector()
	dist := math.Max(view.Norm()*(1+fraction), MinDistance)
	c.cam.Position = c.cam.Target.Add(view.Normalize().Mul(dist))
}
