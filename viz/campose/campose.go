// Package campose draws camera poses as small wireframe frustums.
//
// The frustum is built once from the viewer's intrinsics:
//
//	 p2----p6 p7 p8---p3   __ viewing direction
//	  | \           / |     /|
//	  |   \       /   |    /
//	  |     \   /     |   /
//	  |      p5       |
//	 p1---------------p4
//
// p5 is the camera center, p1..p4 are the image corners at unit depth and p6..p8 form the
// triangle marking the top edge.
package campose

import (
	"github.com/golang/geo/r3"

	"go.viam.com/rgbdview/rimage"
	"go.viam.com/rgbdview/rimage/transform"
	"go.viam.com/rgbdview/spatialmath"
)

// DefaultScale is the size of the frustum relative to unit depth.
const DefaultScale = 20.

// PrototypeVertexCount is the length of the frustum line strip.
const PrototypeVertexCount = 13

// LineStyle is how the frustum strip is drawn.
type LineStyle struct {
	Color rimage.RGB
	Width float64
}

// DefaultLineStyle is black, two pixels wide.
var DefaultLineStyle = LineStyle{Color: rimage.NewRGBHex(0x000000), Width: 2}

// Prototype is the shared frustum geometry. Every pose instance references the same Prototype.
type Prototype struct {
	vertices []r3.Vector
	style    LineStyle
}

// BuildPrototype traces the frustum for the given intrinsics as a single line strip: the base
// rectangle, the spokes to the apex, then the up indicator on the p2-p3 edge.
func BuildPrototype(intrinsics *transform.PinholeCameraIntrinsics, scale float64) *Prototype {
	w := float64(intrinsics.Width)
	h := float64(intrinsics.Height)
	xMin := -intrinsics.Ppx / intrinsics.Fx
	yMin := -intrinsics.Ppy / intrinsics.Fy
	xMax := (w - 1 - intrinsics.Ppx) / intrinsics.Fx
	yMax := (h - 1 - intrinsics.Ppy) / intrinsics.Fy

	p1 := r3.Vector{X: xMin, Y: yMin, Z: 1}
	p2 := r3.Vector{X: xMin, Y: yMax, Z: 1}
	p3 := r3.Vector{X: xMax, Y: yMax, Z: 1}
	p4 := r3.Vector{X: xMax, Y: yMin, Z: 1}
	p5 := r3.Vector{}

	edge := xMax - xMin
	p6 := r3.Vector{X: xMin + 0.25*edge, Y: yMax, Z: 1}
	p7 := r3.Vector{X: xMin + 0.5*edge, Y: yMax + 0.2*(yMax-yMin), Z: 1}
	p8 := r3.Vector{X: xMin + 0.75*edge, Y: yMax, Z: 1}

	strip := []r3.Vector{p1, p2, p3, p4, p1, p5, p3, p4, p5, p2, p6, p7, p8}
	for i := range strip {
		strip[i] = strip[i].Mul(scale)
	}
	return &Prototype{vertices: strip, style: DefaultLineStyle}
}

// Vertices returns a copy of the line strip in the camera's local frame.
func (p *Prototype) Vertices() []r3.Vector {
	out := make([]r3.Vector, len(p.vertices))
	copy(out, p.vertices)
	return out
}

// Style is the line style shared by all instances.
func (p *Prototype) Style() LineStyle {
	return p.style
}

// Instance is a named placement of the shared prototype.
type Instance struct {
	name      string
	prototype *Prototype
	pose      spatialmath.Pose
}

// Instantiate places prototype at pose.
func Instantiate(prototype *Prototype, pose spatialmath.Pose, name string) *Instance {
	return &Instance{name: name, prototype: prototype, pose: pose}
}

// Name is the instance's scene name.
func (inst *Instance) Name() string {
	return inst.name
}

// Prototype returns the shared geometry.
func (inst *Instance) Prototype() *Prototype {
	return inst.prototype
}

// Pose is the instance's rigid transform.
func (inst *Instance) Pose() spatialmath.Pose {
	return inst.pose
}

// WorldVertices is the line strip transformed into the world frame.
func (inst *Instance) WorldVertices() []r3.Vector {
	out := make([]r3.Vector, len(inst.prototype.vertices))
	for i, v := range inst.prototype.vertices {
		out[i] = inst.pose.Transform(v)
	}
	return out
}
