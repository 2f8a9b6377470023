package scene

import (
	"github.com/golang/geo/r3"

	"go.viam.com/rgbdview/rimage"
	"go.viam.com/rgbdview/spatialmath"
)

// ImagePlane is a textured rectangle centered on its pose's origin in the local z=0 plane.
type ImagePlane struct {
	name    string
	Texture *rimage.PixelBuffer
	Width   float64
	Height  float64
	Pose    spatialmath.Pose
}

// NewImagePlane sizes the plane to the texture's aspect ratio with the given world width.
func NewImagePlane(name string, texture *rimage.PixelBuffer, width float64, pose spatialmath.Pose) *ImagePlane {
	height := width
	if texture.Width > 0 {
		height = width * float64(texture.Height) / float64(texture.Width)
	}
	return &ImagePlane{name: name, Texture: texture, Width: width, Height: height, Pose: pose}
}

// Name implements Object.
func (p *ImagePlane) Name() string {
	return p.name
}

// Corners returns the world positions of the texture's top-left, top-right, bottom-right and
// bottom-left corners.
func (p *ImagePlane) Corners() [4]r3.Vector {
	hw, hh := p.Width/2, p.Height/2
	return [4]r3.Vector{
		p.Pose.Transform(r3.Vector{X: -hw, Y: hh}),
		p.Pose.Transform(r3.Vector{X: hw, Y: hh}),
		p.Pose.Transform(r3.Vector{X: hw, Y: -hh}),
		p.Pose.Transform(r3.Vector{X: -hw, Y: -hh}),
	}
}

// TexelPosition maps a texel's center into the world.
func (p *ImagePlane) TexelPosition(x, y int) r3.Vector {
	u := (float64(x) + 0.5) / float64(p.Texture.Width)
	v := (float64(y) + 0.5) / float64(p.Texture.Height)
	return p.Pose.Transform(r3.Vector{X: (u - 0.5) * p.Width, Y: (0.5 - v) * p.Height})
}
