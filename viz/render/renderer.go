// Package render decides when the scene is redrawn and defines what it is drawn with.
package render

import (
	"image"

	"go.viam.com/rgbdview/rimage"
	"go.viam.com/rgbdview/viz/scene"
)

// Renderer rasterizes the scene. Implementations are driven from a single goroutine.
type Renderer interface {
	// Resize sets the output size in pixels.
	Resize(width, height int)
	// SetClearColor sets the background.
	SetClearColor(c rimage.RGB, alpha float64)
	// Render draws objects as seen from cam.
	Render(objects []scene.Object, cam *PerspectiveCamera) error
}

// Snapshotter is implemented by renderers that can hand back their last frame.
type Snapshotter interface {
	Snapshot() image.Image
}

// CameraMover is the camera-control collaborator polled once per frame. Update applies pending
// input and reports whether the camera moved since the previous call.
type CameraMover interface {
	Update() bool
}
