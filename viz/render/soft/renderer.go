// Package soft is a CPU rasterizer for the viewer's scene built on gg. Lines and labels go
// through gg's path renderer; point splats are written straight into the frame buffer.
package soft

import (
	"image"
	"image/color"
	"math"
	"sort"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rgbdview/pointcloud"
	"go.viam.com/rgbdview/rimage"
	"go.viam.com/rgbdview/utils"
	"go.viam.com/rgbdview/viz/campose"
	"go.viam.com/rgbdview/viz/render"
	"go.viam.com/rgbdview/viz/scene"
)

// Splat sizes are clamped to this range in pixels.
const (
	minSplatPixels = 1.
	maxSplatPixels = 32.
)

// maxPlaneSamples bounds how many texels of one image plane are splatted per axis.
const maxPlaneSamples = 256

type splat struct {
	x, y, depth, size float64
	color             color.NRGBA
}

// Renderer draws into an in-memory RGBA frame.
type Renderer struct {
	mu         sync.Mutex
	width      int
	height     int
	clear      rimage.RGB
	clearAlpha float64
	dc         *gg.Context
	frames     uint64
}

// NewRenderer returns a renderer with a white background.
func NewRenderer(width, height int) *Renderer {
	r := &Renderer{clear: rimage.NewRGBHex(0xffffff), clearAlpha: 1}
	r.Resize(width, height)
	return r
}

// Resize implements render.Renderer. Non-positive sizes are clamped to one pixel.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width = max(width, 1)
	r.height = max(height, 1)
	r.dc = gg.NewContext(r.width, r.height)
}

// Size returns the output size.
func (r *Renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// SetClearColor implements render.Renderer.
func (r *Renderer) SetClearColor(c rimage.RGB, alpha float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clear = c
	r.clearAlpha = alpha
}

// Frames is the number of completed Render calls.
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Render implements render.Renderer.
func (r *Renderer) Render(objects []scene.Object, cam *render.PerspectiveCamera) error {
	if cam == nil {
		return errors.New("no camera to render from")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dc.SetRGBA(r.clear.R, r.clear.G, r.clear.B, r.clearAlpha)
	r.dc.Clear()

	var splats []splat
	for _, obj := range objects {
		switch o := obj.(type) {
		case *pointcloud.PointCloud:
			splats = r.appendCloud(splats, o, cam)
		case *scene.ImagePlane:
			splats = r.appendPlane(splats, o, cam)
		case *campose.Instance:
			style := o.Prototype().Style()
			verts := o.WorldVertices()
			for i := 1; i < len(verts); i++ {
				r.drawSegment(cam, verts[i-1], verts[i], style.Color, style.Width)
			}
		case *scene.Arrow:
			for _, seg := range o.Segments() {
				r.drawSegment(cam, seg.From, seg.To, seg.Color, o.LineWidth)
			}
		case *scene.Grid:
			for _, seg := range o.Segments() {
				r.drawSegment(cam, seg.From, seg.To, seg.Color, 1)
			}
		case *scene.Label:
			r.drawLabel(cam, o)
		}
	}

	// far to near so closer splats win
	sort.Slice(splats, func(i, j int) bool { return splats[i].depth > splats[j].depth })
	frame, ok := r.dc.Image().(*image.RGBA)
	if !ok {
		return utils.NewUnexpectedTypeError((*image.RGBA)(nil), r.dc.Image())
	}
	for _, s := range splats {
		fillSquare(frame, s)
	}
	r.frames++
	return nil
}

// Snapshot implements render.Snapshotter with a copy of the last frame.
func (r *Renderer) Snapshot() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	if rgba, ok := src.(*image.RGBA); ok {
		copy(dst.Pix, rgba.Pix)
	}
	return dst
}

func (r *Renderer) splatSize(cam *render.PerspectiveCamera, worldSize, depth float64) float64 {
	return utils.Clamp(worldSize*cam.FocalPixels(r.height)/depth, minSplatPixels, maxSplatPixels)
}

func (r *Renderer) appendCloud(splats []splat, pc *pointcloud.PointCloud, cam *render.PerspectiveCamera) []splat {
	pc.Iterate(func(_ int, p pointcloud.ColoredPoint) bool {
		x, y, depth, ok := cam.ProjectToScreen(p.Position, r.width, r.height)
		if !ok {
			return true
		}
		splats = append(splats, splat{x: x, y: y, depth: depth, size: r.splatSize(cam, pc.PointSize(), depth), color: p.Color.NRGBA()})
		return true
	})
	return splats
}

func (r *Renderer) appendPlane(splats []splat, plane *scene.ImagePlane, cam *render.PerspectiveCamera) []splat {
	tex := plane.Texture
	if tex == nil || tex.Width == 0 || tex.Height == 0 {
		return splats
	}
	stepX := max(1, tex.Width/maxPlaneSamples)
	stepY := max(1, tex.Height/maxPlaneSamples)
	texel := plane.Width / float64(tex.Width) * float64(stepX)
	for ty := 0; ty < tex.Height; ty += stepY {
		for tx := 0; tx < tex.Width; tx += stepX {
			x, y, depth, ok := cam.ProjectToScreen(plane.TexelPosition(tx, ty), r.width, r.height)
			if !ok {
				continue
			}
			splats = append(splats, splat{
				x: x, y: y, depth: depth,
				size:  r.splatSize(cam, texel, depth),
				color: tex.RGB(tx, ty).NRGBA(),
			})
		}
	}
	return splats
}

func (r *Renderer) drawSegment(cam *render.PerspectiveCamera, from, to r3.Vector, c rimage.RGB, width float64) {
	x1, y1, _, ok1 := cam.ProjectToScreen(from, r.width, r.height)
	x2, y2, _, ok2 := cam.ProjectToScreen(to, r.width, r.height)
	if !ok1 || !ok2 {
		return
	}
	r.dc.SetColor(c)
	r.dc.SetLineWidth(width)
	r.dc.DrawLine(x1, y1, x2, y2)
	r.dc.Stroke()
}

func (r *Renderer) drawLabel(cam *render.PerspectiveCamera, label *scene.Label) {
	x, y, _, ok := cam.ProjectToScreen(label.Position, r.width, r.height)
	if !ok {
		return
	}
	r.dc.SetColor(label.Color)
	r.dc.DrawStringAnchored(label.Text, x, y, 0.5, 0.5)
}

func fillSquare(frame *image.RGBA, s splat) {
	half := s.size / 2
	bounds := frame.Bounds()
	x0 := max(bounds.Min.X, int(math.Floor(s.x-half)))
	y0 := max(bounds.Min.Y, int(math.Floor(s.y-half)))
	x1 := min(bounds.Max.X, int(math.Ceil(s.x+half)))
	y1 := min(bounds.Max.Y, int(math.Ceil(s.y+half)))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			frame.SetRGBA(x, y, color.RGBA{R: s.color.R, G: s.color.G, B: s.color.B, A: 255})
		}
	}
}
