package scene

import (
	"github.com/golang/geo/r3"

	"go.viam.com/rgbdview/rimage"
)

// Segment is a single line between two world points.
type Segment struct {
	From, To r3.Vector
	Color    rimage.RGB
}

// Arrow is an axis indicator: a shaft plus a cone-shaped head drawn as lines.
type Arrow struct {
	name       string
	Origin     r3.Vector
	Dir        r3.Vector
	Length     float64
	HeadLength float64
	HeadWidth  float64
	Color      rimage.RGB
	LineWidth  float64
}

// Name implements Object.
func (a *Arrow) Name() string {
	return a.name
}

// Segments returns the shaft and four head edges.
func (a *Arrow) Segments() []Segment {
	dir := a.Dir.Normalize()
	tip := a.Origin.Add(dir.Mul(a.Length))
	base := a.Origin.Add(dir.Mul(a.Length - a.HeadLength))

	side := dir.Ortho()
	up := dir.Cross(side)
	half := a.HeadWidth / 2

	segs := []Segment{{From: a.Origin, To: base, Color: a.Color}}
	for _, offset := range []r3.Vector{side.Mul(half), side.Mul(-half), up.Mul(half), up.Mul(-half)} {
		segs = append(segs, Segment{From: base.Add(offset), To: tip, Color: a.Color})
	}
	return segs
}

// Label is text anchored at a world position that always faces the camera.
type Label struct {
	name     string
	Text     string
	Position r3.Vector
	Color    rimage.RGB
	FontSize float64
}

// Name implements Object.
func (l *Label) Name() string {
	return l.name
}

// Grid is a square floor grid in the y=0 plane.
type Grid struct {
	name        string
	Extent      float64
	Step        float64
	CenterColor rimage.RGB
	LineColor   rimage.RGB
}

// Name implements Object.
func (g *Grid) Name() string {
	return g.name
}

// Segments returns the grid lines. The two lines through the origin use CenterColor.
func (g *Grid) Segments() []Segment {
	if g.Step <= 0 {
		return nil
	}
	n := int(g.Extent / g.Step)
	segs := make([]Segment, 0, 2*(2*n+1))
	for i := -n; i <= n; i++ {
		k := float64(i) * g.Step
		c := g.LineColor
		if i == 0 {
			c = g.CenterColor
		}
		segs = append(segs,
			Segment{From: r3.Vector{X: -g.Extent, Z: k}, To: r3.Vector{X: g.Extent, Z: k}, Color: c},
			Segment{From: r3.Vector{X: k, Z: -g.Extent}, To: r3.Vector{X: k, Z: g.Extent}, Color: c},
		)
	}
	return segs
}

// Helper geometry of the default scene.
const (
	ArrowLength     = 50.
	ArrowHeadLength = 15.
	ArrowHeadWidth  = 7.
	ArrowLineWidth  = 3.
	LabelFontSize   = 24.
	GridExtent      = 500.
	GridStep        = 50.
)

// NewHelperArrows returns the red X, green Y and blue Z axis arrows followed by their labels.
func NewHelperArrows() []Object {
	axes := []struct {
		label string
		dir   r3.Vector
		pos   r3.Vector
		color rimage.RGB
	}{
		{"X", r3.Vector{X: 1}, r3.Vector{X: 55, Y: 5, Z: 3}, rimage.NewRGBHex(0xff0000)},
		{"Y", r3.Vector{Y: 1}, r3.Vector{X: 0, Y: 60, Z: 0}, rimage.NewRGBHex(0x00ff00)},
		{"Z", r3.Vector{Z: 1}, r3.Vector{X: -3, Y: 5, Z: 55}, rimage.NewRGBHex(0x0000ff)},
	}
	arrows := make([]Object, 0, 2*len(axes))
	labels := make([]Object, 0, len(axes))
	for _, ax := range axes {
		arrows = append(arrows, &Arrow{
			name:       "helper_arrow_" + ax.label,
			Dir:        ax.dir,
			Length:     ArrowLength,
			HeadLength: ArrowHeadLength,
			HeadWidth:  ArrowHeadWidth,
			Color:      ax.color,
			LineWidth:  ArrowLineWidth,
		})
		labels = append(labels, &Label{
			name:     "helper_label_" + ax.label,
			Text:     ax.label,
			Position: ax.pos,
			Color:    ax.color,
			FontSize: LabelFontSize,
		})
	}
	return append(arrows, labels...)
}

// NewFloorGrid returns the default floor grid.
func NewFloorGrid() *Grid {
	return &Grid{
		name:        "floor_grid",
		Extent:      GridExtent,
		Step:        GridStep,
		CenterColor: rimage.NewRGBHex(0x555555),
		LineColor:   rimage.NewRGBHex(0xcccccc),
	}
}
