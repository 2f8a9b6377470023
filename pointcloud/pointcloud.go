// Package pointcloud builds colored point clouds from aligned depth and color images.
package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rgbdview/rimage"
)

// ColoredPoint is a position with a color normalized to [0,1].
type ColoredPoint struct {
	Position r3.Vector
	Color    rimage.RGB
}

// PointCloud is an ordered, named set of colored points. It is immutable once built.
type PointCloud struct {
	name      string
	pointSize float64
	points    []r3.Vector
	colors    []rimage.RGB
}

// New wraps parallel point and color slices. The slices are owned by the cloud afterwards.
func New(name string, pointSize float64, points []r3.Vector, colors []rimage.RGB) (*PointCloud, error) {
	if len(points) != len(colors) {
		return nil, errors.Errorf("point cloud %q has %d points but %d colors", name, len(points), len(colors))
	}
	return &PointCloud{name: name, pointSize: pointSize, points: points, colors: colors}, nil
}

// Name is the identifier the cloud was built with.
func (pc *PointCloud) Name() string {
	return pc.name
}

// PointSize is the rendered size of each point.
func (pc *PointCloud) PointSize() float64 {
	return pc.pointSize
}

// Size returns the number of points in the cloud.
func (pc *PointCloud) Size() int {
	return len(pc.points)
}

// At returns the i-th point in scan order.
func (pc *PointCloud) At(i int) ColoredPoint {
	return ColoredPoint{Position: pc.points[i], Color: pc.colors[i]}
}

// Iterate calls fn for every point in scan order until fn returns false.
func (pc *PointCloud) Iterate(fn func(i int, p ColoredPoint) bool) {
	for i := range pc.points {
		if !fn(i, pc.At(i)) {
			return
		}
	}
}

// Centroid is the mean position, or the origin for an empty cloud.
func (pc *PointCloud) Centroid() r3.Vector {
	if len(pc.points) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range pc.points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(pc.points)))
}
