package pointcloud

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rgbdview/rimage"
	"go.viam.com/rgbdview/rimage/transform"
	"go.viam.com/rgbdview/utils"
)

// ErrDimensionMismatch is returned when the color image does not align with the depth image.
var ErrDimensionMismatch = errors.New("depth and color images differ in size")

const (
	// DefaultStride samples every pixel.
	DefaultStride = 1
	// DefaultPointSize is the rendered point size when none is given.
	DefaultPointSize = 0.1
)

// BuildConfig controls how a depth/color pair is sampled.
type BuildConfig struct {
	Name        string
	StrideX     int
	StrideY     int
	DepthFormat rimage.DepthFormat
	PointSize   float64
}

func (cfg BuildConfig) withDefaults() BuildConfig {
	if cfg.StrideX <= 0 {
		cfg.StrideX = DefaultStride
	}
	if cfg.StrideY <= 0 {
		cfg.StrideY = DefaultStride
	}
	if cfg.PointSize <= 0 {
		cfg.PointSize = DefaultPointSize
	}
	if cfg.DepthFormat == "" {
		cfg.DepthFormat = rimage.DepthFormatByte
	}
	return cfg
}

// DepthScan is the output of the depth stage and the input of the color stage. It keeps the
// depth buffer so the color stage can re-apply the same validity test.
type DepthScan struct {
	Config   BuildConfig
	Depth    *rimage.PixelBuffer
	Points   []r3.Vector
	Centroid r3.Vector
}

// forEachValid is the single definition of sampling order and validity shared by both stages.
func forEachValid(depth *rimage.PixelBuffer, cfg BuildConfig, fn func(x, y int, d float64)) {
	for y := 0; y < depth.Height; y += cfg.StrideY {
		for x := 0; x < depth.Width; x += cfg.StrideX {
			d := depth.Depth(x, y, cfg.DepthFormat)
			if d == 0 {
				continue
			}
			fn(x, y, d)
		}
	}
}

// ScanDepth unprojects every valid sampled pixel and recenters the result on its centroid.
func ScanDepth(depth *rimage.PixelBuffer, intrinsics *transform.PinholeCameraIntrinsics, cfg BuildConfig) *DepthScan {
	cfg = cfg.withDefaults()
	scan := &DepthScan{Config: cfg, Depth: depth}

	var centroid r3.Vector
	forEachValid(depth, cfg, func(x, y int, d float64) {
		p := intrinsics.Unproject(x, y, d)
		scan.Points = append(scan.Points, p)
		centroid = centroid.Add(p.Sub(centroid).Mul(1 / float64(len(scan.Points))))
	})

	if len(scan.Points) == 0 {
		return scan
	}
	for i := range scan.Points {
		scan.Points[i] = scan.Points[i].Sub(centroid)
	}
	scan.Centroid = centroid
	return scan
}

// ScanColor samples one color per valid depth pixel, in the depth stage's order, and joins the
// two into a PointCloud.
func ScanColor(scan *DepthScan, color *rimage.PixelBuffer) (*PointCloud, error) {
	if !scan.Depth.SameSize(color) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "depth %dx%d, color %dx%d",
			scan.Depth.Width, scan.Depth.Height, color.Width, color.Height)
	}
	colors := make([]rimage.RGB, 0, len(scan.Points))
	forEachValid(scan.Depth, scan.Config, func(x, y int, _ float64) {
		colors = append(colors, color.RGB(x, y))
	})
	return New(scan.Config.Name, scan.Config.PointSize, scan.Points, colors)
}

// Build runs both stages synchronously.
func Build(
	depth, color *rimage.PixelBuffer,
	intrinsics *transform.PinholeCameraIntrinsics,
	cfg BuildConfig,
) (*PointCloud, error) {
	return ScanColor(ScanDepth(depth, intrinsics, cfg), color)
}

// LoadFunc fetches and decodes the image at path.
type LoadFunc func(ctx context.Context, path string) (*rimage.PixelBuffer, error)

// LoadFile decodes a local image file.
func LoadFile(_ context.Context, path string) (*rimage.PixelBuffer, error) {
	return rimage.ReadPixelBufferFromFile(path)
}

// BuildFromFiles loads and scans the depth image, and only once that stage has finished loads
// and scans the color image. A nil load uses LoadFile.
func BuildFromFiles(
	ctx context.Context,
	load LoadFunc,
	depthPath, colorPath string,
	intrinsics *transform.PinholeCameraIntrinsics,
	cfg BuildConfig,
) *utils.Future[*PointCloud] {
	if load == nil {
		load = LoadFile
	}
	depthStage := utils.Go(ctx, func(ctx context.Context) (*DepthScan, error) {
		depth, err := load(ctx, depthPath)
		if err != nil {
			return nil, errors.Wrap(err, "loading depth image")
		}
		return ScanDepth(depth, intrinsics, cfg), nil
	})
	return utils.Then(ctx, depthStage, func(ctx context.Context, scan *DepthScan) (*PointCloud, error) {
		color, err := load(ctx, colorPath)
		if err != nil {
			return nil, errors.Wrap(err, "loading color image")
		}
		return ScanColor(scan, color)
	})
}
