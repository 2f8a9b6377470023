package viewer

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rgbdview/pointcloud"
	"go.viam.com/rgbdview/rimage"
	"go.viam.com/rgbdview/rimage/transform"
	"go.viam.com/rgbdview/spatialmath"
	"go.viam.com/rgbdview/viz/scene"
)

// DefaultImageWidth is the world width of an image plane when none is given.
const DefaultImageWidth = 100.

// MaxTextureSize bounds both texture dimensions; larger images are scaled down to fit.
const MaxTextureSize = 2000

// IntrinsicsParams configures SetCameraIntrinsics. Omitted fields take defaults.
type IntrinsicsParams = transform.IntrinsicsConfig

// PointCloudParams configures DisplayPointCloud.
type PointCloudParams struct {
	DepthPath   string  `json:"depth"`
	ColorPath   string  `json:"color"`
	Name        string  `json:"name"`
	StrideX     int     `json:"stride_x"`
	StrideY     int     `json:"stride_y"`
	DepthFormat string  `json:"depth_format"`
	PointSize   float64 `json:"point_size"`

	// OnComplete, if set, is called once the cloud is in the scene or the build failed.
	OnComplete func(*pointcloud.PointCloud, error) `json:"-"`
}

func (p PointCloudParams) buildConfig() pointcloud.BuildConfig {
	return pointcloud.BuildConfig{
		Name:        p.Name,
		StrideX:     p.StrideX,
		StrideY:     p.StrideY,
		DepthFormat: rimage.ParseDepthFormat(p.DepthFormat),
		PointSize:   p.PointSize,
	}
}

// Validate checks that both images are named.
func (p PointCloudParams) Validate() error {
	if p.DepthPath == "" {
		return errors.New("point cloud needs a depth image")
	}
	if p.ColorPath == "" {
		return errors.New("point cloud needs a color image")
	}
	return nil
}

// TransformParams places an object. Rotation is 9 (3x3) or 16 (4x4) row-major values and only
// its rotational block is used; Translation is x, y, z. Both may be omitted.
type TransformParams struct {
	Rotation    []float64 `json:"rotation"`
	Translation []float64 `json:"translation"`
}

// Pose builds the rigid transform, defaulting to identity and zero.
func (p TransformParams) Pose() (spatialmath.Pose, error) {
	var pt r3.Vector
	switch len(p.Translation) {
	case 0:
	case 3:
		pt = r3.Vector{X: p.Translation[0], Y: p.Translation[1], Z: p.Translation[2]}
	default:
		return spatialmath.Pose{}, errors.Errorf("translation needs 3 values, got %d", len(p.Translation))
	}
	if len(p.Rotation) == 0 {
		return spatialmath.NewPoseFromPoint(pt), nil
	}
	rot, err := spatialmath.NewRotationFromRowMajor(p.Rotation)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return spatialmath.NewPose(rot, pt), nil
}

// CameraPoseParams configures DisplayCameraPose.
type CameraPoseParams struct {
	Name string `json:"name"`
	TransformParams
}

// ImageParams configures DisplayImage.
type ImageParams struct {
	Path  string  `json:"path"`
	Name  string  `json:"name"`
	Width float64 `json:"width"`
	TransformParams

	// OnComplete, if set, is called once the image is in the scene or loading failed.
	OnComplete func(*scene.ImagePlane, error) `json:"-"`
}

// DecodeParams decodes a loosely typed params object, as found in scene files and request
// bodies, into one of the params structs.
func DecodeParams[T any](raw map[string]interface{}) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Squash:           true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(raw); err != nil {
		return out, errors.Wrapf(err, "invalid %T", out)
	}
	return out, nil
}
