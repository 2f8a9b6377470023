// Package transform holds the pinhole camera model used to lift depth pixels into 3D.
package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not valid.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// Defaults of the viewer's camera, a 1268x845 sensor with an 800px focal length.
const (
	DefaultFx     = 800.
	DefaultFy     = 800.
	DefaultPpx    = 634.
	DefaultPpy    = 427.
	DefaultWidth  = 1268
	DefaultHeight = 845
)

// IntrinsicsConfig is the user-facing form of the intrinsics. Nil fields take defaults.
type IntrinsicsConfig struct {
	Fx     *float64 `json:"fx,omitempty" mapstructure:"fx"`
	Fy     *float64 `json:"fy,omitempty" mapstructure:"fy"`
	Ppx    *float64 `json:"cx,omitempty" mapstructure:"cx"`
	Ppy    *float64 `json:"cy,omitempty" mapstructure:"cy"`
	Width  *int     `json:"width,omitempty" mapstructure:"width"`
	Height *int     `json:"height,omitempty" mapstructure:"height"`
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D
// scene to the 2D plane. It is immutable; build a new one to change any field.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`

	fxInv float64
	fyInv float64
}

// NewPinholeCameraIntrinsics builds intrinsics from cfg, filling omitted fields with defaults.
func NewPinholeCameraIntrinsics(cfg IntrinsicsConfig) (*PinholeCameraIntrinsics, error) {
	params := &PinholeCameraIntrinsics{
		Width:  valueOr(cfg.Width, DefaultWidth),
		Height: valueOr(cfg.Height, DefaultHeight),
		Fx:     valueOr(cfg.Fx, DefaultFx),
		Fy:     valueOr(cfg.Fy, DefaultFy),
		Ppx:    valueOr(cfg.Ppx, DefaultPpx),
		Ppy:    valueOr(cfg.Ppy, DefaultPpy),
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	params.cacheInverse()
	return params, nil
}

// DefaultIntrinsics returns the intrinsics a new viewer starts with.
func DefaultIntrinsics() *PinholeCameraIntrinsics {
	params, err := NewPinholeCameraIntrinsics(IntrinsicsConfig{})
	if err != nil {
		panic(err)
	}
	return params
}

func valueOr[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

func (params *PinholeCameraIntrinsics) cacheInverse() {
	params.fxInv = 1. / params.Fx
	params.fyInv = 1. / params.Fy
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	return nil
}

// FxInv is the cached 1/Fx.
func (params *PinholeCameraIntrinsics) FxInv() float64 {
	return params.fxInv
}

// FyInv is the cached 1/Fy.
func (params *PinholeCameraIntrinsics) FyInv() float64 {
	return params.fyInv
}

// Unproject lifts pixel (x,y) at the given depth into the viewer's world frame, where +y is up
// and the camera looks down -z.
func (params *PinholeCameraIntrinsics) Unproject(x, y int, depth float64) r3.Vector {
	return r3.Vector{
		X: (float64(x) - params.Ppx) * params.fxInv * depth,
		Y: -(float64(y) - params.Ppy) * params.fyInv * depth,
		Z: -depth,
	}
}

// Project is the inverse of Unproject: it maps a world point in front of the camera back to
// pixel coordinates and its depth. Points with z >= 0 are behind the camera and report ok=false.
func (params *PinholeCameraIntrinsics) Project(pt r3.Vector) (x, y, depth float64, ok bool) {
	depth = -pt.Z
	if depth <= 0 {
		return -1, -1, 0, false
	}
	x = pt.X/depth*params.Fx + params.Ppx
	y = -pt.Y/depth*params.Fy + params.Ppy
	return x, y, depth, true
}

// NewPinholeCameraIntrinsicsFromJSONFile reads an IntrinsicsConfig from a JSON file.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	var cfg IntrinsicsConfig
	if err := json.Unmarshal(byteValue, &cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	return NewPinholeCameraIntrinsics(cfg)
}
