// Package config defines scene files: the intrinsics, viewer options and content a viewer
// starts with.
package config

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/rgbdview/rimage/transform"
	"go.viam.com/rgbdview/utils"
	"go.viam.com/rgbdview/viewer"
	"go.viam.com/rgbdview/viz/controls"
)

// Options are the viewer options a scene may set. Nil fields leave the viewer's value alone.
type Options struct {
	ArrowsVisible           *bool  `json:"arrows_visible,omitempty"`
	FloorGridVisible        *bool  `json:"floor_grid_visible,omitempty"`
	CameraControlScheme     string `json:"camera_control_scheme,omitempty"`
	ClearColor              string `json:"clear_color,omitempty"`
	OnlyRenderWhenNecessary *bool  `json:"only_render_when_necessary,omitempty"`
	Width                   int    `json:"width,omitempty"`
	Height                  int    `json:"height,omitempty"`
}

// Merge returns st with every option set in o applied.
func (o Options) Merge(st viewer.State) viewer.State {
	if o.ArrowsVisible != nil {
		st.ArrowsVisible = *o.ArrowsVisible
	}
	if o.FloorGridVisible != nil {
		st.FloorGridVisible = *o.FloorGridVisible
	}
	if o.OnlyRenderWhenNecessary != nil {
		st.OnlyRenderWhenNecessary = *o.OnlyRenderWhenNecessary
	}
	if o.CameraControlScheme != "" {
		st.CameraControlScheme = controls.Scheme(o.CameraControlScheme)
	}
	if o.ClearColor != "" {
		st.ClearColor = o.ClearColor
	}
	if o.Width > 0 && o.Height > 0 {
		st.Width, st.Height = o.Width, o.Height
	}
	return st
}

// Scene is the parsed form of a scene file. Relative image paths are resolved against the
// directory of the file.
type Scene struct {
	Intrinsics  *transform.IntrinsicsConfig `json:"intrinsics,omitempty"`
	Options     Options                     `json:"options"`
	PointClouds []viewer.PointCloudParams   `json:"point_clouds,omitempty"`
	Images      []viewer.ImageParams        `json:"images,omitempty"`
	CameraPoses []viewer.CameraPoseParams   `json:"camera_poses,omitempty"`

	// ConfigFilePath is where the scene was read from, if anywhere.
	ConfigFilePath string `json:"-"`
}

// Validate checks every entry, naming the offending one in errors.
func (s *Scene) Validate() error {
	if s.Intrinsics != nil {
		if _, err := transform.NewPinholeCameraIntrinsics(*s.Intrinsics); err != nil {
			return errors.Wrap(err, "intrinsics")
		}
	}
	for i, pc := range s.PointClouds {
		path := fmt.Sprintf("point_clouds.%d", i)
		if pc.DepthPath == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "depth")
		}
		if pc.ColorPath == "" {
			return utils.NewConfigValidationFieldRequiredError(path, "color")
		}
	}
	for i, img := range s.Images {
		if img.Path == "" {
			return utils.NewConfigValidationFieldRequiredError(fmt.Sprintf("images.%d", i), "path")
		}
		if _, err := img.Pose(); err != nil {
			return errors.Wrapf(err, "images.%d", i)
		}
	}
	for i, pose := range s.CameraPoses {
		if _, err := pose.Pose(); err != nil {
			return errors.Wrapf(err, "camera_poses.%d", i)
		}
	}
	return nil
}
