package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/rgbdview/logging"
	"go.viam.com/rgbdview/rimage/transform"
	"go.viam.com/rgbdview/viewer"
)

// rawScene keeps entries loosely typed until they are decoded as viewer params, so numbers
// written as strings after env substitution still parse.
type rawScene struct {
	Intrinsics  map[string]interface{}   `json:"intrinsics"`
	Options     Options                  `json:"options"`
	PointClouds []map[string]interface{} `json:"point_clouds"`
	Images      []map[string]interface{} `json:"images"`
	CameraPoses []map[string]interface{} `json:"camera_poses"`
}

// Read reads a scene from the given file, expanding ${VAR} references first.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Scene, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a scene from r. originalPath, if set, is the file r came from and anchors
// relative image paths.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Scene, error) {
	var raw rawScene
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "cannot parse scene")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scene := &Scene{Options: raw.Options, ConfigFilePath: originalPath}
	if raw.Intrinsics != nil {
		intrinsics, err := viewer.DecodeParams[transform.IntrinsicsConfig](raw.Intrinsics)
		if err != nil {
			return nil, errors.Wrap(err, "intrinsics")
		}
		scene.Intrinsics = &intrinsics
	}
	for i, m := range raw.PointClouds {
		pc, err := viewer.DecodeParams[viewer.PointCloudParams](m)
		if err != nil {
			return nil, errors.Wrapf(err, "point_clouds.%d", i)
		}
		if pc.Name == "" {
			pc.Name = fmt.Sprintf("point_cloud_%d", i)
		}
		pc.DepthPath = resolvePath(originalPath, pc.DepthPath)
		pc.ColorPath = resolvePath(originalPath, pc.ColorPath)
		scene.PointClouds = append(scene.PointClouds, pc)
	}
	for i, m := range raw.Images {
		img, err := viewer.DecodeParams[viewer.ImageParams](m)
		if err != nil {
			return nil, errors.Wrapf(err, "images.%d", i)
		}
		if img.Name == "" {
			img.Name = fmt.Sprintf("image_%d", i)
		}
		img.Path = resolvePath(originalPath, img.Path)
		scene.Images = append(scene.Images, img)
	}
	for i, m := range raw.CameraPoses {
		pose, err := viewer.DecodeParams[viewer.CameraPoseParams](m)
		if err != nil {
			return nil, errors.Wrapf(err, "camera_poses.%d", i)
		}
		if pose.Name == "" {
			pose.Name = fmt.Sprintf("camera_pose_%d", i)
		}
		scene.CameraPoses = append(scene.CameraPoses, pose)
	}

	if err := scene.Validate(); err != nil {
		return nil, err
	}
	logger.Debugw("scene read", "path", originalPath,
		"point_clouds", len(scene.PointClouds), "images", len(scene.Images), "camera_poses", len(scene.CameraPoses))
	return scene, nil
}

func resolvePath(originalPath, path string) string {
	if path == "" || originalPath == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(originalPath), path)
}
