package config

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rgbdview/pointcloud"
	"go.viam.com/rgbdview/utils"
	"go.viam.com/rgbdview/viewer"
	"go.viam.com/rgbdview/viz/scene"
)

// ObjectNames lists the names of every object the scene adds.
func (s *Scene) ObjectNames() []string {
	names := make([]string, 0, len(s.PointClouds)+len(s.Images)+len(s.CameraPoses))
	for _, pc := range s.PointClouds {
		names = append(names, pc.Name)
	}
	for _, img := range s.Images {
		names = append(names, img.Name)
	}
	for _, pose := range s.CameraPoses {
		names = append(names, pose.Name)
	}
	return names
}

// Apply loads s into v. Intrinsics are set first so clouds unproject with them. Apply waits for
// every image to load and returns all failures together; entries that succeeded stay displayed.
func Apply(ctx context.Context, v *viewer.Viewer, s *Scene) error {
	var errs error
	if s.Intrinsics != nil {
		errs = multierr.Append(errs, v.SetCameraIntrinsics(*s.Intrinsics))
	}
	errs = multierr.Append(errs, v.ApplyState(s.Options.Merge(v.State())))

	for _, params := range s.CameraPoses {
		_, err := v.DisplayCameraPose(params)
		errs = multierr.Append(errs, errors.Wrapf(err, "camera pose %q", params.Name))
	}

	clouds := make([]*utils.Future[*pointcloud.PointCloud], 0, len(s.PointClouds))
	for _, params := range s.PointClouds {
		clouds = append(clouds, v.DisplayPointCloud(ctx, params))
	}
	images := make([]*utils.Future[*scene.ImagePlane], 0, len(s.Images))
	for _, params := range s.Images {
		images = append(images, v.DisplayImage(ctx, params))
	}
	for i, f := range clouds {
		_, err := f.Await(ctx)
		errs = multierr.Append(errs, errors.Wrapf(err, "point cloud %q", s.PointClouds[i].Name))
	}
	for i, f := range images {
		_, err := f.Await(ctx)
		errs = multierr.Append(errs, errors.Wrapf(err, "image %q", s.Images[i].Name))
	}
	return errs
}

// Replace removes what prev added to v, if prev is set, and applies next.
func Replace(ctx context.Context, v *viewer.Viewer, prev, next *Scene) error {
	if prev != nil {
		for _, name := range prev.ObjectNames() {
			err := v.RemoveObject(name)
			if err != nil && !errors.Is(err, viewer.ErrObjectNotFound) && !errors.Is(err, viewer.ErrHelperObject) {
				return err
			}
		}
	}
	return Apply(ctx, v, next)
}
