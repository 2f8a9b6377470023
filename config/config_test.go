package config

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/rgbdview/logging"
	"go.viam.com/rgbdview/rimage"
	"go.viam.com/rgbdview/viewer"
	"go.viam.com/rgbdview/viz/controls"
)

const sceneJSON = `{
	"intrinsics": {"fx": "${TEST_FX}", "width": 4, "height": 4},
	"options": {"arrows_visible": false, "clear_color": "#000000", "camera_control_scheme": "trackball"},
	"point_clouds": [{"depth": "depth.png", "color": "color.png", "name": "couch", "stride_x": 2}],
	"images": [{"path": "color.png", "name": "photo", "translation": [0, 0, -50]}],
	"camera_poses": [{"rotation": [1, 0, 0, 0, 1, 0, 0, 0, 1], "translation": [10, 0, 0]}]
}`

func writeTestImages(t *testing.T, dir string) {
	t.Helper()
	depth := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	colors := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			depth.Set(x, y, color.NRGBA{R: uint8(10 + x + y), A: 255})
			colors.Set(x, y, color.NRGBA{G: 200, A: 255})
		}
	}
	test.That(t, rimage.WriteImageToFile(filepath.Join(dir, "depth.png"), depth), test.ShouldBeNil)
	test.That(t, rimage.WriteImageToFile(filepath.Join(dir, "color.png"), colors), test.ShouldBeNil)
}

func writeScene(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "scene.json")
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestRead(t *testing.T) {
	t.Setenv("TEST_FX", "500")
	dir := t.TempDir()
	path := writeScene(t, dir, sceneJSON)

	s, err := Read(context.Background(), path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, *s.Intrinsics.Fx, test.ShouldEqual, 500)
	test.That(t, *s.Intrinsics.Width, test.ShouldEqual, 4)
	test.That(t, s.Intrinsics.Fy, test.ShouldBeNil)

	test.That(t, s.PointClouds, test.ShouldHaveLength, 1)
	test.That(t, s.PointClouds[0].DepthPath, test.ShouldEqual, filepath.Join(dir, "depth.png"))
	test.That(t, s.PointClouds[0].StrideX, test.ShouldEqual, 2)
	test.That(t, s.Images[0].Path, test.ShouldEqual, filepath.Join(dir, "color.png"))
	test.That(t, s.ObjectNames(), test.ShouldResemble, []string{"couch", "photo", "camera_pose_0"})
	test.That(t, *s.Options.ArrowsVisible, test.ShouldBeFalse)
	test.That(t, s.Options.FloorGridVisible, test.ShouldBeNil)
}

func TestReadErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, tc := range []struct {
		name     string
		contents string
		expected string
	}{
		{"not json", "{", "cannot parse scene"},
		{"unknown field", `{"point_cloud": []}`, "point_cloud"},
		{"missing color", `{"point_clouds": [{"depth": "d.png"}]}`, `point_clouds.0: "color" is required`},
		{"bad pose", `{"camera_poses": [{"translation": [1, 2]}]}`, "camera_poses.0"},
		{"bad intrinsics", `{"intrinsics": {"fx": -1}}`, "intrinsics"},
		{"unknown param", `{"images": [{"path": "a.png", "colour": "red"}]}`, "images.0"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader(context.Background(), "", strings.NewReader(tc.contents), logger)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)
		})
	}
}

func TestApply(t *testing.T) {
	t.Setenv("TEST_FX", "500")
	dir := t.TempDir()
	writeTestImages(t, dir)
	logger := logging.NewTestLogger(t)
	s, err := Read(context.Background(), writeScene(t, dir, sceneJSON), logger)
	test.That(t, err, test.ShouldBeNil)

	v := viewer.New(logger, viewer.WithSize(32, 32))
	defer func() {
		test.That(t, v.Close(context.Background()), test.ShouldBeNil)
	}()
	test.That(t, Apply(context.Background(), v, s), test.ShouldBeNil)

	st := v.State()
	test.That(t, st.ArrowsVisible, test.ShouldBeFalse)
	test.That(t, st.FloorGridVisible, test.ShouldBeTrue)
	test.That(t, st.ClearColor, test.ShouldEqual, "#000000")
	test.That(t, st.CameraControlScheme, test.ShouldEqual, controls.SchemeTrackball)
	test.That(t, v.Intrinsics().Fx, test.ShouldEqual, 500)

	for _, name := range s.ObjectNames() {
		_, err := v.GetObjectByName(name)
		test.That(t, err, test.ShouldBeNil)
	}

	t.Run("replace", func(t *testing.T) {
		next := &Scene{CameraPoses: []viewer.CameraPoseParams{{Name: "other"}}}
		test.That(t, Replace(context.Background(), v, s, next), test.ShouldBeNil)
		_, err := v.GetObjectByName("couch")
		test.That(t, err, test.ShouldNotBeNil)
		_, err = v.GetObjectByName("other")
		test.That(t, err, test.ShouldBeNil)
	})

	t.Run("missing files are reported", func(t *testing.T) {
		bad := &Scene{PointClouds: []viewer.PointCloudParams{{Name: "ghost", DepthPath: filepath.Join(dir, "nope.png"), ColorPath: "x"}}}
		err := Apply(context.Background(), v, bad)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, `point cloud "ghost"`)
	})
}

func TestWatch(t *testing.T) {
	t.Setenv("TEST_FX", "500")
	dir := t.TempDir()
	path := writeScene(t, dir, sceneJSON)

	type result struct {
		scene *Scene
		err   error
	}
	changes := make(chan result, 10)
	w, err := Watch(path, 10*time.Millisecond, logging.NewTestLogger(t), func(s *Scene, err error) {
		changes <- result{s, err}
	})
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, w.Close(), test.ShouldBeNil)
	}()
	test.That(t, w.Path(), test.ShouldEqual, path)

	writeScene(t, dir, `{"camera_poses": [{"name": "a"}, {"name": "b"}]}`)
	select {
	case res := <-changes:
		test.That(t, res.err, test.ShouldBeNil)
		test.That(t, res.scene.ObjectNames(), test.ShouldResemble, []string{"a", "b"})
	case <-time.After(5 * time.Second):
		t.Fatal("scene change not noticed")
	}

	writeScene(t, dir, `{`)
	select {
	case res := <-changes:
		test.That(t, res.err, test.ShouldNotBeNil)
	case <-time.After(5 * time.Second):
		t.Fatal("scene change not noticed")
	}
}

func TestSceneString(t *testing.T) {
	s := &Scene{
		PointClouds: []viewer.PointCloudParams{{Name: "couch", DepthPath: "d.png", ColorPath: "c.png", StrideX: 4}},
		CameraPoses: []viewer.CameraPoseParams{{Name: "cam", TransformParams: viewer.TransformParams{Translation: []float64{1, 2, 3}}}},
	}
	out := s.String()
	test.That(t, out, test.ShouldContainSubstring, "couch")
	test.That(t, out, test.ShouldContainSubstring, "stride 4x1")
	test.That(t, out, test.ShouldContainSubstring, "(1, 2, 3)")
}
