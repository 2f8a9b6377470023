package transform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func ptr[T any](v T) *T {
	return &v
}

func TestIntrinsicsDefaults(t *testing.T) {
	params := DefaultIntrinsics()
	test.That(t, params.Fx, test.ShouldEqual, 800.)
	test.That(t, params.Ppx, test.ShouldEqual, 634.)
	test.That(t, params.Ppy, test.ShouldEqual, 427.)
	test.That(t, params.Width, test.ShouldEqual, 1268)
	test.That(t, params.FxInv(), test.ShouldEqual, 1./800.)

	params, err := NewPinholeCameraIntrinsics(IntrinsicsConfig{Fx: ptr(500.), Height: ptr(480)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Fx, test.ShouldEqual, 500.)
	test.That(t, params.FxInv(), test.ShouldEqual, 1./500.)
	test.That(t, params.Fy, test.ShouldEqual, DefaultFy)
	test.That(t, params.Height, test.ShouldEqual, 480)
	test.That(t, params.Width, test.ShouldEqual, DefaultWidth)
}

func TestIntrinsicsInvalid(t *testing.T) {
	_, err := NewPinholeCameraIntrinsics(IntrinsicsConfig{Fx: ptr(0.)})
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Fx")

	_, err = NewPinholeCameraIntrinsics(IntrinsicsConfig{Width: ptr(-3)})
	test.That(t, err, test.ShouldNotBeNil)

	var nilParams *PinholeCameraIntrinsics
	test.That(t, nilParams.CheckValid(), test.ShouldNotBeNil)
}

func TestUnproject(t *testing.T) {
	params := DefaultIntrinsics()
	pt := params.Unproject(634, 427, 10)
	test.That(t, pt, test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: -10})

	pt = params.Unproject(634+80, 427+40, 10)
	test.That(t, pt.X, test.ShouldAlmostEqual, 1.0)
	test.That(t, pt.Y, test.ShouldAlmostEqual, -0.5)
	test.That(t, pt.Z, test.ShouldEqual, -10.)
}

func TestUnprojectProjectInverse(t *testing.T) {
	for _, cfg := range []IntrinsicsConfig{
		{},
		{Fx: ptr(525.), Fy: ptr(525.), Ppx: ptr(319.5), Ppy: ptr(239.5), Width: ptr(640), Height: ptr(480)},
		{Fx: ptr(1200.), Fy: ptr(900.), Ppx: ptr(10.), Ppy: ptr(700.)},
	} {
		params, err := NewPinholeCameraIntrinsics(cfg)
		test.That(t, err, test.ShouldBeNil)
		for _, px := range [][2]int{{0, 0}, {17, 311}, {639, 479}, {1267, 844}} {
			for _, depth := range []float64{0.1, 1, 27.2, 4500} {
				x, y, d, ok := params.Project(params.Unproject(px[0], px[1], depth))
				test.That(t, ok, test.ShouldBeTrue)
				test.That(t, x, test.ShouldAlmostEqual, float64(px[0]), 1e-6)
				test.That(t, y, test.ShouldAlmostEqual, float64(px[1]), 1e-6)
				test.That(t, d, test.ShouldAlmostEqual, depth, 1e-9)
			}
		}
	}

	_, _, _, ok := DefaultIntrinsics().Project(r3.Vector{X: 1, Y: 1, Z: 1})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestIntrinsicsFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intrinsics.json")
	test.That(t, os.WriteFile(path, []byte(`{"fx": 600, "cy": 240}`), 0o600), test.ShouldBeNil)

	params, err := NewPinholeCameraIntrinsicsFromJSONFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Fx, test.ShouldEqual, 600.)
	test.That(t, params.Ppy, test.ShouldEqual, 240.)
	test.That(t, params.Ppx, test.ShouldEqual, DefaultPpx)

	test.That(t, os.WriteFile(path, []byte(`{"fx": `), 0o600), test.ShouldBeNil)
	_, err = NewPinholeCameraIntrinsicsFromJSONFile(path)
	test.That(t, err, test.ShouldNotBeNil)
}
