package controls

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/rgbdview/viz/render"
)

func newTestControls(t *testing.T, scheme Scheme) (*Controls, *render.PerspectiveCamera) {
	t.Helper()
	cam := render.NewPerspectiveCamera(1)
	cam.Position = r3.Vector{Z: 10}
	cam.UpdateProjectionMatrix()
	c, err := New(scheme, cam)
	test.That(t, err, test.ShouldBeNil)
	return c, cam
}

func vectorShouldAlmostEqual(t *testing.T, actual, expected r3.Vector) {
	t.Helper()
	test.That(t, actual.X, test.ShouldAlmostEqual, expected.X, 1e-6)
	test.That(t, actual.Y, test.ShouldAlmostEqual, expected.Y, 1e-6)
	test.That(t, actual.Z, test.ShouldAlmostEqual, expected.Z, 1e-6)
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("orbit")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldEqual, SchemeOrbit)

	s, err = ParseScheme("TRACKBALL")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldEqual, SchemeTrackball)

	_, err = ParseScheme("fly")
	test.That(t, errors.Is(err, ErrUnknownControlScheme), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"fly"`)

	_, err = New("fly", render.NewPerspectiveCamera(1))
	test.That(t, errors.Is(err, ErrUnknownControlScheme), test.ShouldBeTrue)
	_, err = New(SchemeOrbit, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestUpdateWithoutInput(t *testing.T) {
	c, cam := newTestControls(t, SchemeOrbit)
	test.That(t, c.Update(), test.ShouldBeFalse)
	test.That(t, cam.Position, test.ShouldResemble, r3.Vector{Z: 10})
}

func TestOrbit(t *testing.T) {
	c, cam := newTestControls(t, SchemeOrbit)
	c.Rotate(90, 0)
	test.That(t, c.Update(), test.ShouldBeTrue)
	vectorShouldAlmostEqual(t, cam.Position, r3.Vector{X: -10})
	test.That(t, cam.Up, test.ShouldResemble, r3.Vector{Y: 1})
	test.That(t, c.Update(), test.ShouldBeFalse)

	t.Run("stops at the pole", func(t *testing.T) {
		c.Rotate(0, 180)
		test.That(t, c.Update(), test.ShouldBeTrue)
		test.That(t, cam.Position.Norm(), test.ShouldAlmostEqual, 10, 1e-6)
		test.That(t, cam.Position.Y, test.ShouldBeLessThan, 10)
		test.That(t, cam.Position.Y, test.ShouldBeGreaterThan, 9.99)
		test.That(t, cam.Up, test.ShouldResemble, r3.Vector{Y: 1})
	})
}

func TestTrackballTiltsUp(t *testing.T) {
	c, cam := newTestControls(t, SchemeTrackball)
	test.That(t, c.Scheme(), test.ShouldEqual, SchemeTrackball)
	c.Rotate(0, 90)
	test.That(t, c.Update(), test.ShouldBeTrue)
	vectorShouldAlmostEqual(t, cam.Position, r3.Vector{Y: 10})
	vectorShouldAlmostEqual(t, cam.Up, r3.Vector{Z: -1})
}

func TestPanAndZoom(t *testing.T) {
	c, cam := newTestControls(t, SchemeOrbit)
	c.Pan(0.5, 0)
	test.That(t, c.Update(), test.ShouldBeTrue)
	vectorShouldAlmostEqual(t, cam.ViewVector(), r3.Vector{Z: 10})
	test.That(t, cam.Target.X, test.ShouldBeLessThan, 0)
	test.That(t, cam.Target.Y, test.ShouldAlmostEqual, 0, 1e-9)

	c.Zoom(1)
	test.That(t, c.Update(), test.ShouldBeTrue)
	test.That(t, cam.ViewVector().Norm(), test.ShouldAlmostEqual, 20, 1e-9)

	c.Zoom(-2)
	test.That(t, c.Update(), test.ShouldBeTrue)
	test.That(t, cam.ViewVector().Norm(), test.ShouldAlmostEqual, MinDistance, 1e-9)
}
