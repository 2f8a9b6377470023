package campose

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/rgbdview/rimage/transform"
	"go.viam.com/rgbdview/spatialmath"
)

func TestBuildPrototype(t *testing.T) {
	proto := BuildPrototype(transform.DefaultIntrinsics(), DefaultScale)
	verts := proto.Vertices()
	test.That(t, verts, test.ShouldHaveLength, PrototypeVertexCount)

	p1 := r3.Vector{X: -634. / 800 * 20, Y: -427. / 800 * 20, Z: 20}
	p3 := r3.Vector{X: (1268 - 1 - 634.) / 800 * 20, Y: (845 - 1 - 427.) / 800 * 20, Z: 20}
	test.That(t, verts[0].Sub(p1).Norm(), test.ShouldBeLessThan, 1e-12)
	test.That(t, verts[2].Sub(p3).Norm(), test.ShouldBeLessThan, 1e-12)

	// the strip closes the base rectangle and visits the apex twice.
	test.That(t, verts[4], test.ShouldResemble, verts[0])
	test.That(t, verts[5], test.ShouldResemble, r3.Vector{})
	test.That(t, verts[8], test.ShouldResemble, r3.Vector{})
	test.That(t, verts[6], test.ShouldResemble, verts[2])
	test.That(t, verts[7], test.ShouldResemble, verts[3])
	test.That(t, verts[9], test.ShouldResemble, verts[1])

	// the indicator sits on the p2-p3 edge and points away from the frustum.
	test.That(t, verts[10].Y, test.ShouldEqual, verts[1].Y)
	test.That(t, verts[12].Y, test.ShouldEqual, verts[1].Y)
	test.That(t, verts[11].Y, test.ShouldBeGreaterThan, verts[1].Y)
	for _, v := range verts {
		if v.Norm() != 0 {
			test.That(t, v.Z, test.ShouldEqual, DefaultScale)
		}
	}
	test.That(t, proto.Style(), test.ShouldResemble, DefaultLineStyle)
}

func TestInstancesShareThePrototype(t *testing.T) {
	proto := BuildPrototype(transform.DefaultIntrinsics(), DefaultScale)
	a := Instantiate(proto, spatialmath.NewZeroPose(), "cam0")
	b := Instantiate(proto,
		spatialmath.NewPose(spatialmath.NewRotationFromAxisAngle(r3.Vector{X: 0, Y: 1, Z: 0}, math.Pi/2), r3.Vector{X: 10, Y: 0, Z: 0}),
		"cam1")

	test.That(t, a.Prototype(), test.ShouldEqual, b.Prototype())
	test.That(t, a.Prototype().Vertices(), test.ShouldResemble, b.Prototype().Vertices())
	test.That(t, a.Name(), test.ShouldEqual, "cam0")

	aw := a.WorldVertices()
	bw := b.WorldVertices()
	test.That(t, aw, test.ShouldResemble, proto.Vertices())
	test.That(t, bw[5], test.ShouldResemble, r3.Vector{X: 10, Y: 0, Z: 0})
	for i := range bw {
		test.That(t, bw[i].Sub(b.Pose().Transform(aw[i])).Norm(), test.ShouldBeLessThan, 1e-12)
	}
}

func TestVerticesIsACopy(t *testing.T) {
	proto := BuildPrototype(transform.DefaultIntrinsics(), 1)
	verts := proto.Vertices()
	verts[0] = r3.Vector{X: 99, Y: 99, Z: 99}
	test.That(t, proto.Vertices()[0], test.ShouldNotResemble, verts[0])
}
