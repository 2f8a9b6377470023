package spatialmath

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Pose is a rigid transform: a rotation followed by a translation, stored as a homogeneous 4x4
// matrix.
type Pose struct {
	matrix mgl64.Mat4
}

// NewZeroPose is the identity transform.
func NewZeroPose() Pose {
	return Pose{mgl64.Ident4()}
}

// NewPose composes the rotational 3x3 block of rotation with translation. Any translation or
// projective component already present in rotation is discarded.
func NewPose(rotation mgl64.Mat4, translation r3.Vector) Pose {
	return NewPoseFromMat3(rotation.Mat3(), translation)
}

// NewPoseFromMat3 builds a pose from a 3x3 rotation and a translation.
func NewPoseFromMat3(rotation mgl64.Mat3, translation r3.Vector) Pose {
	m := rotation.Mat4()
	m.Set(0, 3, translation.X)
	m.Set(1, 3, translation.Y)
	m.Set(2, 3, translation.Z)
	return Pose{m}
}

// NewPoseFromPoint is a pure translation.
func NewPoseFromPoint(translation r3.Vector) Pose {
	return NewPoseFromMat3(mgl64.Ident3(), translation)
}

// Matrix returns the homogeneous matrix, column major as OpenGL expects.
func (p Pose) Matrix() mgl64.Mat4 {
	return p.matrix
}

// Rotation returns the rotational block.
func (p Pose) Rotation() mgl64.Mat3 {
	return p.matrix.Mat3()
}

// Point returns the translation.
func (p Pose) Point() r3.Vector {
	col := p.matrix.Col(3)
	return r3.Vector{X: col.X(), Y: col.Y(), Z: col.Z()}
}

// Transform maps v from the pose's local frame into its parent frame.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	out := p.matrix.Mul4x1(mgl64.Vec4{v.X, v.Y, v.Z, 1})
	return r3.Vector{X: out.X(), Y: out.Y(), Z: out.Z()}
}

// Compose returns the pose that applies b first and then a.
func Compose(a, b Pose) Pose {
	return Pose{a.matrix.Mul4(b.matrix)}
}

// AlmostEqual compares two poses element-wise within epsilon.
func (p Pose) AlmostEqual(other Pose, epsilon float64) bool {
	return p.matrix.ApproxEqualThreshold(other.matrix, epsilon)
}

func (p Pose) String() string {
	pt := p.Point()
	return fmt.Sprintf("{rotation: %v, translation: (%g, %g, %g)}", p.Rotation(), pt.X, pt.Y, pt.Z)
}

// NewRotationFromAxisAngle rotates by angleRad around axis. A zero axis yields the identity.
func NewRotationFromAxisAngle(axis r3.Vector, angleRad float64) mgl64.Mat4 {
	if axis.Norm() == 0 {
		return mgl64.Ident4()
	}
	n := axis.Normalize()
	return mgl64.HomogRotate3D(angleRad, mgl64.Vec3{n.X, n.Y, n.Z})
}

// NewRotationFromRowMajor accepts either 9 values (3x3) or 16 values (4x4) in row-major order.
// Only the upper-left 3x3 block is kept, and it is orthonormalised so scale and shear drop out.
// A block whose first two columns are degenerate becomes the identity.
func NewRotationFromRowMajor(vals []float64) (mgl64.Mat4, error) {
	var rot mgl64.Mat3
	switch len(vals) {
	case 9:
		rot = mgl64.Mat3FromRows(
			mgl64.Vec3{vals[0], vals[1], vals[2]},
			mgl64.Vec3{vals[3], vals[4], vals[5]},
			mgl64.Vec3{vals[6], vals[7], vals[8]},
		)
	case 16:
		rot = mgl64.Mat3FromRows(
			mgl64.Vec3{vals[0], vals[1], vals[2]},
			mgl64.Vec3{vals[4], vals[5], vals[6]},
			mgl64.Vec3{vals[8], vals[9], vals[10]},
		)
	default:
		return mgl64.Mat4{}, errors.Errorf("rotation needs 9 or 16 values, got %d", len(vals))
	}
	return orthonormalize(rot).Mat4(), nil
}

const degenerateAxis = 1e-9

// orthonormalize runs Gram-Schmidt over the first two columns and rebuilds the third from
// their cross product, so the result is always a proper rotation.
func orthonormalize(m mgl64.Mat3) mgl64.Mat3 {
	x := m.Col(0)
	if x.Len() < degenerateAxis {
		return mgl64.Ident3()
	}
	x = x.Normalize()
	y := m.Col(1)
	y = y.Sub(x.Mul(x.Dot(y)))
	if y.Len() < degenerateAxis {
		return mgl64.Ident3()
	}
	y = y.Normalize()
	return mgl64.Mat3FromCols(x, y, x.Cross(y))
}
