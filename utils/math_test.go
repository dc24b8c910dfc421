package utils

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestQuatSlerp(t *testing.T) {
	a := mgl32.QuatIdent()
	b := mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 0, 1})

	assert.Equal(t, a, QuatSlerp(a, b, 0))

	for _, f := range []float32{0.1, 0.25, 0.5, 0.75, 1} {
		q := QuatSlerp(a, b, f)
		assert.InDelta(t, 1, q.Len(), 1e-5, "factor %v", f)
	}

	half := QuatSlerp(a, b, 0.5)
	want := mgl32.QuatRotate(math.Pi/4, mgl32.Vec3{0, 0, 1})
	assert.True(t, half.ApproxEqualThreshold(want, 1e-5), "%v != %v", half, want)
}

func TestQuatSlerpShortestArc(t *testing.T) {
	a := mgl32.QuatIdent()
	// same rotation as identity but in the other hemisphere
	b := mgl32.QuatIdent().Scale(-1)
	q := QuatSlerp(a, b, 0.5)
	assert.True(t, q.OrientationEqualThreshold(a, 1e-5))
	assert.InDelta(t, 1, q.Len(), 1e-5)
}

func TestComposeDecompose(t *testing.T) {
	for _, test := range []struct {
		loc   mgl32.Vec3
		rot   mgl32.Quat
		scale mgl32.Vec3
	}{
		{mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec3{1, 1, 1}},
		{mgl32.Vec3{1, 2, 3}, mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0}), mgl32.Vec3{1, 1, 1}},
		{mgl32.Vec3{-4, 0, 9}, mgl32.QuatRotate(2.1, mgl32.Vec3{1, 1, 0}.Normalize()), mgl32.Vec3{2, 3, 0.5}},
	} {
		m := ComposeMat4(test.loc, test.rot, test.scale)
		loc, rot, scale := DecomposeMat4(m)
		assert.True(t, loc.ApproxEqualThreshold(test.loc, 1e-4), "loc %v != %v", loc, test.loc)
		assert.True(t, scale.ApproxEqualThreshold(test.scale, 1e-4), "scale %v != %v", scale, test.scale)
		assert.True(t, rot.OrientationEqualThreshold(test.rot, 1e-4), "rot %v != %v", rot, test.rot)
	}
}

func TestComposeMatchesTRS(t *testing.T) {
	loc := mgl32.Vec3{1, -2, 3}
	rot := mgl32.QuatRotate(1.1, mgl32.Vec3{0, 0, 1})
	scale := mgl32.Vec3{2, 1, 4}

	want := mgl32.Translate3D(loc[0], loc[1], loc[2]).
		Mul4(rot.Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
	assert.True(t, Mat4Equal(ComposeMat4(loc, rot, scale), want, 1e-5))
}

func TestDecomposeNegativeDeterminant(t *testing.T) {
	m := mgl32.Scale3D(-1, 1, 1)
	_, rot, scale := DecomposeMat4(m)
	assert.Less(t, scale[0], float32(0))
	assert.InDelta(t, 1, rot.Len(), 1e-5)
	assert.True(t, Mat4Equal(ComposeMat4(mgl32.Vec3{}, rot, scale), m, 1e-5))
}

func TestQuatSameHemisphere(t *testing.T) {
	prev := mgl32.QuatIdent()
	q := mgl32.QuatIdent().Scale(-1)
	assert.Equal(t, prev, QuatSameHemisphere(prev, q))
	assert.Equal(t, prev, QuatSameHemisphere(prev, prev))
}
