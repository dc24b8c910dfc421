package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// result in radians
func QuatToEuler(q mgl32.Quat) (e mgl32.Vec3) {
	sinr_cosp := float64(2 * (q.W*q.X() + q.Y()*q.Z()))
	cosr_cosp := float64(1 - 2*(q.X()*q.X()+q.Y()*q.Y()))

	e[0] = float32(math.Atan2(sinr_cosp, cosr_cosp))

	sinp := float64(2 * (q.W*q.Y() - q.Z()*q.X()))
	if math.Abs(sinp) >= 1 {
		e[1] = math.Pi / 2
		if sinp < 0 {
			e[1] *= -1
		}
	} else {
		e[1] = float32(math.Asin(sinp))
	}

	siny_cosp := float64(2 * (q.W*q.Z() + q.X()*q.Y()))
	cosy_cosp := float64(1 - 2*(q.Y()*q.Y()+q.Z()*q.Z()))
	e[2] = float32(math.Atan2(siny_cosp, cosy_cosp))

	return e
}

// Shortest arc spherical interpolation, result renormalized.
// factor == 0 returns a untouched.
func QuatSlerp(a, b mgl32.Quat, factor float32) mgl32.Quat {
	if factor == 0 {
		return a
	}
	cosom := float64(a.Dot(b))
	end := b
	if cosom < 0 {
		cosom = -cosom
		end = b.Scale(-1)
	}

	var sclp, sclq float64
	f := float64(factor)
	if 1-cosom > 1e-6 {
		omega := math.Acos(cosom)
		sinom := math.Sin(omega)
		sclp = math.Sin((1-f)*omega) / sinom
		sclq = math.Sin(f*omega) / sinom
	} else {
		// nearly parallel, plain lerp is precise enough
		sclp = 1 - f
		sclq = f
	}

	out := a.Scale(float32(sclp)).Add(end.Scale(float32(sclq)))
	if out.Len() == 0 {
		return a
	}
	return out.Normalize()
}

// Local matrix from translation, rotation and per axis scale.
// Rotation columns are scaled, translation goes to the last column.
func ComposeMat4(loc mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	m := rot.Normalize().Mat4()
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m[col*4+row] *= scale[col]
		}
	}
	m[12], m[13], m[14] = loc[0], loc[1], loc[2]
	return m
}

// Splits affine matrix into translation, rotation and scale.
// Skew is silently lost. Negative determinant flips all scale axes.
func DecomposeMat4(m mgl32.Mat4) (loc mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3) {
	loc = m.Col(3).Vec3()

	axes := [3]mgl32.Vec3{m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()}
	for i := range axes {
		scale[i] = axes[i].Len()
	}
	if m.Mat3().Det() < 0 {
		scale = scale.Mul(-1)
	}

	var r mgl32.Mat4
	for i := range axes {
		axis := axes[i]
		if scale[i] != 0 {
			axis = axis.Mul(1 / scale[i])
		}
		r.SetCol(i, axis.Vec4(0))
	}
	r[15] = 1

	rot = mgl32.Mat4ToQuat(r)
	if rot.Len() == 0 {
		rot = mgl32.QuatIdent()
	}
	rot = rot.Normalize()
	return loc, rot, scale
}

func IsIdentity(m mgl32.Mat4) bool {
	return Mat4Equal(m, mgl32.Ident4(), 1e-6)
}

func Mat4Equal(a, b mgl32.Mat4, threshold float32) bool {
	return a.ApproxEqualThreshold(b, threshold)
}

// Flips q into the hemisphere of prev so consecutive curve keys stay
// continuous.
func QuatSameHemisphere(prev, q mgl32.Quat) mgl32.Quat {
	if prev.Dot(q) < 0 {
		return q.Scale(-1)
	}
	return q
}

func FloatArray32to64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
