package anim

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func zRot(angle float32) mgl32.Quat {
	return mgl32.QuatRotate(angle, mgl32.Vec3{0, 0, 1})
}

func TestPositionSamplerAtKeys(t *testing.T) {
	track := VectorTrack{
		{0, mgl32.Vec3{0, 0, 0}},
		{1, mgl32.Vec3{1, 2, 3}},
		{2.5, mgl32.Vec3{-1, 0, 7}},
	}
	s := NewPositionSampler(track, 2.5)
	for _, k := range track {
		assert.Equal(t, k.Value, s.SampleAt(k.Time))
	}
	// backwards queries restart the cursor
	for i := len(track) - 1; i >= 0; i-- {
		assert.Equal(t, track[i].Value, s.SampleAt(track[i].Time))
	}
}

func TestPositionSamplerLerp(t *testing.T) {
	s := NewPositionSampler(VectorTrack{
		{0, mgl32.Vec3{0, 0, 0}},
		{2, mgl32.Vec3{2, 4, -2}},
	}, 2)
	assert.True(t, s.SampleAt(1).ApproxEqual(mgl32.Vec3{1, 2, -1}))
	assert.True(t, s.SampleAt(0.5).ApproxEqual(mgl32.Vec3{0.5, 1, -0.5}))
}

func TestPositionSamplerWrap(t *testing.T) {
	// past the last key the track interpolates back to the first one
	// over the remaining animation time
	s := NewPositionSampler(VectorTrack{
		{0, mgl32.Vec3{0, 0, 0}},
		{1, mgl32.Vec3{4, 0, 0}},
	}, 3)
	assert.True(t, s.SampleAt(2).ApproxEqual(mgl32.Vec3{2, 0, 0}), "%v", s.SampleAt(2))
}

func TestRotationSamplerWrap(t *testing.T) {
	s := NewRotationSampler(QuatTrack{{0, zRot(0)}, {1, zRot(1)}}, 3)
	for _, test := range []struct {
		time float64
		want mgl32.Quat
	}{
		{1, zRot(1)},
		{1.5, zRot(0.75)},
		{2, zRot(0.5)},
		{2.5, zRot(0.25)},
	} {
		q := s.SampleAt(test.time)
		assert.True(t, q.OrientationEqualThreshold(test.want, 1e-5), "t=%v: %v", test.time, q)
	}
}

func TestPositionSamplerBeforeFirstKey(t *testing.T) {
	s := NewPositionSampler(VectorTrack{
		{1, mgl32.Vec3{5, 5, 5}},
		{2, mgl32.Vec3{6, 6, 6}},
	}, 2)
	assert.Equal(t, mgl32.Vec3{5, 5, 5}, s.SampleAt(0))
}

func TestDuplicateTimesUseEarlierKey(t *testing.T) {
	track := VectorTrack{
		{0, mgl32.Vec3{0, 0, 0}},
		{1, mgl32.Vec3{1, 0, 0}},
		{1, mgl32.Vec3{9, 0, 0}},
	}
	s := NewPositionSampler(track, 0)
	// last of the equal keys is selected, its pair wraps with zero duration
	assert.Equal(t, mgl32.Vec3{9, 0, 0}, s.SampleAt(1))
	assert.Equal(t, mgl32.Vec3{9, 0, 0}, s.SampleAt(5))

	single := NewRotationSampler(QuatTrack{{0, zRot(1)}}, 10)
	assert.Equal(t, zRot(1), single.SampleAt(3))
}

func TestRotationSamplerUnitLength(t *testing.T) {
	s := NewRotationSampler(QuatTrack{
		{0, zRot(0)},
		{1, zRot(math.Pi * 0.9)},
		{2, mgl32.QuatRotate(1, mgl32.Vec3{1, 0, 0})},
		{3, zRot(-2)},
	}, 4)
	for ti := 0.0; ti <= 4; ti += 0.05 {
		q := s.SampleAt(ti)
		assert.InDelta(t, 1, q.Len(), 1e-5, "t=%v", ti)
	}
}

func TestRotationSamplerAtKeys(t *testing.T) {
	track := QuatTrack{{0, zRot(0.1)}, {1, zRot(0.7)}, {3, zRot(2)}}
	s := NewRotationSampler(track, 3)
	for _, k := range track {
		assert.Equal(t, k.Value, s.SampleAt(k.Time))
	}
}

func TestRotationSamplerMidpoint(t *testing.T) {
	s := NewRotationSampler(QuatTrack{{0, zRot(0)}, {1, zRot(1)}}, 1)
	assert.True(t, s.SampleAt(0.5).OrientationEqualThreshold(zRot(0.5), 1e-5))
}

// Scale keys are held, not interpolated. This mirrors the source format
// importer behaviour and is kept on purpose.
func TestScaleSamplerIsStepFunction(t *testing.T) {
	track := VectorTrack{
		{0, mgl32.Vec3{1, 1, 1}},
		{1, mgl32.Vec3{2, 2, 2}},
		{2, mgl32.Vec3{3, 3, 3}},
	}
	s := NewScaleSampler(track)
	for _, test := range []struct {
		time float64
		want mgl32.Vec3
	}{
		{0, mgl32.Vec3{1, 1, 1}},
		{0.5, mgl32.Vec3{1, 1, 1}},
		{0.999, mgl32.Vec3{1, 1, 1}},
		{1, mgl32.Vec3{2, 2, 2}},
		{1.7, mgl32.Vec3{2, 2, 2}},
		{2, mgl32.Vec3{3, 3, 3}},
		{10, mgl32.Vec3{3, 3, 3}},
	} {
		assert.Equal(t, test.want, s.SampleAt(test.time), "t=%v", test.time)
		// idempotent
		assert.Equal(t, test.want, s.SampleAt(test.time), "t=%v", test.time)
	}
}

func TestEmptyTracks(t *testing.T) {
	assert.Equal(t, mgl32.Vec3{}, NewPositionSampler(nil, 1).SampleAt(0.3))
	assert.Equal(t, mgl32.QuatIdent(), NewRotationSampler(nil, 1).SampleAt(0.3))
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, NewScaleSampler(nil).SampleAt(0.3))
}
