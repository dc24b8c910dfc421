package anim

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/scene_importer/utils"
)

type VectorKey struct {
	Time  float64
	Value mgl32.Vec3
}

type QuatKey struct {
	Time  float64
	Value mgl32.Quat
}

// Keys are ordered by non-decreasing time. Equal times are kept in
// insertion order.
type VectorTrack []VectorKey
type QuatTrack []QuatKey

func (t VectorTrack) Animated() bool { return len(t) > 1 }
func (t QuatTrack) Animated() bool   { return len(t) > 1 }

func (t VectorTrack) Times() []float64 {
	times := make([]float64, len(t))
	for i := range t {
		times[i] = t[i].Time
	}
	return times
}

func (t QuatTrack) Times() []float64 {
	times := make([]float64, len(t))
	for i := range t {
		times[i] = t[i].Time
	}
	return times
}

// cursor remembers the last resolved key so a sweep with increasing query
// times costs O(n) in total. Querying an earlier time restarts the search.
type cursor struct {
	frame    int
	lastTime float64
	used     bool
}

func (c *cursor) seek(count int, timeAt func(int) float64, t float64) int {
	frame := 0
	if c.used && t >= c.lastTime && c.frame < count {
		frame = c.frame
	}
	for frame < count-1 {
		if t < timeAt(frame+1) {
			break
		}
		frame++
	}
	c.frame = frame
	c.lastTime = t
	c.used = true
	return frame
}

// interpolation factor between key frame and the following key, wrapping to
// the first key past the last one. ok is false when the earlier key must be
// used verbatim.
func factorBetween(t, keyTime, nextTime, duration float64) (factor float32, ok bool) {
	diff := nextTime - keyTime
	if diff < 0 {
		diff += duration
	}
	if diff <= 0 {
		return 0, false
	}
	f := (t - keyTime) / diff
	if f <= 0 {
		return 0, false
	}
	if f > 1 {
		f = 1
	}
	return float32(f), true
}

type PositionSampler struct {
	Track    VectorTrack
	Duration float64
	cur      cursor
}

func NewPositionSampler(track VectorTrack, duration float64) *PositionSampler {
	return &PositionSampler{Track: track, Duration: duration}
}

func (s *PositionSampler) SampleAt(t float64) mgl32.Vec3 {
	keys := s.Track
	if len(keys) == 0 {
		return mgl32.Vec3{}
	}
	if t < keys[0].Time {
		return keys[0].Value
	}
	frame := s.cur.seek(len(keys), func(i int) float64 { return keys[i].Time }, t)
	key := keys[frame]
	next := keys[(frame+1)%len(keys)]
	factor, ok := factorBetween(t, key.Time, next.Time, s.Duration)
	if !ok {
		return key.Value
	}
	return key.Value.Add(next.Value.Sub(key.Value).Mul(factor))
}

type RotationSampler struct {
	Track    QuatTrack
	Duration float64
	cur      cursor
}

func NewRotationSampler(track QuatTrack, duration float64) *RotationSampler {
	return &RotationSampler{Track: track, Duration: duration}
}

func (s *RotationSampler) SampleAt(t float64) mgl32.Quat {
	keys := s.Track
	if len(keys) == 0 {
		return mgl32.QuatIdent()
	}
	if t < keys[0].Time {
		return keys[0].Value
	}
	frame := s.cur.seek(len(keys), func(i int) float64 { return keys[i].Time }, t)
	key := keys[frame]
	next := keys[(frame+1)%len(keys)]
	factor, ok := factorBetween(t, key.Time, next.Time, s.Duration)
	if !ok {
		return key.Value
	}
	return utils.QuatSlerp(key.Value, next.Value, factor)
}

// ScaleSampler holds the nearest lower-or-equal key. Scale keys are not
// interpolated, unlike rotation and position.
type ScaleSampler struct {
	Track VectorTrack
	cur   cursor
}

func NewScaleSampler(track VectorTrack) *ScaleSampler {
	return &ScaleSampler{Track: track}
}

func (s *ScaleSampler) SampleAt(t float64) mgl32.Vec3 {
	keys := s.Track
	if len(keys) == 0 {
		return mgl32.Vec3{1, 1, 1}
	}
	if t < keys[0].Time {
		return keys[0].Value
	}
	frame := s.cur.seek(len(keys), func(i int) float64 { return keys[i].Time }, t)
	return keys[frame].Value
}
