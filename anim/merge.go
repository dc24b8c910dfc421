package anim

import "math"

const TimeEpsilon = 1e-4

type mergeCursor struct {
	times []float64
	next  int
}

// MergeKeyTimes collects key times of every track in the chain into one
// strictly increasing list. Times closer than epsilon to an already emitted
// time are folded into it, a non positive epsilon is replaced by
// TimeEpsilon. Only real key times are ever emitted.
func MergeKeyTimes(chain []ChainLink, epsilon float64) []float64 {
	if epsilon <= 0 {
		epsilon = TimeEpsilon
	}
	cursors := make([]*mergeCursor, 0, len(chain)*3)
	for _, link := range chain {
		if link.Channel == nil {
			continue
		}
		cursors = append(cursors,
			&mergeCursor{times: link.Channel.Rotation.Times()},
			&mergeCursor{times: link.Channel.Position.Times()},
			&mergeCursor{times: link.Channel.Scale.Times()})
	}

	var out []float64
	for {
		min := math.Inf(1)
		found := false
		for _, c := range cursors {
			if c.next < len(c.times) && c.times[c.next] < min {
				min = c.times[c.next]
				found = true
			}
		}
		if !found {
			return out
		}

		out = append(out, min)

		for _, c := range cursors {
			for c.next < len(c.times) && math.Abs(c.times[c.next]-min) < epsilon {
				c.next++
			}
		}
	}
}
