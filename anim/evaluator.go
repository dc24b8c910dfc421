package anim

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/scene_importer/utils"
)

// Channel is the per node bundle of keyframe tracks of one animation.
// A track with a single key (or none) is constant.
type Channel struct {
	NodeName string
	Rotation QuatTrack
	Position VectorTrack
	Scale    VectorTrack
}

func (c *Channel) Animated() bool {
	return c.Rotation.Animated() || c.Position.Animated() || c.Scale.Animated()
}

// NodeEvaluator turns the tracks of one channel into a local matrix.
// Holds lookup cursors, so an instance must not be shared between goroutines.
type NodeEvaluator struct {
	position *PositionSampler
	rotation *RotationSampler
	scale    *ScaleSampler

	restLoc   mgl32.Vec3
	restRot   mgl32.Quat
	restScale mgl32.Vec3
}

// rest is the static local transform of the node; empty tracks fall back to
// its components.
func NewNodeEvaluator(ch *Channel, duration float64, rest mgl32.Mat4) *NodeEvaluator {
	e := &NodeEvaluator{
		position: NewPositionSampler(ch.Position, duration),
		rotation: NewRotationSampler(ch.Rotation, duration),
		scale:    NewScaleSampler(ch.Scale),
	}
	e.restLoc, e.restRot, e.restScale = utils.DecomposeMat4(rest)
	return e
}

func (e *NodeEvaluator) Evaluate(t float64) mgl32.Mat4 {
	loc, rot, scale := e.restLoc, e.restRot, e.restScale
	if len(e.position.Track) != 0 {
		loc = e.position.SampleAt(t)
	}
	if len(e.rotation.Track) != 0 {
		rot = e.rotation.SampleAt(t)
	}
	if len(e.scale.Track) != 0 {
		scale = e.scale.SampleAt(t)
	}
	return utils.ComposeMat4(loc, rot, scale)
}
