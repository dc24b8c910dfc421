package importer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_importer/anim"
	"github.com/mogaika/scene_importer/source"
	"github.com/mogaika/scene_importer/target"
	"github.com/mogaika/scene_importer/utils"
)

const DefaultTicksPerSecond = 25.0

func (imp *Importer) importAnimations() {
	for ai, a := range imp.doc.Animations {
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("Action-%d", ai)
		}
		tps := a.TicksPerSecond
		if tps <= 0 {
			imp.report.Debugf("Animation %q has no tick rate, using %v", name, DefaultTicksPerSecond)
			tps = DefaultTicksPerSecond
		}
		imp.importAnimation(name, tps, a)
	}
}

func (imp *Importer) importAnimation(name string, tps float64, a *source.Animation) {
	evaluators := anim.NewEvaluatorSet(imp.doc, a.Duration)
	lookup := func(nodeName string) *anim.Channel { return a.Channel(nodeName) }

	var boneAction *target.Action
	for _, ch := range a.Channels {
		id := imp.doc.FindNode(ch.NodeName)
		if id == source.NoNode {
			imp.report.Warnf("Animation %q channel targets missing node %q, skipped", name, ch.NodeName)
			continue
		}

		if binding, ok := imp.bones[id]; ok {
			if boneAction == nil {
				boneAction = imp.scene.NewAction(name, tps, imp.armatureObject)
			}
			if err := imp.resampleBone(boneAction, evaluators, binding, lookup); err != nil {
				imp.elementError("bone channel", ch.NodeName, err)
			}
			// bone nodes with meshes below also anchor an object
			if obj := imp.objects[id]; obj != nil {
				imp.animateObject(name, tps, obj, ch)
			}
			continue
		}

		obj := imp.objects[id]
		if obj == nil {
			imp.report.Warnf("Animation %q channel targets node %q without object, skipped", name, ch.NodeName)
			continue
		}
		imp.animateObject(name, tps, obj, ch)
	}
}

// resampleBone evaluates the bone world pose at every key time of its
// ancestor chain and stores it relative to the bone rest pose.
func (imp *Importer) resampleBone(action *target.Action, evaluators *anim.EvaluatorSet,
	b *boneBinding, lookup anim.ChannelLookup) error {

	chain, err := anim.ResolveChain(imp.doc, int(b.node), lookup)
	if err != nil {
		return errors.Wrapf(err, "Failed to resolve chain")
	}
	times := anim.MergeKeyTimes(chain, anim.TimeEpsilon)

	curves := action.TransformCurves(target.PoseBonePrefix(b.bone.Name), b.bone.Name)
	var prev mgl32.Quat
	for i, t := range times {
		local := b.Local(evaluators.World(chain, t))
		loc, rot, scale := utils.DecomposeMat4(local)
		if i != 0 {
			rot = utils.QuatSameHemisphere(prev, rot)
		}
		prev = rot
		curves.Insert(t, loc, rot, scale)
	}
	imp.report.Debugf("Bone %q: %d keys from chain of %d nodes", b.bone.Name, len(times), len(chain))
	return nil
}

// animateObject copies raw keys of animated tracks. Constant tracks leave
// the object transform alone.
func (imp *Importer) animateObject(name string, tps float64, obj *target.Object, ch *anim.Channel) {
	if !ch.Animated() {
		imp.report.Debugf("Channel of %q in %q is constant, no curves", obj.Name, name)
		return
	}

	action := imp.scene.NewAction(obj.Name+"|"+name, tps, obj)
	obj.RotationMode = target.RotationQuaternion

	if ch.Rotation.Animated() {
		for i := 0; i < 4; i++ {
			c := action.Curve(target.PathRotationQuaternion, i, obj.Name)
			for _, k := range ch.Rotation {
				v := k.Value.W
				if i != 0 {
					v = k.Value.V[i-1]
				}
				c.Insert(k.Time, v)
			}
		}
	}
	if ch.Position.Animated() {
		for i := 0; i < 3; i++ {
			c := action.Curve(target.PathLocation, i, obj.Name)
			for _, k := range ch.Position {
				c.Insert(k.Time, k.Value[i])
			}
		}
	}
	if ch.Scale.Animated() {
		for i := 0; i < 3; i++ {
			c := action.Curve(target.PathScale, i, obj.Name)
			for _, k := range ch.Scale {
				c.Insert(k.Time, k.Value[i])
			}
		}
	}
}
