package importer

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_importer/source"
	"github.com/mogaika/scene_importer/target"
)

const singularEpsilon = 1e-12

// boneBinding holds the matrices converting a world space pose of a bone
// node into the local transform of the target bone.
type boneBinding struct {
	node source.NodeID
	bone *target.Bone

	rest    mgl32.Mat4
	restInv mgl32.Mat4
	// inverse bind matrix
	offset mgl32.Mat4
	// offset came from node hierarchy instead of skin data
	derived bool
}

func (imp *Importer) findOffset(name string) (mgl32.Mat4, bool) {
	for i := range imp.doc.Meshes {
		for j := range imp.doc.Meshes[i].Bones {
			b := &imp.doc.Meshes[i].Bones[j]
			if b.Name == name {
				return b.OffsetMatrix, true
			}
		}
	}
	return mgl32.Mat4{}, false
}

func invertible(m mgl32.Mat4) bool {
	return math.Abs(float64(m.Det())) > singularEpsilon
}

func (imp *Importer) bindBone(id source.NodeID, bone *target.Bone) (*boneBinding, error) {
	rest := imp.doc.World(id)
	if !invertible(rest) {
		return nil, errors.Errorf("Rest matrix of bone %q is not invertible", bone.Name)
	}

	b := &boneBinding{
		node:    id,
		bone:    bone,
		rest:    rest,
		restInv: rest.Inv(),
	}

	if offset, ok := imp.findOffset(bone.Name); ok {
		if !invertible(offset) {
			return nil, errors.Errorf("Bind matrix of bone %q is not invertible", bone.Name)
		}
		b.offset = offset
	} else {
		b.offset = b.restInv
		b.derived = true
		imp.report.Warnf("No bind matrix for bone %q, using node hierarchy rest pose", bone.Name)
	}
	return b, nil
}

// Local maps world pose of the bone node at some time to the bone local
// transform: rest^-1 * world * offset * rest.
func (b *boneBinding) Local(world mgl32.Mat4) mgl32.Mat4 {
	return b.restInv.Mul4(world).Mul4(b.offset).Mul4(b.rest)
}
