package importer

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/scene_importer/source"
	"github.com/mogaika/scene_importer/target"
)

const ArmatureName = "Armature"

var (
	defaultTail     = mgl32.Vec3{0, 0.5, 0}
	defaultLeafTail = mgl32.Vec3{0, 0, 0.1}
)

// findBoneNodes returns nodes named by mesh bones plus every node between
// them and the skeleton root, the lowest common ancestor of them all.
func (imp *Importer) findBoneNodes() map[source.NodeID]bool {
	doc := imp.doc
	set := make(map[source.NodeID]bool)

	named := make([]source.NodeID, 0)
	seen := make(map[string]bool)
	for i := range doc.Meshes {
		m := &doc.Meshes[i]
		for j := range m.Bones {
			name := m.Bones[j].Name
			if seen[name] {
				continue
			}
			seen[name] = true
			id := doc.FindNode(name)
			if id == source.NoNode {
				imp.report.Warnf("Bone %q of mesh %q has no node", name, m.Name)
				continue
			}
			named = append(named, id)
		}
	}
	if len(named) == 0 {
		return set
	}

	root := named[0]
	for _, id := range named[1:] {
		root = imp.commonAncestor(root, id)
	}
	for _, id := range named {
		for cur := id; cur != source.NoNode; cur = doc.Node(cur).Parent {
			set[cur] = true
			if cur == root {
				break
			}
		}
	}
	imp.report.Debugf("Skeleton root %q, %d bones", doc.Node(root).Name, len(set))
	return set
}

func (imp *Importer) depth(id source.NodeID) int {
	d := 0
	for cur := imp.doc.Node(id).Parent; cur != source.NoNode; cur = imp.doc.Node(cur).Parent {
		d++
	}
	return d
}

func (imp *Importer) commonAncestor(a, b source.NodeID) source.NodeID {
	da, db := imp.depth(a), imp.depth(b)
	for da > db {
		a = imp.doc.Node(a).Parent
		da--
	}
	for db > da {
		b = imp.doc.Node(b).Parent
		db--
	}
	for a != b {
		a = imp.doc.Node(a).Parent
		b = imp.doc.Node(b).Parent
	}
	return a
}

// importArmature builds one armature for all bone nodes of the document.
// Bones are placed in world space, the armature object has no transform.
func (imp *Importer) importArmature() {
	if len(imp.boneNodes) == 0 {
		imp.report.Warnf("Document has skinned meshes but no bone nodes")
		return
	}

	arm := target.NewArmature(ArmatureName)
	obj := imp.scene.NewObject(ArmatureName, target.KindArmature)
	obj.Armature = arm
	imp.armatureObject = obj

	var walk func(id source.NodeID, parent *target.Bone)
	walk = func(id source.NodeID, parent *target.Bone) {
		n := imp.doc.Node(id)
		if imp.boneNodes[id] {
			if arm.Bone(n.Name) != nil {
				imp.report.Warnf("Duplicate bone name %q, second node ignored", n.Name)
			} else {
				parent = imp.addBone(arm, id, parent)
			}
		}
		for _, c := range n.Children {
			walk(c, parent)
		}
	}
	walk(imp.doc.Root, nil)

	computeTails(arm)
	for _, b := range arm.Bones {
		world := imp.doc.World(source.NodeID(b.Node))
		b.Roll = boneRoll(b.Head, b.Tail, world)
	}
}

func (imp *Importer) addBone(arm *target.Armature, id source.NodeID, parent *target.Bone) *target.Bone {
	n := imp.doc.Node(id)
	b := arm.AddBone(n.Name, parent)
	b.Node = int(id)
	b.Rest = imp.doc.World(id)
	b.Head = b.Rest.Col(3).Vec3()
	b.LocalRest = b.Rest
	if parent != nil && invertible(parent.Rest) {
		b.LocalRest = parent.Rest.Inv().Mul4(b.Rest)
	}

	binding, err := imp.bindBone(id, b)
	if err != nil {
		imp.elementError("bone", n.Name, err)
		b.Bind = mgl32.Ident4()
		return b
	}
	b.Bind = binding.offset
	imp.bones[id] = binding
	return b
}

// computeTails expects parents to come before children in arm.Bones.
func computeTails(arm *target.Armature) {
	for _, b := range arm.Bones {
		switch {
		case len(b.Children) == 1 && b.Children[0].Head.Sub(b.Head).Len() > 1e-4:
			b.Tail = b.Children[0].Head
		case len(b.Children) != 0:
			b.Tail = b.Head.Add(defaultTail)
		case b.Parent != nil && b.Parent.Length() > 1e-4:
			b.Tail = b.Head.Add(b.Parent.Tail.Sub(b.Parent.Head))
		default:
			b.Tail = b.Head.Add(defaultLeafTail)
		}
	}
}

// boneRoll is the angle around the bone axis between the zero roll bone
// frame and the Z axis of the node world matrix.
func boneRoll(head, tail mgl32.Vec3, world mgl32.Mat4) float32 {
	dir := tail.Sub(head)
	if dir.Len() < 1e-6 {
		return 0
	}
	dir = dir.Normalize()

	zero := mgl32.QuatIdent()
	if dir.Dot(mgl32.Vec3{0, 1, 0}) < 1-1e-6 {
		zero = mgl32.QuatBetweenVectors(mgl32.Vec3{0, 1, 0}, dir)
	}
	defZ := zero.Rotate(mgl32.Vec3{0, 0, 1})

	z := world.Col(2).Vec3()
	z = z.Sub(dir.Mul(z.Dot(dir)))
	if z.Len() < 1e-6 {
		return 0
	}
	z = z.Normalize()

	return float32(math.Atan2(float64(defZ.Cross(z).Dot(dir)), float64(defZ.Dot(z))))
}
