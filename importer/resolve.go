package importer

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/scene_importer/source"
	"github.com/mogaika/scene_importer/target"
)

type NodeClass int

const (
	ClassEmpty NodeClass = iota
	ClassBone
	ClassContent
)

func (c NodeClass) String() string {
	switch c {
	case ClassBone:
		return "bone"
	case ClassContent:
		return "content"
	default:
		return "empty"
	}
}

// Classify tells how a node is converted. Content wins over bone
// membership.
func (imp *Importer) Classify(id source.NodeID) NodeClass {
	if imp.enabledContent(imp.doc.Node(id)) != 0 {
		return ClassContent
	}
	if imp.hasBones && imp.boneNodes[id] {
		return ClassBone
	}
	return ClassEmpty
}

var kindSuffix = map[target.ObjectKind]string{
	target.KindMesh:   "-mesh",
	target.KindLight:  "-lamp",
	target.KindCamera: "-camera",
}

// convertNode emits the objects of one node and recurses into children
// with the node anchor as their parent.
func (imp *Importer) convertNode(id source.NodeID, parent *target.Object) {
	n := imp.doc.Node(id)
	class := imp.Classify(id)
	rootDrop := id == imp.collapsedRoot

	contentCount := imp.enabledContent(n)

	emitted := make([]*target.Object, 0, contentCount+1)
	for _, mi := range n.Meshes {
		mesh := imp.meshes[mi]
		if mesh == nil {
			continue
		}
		o := imp.scene.NewObject(n.Name, target.KindMesh)
		o.Mesh = mesh
		imp.meshObjects[mi] = append(imp.meshObjects[mi], o)
		emitted = append(emitted, o)
	}
	if imp.settings.ReadLights {
		for _, li := range n.Lights {
			o := imp.scene.NewObject(n.Name, target.KindLight)
			o.Light = imp.convertLight(&imp.doc.Lights[li])
			emitted = append(emitted, o)
		}
	}
	if imp.settings.ReadCameras {
		for _, ci := range n.Cameras {
			o := imp.scene.NewObject(n.Name, target.KindCamera)
			o.Camera = imp.convertCamera(&imp.doc.Cameras[ci])
			emitted = append(emitted, o)
		}
	}

	if len(emitted) == 0 && !rootDrop {
		// failed content still keeps its transform in the hierarchy
		keep := contentCount != 0 ||
			(len(n.Children) != 0 && (!imp.hasBones || imp.meshDescendants[id]))
		if keep {
			emitted = append(emitted, imp.scene.NewObject(n.Name, target.KindEmpty))
		}
	} else if len(emitted) > 1 {
		// several objects share one empty anchor named after the node
		for _, o := range emitted {
			imp.scene.RenameObject(o, n.Name+kindSuffix[o.Kind])
		}
		emitted = append(emitted, imp.scene.NewObject(n.Name, target.KindEmpty))
	}

	if len(emitted) == 0 {
		if !rootDrop {
			imp.report.Debugf("Node %q (%v) emits nothing, subtree skipped", n.Name, class)
			return
		}
		for _, c := range n.Children {
			imp.convertNode(c, parent)
		}
		return
	}

	anchor := emitted[len(emitted)-1]
	anchor.Local = n.Transform
	anchor.SetParent(parent)
	for _, o := range emitted[:len(emitted)-1] {
		o.Local = mgl32.Ident4()
		o.SetParent(anchor)
	}
	imp.objects[id] = anchor
	imp.report.Debugf("Node %q (%v) anchored by %q with %d objects", n.Name, class, anchor.Name, len(emitted))

	for _, c := range n.Children {
		imp.convertNode(c, anchor)
	}
}
