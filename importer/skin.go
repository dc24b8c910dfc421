package importer

import (
	"github.com/mogaika/scene_importer/target"
)

const ModifierArmature = "ARMATURE"

// importSkins moves skinned mesh objects under the armature and fills
// their vertex groups.
func (imp *Importer) importSkins() {
	if imp.armatureObject == nil {
		return
	}
	for mi := range imp.doc.Meshes {
		src := &imp.doc.Meshes[mi]
		if len(src.Bones) == 0 {
			continue
		}
		for _, o := range imp.meshObjects[mi] {
			o.SetParentKeepWorld(imp.armatureObject)
			o.Modifiers = append(o.Modifiers, target.Modifier{
				Kind:   ModifierArmature,
				Object: imp.armatureObject,
			})

			for bi := range src.Bones {
				bone := &src.Bones[bi]
				group := o.VertexGroup(bone.Name)
				for _, w := range bone.Weights {
					if int(w.Vertex) >= len(src.Vertices) {
						imp.report.Warnf("Mesh %q bone %q weights vertex %d of %d, ignored",
							src.Name, bone.Name, w.Vertex, len(src.Vertices))
						continue
					}
					group.Weights[w.Vertex] += w.Weight
				}
			}
			imp.report.Debugf("Skinned %q with %d vertex groups", o.Name, len(o.VertexGroups))
		}
	}
}
