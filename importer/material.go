package importer

import (
	"github.com/pkg/errors"

	"github.com/mogaika/scene_importer/target"
)

func (imp *Importer) convertMaterials() {
	for i := range imp.doc.Materials {
		src := &imp.doc.Materials[i]
		mat := &target.Material{
			Name:         src.Name,
			DiffuseColor: src.DiffuseColor,
			TexturePath:  src.TexturePath,
		}
		imp.materials = append(imp.materials, mat)
		imp.scene.Materials = append(imp.scene.Materials, mat)
	}
}

// resolveMaterial falls back to the first material for indices past the
// end. Negative index means no material.
func (imp *Importer) resolveMaterial(index int, meshName string) *target.Material {
	if len(imp.materials) == 0 || index < 0 {
		return nil
	}
	if index >= len(imp.materials) {
		imp.elementError("material of mesh", meshName, errors.Errorf("Material index %d out of range [0:%d), using material 0",
			index, len(imp.materials)))
		return imp.materials[0]
	}
	return imp.materials[index]
}
