package importer

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_importer/source"
	"github.com/mogaika/scene_importer/target"
)

func (imp *Importer) convertMeshes() {
	imp.meshes = make([]*target.Mesh, len(imp.doc.Meshes))
	for i := range imp.doc.Meshes {
		src := &imp.doc.Meshes[i]
		mesh, err := imp.convertMesh(src)
		if err != nil {
			imp.elementError("mesh", src.Name, err)
			continue
		}
		imp.meshes[i] = mesh
	}
}

func (imp *Importer) convertMesh(src *source.Mesh) (*target.Mesh, error) {
	vcount := len(src.Vertices)
	mesh := &target.Mesh{
		Name:     src.Name,
		Vertices: append([]mgl32.Vec3(nil), src.Vertices...),
	}

	if len(src.Normals) != 0 {
		if len(src.Normals) != vcount {
			return nil, errors.Errorf("Normals count %d does not match vertices count %d", len(src.Normals), vcount)
		}
		mesh.Normals = append([]mgl32.Vec3(nil), src.Normals...)
	}

	for i, uv := range src.UVChannels {
		if len(uv) != vcount {
			return nil, errors.Errorf("UV channel %d has %d coords for %d vertices", i, len(uv), vcount)
		}
		mesh.UVLayers = append(mesh.UVLayers, target.UVLayer{
			Name: fmt.Sprintf("UVChannel-%d", i),
			UV:   append([]mgl32.Vec2(nil), uv...),
		})
	}
	for i, colors := range src.ColorChannels {
		if len(colors) != vcount {
			return nil, errors.Errorf("Color channel %d has %d colors for %d vertices", i, len(colors), vcount)
		}
		mesh.ColorLayers = append(mesh.ColorLayers, target.ColorLayer{
			Name:   fmt.Sprintf("VertexColorChannel-%d", i),
			Colors: append([]mgl32.Vec4(nil), colors...),
		})
	}

	for fi, face := range src.Faces {
		for _, idx := range face {
			if int(idx) >= vcount {
				return nil, errors.Errorf("Face %d references vertex %d of %d", fi, idx, vcount)
			}
		}
		switch len(face) {
		case 0:
		case 1:
			// loose points have no target representation
		case 2:
			if !imp.settings.NoLines {
				mesh.Edges = append(mesh.Edges, [2]uint32{face[0], face[1]})
			}
		case 3:
			mesh.Polygons = append(mesh.Polygons, target.Polygon{Indices: append([]uint32(nil), face...)})
		default:
			if imp.settings.Triangulate {
				for _, tri := range triangulateFan(face) {
					mesh.Polygons = append(mesh.Polygons, target.Polygon{Indices: tri})
				}
			} else {
				mesh.Polygons = append(mesh.Polygons, target.Polygon{Indices: append([]uint32(nil), face...)})
			}
		}
	}

	if mat := imp.resolveMaterial(src.MaterialIndex, src.Name); mat != nil {
		mesh.Materials = []*target.Material{mat}
		mat.Users++
	}

	imp.report.Debugf("Mesh %q: %d vertices, %d polygons, %d edges",
		mesh.Name, vcount, len(mesh.Polygons), len(mesh.Edges))
	return mesh, nil
}

func triangulateFan(face []uint32) [][]uint32 {
	tris := make([][]uint32, 0, len(face)-2)
	for i := 1; i+1 < len(face); i++ {
		tris = append(tris, []uint32{face[0], face[i], face[i+1]})
	}
	return tris
}
