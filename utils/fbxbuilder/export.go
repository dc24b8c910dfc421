package fbxbuilder

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"

	"github.com/mogaika/scene_importer/target"
	"github.com/mogaika/scene_importer/utils"
)

func lclProperties(m mgl32.Mat4) []*fbx.Node {
	loc, rot, scale := utils.DecomposeMat4(m)
	euler := utils.QuatToEuler(rot).Mul(180.0 / math.Pi)
	return []*fbx.Node{
		bfbx73.P("Lcl Translation", "Lcl Translation", "", "A",
			float64(loc[0]), float64(loc[1]), float64(loc[2])),
		bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A",
			float64(euler[0]), float64(euler[1]), float64(euler[2])),
		bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A",
			float64(scale[0]), float64(scale[1]), float64(scale[2])),
	}
}

func modelType(o *target.Object) string {
	switch o.Kind {
	case target.KindMesh:
		return "Mesh"
	case target.KindLight:
		return "Light"
	case target.KindCamera:
		return "Camera"
	}
	return "Null"
}

// ExportScene builds the model hierarchy of scene: objects become models
// with their attributes, armature bones become LimbNode models.
func ExportScene(scene *target.Scene, filename string) *FBXBuilder {
	opts := Options{Axes: AxesYUp}
	if scene.ZUp {
		opts.Axes = AxesZUp
	}
	f := NewFBXBuilder(filename, opts)

	for _, m := range scene.Materials {
		f.exportMaterial(m)
	}
	for _, o := range scene.Objects {
		f.exportObject(o)
	}
	for _, o := range scene.Objects {
		id, _ := f.GetCached(o)
		parent := int64(0)
		if o.Parent != nil {
			parent, _ = f.GetCached(o.Parent)
		}
		f.AddConnections(bfbx73.C("OO", id, parent))
	}
	return f
}

func (f *FBXBuilder) exportMaterial(m *target.Material) {
	id := f.GenerateId()
	f.AddCache(m, id)
	color := m.DiffuseColor

	f.AddObjects(bfbx73.Material(id, m.Name+"\x00\x01Material", "").AddNodes(
		bfbx73.Version(102),
		bfbx73.ShadingModel("lambert"),
		bfbx73.MultiLayer(0),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("AmbientColor", "Color", "", "A", float64(0), float64(0), float64(0)),
			bfbx73.P("DiffuseColor", "Color", "", "A", float64(color[0]), float64(color[1]), float64(color[2])),
			bfbx73.P("Diffuse", "Vector3D", "Vector", "", float64(color[0]), float64(color[1]), float64(color[2])),
			bfbx73.P("Opacity", "double", "Number", "", float64(color[3])),
		),
	))
}

func (f *FBXBuilder) exportObject(o *target.Object) {
	id := f.GenerateId()
	f.AddCache(o, id)

	model := bfbx73.Model(id, o.Name+"\x00\x01Model", modelType(o)).AddNodes(
		bfbx73.Version(232),
		bfbx73.Properties70().AddNodes(lclProperties(o.Local)...),
		bfbx73.Shading(true),
		bfbx73.Culling("CullingOff"),
	)
	f.AddObjects(model)

	switch o.Kind {
	case target.KindMesh:
		f.exportMesh(id, o.Mesh)
	case target.KindLight:
		f.addAttribute(id, o.Name, "Light", lightProperties(o.Light)...)
	case target.KindCamera:
		f.addAttribute(id, o.Name, "Camera", cameraProperties(o.Camera)...)
	case target.KindArmature:
		f.addAttribute(id, o.Name, "Null")
		f.exportBones(id, o.Armature)
	default:
		f.addAttribute(id, o.Name, "Null")
	}
}

func (f *FBXBuilder) addAttribute(model int64, name, class string, props ...*fbx.Node) {
	id := f.GenerateId()
	typeFlags := class
	if class == "LimbNode" {
		typeFlags = "Skeleton"
	}
	f.AddObjects(bfbx73.NodeAttribute(id, name+"\x00\x01NodeAttribute", class).AddNodes(
		bfbx73.Properties70().AddNodes(props...),
		bfbx73.TypeFlags(typeFlags),
	))
	f.AddConnections(bfbx73.C("OO", id, model))
}

func lightProperties(l *target.Light) []*fbx.Node {
	lightType := int32(0)
	switch l.Type {
	case target.LightSun:
		lightType = 1
	case target.LightSpot:
		lightType = 2
	}
	decay := int32(0)
	switch l.Falloff {
	case target.FalloffInverseLinear:
		decay = 1
	case target.FalloffInverseSquare:
		decay = 2
	}
	return []*fbx.Node{
		bfbx73.P("LightType", "enum", "", "", lightType),
		bfbx73.P("Color", "Color", "", "A", float64(l.Color[0]), float64(l.Color[1]), float64(l.Color[2])),
		bfbx73.P("Intensity", "Number", "", "A", float64(l.Energy*100)),
		bfbx73.P("DecayType", "enum", "", "", decay),
		bfbx73.P("InnerAngle", "Number", "", "A", float64(l.SpotSize*(1-l.SpotBlend))),
		bfbx73.P("OuterAngle", "Number", "", "A", float64(l.SpotSize)),
	}
}

func cameraProperties(c *target.Camera) []*fbx.Node {
	projection := int32(1)
	if c.Perspective {
		projection = 0
	}
	return []*fbx.Node{
		bfbx73.P("CameraProjectionType", "enum", "", "", projection),
		bfbx73.P("FieldOfView", "FieldOfView", "", "A", float64(mgl32.RadToDeg(c.FovY))),
		bfbx73.P("NearPlane", "double", "Number", "", float64(c.ClipStart)),
		bfbx73.P("FarPlane", "double", "Number", "", float64(c.ClipEnd)),
		bfbx73.P("OrthoZoom", "double", "Number", "", float64(c.OrthoScale)),
	}
}

func (f *FBXBuilder) exportBones(armature int64, a *target.Armature) {
	for _, b := range a.Bones {
		id := f.GenerateId()
		f.AddCache(b, id)
		f.AddObjects(bfbx73.Model(id, b.Name+"\x00\x01Model", "LimbNode").AddNodes(
			bfbx73.Version(232),
			bfbx73.Properties70().AddNodes(lclProperties(b.LocalRest)...),
			bfbx73.Shading(true),
			bfbx73.Culling("CullingOff"),
		))
		f.addAttribute(id, b.Name, "LimbNode",
			bfbx73.P("Size", "double", "Number", "", float64(b.Length()*100)))
	}
	for _, b := range a.Bones {
		id, _ := f.GetCached(b)
		parent := armature
		if b.Parent != nil {
			parent, _ = f.GetCached(b.Parent)
		}
		f.AddConnections(bfbx73.C("OO", id, parent))
	}
}

func (f *FBXBuilder) exportMesh(model int64, m *target.Mesh) {
	vertices := make([]float64, 0, len(m.Vertices)*3)
	for _, v := range m.Vertices {
		vertices = append(vertices, utils.FloatArray32to64(v[:])...)
	}

	// last index of every polygon is stored as -(index)-1
	indexes := make([]int32, 0, len(m.Polygons)*3)
	uvindexes := make([]int32, 0, len(m.Polygons)*3)
	materials := make([]int32, 0, len(m.Polygons))
	for _, p := range m.Polygons {
		for i, index := range p.Indices {
			uvindexes = append(uvindexes, int32(index))
			if i == len(p.Indices)-1 {
				indexes = append(indexes, -int32(index)-1)
			} else {
				indexes = append(indexes, int32(index))
			}
		}
		materials = append(materials, int32(p.Material))
	}

	geometryId := f.GenerateId()
	geometryLayer := bfbx73.Layer(0).AddNodes(
		bfbx73.Version(100),
	)
	geometry := bfbx73.Geometry(geometryId, m.Name+"\x00\x01Geometry", "Mesh").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
		),
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(vertices),
		bfbx73.PolygonVertexIndex(indexes),
	)

	if len(m.Normals) == len(m.Vertices) && len(m.Normals) != 0 {
		normals := make([]float64, 0, len(m.Normals)*3)
		for _, n := range m.Normals {
			normals = append(normals, utils.FloatArray32to64(n[:])...)
		}
		geometry.AddNode(
			bfbx73.LayerElementNormal(0).AddNodes(
				bfbx73.Version(101),
				bfbx73.Name(""),
				bfbx73.MappingInformationType("ByVertice"),
				bfbx73.ReferenceInformationType("Direct"),
				bfbx73.Normals(normals),
			),
		)
		geometryLayer.AddNode(
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type("LayerElementNormal"),
				bfbx73.TypedIndex(0),
			),
		)
	}

	for iLayer, layer := range m.UVLayers {
		if len(layer.UV) != len(m.Vertices) {
			continue
		}
		uv := make([]float64, 0, len(layer.UV)*2)
		for _, v := range layer.UV {
			uv = append(uv, float64(v[0]), float64(v[1]))
		}
		geometry.AddNode(
			bfbx73.LayerElementUV(int32(iLayer)).AddNodes(
				bfbx73.Version(101),
				bfbx73.Name(layer.Name),
				bfbx73.MappingInformationType("ByPolygonVertex"),
				bfbx73.ReferenceInformationType("IndexToDirect"),
				bfbx73.UV(uv),
				bfbx73.UVIndex(uvindexes),
			),
		)
		if iLayer == 0 {
			geometryLayer.AddNode(
				bfbx73.LayerElement().AddNodes(
					bfbx73.Type("LayerElementUV"),
					bfbx73.TypedIndex(0),
				),
			)
		}
	}

	for iLayer, layer := range m.ColorLayers {
		if len(layer.Colors) != len(m.Vertices) {
			continue
		}
		rgba := make([]float64, 0, len(layer.Colors)*4)
		for _, c := range layer.Colors {
			rgba = append(rgba, utils.FloatArray32to64(c[:])...)
		}
		geometry.AddNode(
			bfbx73.LayerElementColor(int32(iLayer)).AddNodes(
				bfbx73.Version(101),
				bfbx73.Name(layer.Name),
				bfbx73.MappingInformationType("ByVertice"),
				bfbx73.ReferenceInformationType("Direct"),
				bfbx73.Colors(rgba),
			),
		)
		if iLayer == 0 {
			geometryLayer.AddNode(
				bfbx73.LayerElement().AddNodes(
					bfbx73.Type("LayerElementColor"),
					bfbx73.TypedIndex(0),
				),
			)
		}
	}

	if len(m.Materials) > 1 {
		geometry.AddNode(
			bfbx73.LayerElementMaterial(0).AddNodes(
				bfbx73.Version(101),
				bfbx73.Name(""),
				bfbx73.MappingInformationType("ByPolygon"),
				bfbx73.ReferenceInformationType("IndexToDirect"),
				bfbx73.Materials(materials),
			),
		)
	} else {
		geometry.AddNode(
			bfbx73.LayerElementMaterial(0).AddNodes(
				bfbx73.Version(101),
				bfbx73.Name(""),
				bfbx73.MappingInformationType("AllSame"),
				bfbx73.ReferenceInformationType("IndexToDirect"),
				bfbx73.Materials([]int32{0}),
			),
		)
	}
	geometryLayer.AddNode(
		bfbx73.LayerElement().AddNodes(
			bfbx73.Type("LayerElementMaterial"),
			bfbx73.TypedIndex(0),
		),
	)
	geometry.AddNode(geometryLayer)

	f.AddObjects(geometry)
	f.AddConnections(bfbx73.C("OO", geometryId, model))
	for _, mat := range m.Materials {
		if id, ok := f.GetCached(mat); ok {
			f.AddConnections(bfbx73.C("OO", id, model))
		}
	}
}
