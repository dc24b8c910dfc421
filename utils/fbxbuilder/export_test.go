package fbxbuilder

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mogaika/fbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/scene_importer/target"
)

func testScene() *target.Scene {
	s := target.NewScene("test")
	red := &target.Material{Name: "red", DiffuseColor: mgl32.Vec4{1, 0, 0, 1}, Users: 1}
	s.Materials = append(s.Materials, red)

	group := s.NewObject("group", target.KindEmpty)
	group.Local = mgl32.Translate3D(1, 2, 3)

	quad := s.NewObject("quad", target.KindMesh)
	quad.Mesh = &target.Mesh{
		Name:      "quad",
		Vertices:  []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Polygons:  []target.Polygon{{Indices: []uint32{0, 1, 2, 3}}},
		UVLayers:  []target.UVLayer{{Name: "UVChannel-0", UV: []mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}},
		Materials: []*target.Material{red},
	}
	quad.SetParent(group)

	lamp := s.NewObject("lamp", target.KindLight)
	lamp.Light = &target.Light{Name: "lamp", Type: target.LightSpot, Color: mgl32.Vec3{1, 1, 1}, Energy: 1, SpotSize: 45}

	armature := s.NewObject("Armature", target.KindArmature)
	armature.Armature = target.NewArmature("Armature")
	hips := armature.Armature.AddBone("hips", nil)
	hips.LocalRest = mgl32.Translate3D(0, 1, 0)
	spine := armature.Armature.AddBone("spine", hips)
	spine.LocalRest = mgl32.Translate3D(0, 1, 0)
	return s
}

func objectsNamed(f *FBXBuilder, name string) []*fbx.Node {
	out := make([]*fbx.Node, 0)
	for _, n := range f.Objects() {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

func TestExportSceneObjects(t *testing.T) {
	f := ExportScene(testScene(), "test.fbx")

	// 4 objects and 2 bones
	models := objectsNamed(f, "Model")
	assert.Len(t, models, 6)
	assert.Len(t, objectsNamed(f, "Geometry"), 1)
	assert.Len(t, objectsNamed(f, "Material"), 1)
	// group, lamp, armature and the bones
	assert.Len(t, objectsNamed(f, "NodeAttribute"), 5)

	types := make(map[string]int)
	for _, m := range models {
		types[m.Properties[2].(string)]++
	}
	assert.Equal(t, map[string]int{"Null": 2, "Mesh": 1, "Light": 1, "LimbNode": 2}, types)

	geometry := objectsNamed(f, "Geometry")[0]
	assert.Equal(t, []int32{0, 1, 2, -4}, geometry.GetNode("PolygonVertexIndex").Properties[0])
	assert.NotNil(t, geometry.GetNode("LayerElementUV"))
	assert.NotNil(t, geometry.GetNode("Layer"))
}

func TestExportSceneConnections(t *testing.T) {
	s := testScene()
	f := ExportScene(s, "test.fbx")

	parents := make(map[int64]int64)
	for _, c := range f.Connections() {
		parents[c.Properties[1].(int64)] = c.Properties[2].(int64)
	}

	id := func(key interface{}) int64 {
		v, ok := f.GetCached(key)
		require.True(t, ok)
		return v
	}
	group, quad := s.FindObject("group"), s.FindObject("quad")
	assert.Equal(t, int64(0), parents[id(group)])
	assert.Equal(t, id(group), parents[id(quad)])

	arm := s.FindObject("Armature")
	assert.Equal(t, id(arm), parents[id(arm.Armature.Bone("hips"))])
	assert.Equal(t, id(arm.Armature.Bone("hips")), parents[id(arm.Armature.Bone("spine"))])
	assert.Equal(t, id(quad), parents[id(s.Materials[0])])
}

func TestWriteZip(t *testing.T) {
	f := ExportScene(testScene(), "test.fbx")
	f.AddExportFile("test.yaml", []byte("scene: test\n"))

	var buf bytes.Buffer
	require.NoError(t, f.WriteZip(&buf, "test.fbx"))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	names := make([]string, 0)
	for _, file := range zr.File {
		names = append(names, file.Name)
	}
	assert.ElementsMatch(t, []string{"test.fbx", "test.yaml"}, names)
}

func TestGlobalSettingsAxes(t *testing.T) {
	upAxis := func(f *FBXBuilder) int32 {
		props := f.Root().GetNode("GlobalSettings").GetNode("Properties70")
		for _, p := range props.GetNodes("P") {
			if p.Properties[0] == "UpAxis" {
				return p.Properties[4].(int32)
			}
		}
		t.Fatal("no UpAxis")
		return -1
	}

	s := testScene()
	assert.Equal(t, int32(1), upAxis(ExportScene(s, "test.fbx")))
	s.ZUp = true
	assert.Equal(t, int32(2), upAxis(ExportScene(s, "test.fbx")))
}
