package gltfutils

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/scene_importer/anim"
	"github.com/mogaika/scene_importer/config"
	"github.com/mogaika/scene_importer/importer"
	"github.com/mogaika/scene_importer/source"
	"github.com/mogaika/scene_importer/source/gltfsource"
	"github.com/mogaika/scene_importer/status"
	"github.com/mogaika/scene_importer/target"
)

func importScene(t *testing.T) *target.Scene {
	t.Helper()
	doc := source.NewDocument()
	root := doc.AddNode("root", mgl32.Ident4(), source.NoNode)
	hips := doc.AddNode("hips", mgl32.Translate3D(0, 1, 0), root)
	spine := doc.AddNode("spine", mgl32.Translate3D(0, 1, 0), hips)
	body := doc.AddNode("body", mgl32.Translate3D(0, 0, 2), root)
	lamp := doc.AddNode("lamp", mgl32.Translate3D(3, 0, 0), root)

	doc.Meshes = []source.Mesh{{
		Name:          "body",
		Vertices:      []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:         [][]uint32{{0, 1, 2}},
		MaterialIndex: -1,
		Bones: []source.Bone{
			{Name: "hips", OffsetMatrix: doc.World(hips).Inv(), Weights: []source.VertexWeight{{Vertex: 0, Weight: 1}, {Vertex: 1, Weight: 0.5}}},
			{Name: "spine", OffsetMatrix: doc.World(spine).Inv(), Weights: []source.VertexWeight{{Vertex: 1, Weight: 0.5}, {Vertex: 2, Weight: 1}}},
		},
	}}
	doc.Node(body).Meshes = []int{0}
	doc.Lights = []source.Light{{Name: "lamp", Type: source.LightSpot, OuterCone: 0.5, ColorDiffuse: mgl32.Vec3{1, 1, 1}}}
	doc.Node(lamp).Lights = []int{0}
	doc.Animations = []*source.Animation{{
		Name:           "bend",
		Duration:       10,
		TicksPerSecond: 10,
		Channels: []*anim.Channel{{
			NodeName: "spine",
			Rotation: anim.QuatTrack{{Time: 0, Value: mgl32.QuatIdent()}, {Time: 10, Value: mgl32.QuatRotate(1, mgl32.Vec3{1, 0, 0})}},
		}},
	}}

	settings := config.DefaultImportSettings()
	settings.CoordinateSystem = config.CoordinateSystemYUp
	report := status.NewReport("test", false)
	report.Quiet = true
	res, err := importer.New(doc, settings, report).Run()
	require.NoError(t, err)
	return res.Scene
}

func roundTrip(t *testing.T, scene *target.Scene) *source.Document {
	t.Helper()
	doc, err := ExportScene(scene)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ExportBinary(&buf, doc))
	out, err := gltfsource.Decode(&buf, "export.glb")
	require.NoError(t, err)
	return out
}

func TestExportHierarchy(t *testing.T) {
	scene := importScene(t)
	doc, err := ExportScene(scene)
	require.NoError(t, err)

	// objects plus bone joints
	assert.Len(t, doc.Nodes, len(scene.Objects)+2)
	require.Len(t, doc.Skins, 1)
	assert.Len(t, doc.Skins[0].Joints, 2)
	require.Len(t, doc.Animations, 1)
	assert.Equal(t, "bend", doc.Animations[0].Name)
	assert.Len(t, doc.Animations[0].Channels, 3)
	assert.Contains(t, doc.ExtensionsUsed, lightsExtension)

	src := roundTrip(t, scene)
	spine := src.FindNode("spine")
	require.NotEqual(t, source.NoNode, spine)
	assert.True(t, src.World(spine).ApproxEqualThreshold(mgl32.Translate3D(0, 2, 0), 1e-5))
	assert.Equal(t, "hips", src.Node(src.Node(spine).Parent).Name)

	body := src.Node(src.FindNode("body"))
	require.Len(t, body.Meshes, 1)
	mesh := src.Meshes[body.Meshes[0]]
	require.Len(t, mesh.Bones, 2)
	assert.Equal(t, "hips", mesh.Bones[0].Name)
	assert.Equal(t, []source.VertexWeight{{Vertex: 0, Weight: 1}, {Vertex: 1, Weight: 0.5}}, mesh.Bones[0].Weights)
	// joint matrices are the mesh transform in the rest pose
	world := src.World(src.FindNode("body"))
	for _, b := range mesh.Bones {
		joint := src.World(src.FindNode(b.Name)).Mul4(b.OffsetMatrix)
		assert.True(t, joint.ApproxEqualThreshold(world, 1e-5), "bone %s", b.Name)
	}

	lamp := src.Node(src.FindNode("lamp"))
	require.Len(t, lamp.Lights, 1)
	assert.Equal(t, source.LightSpot, src.Lights[lamp.Lights[0]].Type)
	assert.InDelta(t, 0.5, src.Lights[lamp.Lights[0]].OuterCone, 1e-4)
}

func TestExportBoneAnimation(t *testing.T) {
	src := roundTrip(t, importScene(t))

	require.Len(t, src.Animations, 1)
	a := src.Animations[0]
	assert.InDelta(t, 1, a.Duration, 1e-6)

	ch := a.Channel("spine")
	require.NotNil(t, ch)
	require.Len(t, ch.Rotation, 2)
	assert.True(t, ch.Rotation[0].Value.ApproxEqualThreshold(mgl32.QuatIdent(), 1e-5))
	assert.True(t, ch.Rotation[1].Value.ApproxEqualThreshold(mgl32.QuatRotate(1, mgl32.Vec3{1, 0, 0}), 1e-4))
	// pose is baked onto the bone rest offset
	for _, k := range ch.Position {
		assert.True(t, k.Value.ApproxEqualThreshold(mgl32.Vec3{0, 1, 0}, 1e-5))
	}
}

func TestSkinWeightsKeepStrongest(t *testing.T) {
	arm := target.NewArmature("Armature")
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		arm.AddBone(name, nil)
	}
	o := &target.Object{Name: "mesh"}
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		o.VertexGroup(name).Weights[0] = float32(i + 1)
	}
	o.VertexGroup("not a bone").Weights[1] = 1

	joints, weights := skinWeights(o, arm, 2)
	assert.Equal(t, [4]uint16{4, 3, 2, 1}, joints[0])
	assert.InDelta(t, 5.0/14, weights[0][0], 1e-6)
	var sum float32
	for _, w := range weights[0] {
		sum += w
	}
	assert.InDelta(t, 1, sum, 1e-6)
	assert.Equal(t, [4]float32{}, weights[1])
}

func TestExportZUpScene(t *testing.T) {
	scene := target.NewScene("zup")
	scene.ZUp = true
	box := scene.NewObject("box", target.KindEmpty)
	box.Local = mgl32.Translate3D(0, 0, 5)

	src := roundTrip(t, scene)
	// +Z up becomes +Y up
	world := src.World(src.FindNode("box"))
	assert.True(t, world.Col(3).Vec3().ApproxEqualThreshold(mgl32.Vec3{0, 5, 0}, 1e-5), "%v", world.Col(3))
}
