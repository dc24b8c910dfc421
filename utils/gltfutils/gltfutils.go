package gltfutils

import (
	"fmt"
	"io"
	"log"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/scene_importer/target"
	"github.com/mogaika/scene_importer/utils"
)

const lightsExtension = "KHR_lights_punctual"

func ExportBinary(w io.Writer, doc *gltf.Document) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}

// ExportFile writes doc next to its buffer, "<name>.bin".
func ExportFile(path string, doc *gltf.Document) error {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, b := range doc.Buffers {
		if b.URI == "" {
			b.URI = fmt.Sprintf("%s_%d.bin", base, i)
		}
	}
	if err := gltf.Save(doc, path); err != nil {
		return errors.Wrapf(err, "Failed to save %q", path)
	}
	return nil
}

type exporter struct {
	scene     *target.Scene
	doc       *gltf.Document
	nodes     map[*target.Object]uint32
	bones     map[*target.Bone]uint32
	materials map[*target.Material]uint32
	lights    []interface{}
}

// ExportScene converts the imported scene into a gltf document: objects
// become nodes, armature bones become joint nodes under the armature and
// actions become animations.
func ExportScene(scene *target.Scene) (*gltf.Document, error) {
	e := &exporter{
		scene:     scene,
		doc:       gltf.NewDocument(),
		nodes:     make(map[*target.Object]uint32),
		bones:     make(map[*target.Bone]uint32),
		materials: make(map[*target.Material]uint32),
	}

	e.exportMaterials()
	e.exportNodes()
	if scene.ZUp {
		e.wrapZUp()
	}
	for _, o := range scene.Objects {
		if err := e.exportContent(o); err != nil {
			return nil, errors.Wrapf(err, "Object %q", o.Name)
		}
	}
	for _, a := range scene.Actions {
		if err := e.exportAction(a); err != nil {
			return nil, errors.Wrapf(err, "Action %q", a.Name)
		}
	}

	if len(e.lights) != 0 {
		e.doc.ExtensionsUsed = append(e.doc.ExtensionsUsed, lightsExtension)
		if e.doc.Extensions == nil {
			e.doc.Extensions = make(gltf.Extensions)
		}
		e.doc.Extensions[lightsExtension] = map[string]interface{}{"lights": e.lights}
	}

	log.Printf("[gltf] Exported scene %q: %d nodes, %d meshes, %d animations",
		scene.Name, len(e.doc.Nodes), len(e.doc.Meshes), len(e.doc.Animations))
	return e.doc, nil
}

func setTransform(n *gltf.Node, m mgl32.Mat4) {
	loc, rot, scale := utils.DecomposeMat4(m)
	n.Translation = loc
	n.Rotation = [4]float32{rot.V[0], rot.V[1], rot.V[2], rot.W}
	n.Scale = scale
}

func mat4Columns(m mgl32.Mat4) [4][4]float32 {
	return [4][4]float32{
		{m[0], m[1], m[2], m[3]},
		{m[4], m[5], m[6], m[7]},
		{m[8], m[9], m[10], m[11]},
		{m[12], m[13], m[14], m[15]},
	}
}

func (e *exporter) exportMaterials() {
	for _, m := range e.scene.Materials {
		color := [4]float32(m.DiffuseColor)
		e.materials[m] = uint32(len(e.doc.Materials))
		e.doc.Materials = append(e.doc.Materials, &gltf.Material{
			Name: m.Name,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &color,
			},
		})
	}
}

func (e *exporter) exportNodes() {
	for _, o := range e.scene.Objects {
		n := &gltf.Node{Name: o.Name}
		setTransform(n, o.Local)
		e.nodes[o] = uint32(len(e.doc.Nodes))
		e.doc.Nodes = append(e.doc.Nodes, n)
	}
	for _, o := range e.scene.Objects {
		n := e.doc.Nodes[e.nodes[o]]
		for _, c := range o.Children {
			n.Children = append(n.Children, e.nodes[c])
		}
		if o.Parent == nil {
			e.doc.Scenes[0].Nodes = append(e.doc.Scenes[0].Nodes, e.nodes[o])
		}
		if o.Armature != nil {
			e.exportBones(o)
		}
	}
}

// wrapZUp puts the scene roots under a node turning +Z up back into the
// +Y up of gltf.
func (e *exporter) wrapZUp() {
	root := &gltf.Node{Name: "ZUp", Children: e.doc.Scenes[0].Nodes}
	setTransform(root, mgl32.HomogRotate3DX(-math.Pi/2))
	e.doc.Scenes[0].Nodes = []uint32{uint32(len(e.doc.Nodes))}
	e.doc.Nodes = append(e.doc.Nodes, root)
}

func (e *exporter) exportBones(o *target.Object) {
	for _, b := range o.Armature.Bones {
		n := &gltf.Node{Name: b.Name}
		setTransform(n, b.LocalRest)
		e.bones[b] = uint32(len(e.doc.Nodes))
		e.doc.Nodes = append(e.doc.Nodes, n)
	}
	armature := e.doc.Nodes[e.nodes[o]]
	for _, b := range o.Armature.Bones {
		if b.Parent == nil {
			armature.Children = append(armature.Children, e.bones[b])
			continue
		}
		parent := e.doc.Nodes[e.bones[b.Parent]]
		parent.Children = append(parent.Children, e.bones[b])
	}
}

func (e *exporter) exportContent(o *target.Object) error {
	n := e.doc.Nodes[e.nodes[o]]
	switch o.Kind {
	case target.KindMesh:
		mesh, err := e.exportMesh(o)
		if err != nil {
			return err
		}
		n.Mesh = gltf.Index(mesh)
		if skin, ok := e.exportSkin(o); ok {
			n.Skin = gltf.Index(skin)
		}
	case target.KindLight:
		n.Extensions = gltf.Extensions{lightsExtension: map[string]interface{}{"light": len(e.lights)}}
		e.lights = append(e.lights, exportLight(o.Light))
	case target.KindCamera:
		n.Camera = gltf.Index(uint32(len(e.doc.Cameras)))
		e.doc.Cameras = append(e.doc.Cameras, exportCamera(o.Camera))
	}
	return nil
}

func armatureOf(o *target.Object) *target.Object {
	for _, m := range o.Modifiers {
		if m.Object != nil && m.Object.Armature != nil {
			return m.Object
		}
	}
	return nil
}

func (e *exporter) exportMesh(o *target.Object) (uint32, error) {
	m := o.Mesh
	count := len(m.Vertices)

	positions := make([][3]float32, count)
	for i, v := range m.Vertices {
		positions[i] = v
	}
	attributes := map[string]uint32{"POSITION": modeler.WritePosition(e.doc, positions)}

	if len(m.Normals) == count && count != 0 {
		normals := make([][3]float32, count)
		for i, v := range m.Normals {
			normals[i] = v
		}
		attributes["NORMAL"] = modeler.WriteNormal(e.doc, normals)
	}
	for iLayer, layer := range m.UVLayers {
		if len(layer.UV) != count {
			continue
		}
		uvs := make([][2]float32, count)
		for i, uv := range layer.UV {
			uvs[i] = uv
		}
		attributes[fmt.Sprintf("TEXCOORD_%d", iLayer)] = modeler.WriteTextureCoord(e.doc, uvs)
	}
	for iLayer, layer := range m.ColorLayers {
		if len(layer.Colors) != count {
			continue
		}
		colors := make([][4]uint8, count)
		for i, c := range layer.Colors {
			for k := range c {
				colors[i][k] = uint8(mgl32.Clamp(c[k], 0, 1)*255 + 0.5)
			}
		}
		attributes[fmt.Sprintf("COLOR_%d", iLayer)] = modeler.WriteColor(e.doc, colors)
	}
	if arm := armatureOf(o); arm != nil {
		joints, weights := skinWeights(o, arm.Armature, count)
		attributes["JOINTS_0"] = modeler.WriteJoints(e.doc, joints)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(e.doc, weights)
	}

	// fan triangulated polygons, one primitive per material slot
	slots := make([]int, 0)
	bySlot := make(map[int][]uint32)
	for _, p := range m.Polygons {
		if _, ok := bySlot[p.Material]; !ok {
			slots = append(slots, p.Material)
			bySlot[p.Material] = nil
		}
		for i := 1; i+1 < len(p.Indices); i++ {
			bySlot[p.Material] = append(bySlot[p.Material], p.Indices[0], p.Indices[i], p.Indices[i+1])
		}
	}
	sort.Ints(slots)

	mesh := &gltf.Mesh{Name: m.Name}
	for _, slot := range slots {
		if len(bySlot[slot]) == 0 {
			continue
		}
		prim := &gltf.Primitive{
			Attributes: attributes,
			Indices:    gltf.Index(modeler.WriteIndices(e.doc, bySlot[slot])),
			Mode:       gltf.PrimitiveTriangles,
		}
		if slot >= 0 && slot < len(m.Materials) {
			prim.Material = gltf.Index(e.materials[m.Materials[slot]])
		}
		mesh.Primitives = append(mesh.Primitives, prim)
	}
	if len(m.Edges) != 0 {
		lines := make([]uint32, 0, len(m.Edges)*2)
		for _, edge := range m.Edges {
			lines = append(lines, edge[0], edge[1])
		}
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Attributes: attributes,
			Indices:    gltf.Index(modeler.WriteIndices(e.doc, lines)),
			Mode:       gltf.PrimitiveLines,
		})
	}
	if len(mesh.Primitives) == 0 {
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{Attributes: attributes, Mode: gltf.PrimitivePoints})
	}

	e.doc.Meshes = append(e.doc.Meshes, mesh)
	return uint32(len(e.doc.Meshes) - 1), nil
}

type jointWeight struct {
	joint  uint16
	weight float32
}

// skinWeights keeps the four strongest bone weights of every vertex,
// normalized to a sum of one.
func skinWeights(o *target.Object, arm *target.Armature, count int) ([][4]uint16, [][4]float32) {
	boneIndex := make(map[string]uint16, len(arm.Bones))
	for i, b := range arm.Bones {
		boneIndex[b.Name] = uint16(i)
	}

	influences := make([][]jointWeight, count)
	for _, g := range o.VertexGroups {
		joint, ok := boneIndex[g.Name]
		if !ok {
			continue
		}
		for v, w := range g.Weights {
			if int(v) < count && w > 0 {
				influences[v] = append(influences[v], jointWeight{joint, w})
			}
		}
	}

	joints := make([][4]uint16, count)
	weights := make([][4]float32, count)
	for v, list := range influences {
		sort.Slice(list, func(i, j int) bool {
			if list[i].weight == list[j].weight {
				return list[i].joint < list[j].joint
			}
			return list[i].weight > list[j].weight
		})
		if len(list) > 4 {
			list = list[:4]
		}
		var sum float32
		for _, jw := range list {
			sum += jw.weight
		}
		for k, jw := range list {
			joints[v][k] = jw.joint
			weights[v][k] = jw.weight / sum
		}
	}
	return joints, weights
}

func (e *exporter) exportSkin(o *target.Object) (uint32, bool) {
	arm := armatureOf(o)
	if arm == nil {
		return 0, false
	}

	// skinned vertices stay in mesh space, the mesh node transform is
	// ignored by gltf skinning
	world := o.World()
	skin := &gltf.Skin{Name: arm.Name, Skeleton: gltf.Index(e.nodes[arm])}
	ibm := make([][4][4]float32, len(arm.Armature.Bones))
	for i, b := range arm.Armature.Bones {
		skin.Joints = append(skin.Joints, e.bones[b])
		ibm[i] = mat4Columns(arm.World().Mul4(b.Rest).Inv().Mul4(world))
	}
	skin.InverseBindMatrices = gltf.Index(modeler.WriteAccessor(e.doc, gltf.TargetArrayBuffer, ibm))

	e.doc.Skins = append(e.doc.Skins, skin)
	return uint32(len(e.doc.Skins) - 1), true
}

func exportLight(l *target.Light) map[string]interface{} {
	out := map[string]interface{}{
		"name":      l.Name,
		"color":     [3]float32(l.Color),
		"intensity": l.Energy,
	}
	switch l.Type {
	case target.LightSun:
		out["type"] = "directional"
	case target.LightSpot:
		outer := mgl32.DegToRad(l.SpotSize) / 2
		out["type"] = "spot"
		out["spot"] = map[string]interface{}{
			"outerConeAngle": outer,
			"innerConeAngle": outer * (1 - l.SpotBlend),
		}
	default:
		out["type"] = "point"
	}
	return out
}

func exportCamera(c *target.Camera) *gltf.Camera {
	out := &gltf.Camera{Name: c.Name}
	clipEnd := c.ClipEnd
	if c.Perspective {
		out.Perspective = &gltf.Perspective{Yfov: c.FovY, Znear: c.ClipStart, Zfar: &clipEnd}
		if c.Aspect > 0 {
			aspect := c.Aspect
			out.Perspective.AspectRatio = &aspect
		}
		return out
	}
	ymag := c.OrthoScale / 2
	xmag := ymag
	if c.Aspect > 0 {
		xmag = ymag * c.Aspect
	}
	out.Orthographic = &gltf.Orthographic{Xmag: xmag, Ymag: ymag, Znear: c.ClipStart, Zfar: clipEnd}
	return out
}

// collectCurves groups curves by bone name, empty for the owner object, in
// target.TransformCurves order. Missing slots stay nil.
func collectCurves(curves []*target.Curve) map[string]*target.TransformCurves {
	out := make(map[string]*target.TransformCurves)
	for _, c := range curves {
		bone, property := target.SplitPath(c.Path)
		slot := -1
		switch property {
		case target.PathRotationQuaternion:
			slot = c.Index
		case target.PathLocation:
			slot = 4 + c.Index
		case target.PathScale:
			slot = 7 + c.Index
		}
		if slot < 0 || slot >= 10 || (property != target.PathRotationQuaternion && c.Index > 2) {
			continue
		}
		tc, ok := out[bone]
		if !ok {
			tc = &target.TransformCurves{}
			out[bone] = tc
		}
		tc[slot] = c
	}
	return out
}

func curveValue(c *target.Curve, key int, def float32) float32 {
	if c == nil || key >= len(c.Keys) {
		return def
	}
	return c.Keys[key].Value
}

func (e *exporter) writeTimes(c *target.Curve, tps float64) uint32 {
	times := make([]float32, len(c.Keys))
	for i, k := range c.Keys {
		times[i] = float32(k.Time / tps)
	}
	return modeler.WriteAccessor(e.doc, gltf.TargetArrayBuffer, times)
}

func (e *exporter) addChannel(a *gltf.Animation, node, input, output uint32, path gltf.TRSProperty) {
	a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
		Input:         gltf.Index(input),
		Output:        gltf.Index(output),
		Interpolation: gltf.InterpolationLinear,
	})
	a.Channels = append(a.Channels, &gltf.Channel{
		Sampler: gltf.Index(uint32(len(a.Samplers) - 1)),
		Target:  gltf.ChannelTarget{Node: gltf.Index(node), Path: path},
	})
}

func firstCurve(tc *target.TransformCurves, from, to int) *target.Curve {
	for i := from; i < to; i++ {
		if tc[i] != nil && len(tc[i].Keys) != 0 {
			return tc[i]
		}
	}
	return nil
}

func (e *exporter) exportAction(a *target.Action) error {
	if a.Owner == nil {
		log.Printf("[gltf] Action %q has no owner, skipped", a.Name)
		return nil
	}
	tps := a.TicksPerSecond
	if tps <= 0 {
		tps = 1
	}

	out := &gltf.Animation{Name: a.Name}
	groups := collectCurves(a.Curves)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tc := groups[name]
		if name == "" {
			e.exportObjectCurves(out, e.nodes[a.Owner], tc, tps)
			continue
		}
		if a.Owner.Armature == nil {
			return errors.Errorf("Bone curves for %q on non armature object", name)
		}
		bone := a.Owner.Armature.Bone(name)
		if bone == nil {
			return errors.Errorf("Unknown bone %q", name)
		}
		e.exportBoneCurves(out, bone, tc, tps)
	}

	if len(out.Channels) != 0 {
		e.doc.Animations = append(e.doc.Animations, out)
	}
	return nil
}

// exportBoneCurves bakes pose values onto the bone rest, gltf joints carry
// the full local transform.
func (e *exporter) exportBoneCurves(out *gltf.Animation, b *target.Bone, tc *target.TransformCurves, tps float64) {
	timeline := firstCurve(tc, 0, 10)
	if timeline == nil {
		return
	}

	n := len(timeline.Keys)
	translations := make([][3]float32, n)
	rotations := make([][4]float32, n)
	scales := make([][3]float32, n)
	for k := 0; k < n; k++ {
		rot := mgl32.Quat{
			W: curveValue(tc[0], k, 1),
			V: mgl32.Vec3{curveValue(tc[1], k, 0), curveValue(tc[2], k, 0), curveValue(tc[3], k, 0)},
		}
		loc := mgl32.Vec3{curveValue(tc[4], k, 0), curveValue(tc[5], k, 0), curveValue(tc[6], k, 0)}
		scale := mgl32.Vec3{curveValue(tc[7], k, 1), curveValue(tc[8], k, 1), curveValue(tc[9], k, 1)}

		local := b.LocalRest.Mul4(utils.ComposeMat4(loc, rot.Normalize(), scale))
		l, r, s := utils.DecomposeMat4(local)
		if k != 0 {
			prev := mgl32.Quat{W: rotations[k-1][3], V: mgl32.Vec3{rotations[k-1][0], rotations[k-1][1], rotations[k-1][2]}}
			r = utils.QuatSameHemisphere(prev, r)
		}
		translations[k] = l
		rotations[k] = [4]float32{r.V[0], r.V[1], r.V[2], r.W}
		scales[k] = s
	}

	node := e.bones[b]
	input := e.writeTimes(timeline, tps)
	e.addChannel(out, node, input, modeler.WriteAccessor(e.doc, gltf.TargetArrayBuffer, translations), gltf.TRSTranslation)
	e.addChannel(out, node, input, modeler.WriteAccessor(e.doc, gltf.TargetArrayBuffer, rotations), gltf.TRSRotation)
	e.addChannel(out, node, input, modeler.WriteAccessor(e.doc, gltf.TargetArrayBuffer, scales), gltf.TRSScale)
}

// exportObjectCurves writes raw object keys, every property keeps its own
// key times.
func (e *exporter) exportObjectCurves(out *gltf.Animation, node uint32, tc *target.TransformCurves, tps float64) {
	if timeline := firstCurve(tc, 0, 4); timeline != nil {
		rotations := make([][4]float32, len(timeline.Keys))
		for k := range rotations {
			rotations[k] = [4]float32{
				curveValue(tc[1], k, 0), curveValue(tc[2], k, 0), curveValue(tc[3], k, 0), curveValue(tc[0], k, 1),
			}
		}
		e.addChannel(out, node, e.writeTimes(timeline, tps),
			modeler.WriteAccessor(e.doc, gltf.TargetArrayBuffer, rotations), gltf.TRSRotation)
	}
	for _, prop := range []struct {
		from int
		def  float32
		path gltf.TRSProperty
	}{
		{4, 0, gltf.TRSTranslation},
		{7, 1, gltf.TRSScale},
	} {
		timeline := firstCurve(tc, prop.from, prop.from+3)
		if timeline == nil {
			continue
		}
		values := make([][3]float32, len(timeline.Keys))
		for k := range values {
			for i := 0; i < 3; i++ {
				values[k][i] = curveValue(tc[prop.from+i], k, prop.def)
			}
		}
		e.addChannel(out, node, e.writeTimes(timeline, tps),
			modeler.WriteAccessor(e.doc, gltf.TargetArrayBuffer, values), prop.path)
	}
}
