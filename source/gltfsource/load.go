package gltfsource

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/scene_importer/anim"
	"github.com/mogaika/scene_importer/source"
	"github.com/mogaika/scene_importer/utils"
)

const (
	lightsExtension = "KHR_lights_punctual"
	// used when the scene has several top level nodes
	SceneRootName = "RootNode"
)

// Load reads a .gltf or .glb file.
func Load(path string) (*source.Document, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open gltf %q", path)
	}
	return Convert(doc, path)
}

// Decode reads a self contained gltf or glb stream.
func Decode(r io.Reader, name string) (*source.Document, error) {
	doc := &gltf.Document{}
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrapf(err, "Failed to read gltf")
	}
	return Convert(doc, name)
}

type converter struct {
	doc   *gltf.Document
	out   *source.Document
	names utils.RandomNameGenerator

	// gltf node index to source node
	nodes map[uint32]source.NodeID
	// gltf mesh index to source meshes (one per primitive)
	meshes map[uint32][]int
}

func Convert(doc *gltf.Document, path string) (*source.Document, error) {
	c := &converter{
		doc:    doc,
		out:    source.NewDocument(),
		nodes:  make(map[uint32]source.NodeID),
		meshes: make(map[uint32][]int),
	}
	c.out.Path = path
	for _, n := range doc.Nodes {
		c.names.Reserve(n.Name)
	}

	c.convertMaterials()
	c.convertCameras()
	if err := c.convertLights(); err != nil {
		return nil, err
	}
	if err := c.convertHierarchy(); err != nil {
		return nil, err
	}
	if err := c.convertAnimations(); err != nil {
		return nil, err
	}

	log.Printf("[gltf] Loaded %q: %d nodes, %d meshes, %d animations",
		path, len(c.out.Nodes), len(c.out.Meshes), len(c.out.Animations))
	return c.out, nil
}

func (c *converter) nodeName(index uint32) string {
	n := c.doc.Nodes[index]
	if n.Name == "" {
		n.Name = c.names.RandomName()
	}
	return n.Name
}

func nodeTransform(n *gltf.Node) mgl32.Mat4 {
	m := mgl32.Mat4(n.Matrix)
	if m != (mgl32.Mat4{}) && !utils.IsIdentity(m) {
		return m
	}

	rot := mgl32.Quat{W: n.Rotation[3], V: mgl32.Vec3{n.Rotation[0], n.Rotation[1], n.Rotation[2]}}
	if rot.Len() == 0 {
		rot = mgl32.QuatIdent()
	}
	scale := mgl32.Vec3(n.Scale)
	if scale == (mgl32.Vec3{}) {
		scale = mgl32.Vec3{1, 1, 1}
	}
	return utils.ComposeMat4(mgl32.Vec3(n.Translation), rot, scale)
}

func (c *converter) sceneRoots() []uint32 {
	if len(c.doc.Scenes) != 0 {
		scene := 0
		if c.doc.Scene != nil && int(*c.doc.Scene) < len(c.doc.Scenes) {
			scene = int(*c.doc.Scene)
		}
		return c.doc.Scenes[scene].Nodes
	}

	// no scenes, every node without parent is a root
	hasParent := make([]bool, len(c.doc.Nodes))
	for _, n := range c.doc.Nodes {
		for _, child := range n.Children {
			if int(child) < len(hasParent) {
				hasParent[child] = true
			}
		}
	}
	roots := make([]uint32, 0)
	for i := range c.doc.Nodes {
		if !hasParent[i] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func (c *converter) convertHierarchy() error {
	roots := c.sceneRoots()
	if len(roots) == 0 {
		return errors.New("Gltf scene has no nodes")
	}

	parent := source.NoNode
	if len(roots) > 1 {
		parent = c.out.AddNode(SceneRootName, mgl32.Ident4(), source.NoNode)
	}
	for _, r := range roots {
		if err := c.convertNode(r, parent, 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *converter) convertNode(index uint32, parent source.NodeID, depth int) error {
	if int(index) >= len(c.doc.Nodes) {
		return errors.Errorf("Node %d out of range", index)
	}
	if _, seen := c.nodes[index]; seen || depth > len(c.doc.Nodes) {
		return errors.Errorf("Node %d is referenced twice, hierarchy is not a tree", index)
	}

	n := c.doc.Nodes[index]
	id := c.out.AddNode(c.nodeName(index), nodeTransform(n), parent)
	c.nodes[index] = id

	if n.Mesh != nil {
		meshes, err := c.convertMesh(*n.Mesh, n.Skin)
		if err != nil {
			return errors.Wrapf(err, "Node %q", n.Name)
		}
		c.out.Nodes[id].Meshes = meshes
	}
	if n.Camera != nil && int(*n.Camera) < len(c.out.Cameras) {
		c.out.Nodes[id].Cameras = []int{int(*n.Camera)}
	}
	if light, ok := nodeLight(n); ok && light < len(c.out.Lights) {
		c.out.Nodes[id].Lights = []int{light}
	}

	for _, child := range n.Children {
		if err := c.convertNode(child, id, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (c *converter) convertMaterials() {
	for i, m := range c.doc.Materials {
		mat := source.Material{
			Name:         m.Name,
			DiffuseColor: mgl32.Vec4{1, 1, 1, 1},
		}
		if mat.Name == "" {
			mat.Name = fmt.Sprintf("Material-%d", i)
		}
		if pbr := m.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				mat.DiffuseColor = mgl32.Vec4(*pbr.BaseColorFactor)
			}
			if pbr.BaseColorTexture != nil {
				mat.TexturePath = c.texturePath(pbr.BaseColorTexture.Index)
			}
		}
		c.out.Materials = append(c.out.Materials, mat)
	}
}

func (c *converter) texturePath(texture uint32) string {
	if int(texture) >= len(c.doc.Textures) {
		return ""
	}
	t := c.doc.Textures[texture]
	if t.Source == nil || int(*t.Source) >= len(c.doc.Images) {
		return ""
	}
	img := c.doc.Images[*t.Source]
	if strings.HasPrefix(img.URI, "data:") {
		return ""
	}
	return img.URI
}

func (c *converter) convertCameras() {
	for i, cam := range c.doc.Cameras {
		out := source.Camera{Name: cam.Name}
		if out.Name == "" {
			out.Name = fmt.Sprintf("Camera-%d", i)
		}
		switch {
		case cam.Perspective != nil:
			p := cam.Perspective
			out.Perspective = true
			out.FovY = p.Yfov
			out.ClipNear = p.Znear
			out.ClipFar = 1000
			if p.AspectRatio != nil {
				out.Aspect = *p.AspectRatio
			}
			if p.Zfar != nil {
				out.ClipFar = *p.Zfar
			}
		case cam.Orthographic != nil:
			o := cam.Orthographic
			out.OrthoHeight = o.Ymag
			if o.Ymag != 0 {
				out.Aspect = o.Xmag / o.Ymag
			}
			out.ClipNear = o.Znear
			out.ClipFar = o.Zfar
		}
		c.out.Cameras = append(c.out.Cameras, out)
	}
}

type punctualLight struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Color     *[3]float32 `json:"color"`
	Intensity *float32   `json:"intensity"`
	Range     *float32   `json:"range"`
	Spot      *struct {
		InnerConeAngle float32  `json:"innerConeAngle"`
		OuterConeAngle *float32 `json:"outerConeAngle"`
	} `json:"spot"`
}

// extension values stay raw json unless an extension package registered a
// decoder, remarshaling handles both cases
func decodeExtension(ext gltf.Extensions, name string, out interface{}) (bool, error) {
	v, ok := ext[name]
	if !ok {
		return false, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false, errors.Wrapf(err, "Failed to marshal extension %q", name)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, errors.Wrapf(err, "Failed to decode extension %q", name)
	}
	return true, nil
}

func (c *converter) convertLights() error {
	var ext struct {
		Lights []punctualLight `json:"lights"`
	}
	ok, err := decodeExtension(c.doc.Extensions, lightsExtension, &ext)
	if err != nil || !ok {
		return err
	}

	for i, l := range ext.Lights {
		out := source.Light{
			Name:          l.Name,
			ColorDiffuse:  mgl32.Vec3{1, 1, 1},
			ColorSpecular: mgl32.Vec3{1, 1, 1},
		}
		if out.Name == "" {
			out.Name = fmt.Sprintf("Light-%d", i)
		}
		if l.Color != nil {
			out.ColorDiffuse = mgl32.Vec3(*l.Color)
			out.ColorSpecular = out.ColorDiffuse
		}
		if l.Intensity != nil {
			out.ColorDiffuse = out.ColorDiffuse.Mul(*l.Intensity)
		}
		switch l.Type {
		case "directional":
			out.Type = source.LightDirectional
		case "point":
			out.Type = source.LightPoint
			out.AttenuationQuadratic = 1
		case "spot":
			out.Type = source.LightSpot
			out.AttenuationQuadratic = 1
			out.OuterCone = math.Pi / 4
			if l.Spot != nil {
				out.InnerCone = l.Spot.InnerConeAngle
				if l.Spot.OuterConeAngle != nil {
					out.OuterCone = *l.Spot.OuterConeAngle
				}
			}
		}
		c.out.Lights = append(c.out.Lights, out)
	}
	return nil
}

func nodeLight(n *gltf.Node) (int, bool) {
	var ref struct {
		Light *int `json:"light"`
	}
	ok, err := decodeExtension(n.Extensions, lightsExtension, &ref)
	if err != nil || !ok || ref.Light == nil {
		return 0, false
	}
	return *ref.Light, true
}

func (c *converter) convertMesh(index uint32, skin *uint32) ([]int, error) {
	if cached, ok := c.meshes[index]; ok && skin == nil {
		return cached, nil
	}
	if int(index) >= len(c.doc.Meshes) {
		return nil, errors.Errorf("Mesh %d out of range", index)
	}

	m := c.doc.Meshes[index]
	ids := make([]int, 0, len(m.Primitives))
	for pi, p := range m.Primitives {
		mesh, err := c.convertPrimitive(p, skin)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh %q primitive %d", m.Name, pi)
		}
		mesh.Name = m.Name
		if len(m.Primitives) > 1 {
			mesh.Name = fmt.Sprintf("%s-%d", m.Name, pi)
		}
		ids = append(ids, len(c.out.Meshes))
		c.out.Meshes = append(c.out.Meshes, *mesh)
	}
	if skin == nil {
		c.meshes[index] = ids
	}
	return ids, nil
}

func (c *converter) convertPrimitive(p *gltf.Primitive, skin *uint32) (*source.Mesh, error) {
	doc := c.doc
	mesh := &source.Mesh{MaterialIndex: -1}
	if p.Material != nil {
		mesh.MaterialIndex = int(*p.Material)
	}

	posIdx, ok := p.Attributes["POSITION"]
	if !ok {
		return nil, errors.New("Primitive has no positions")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read positions")
	}
	mesh.Vertices = make([]mgl32.Vec3, len(positions))
	for i, v := range positions {
		mesh.Vertices[i] = v
	}

	if idx, ok := p.Attributes["NORMAL"]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read normals")
		}
		mesh.Normals = make([]mgl32.Vec3, len(normals))
		for i, v := range normals {
			mesh.Normals[i] = v
		}
	}

	for layer := 0; ; layer++ {
		idx, ok := p.Attributes[fmt.Sprintf("TEXCOORD_%d", layer)]
		if !ok {
			break
		}
		uvs, err := modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read uv layer %d", layer)
		}
		channel := make([]mgl32.Vec2, len(uvs))
		for i, uv := range uvs {
			channel[i] = uv
		}
		mesh.UVChannels = append(mesh.UVChannels, channel)
	}

	for layer := 0; ; layer++ {
		idx, ok := p.Attributes[fmt.Sprintf("COLOR_%d", layer)]
		if !ok {
			break
		}
		values, comps, err := readFloats(doc, idx)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read color layer %d", layer)
		}
		channel := make([]mgl32.Vec4, len(values)/comps)
		for i := range channel {
			col := mgl32.Vec4{1, 1, 1, 1}
			copy(col[:comps], values[i*comps:(i+1)*comps])
			channel[i] = col
		}
		mesh.ColorChannels = append(mesh.ColorChannels, channel)
	}

	var indices []uint32
	if p.Indices != nil {
		indices, err = modeler.ReadIndices(doc, doc.Accessors[*p.Indices], nil)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read indices")
		}
	} else {
		indices = make([]uint32, len(mesh.Vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	mesh.Faces, mesh.Primitives = buildFaces(p.Mode, indices)

	if skin != nil {
		if err := c.convertSkin(mesh, p, *skin); err != nil {
			return nil, err
		}
	}
	return mesh, nil
}

func buildFaces(mode gltf.PrimitiveMode, indices []uint32) ([][]uint32, source.PrimitiveKind) {
	faces := make([][]uint32, 0, len(indices)/3)
	switch mode {
	case gltf.PrimitivePoints:
		for _, i := range indices {
			faces = append(faces, []uint32{i})
		}
		return faces, source.PrimitivePoints
	case gltf.PrimitiveLines:
		for i := 0; i+1 < len(indices); i += 2 {
			faces = append(faces, []uint32{indices[i], indices[i+1]})
		}
		return faces, source.PrimitiveLines
	case gltf.PrimitiveLineStrip, gltf.PrimitiveLineLoop:
		for i := 0; i+1 < len(indices); i++ {
			faces = append(faces, []uint32{indices[i], indices[i+1]})
		}
		if mode == gltf.PrimitiveLineLoop && len(indices) > 2 {
			faces = append(faces, []uint32{indices[len(indices)-1], indices[0]})
		}
		return faces, source.PrimitiveLines
	case gltf.PrimitiveTriangleStrip:
		for i := 0; i+2 < len(indices); i++ {
			if i%2 == 0 {
				faces = append(faces, []uint32{indices[i], indices[i+1], indices[i+2]})
			} else {
				faces = append(faces, []uint32{indices[i+1], indices[i], indices[i+2]})
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 1; i+1 < len(indices); i++ {
			faces = append(faces, []uint32{indices[0], indices[i], indices[i+1]})
		}
	default:
		for i := 0; i+2 < len(indices); i += 3 {
			faces = append(faces, []uint32{indices[i], indices[i+1], indices[i+2]})
		}
	}
	return faces, source.PrimitiveTriangles
}

func (c *converter) convertSkin(mesh *source.Mesh, p *gltf.Primitive, skinIndex uint32) error {
	doc := c.doc
	if int(skinIndex) >= len(doc.Skins) {
		return errors.Errorf("Skin %d out of range", skinIndex)
	}
	skin := doc.Skins[skinIndex]

	inverseBind := make([]mgl32.Mat4, len(skin.Joints))
	for i := range inverseBind {
		inverseBind[i] = mgl32.Ident4()
	}
	if skin.InverseBindMatrices != nil {
		values, comps, err := readFloats(doc, *skin.InverseBindMatrices)
		if err != nil {
			return errors.Wrapf(err, "Failed to read inverse bind matrices")
		}
		if comps != 16 || len(values)/16 < len(skin.Joints) {
			return errors.Errorf("Inverse bind matrices do not match %d joints", len(skin.Joints))
		}
		for i := range inverseBind {
			copy(inverseBind[i][:], values[i*16:(i+1)*16])
		}
	}

	mesh.Bones = make([]source.Bone, len(skin.Joints))
	for i, j := range skin.Joints {
		if int(j) >= len(doc.Nodes) {
			return errors.Errorf("Skin joint %d out of range", j)
		}
		mesh.Bones[i] = source.Bone{Name: c.nodeName(j), OffsetMatrix: inverseBind[i]}
	}

	jointsIdx, hasJoints := p.Attributes["JOINTS_0"]
	weightsIdx, hasWeights := p.Attributes["WEIGHTS_0"]
	if !hasJoints || !hasWeights {
		return nil
	}
	joints, jointComps, err := readFloats(doc, jointsIdx)
	if err != nil {
		return errors.Wrapf(err, "Failed to read joints")
	}
	weights, weightComps, err := readFloats(doc, weightsIdx)
	if err != nil {
		return errors.Wrapf(err, "Failed to read weights")
	}
	if jointComps != 4 || weightComps != 4 {
		return errors.New("Joints and weights must be vec4")
	}
	for v := 0; v < len(mesh.Vertices) && (v+1)*4 <= len(joints) && (v+1)*4 <= len(weights); v++ {
		for k := 0; k < 4; k++ {
			w := weights[v*4+k]
			bone := int(joints[v*4+k])
			if w <= 0 || bone >= len(mesh.Bones) {
				continue
			}
			mesh.Bones[bone].Weights = append(mesh.Bones[bone].Weights, source.VertexWeight{
				Vertex: uint32(v),
				Weight: w,
			})
		}
	}
	return nil
}

func (c *converter) convertAnimations() error {
	for ai, a := range c.doc.Animations {
		out := &source.Animation{
			Name:           a.Name,
			TicksPerSecond: 1,
		}
		if out.Name == "" {
			out.Name = fmt.Sprintf("Animation-%d", ai)
		}

		// channels of one node share a single source channel
		byNode := make(map[uint32]*anim.Channel)
		for ci, ch := range a.Channels {
			if ch.Target.Node == nil || ch.Sampler == nil || int(*ch.Sampler) >= len(a.Samplers) {
				log.Printf("[gltf] Animation %q channel %d has no target, skipped", out.Name, ci)
				continue
			}
			node := *ch.Target.Node
			if _, ok := c.nodes[node]; !ok {
				log.Printf("[gltf] Animation %q channel %d targets unused node %d, skipped", out.Name, ci, node)
				continue
			}
			target, ok := byNode[node]
			if !ok {
				target = &anim.Channel{NodeName: c.nodeName(node)}
				byNode[node] = target
				out.Channels = append(out.Channels, target)
			}

			end, err := c.readSampler(a.Samplers[*ch.Sampler], ch.Target.Path, target)
			if err != nil {
				return errors.Wrapf(err, "Animation %q channel %d", out.Name, ci)
			}
			if end > out.Duration {
				out.Duration = end
			}
		}
		c.out.Animations = append(c.out.Animations, out)
	}
	return nil
}

// readSampler fills one track of ch and returns the last key time.
func (c *converter) readSampler(s *gltf.AnimationSampler, path gltf.TRSProperty, ch *anim.Channel) (float64, error) {
	if s.Input == nil || s.Output == nil {
		return 0, errors.New("Sampler without input or output")
	}
	times, _, err := readFloats(c.doc, *s.Input)
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to read key times")
	}
	values, comps, err := readFloats(c.doc, *s.Output)
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to read key values")
	}

	// cubic spline keeps in tangent, value, out tangent per key
	stride, offset := 1, 0
	if s.Interpolation == gltf.InterpolationCubicSpline {
		stride, offset = 3, 1
	}
	if len(values)/comps < len(times)*stride {
		return 0, errors.Errorf("Sampler has %d values for %d keys", len(values)/comps, len(times))
	}
	step := s.Interpolation == gltf.InterpolationStep
	value := func(i int) []float32 {
		at := (i*stride + offset) * comps
		return values[at : at+comps]
	}

	switch path {
	case gltf.TRSTranslation, gltf.TRSScale:
		if comps != 3 {
			return 0, errors.Errorf("Expected vec3 output, got %d components", comps)
		}
		track := make(anim.VectorTrack, 0, len(times))
		for i, t := range times {
			v := value(i)
			key := anim.VectorKey{Time: float64(t), Value: mgl32.Vec3{v[0], v[1], v[2]}}
			if step && i > 0 {
				// hold the previous value up to this key
				track = append(track, anim.VectorKey{Time: float64(t), Value: track[len(track)-1].Value})
			}
			track = append(track, key)
		}
		if path == gltf.TRSTranslation {
			ch.Position = track
		} else {
			ch.Scale = track
		}
	case gltf.TRSRotation:
		if comps != 4 {
			return 0, errors.Errorf("Expected vec4 output, got %d components", comps)
		}
		track := make(anim.QuatTrack, 0, len(times))
		for i, t := range times {
			v := value(i)
			q := mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}.Normalize()
			if step && i > 0 {
				track = append(track, anim.QuatKey{Time: float64(t), Value: track[len(track)-1].Value})
			}
			track = append(track, anim.QuatKey{Time: float64(t), Value: q})
		}
		ch.Rotation = track
	default:
		// morph weights have no node transform meaning
		return 0, nil
	}

	if len(times) == 0 {
		return 0, nil
	}
	return float64(times[len(times)-1]), nil
}
