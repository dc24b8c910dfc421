package source

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/scene_importer/anim"
)

// NodeID indexes Document.Nodes. Parent links are stored as ids so the
// animation stage never holds pointers into the tree.
type NodeID int

const NoNode NodeID = -1

type Node struct {
	Name      string
	Transform mgl32.Mat4
	Parent    NodeID
	Children  []NodeID
	Meshes    []int
	Lights    []int
	Cameras   []int
}

func (n *Node) ContentCount() int {
	return len(n.Meshes) + len(n.Lights) + len(n.Cameras)
}

type VertexWeight struct {
	Vertex uint32
	Weight float32
}

// Bone is the skin binding of one mesh to one node. OffsetMatrix maps
// world space at bind time into bone space (inverse bind matrix).
type Bone struct {
	Name         string
	OffsetMatrix mgl32.Mat4
	Weights      []VertexWeight
}

type PrimitiveKind int

const (
	PrimitivePoints PrimitiveKind = 1 << iota
	PrimitiveLines
	PrimitiveTriangles
	PrimitivePolygons
)

type Mesh struct {
	Name          string
	Primitives    PrimitiveKind
	Vertices      []mgl32.Vec3
	Normals       []mgl32.Vec3
	UVChannels    [][]mgl32.Vec2
	ColorChannels [][]mgl32.Vec4
	Faces         [][]uint32
	MaterialIndex int
	Bones         []Bone
}

type LightType int

const (
	LightUndefined LightType = iota
	LightDirectional
	LightPoint
	LightSpot
)

type Light struct {
	Name                 string
	Type                 LightType
	ColorDiffuse         mgl32.Vec3
	ColorSpecular        mgl32.Vec3
	AttenuationConstant  float32
	AttenuationLinear    float32
	AttenuationQuadratic float32
	// radians
	InnerCone float32
	OuterCone float32
}

type Camera struct {
	Name        string
	Perspective bool
	// vertical field of view in radians
	FovY        float32
	Aspect      float32
	OrthoHeight float32
	ClipNear    float32
	ClipFar     float32
}

type Material struct {
	Name         string
	DiffuseColor mgl32.Vec4
	TexturePath  string
}

type Animation struct {
	Name           string
	Duration       float64
	TicksPerSecond float64
	Channels       []*anim.Channel
}

// Channel returns the first channel targeting nodeName.
func (a *Animation) Channel(nodeName string) *anim.Channel {
	for _, ch := range a.Channels {
		if ch.NodeName == nodeName {
			return ch
		}
	}
	return nil
}

type Document struct {
	Path       string
	Root       NodeID
	Nodes      []Node
	Meshes     []Mesh
	Materials  []Material
	Lights     []Light
	Cameras    []Camera
	Animations []*Animation
}

func NewDocument() *Document {
	return &Document{Root: NoNode}
}

// AddNode appends a node and links it to parent. The first node added
// without a parent becomes the root.
func (d *Document) AddNode(name string, transform mgl32.Mat4, parent NodeID) NodeID {
	id := NodeID(len(d.Nodes))
	d.Nodes = append(d.Nodes, Node{
		Name:      name,
		Transform: transform,
		Parent:    parent,
	})
	if parent == NoNode {
		if d.Root == NoNode {
			d.Root = id
		}
	} else {
		d.Nodes[parent].Children = append(d.Nodes[parent].Children, id)
	}
	return id
}

func (d *Document) Node(id NodeID) *Node {
	return &d.Nodes[id]
}

// FindNode does a depth first search from the root, like name lookups in
// the source format, so the first match in document order wins.
func (d *Document) FindNode(name string) NodeID {
	if d.Root == NoNode {
		return NoNode
	}
	stack := []NodeID{d.Root}
	for len(stack) != 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &d.Nodes[id]
		if n.Name == name {
			return id
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return NoNode
}

// World accumulates local transforms from the root down to id.
func (d *Document) World(id NodeID) mgl32.Mat4 {
	m := mgl32.Ident4()
	for cur := id; cur != NoNode; cur = d.Nodes[cur].Parent {
		m = d.Nodes[cur].Transform.Mul4(m)
	}
	return m
}

// HasBones reports whether any mesh carries bone weights.
func (d *Document) HasBones() bool {
	for i := range d.Meshes {
		if len(d.Meshes[i].Bones) != 0 {
			return true
		}
	}
	return false
}

// IsAnimated reports whether any animation has a channel for the node.
func (d *Document) IsAnimated(name string) bool {
	for _, a := range d.Animations {
		if a.Channel(name) != nil {
			return true
		}
	}
	return false
}

// Validate checks structural integrity. Every failure is fatal for import.
func (d *Document) Validate() error {
	if d.Root == NoNode || int(d.Root) >= len(d.Nodes) {
		return errors.New("Document has no root node")
	}
	if d.Nodes[d.Root].Parent != NoNode {
		return errors.Errorf("Root node %q has a parent", d.Nodes[d.Root].Name)
	}

	visited := make([]bool, len(d.Nodes))
	stack := []NodeID{d.Root}
	for len(stack) != 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			return errors.Errorf("Node %q is reachable twice, hierarchy is not a tree", d.Nodes[id].Name)
		}
		visited[id] = true
		n := &d.Nodes[id]
		for _, child := range n.Children {
			if child < 0 || int(child) >= len(d.Nodes) {
				return errors.Errorf("Node %q references missing child %d", n.Name, child)
			}
			if d.Nodes[child].Parent != id {
				return errors.Errorf("Node %q parent link does not match %q", d.Nodes[child].Name, n.Name)
			}
			stack = append(stack, child)
		}
		for _, m := range n.Meshes {
			if m < 0 || m >= len(d.Meshes) {
				return errors.Errorf("Node %q references missing mesh %d", n.Name, m)
			}
		}
		for _, l := range n.Lights {
			if l < 0 || l >= len(d.Lights) {
				return errors.Errorf("Node %q references missing light %d", n.Name, l)
			}
		}
		for _, c := range n.Cameras {
			if c < 0 || c >= len(d.Cameras) {
				return errors.Errorf("Node %q references missing camera %d", n.Name, c)
			}
		}
	}
	return nil
}

func (d *Document) NodeCount() int { return len(d.Nodes) }

func (d *Document) NodeName(node int) string { return d.Nodes[node].Name }

func (d *Document) NodeParent(node int) int { return int(d.Nodes[node].Parent) }

func (d *Document) NodeTransform(node int) mgl32.Mat4 { return d.Nodes[node].Transform }
