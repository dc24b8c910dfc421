package source

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const DummyRootName = "$DummyRoot$"

// RotateToZUp converts a Y up document into Z up space in place.
func (d *Document) RotateToZUp() {
	d.Transform(mgl32.HomogRotate3DX(math.Pi / 2))
}

// Scale applies an uniform scale to the whole document in place.
func (d *Document) Scale(s float32) {
	d.Transform(mgl32.Scale3D(s, s, s))
}

// Transform pre multiplies the root by m. An animated root would lose the
// correction on the first key, so a new root carrying m is inserted above it.
// Bone offsets are corrected so bind poses stay consistent with the new
// world space.
func (d *Document) Transform(m mgl32.Mat4) {
	if d.Root == NoNode {
		return
	}

	root := &d.Nodes[d.Root]
	if d.IsAnimated(root.Name) {
		old := d.Root
		id := NodeID(len(d.Nodes))
		d.Nodes = append(d.Nodes, Node{
			Name:      DummyRootName,
			Transform: m,
			Parent:    NoNode,
			Children:  []NodeID{old},
		})
		d.Nodes[old].Parent = id
		d.Root = id
	} else {
		root.Transform = m.Mul4(root.Transform)
	}

	inv := m.Inv()
	for i := range d.Meshes {
		for j := range d.Meshes[i].Bones {
			b := &d.Meshes[i].Bones[j]
			b.OffsetMatrix = b.OffsetMatrix.Mul4(inv)
		}
	}
}

// Bounds returns the world space axis aligned box of all mesh vertices.
// ok is false for documents without geometry.
func (d *Document) Bounds() (min, max mgl32.Vec3, ok bool) {
	inf := float32(math.Inf(1))
	min = mgl32.Vec3{inf, inf, inf}
	max = mgl32.Vec3{-inf, -inf, -inf}

	for id := range d.Nodes {
		n := &d.Nodes[id]
		if len(n.Meshes) == 0 {
			continue
		}
		world := d.World(NodeID(id))
		for _, mi := range n.Meshes {
			for _, v := range d.Meshes[mi].Vertices {
				p := mgl32.TransformCoordinate(v, world)
				for k := 0; k < 3; k++ {
					if p[k] < min[k] {
						min[k] = p[k]
					}
					if p[k] > max[k] {
						max[k] = p[k]
					}
				}
				ok = true
			}
		}
	}
	return min, max, ok
}

// FitScale returns the uniform scale bringing the largest extent of the
// document down to maxSize, or 1 when it already fits.
func (d *Document) FitScale(maxSize float32) float32 {
	if maxSize <= 0 {
		return 1
	}
	min, max, ok := d.Bounds()
	if !ok {
		return 1
	}
	size := max.Sub(min)
	largest := size[0]
	if size[1] > largest {
		largest = size[1]
	}
	if size[2] > largest {
		largest = size[2]
	}
	if largest <= maxSize || largest == 0 {
		return 1
	}
	return maxSize / largest
}
