package anim

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNode struct {
	name      string
	parent    int
	transform mgl32.Mat4
}

type testHierarchy []testNode

func (h testHierarchy) NodeCount() int                 { return len(h) }
func (h testHierarchy) NodeName(n int) string          { return h[n].name }
func (h testHierarchy) NodeParent(n int) int           { return h[n].parent }
func (h testHierarchy) NodeTransform(n int) mgl32.Mat4 { return h[n].transform }

func lookup(channels ...*Channel) ChannelLookup {
	return func(name string) *Channel {
		for _, ch := range channels {
			if ch.NodeName == name {
				return ch
			}
		}
		return nil
	}
}

func TestResolveChain(t *testing.T) {
	h := testHierarchy{
		{"root", -1, mgl32.Ident4()},
		{"hips", 0, mgl32.Translate3D(0, 1, 0)},
		{"spine", 1, mgl32.Translate3D(0, 1, 0)},
	}
	hips := &Channel{NodeName: "hips"}

	chain, err := ResolveChain(h, 2, lookup(hips))
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, 2, chain[0].Node)
	assert.Nil(t, chain[0].Channel)
	assert.Equal(t, 1, chain[1].Node)
	assert.Same(t, hips, chain[1].Channel)
	assert.Equal(t, 0, chain[2].Node)
	assert.Nil(t, chain[2].Channel)
}

func TestResolveChainFailures(t *testing.T) {
	cyclic := testHierarchy{
		{"a", 1, mgl32.Ident4()},
		{"b", 0, mgl32.Ident4()},
	}
	_, err := ResolveChain(cyclic, 0, nil)
	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, 0, chainErr.Node)

	dangling := testHierarchy{{"a", 5, mgl32.Ident4()}}
	_, err = ResolveChain(dangling, 0, nil)
	require.ErrorAs(t, err, &chainErr)

	_, err = ResolveChain(dangling, 3, nil)
	require.ErrorAs(t, err, &chainErr)
}

func TestMergeKeyTimes(t *testing.T) {
	a := &Channel{NodeName: "a", Position: VectorTrack{{Time: 0}, {Time: 1}, {Time: 2}}}
	b := &Channel{NodeName: "b", Rotation: QuatTrack{{Time: 0}, {Time: 0.00005}, {Time: 2}}}
	chain := []ChainLink{{0, a}, {1, nil}, {2, b}}

	assert.Equal(t, []float64{0, 1, 2}, MergeKeyTimes(chain, TimeEpsilon))
}

func TestMergeKeyTimesProperties(t *testing.T) {
	a := &Channel{
		Rotation: QuatTrack{{Time: 0.3}, {Time: 0.9}, {Time: 4}},
		Position: VectorTrack{{Time: 0}, {Time: 0.30001}, {Time: 1.5}},
		Scale:    VectorTrack{{Time: 2}},
	}
	b := &Channel{
		Position: VectorTrack{{Time: 0.1}, {Time: 0.9}, {Time: 3.99995}, {Time: 7}},
	}
	chain := []ChainLink{{0, a}, {1, b}}
	merged := MergeKeyTimes(chain, TimeEpsilon)

	all := map[float64]bool{}
	for _, ch := range []*Channel{a, b} {
		for _, tm := range ch.Rotation.Times() {
			all[tm] = true
		}
		for _, tm := range ch.Position.Times() {
			all[tm] = true
		}
		for _, tm := range ch.Scale.Times() {
			all[tm] = true
		}
	}
	for i, tm := range merged {
		assert.True(t, all[tm], "invented time %v", tm)
		if i > 0 {
			assert.Greater(t, tm, merged[i-1])
		}
	}
	assert.Equal(t, []float64{0, 0.1, 0.3, 0.9, 1.5, 2, 3.99995, 7}, merged)
}

func TestMergeKeyTimesNonPositiveEpsilon(t *testing.T) {
	a := &Channel{Position: VectorTrack{{Time: 0}, {Time: 1}, {Time: 1}}}
	b := &Channel{Rotation: QuatTrack{{Time: 0}, {Time: 1.00005}}}
	chain := []ChainLink{{0, a}, {1, b}}

	for _, epsilon := range []float64{0, -1} {
		assert.Equal(t, []float64{0, 1}, MergeKeyTimes(chain, epsilon), "epsilon=%v", epsilon)
	}
}

func TestMergeKeyTimesWithoutChannels(t *testing.T) {
	assert.Empty(t, MergeKeyTimes([]ChainLink{{0, nil}}, TimeEpsilon))
}

func TestChainWorldTwoNodes(t *testing.T) {
	h := testHierarchy{
		{"parent", -1, mgl32.Ident4()},
		{"child", 0, mgl32.Ident4()},
	}
	parent := &Channel{
		NodeName: "parent",
		Position: VectorTrack{{0, mgl32.Vec3{0, 0, 0}}, {1, mgl32.Vec3{1, 0, 0}}},
	}
	chain, err := ResolveChain(h, 1, lookup(parent))
	require.NoError(t, err)

	times := MergeKeyTimes(chain, TimeEpsilon)
	require.Equal(t, []float64{0, 1}, times)

	set := NewEvaluatorSet(h, 1)
	want := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}}
	for i, tm := range times {
		world := set.World(chain, tm)
		assert.True(t, world.Col(3).Vec3().ApproxEqual(want[i]), "t=%v got %v", tm, world.Col(3))
	}
}

func TestEvaluatorUsesStaticComponents(t *testing.T) {
	rest := mgl32.Translate3D(3, 4, 5).Mul4(mgl32.Scale3D(2, 2, 2))
	ch := &Channel{Rotation: QuatTrack{{0, mgl32.QuatIdent()}, {1, zRot(1)}}}
	e := NewNodeEvaluator(ch, 1, rest)

	m := e.Evaluate(1)
	assert.True(t, m.Col(3).Vec3().ApproxEqual(mgl32.Vec3{3, 4, 5}))
	want := mgl32.Translate3D(3, 4, 5).Mul4(zRot(1).Mat4()).Mul4(mgl32.Scale3D(2, 2, 2))
	assert.True(t, m.ApproxEqualThreshold(want, 1e-5))
}
