package anim

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Hierarchy is the read only view of a node arena needed to walk ancestors.
// Parent returns -1 for a root.
type Hierarchy interface {
	NodeCount() int
	NodeName(node int) string
	NodeParent(node int) int
	NodeTransform(node int) mgl32.Mat4
}

// ChannelLookup returns the channel animating the named node or nil.
type ChannelLookup func(nodeName string) *Channel

type ChainLink struct {
	Node    int
	Channel *Channel
}

type ChainError struct {
	Node   int
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("Failed to resolve ancestor chain of node %d: %s", e.Node, e.Reason)
}

// ResolveChain lists node and all of its ancestors, node first, root last.
func ResolveChain(h Hierarchy, node int, channels ChannelLookup) ([]ChainLink, error) {
	count := h.NodeCount()
	if node < 0 || node >= count {
		return nil, &ChainError{Node: node, Reason: "node out of range"}
	}

	chain := make([]ChainLink, 0, 8)
	for cur := node; cur != -1; cur = h.NodeParent(cur) {
		if cur < 0 || cur >= count {
			return nil, &ChainError{Node: node, Reason: fmt.Sprintf("dangling parent %d", cur)}
		}
		if len(chain) >= count {
			return nil, &ChainError{Node: node, Reason: "cycle in hierarchy"}
		}
		var ch *Channel
		if channels != nil {
			ch = channels(h.NodeName(cur))
		}
		chain = append(chain, ChainLink{Node: cur, Channel: ch})
	}
	return chain, nil
}

// EvaluatorSet keeps one evaluator per animated node for a single
// animation. Chains of sibling bones overlap, the evaluators are shared
// between them but never across animations.
type EvaluatorSet struct {
	h          Hierarchy
	duration   float64
	evaluators map[int]*NodeEvaluator
}

func NewEvaluatorSet(h Hierarchy, duration float64) *EvaluatorSet {
	return &EvaluatorSet{
		h:          h,
		duration:   duration,
		evaluators: make(map[int]*NodeEvaluator),
	}
}

func (s *EvaluatorSet) Local(link ChainLink, t float64) mgl32.Mat4 {
	if link.Channel == nil {
		return s.h.NodeTransform(link.Node)
	}
	e, ok := s.evaluators[link.Node]
	if !ok {
		e = NewNodeEvaluator(link.Channel, s.duration, s.h.NodeTransform(link.Node))
		s.evaluators[link.Node] = e
	}
	return e.Evaluate(t)
}

// World composes the chain root first: root * ... * parent * node.
func (s *EvaluatorSet) World(chain []ChainLink, t float64) mgl32.Mat4 {
	m := mgl32.Ident4()
	for i := len(chain) - 1; i >= 0; i-- {
		m = m.Mul4(s.Local(chain[i], t))
	}
	return m
}
