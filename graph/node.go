// Package graph implements the reverse-mode autograd tape: AutogradNodes
// ("Variables") wrap a Tensor value and an optional gradient slot; Ops
// record one forward step and its backward closure; Backward walks the
// tape in reverse topological order to accumulate gradients into leaves.
package graph

import (
	"github.com/rz-123/TinyAI-sub001/errs"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

// creatorRecord is one recorded forward step: the Op, its ordered inputs,
// and its ordered outputs. Outputs hold a back-reference so Backward can
// collect every output gradient before invoking op.Backward.
type creatorRecord struct {
	op      Op
	inputs  []*Node
	outputs []*Node
	gen     int
}

// Node is an AutogradNode: a Tensor value plus a gradient slot, optionally
// produced by a recorded Op. Nodes are compared by reference, never value.
type Node struct {
	value        *tensor.Tensor
	grad         *tensor.Tensor
	creator      *creatorRecord
	requiresGrad bool
	name         string
}

// NewLeaf wraps value as a leaf node (no creator) with the given
// requires-grad flag. Used for user inputs and, via NewParameter, for
// trainable parameters.
func NewLeaf(value *tensor.Tensor, requiresGrad bool, name string) *Node {
	return &Node{value: value, requiresGrad: requiresGrad, name: name}
}

// NewParameter wraps value as a leaf node with requiresGrad defaulted to true.
func NewParameter(value *tensor.Tensor, name string) *Node {
	return NewLeaf(value, true, name)
}

// Value returns the node's owned tensor. The node's value is externally
// read-only: callers needing to mutate tensors in place (Set, AddAt, ...)
// must not do so on the value of a node whose creator is still live, or
// gradients would be computed against a stale snapshot.
func (n *Node) Value() *tensor.Tensor { return n.value }

// Grad returns the accumulated gradient, or nil if none has been set.
func (n *Node) Grad() *tensor.Tensor { return n.grad }

// RequiresGrad reports whether this node participates in differentiation.
func (n *Node) RequiresGrad() bool { return n.requiresGrad }

// Name returns the node's optional diagnostic label.
func (n *Node) Name() string { return n.name }

// IsLeaf reports whether the node has no recorded creator.
func (n *Node) IsLeaf() bool { return n.creator == nil }

// SetGrad overwrites the node's gradient directly (used by Backward's seed step).
func (n *Node) SetGrad(g *tensor.Tensor) { n.grad = g }

// ClearGrad drops the node's accumulated gradient.
func (n *Node) ClearGrad() { n.grad = nil }

// AccumulateGrad adds g into the node's gradient, reducing it via SumTo
// first if g's shape is broader than the node's value (the case produced
// by broadcasting during forward).
func (n *Node) AccumulateGrad(g *tensor.Tensor) error {
	if !g.Shape().Equal(n.value.Shape()) {
		reduced, err := tensor.SumTo(g, n.value.Shape())
		if err != nil {
			return errs.Newf(errs.ShapeMismatch, "AccumulateGrad", "gradient shape %s incompatible with value shape %s: %v", g.Shape(), n.value.Shape(), err)
		}
		g = reduced
	}
	if n.grad == nil {
		n.grad = g.Clone()
		return nil
	}
	return tensor.AddTo(n.grad, g)
}

// generation returns 1 + max(input generations), 0 for leaves. Used by
// Backward to visit nodes only after all their downstream consumers.
func (n *Node) generation() int {
	if n.creator == nil {
		return 0
	}
	return n.creator.gen
}

// Unchain clears this node's creator link, turning it into a leaf in place.
func (n *Node) Unchain() {
	n.creator = nil
}

// UnchainBackward clears this node's creator and recursively clears every
// creator reachable through it, truncating the live tape upstream of n.
// Used by RNNs to cap backpropagation-through-time depth.
func (n *Node) UnchainBackward() {
	if n.creator == nil {
		return
	}
	inputs := n.creator.inputs
	n.creator = nil
	for _, in := range inputs {
		in.UnchainBackward()
	}
}
