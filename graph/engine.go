package graph

import (
	"sort"

	"github.com/rz-123/TinyAI-sub001/errs"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

// Call records one forward step of op over inputs, returning the output
// node(s). The Op is recorded (outputs get a creator, inputs are
// remembered) if and only if ctx is in training mode and at least one
// input requires grad; otherwise the outputs are detached leaves.
func Call(ctx *Context, op Op, inputs ...*Node) ([]*Node, error) {
	if op.Arity() != VariadicArity && len(inputs) != op.Arity() {
		return nil, errs.Newf(errs.ArityError, "Call", "expected %d inputs, got %d", op.Arity(), len(inputs))
	}
	for _, in := range inputs {
		if in == nil {
			return nil, errs.New(errs.NullInput, "Call", "input is nil")
		}
	}

	values := make([]*tensor.Tensor, len(inputs))
	for i, in := range inputs {
		values[i] = in.value
	}

	outs, err := op.Forward(values)
	if err != nil {
		return nil, err
	}

	outNodes := make([]*Node, len(outs))
	for i, t := range outs {
		outNodes[i] = &Node{value: t}
	}

	if ctx.Training() && anyRequiresGrad(inputs) {
		gen := maxGeneration(inputs) + 1
		rec := &creatorRecord{op: op, inputs: append([]*Node(nil), inputs...), outputs: outNodes, gen: gen}
		for _, o := range outNodes {
			o.creator = rec
			o.requiresGrad = true
		}
	}

	return outNodes, nil
}

// Call1 is Call for the common single-output case.
func Call1(ctx *Context, op Op, inputs ...*Node) (*Node, error) {
	outs, err := Call(ctx, op, inputs...)
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

func anyRequiresGrad(inputs []*Node) bool {
	for _, in := range inputs {
		if in.requiresGrad {
			return true
		}
	}
	return false
}

func maxGeneration(inputs []*Node) int {
	max := 0
	for _, in := range inputs {
		if g := in.generation(); g > max {
			max = g
		}
	}
	return max
}

// Backward walks the tape rooted at root in reverse topological order,
// seeding root's gradient with ones if it has none, and accumulates
// gradients into every leaf reachable through a live creator chain. Each
// recorded Op is invoked exactly once, after every node it produced has
// collected its incoming gradient from every consumer.
func Backward(root *Node) error {
	if root.grad == nil {
		root.grad = tensor.Ones(root.value.Shape())
	}
	if root.creator == nil {
		return nil
	}

	pending := []*creatorRecord{root.creator}
	seen := map[*creatorRecord]bool{root.creator: true}

	for len(pending) > 0 {
		sort.Slice(pending, func(i, j int) bool { return pending[i].gen < pending[j].gen })
		rec := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		outGrads := make([]*tensor.Tensor, len(rec.outputs))
		for i, o := range rec.outputs {
			if o.grad != nil {
				outGrads[i] = o.grad
				continue
			}
			outGrads[i] = tensor.Zeros(o.value.Shape())
		}

		inGrads, err := rec.op.Backward(outGrads)
		if err != nil {
			return err
		}
		if len(inGrads) != len(rec.inputs) {
			return errs.Newf(errs.ArityError, "Backward", "op returned %d gradients for %d inputs", len(inGrads), len(rec.inputs))
		}

		for i, in := range rec.inputs {
			g := inGrads[i]
			if g == nil || !in.requiresGrad {
				continue
			}
			if err := in.AccumulateGrad(g); err != nil {
				return err
			}
			if in.creator != nil && !seen[in.creator] {
				seen[in.creator] = true
				pending = append(pending, in.creator)
			}
		}
	}

	return nil
}
