// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package graph

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
	"github.com/voxel-ml/voxelnets/internal/weights"
)

// Model is a finalized computation graph with a single input and a single
// output. Evaluation walks the nodes reachable from the output in
// construction order, so every node runs exactly once even when its value
// feeds several consumers.
type Model[B tensor.Backend] struct {
	name    string
	input   *Node[B]
	output  *Node[B]
	nodes   []*Node[B] // reachable nodes, construction order
	byName  map[string]*Node[B]
	backend B
}

// Finalize freezes the graph into a model. Nodes not reachable from the
// output are dropped; the input must be reachable.
func (g *Graph[B]) Finalize(name string, input, output *Node[B]) *Model[B] {
	reachable := make(map[*Node[B]]bool)
	var mark func(n *Node[B])
	mark = func(n *Node[B]) {
		if reachable[n] {
			return
		}
		reachable[n] = true
		for _, in := range n.inputs {
			mark(in)
		}
	}
	mark(output)
	if !reachable[input] {
		panic(fmt.Sprintf("graph: input %q is not reachable from output %q", input.name, output.name))
	}

	m := &Model[B]{
		name:    name,
		input:   input,
		output:  output,
		backend: g.backend,
		byName:  make(map[string]*Node[B]),
	}
	for _, n := range g.nodes {
		if !reachable[n] {
			continue
		}
		if _, dup := m.byName[n.name]; dup {
			panic(fmt.Sprintf("graph: duplicate node name %q", n.name))
		}
		m.nodes = append(m.nodes, n)
		m.byName[n.name] = n
	}
	return m
}

// Name returns the model name.
func (m *Model[B]) Name() string {
	return m.name
}

// Nodes returns the model's nodes in evaluation order.
func (m *Model[B]) Nodes() []*Node[B] {
	return m.nodes
}

// Node returns the named node, or nil if the model has no such node.
func (m *Model[B]) Node(name string) *Node[B] {
	return m.byName[name]
}

// OutputChannels returns the channel-axis size of the model output.
func (m *Model[B]) OutputChannels() int {
	return m.output.channels
}

// Forward evaluates the model on a single input tensor.
func (m *Model[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	values := make(map[*Node[B]]*tensor.Tensor[float32, B], len(m.nodes))
	for _, n := range m.nodes {
		if n == m.input {
			values[n] = n.op.forward([]*tensor.Tensor[float32, B]{x})
			continue
		}
		args := make([]*tensor.Tensor[float32, B], len(n.inputs))
		for i, in := range n.inputs {
			v, ok := values[in]
			if !ok {
				panic(fmt.Sprintf("graph: node %q evaluated before its input %q", n.name, in.name))
			}
			args[i] = v
		}
		values[n] = n.op.forward(args)
	}
	return values[m.output]
}

// NumParameters returns the total element count across all parameters.
func (m *Model[B]) NumParameters() int {
	total := 0
	for _, n := range m.nodes {
		for _, p := range n.op.parameters() {
			total += p.Tensor().NumElements()
		}
	}
	return total
}

// StateDict returns all parameters keyed by "<node>.<param>". The returned
// tensors alias model storage.
func (m *Model[B]) StateDict() map[string]*tensor.RawTensor {
	dict := make(map[string]*tensor.RawTensor)
	for _, n := range m.nodes {
		for _, p := range n.op.parameters() {
			dict[n.name+"."+p.Name()] = p.Tensor().Raw()
		}
	}
	return dict
}

// LoadStateDict copies matching entries of dict into the model's
// parameters and reports how many parameters matched. Matching follows
// layer names: a model parameter with no entry in dict keeps its current
// value, and dict entries naming no model parameter are ignored. A name
// match with an incompatible shape or dtype is an error.
func (m *Model[B]) LoadStateDict(dict map[string]*tensor.RawTensor) (int, error) {
	matched := 0
	for _, n := range m.nodes {
		for _, p := range n.op.parameters() {
			key := n.name + "." + p.Name()
			src, ok := dict[key]
			if !ok {
				continue
			}
			dst := p.Tensor().Raw()
			if !dst.Shape().Equal(src.Shape()) {
				return matched, fmt.Errorf("%w: %s: shape %v != %v",
					weights.ErrIncompatible, key, src.Shape(), dst.Shape())
			}
			if dst.DType() != src.DType() {
				return matched, fmt.Errorf("%w: %s: dtype %s != %s",
					weights.ErrIncompatible, key, src.DType(), dst.DType())
			}
			copy(dst.Data(), src.Data())
			matched++
		}
	}
	return matched, nil
}

// LoadWeights reads a weight file and loads it by name. A file that
// matches no parameter at all is rejected; partial matches load the
// parameters they name and leave the rest untouched.
func (m *Model[B]) LoadWeights(path string) error {
	dict, err := weights.Load(path)
	if err != nil {
		return err
	}
	matched, err := m.LoadStateDict(dict)
	if err != nil {
		return err
	}
	if matched == 0 {
		return fmt.Errorf("%w: %s matches no parameter of model %q", weights.ErrIncompatible, path, m.name)
	}
	return nil
}

// SaveWeights writes the model's parameters to a weight file.
func (m *Model[B]) SaveWeights(path string) error {
	return weights.Save(path, m.StateDict())
}
