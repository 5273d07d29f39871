// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph builds and evaluates the static computation graphs that
// voxelnets architectures assemble. Construction is a straight-line pass:
// each assembler call appends one node to the graph; no branching happens
// after construction.
package graph

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/layout"
	"github.com/voxel-ml/voxelnets/internal/nn"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// Node is one operation in a computation graph. Nodes are created through
// a Graph and are immutable once appended.
type Node[B tensor.Backend] struct {
	name     string
	op       op[B]
	inputs   []*Node[B]
	channels int
}

// Name returns the node's unique name within its graph.
func (n *Node[B]) Name() string {
	return n.name
}

// Channels returns the channel-axis size of the node's output.
func (n *Node[B]) Channels() int {
	return n.channels
}

// Op returns a short description of the node's operation.
func (n *Node[B]) Op() string {
	return n.op.describe()
}

// Inputs returns the node's input nodes.
func (n *Node[B]) Inputs() []*Node[B] {
	return n.inputs
}

// op is the internal operation contract. Multi-input operations (concat,
// residual add) live here; single-input layers are wrapped nn.Modules.
type op[B tensor.Backend] interface {
	forward(inputs []*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	parameters() []*nn.Parameter[B]
	describe() string
}

// Graph accumulates nodes during model assembly. It replaces process-wide
// naming state with an explicit, injected context: name counters are per
// graph, so concurrent constructions of different graphs never collide.
type Graph[B tensor.Backend] struct {
	backend  B
	counters map[string]int
	nodes    []*Node[B]
}

// New creates an empty graph over the given backend.
func New[B tensor.Backend](backend B) *Graph[B] {
	return &Graph[B]{
		backend:  backend,
		counters: make(map[string]int),
	}
}

// Backend returns the graph's compute backend.
func (g *Graph[B]) Backend() B {
	return g.backend
}

// AutoName returns "<prefix>_<n>" with a counter unique to this graph.
// Assemblers use it for layers the naming scheme leaves anonymous.
func (g *Graph[B]) AutoName(prefix string) string {
	g.counters[prefix]++
	return fmt.Sprintf("%s_%d", prefix, g.counters[prefix])
}

// name returns explicit if non-empty, otherwise an auto-generated name.
func (g *Graph[B]) name(prefix, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return g.AutoName(prefix)
}

func (g *Graph[B]) append(n *Node[B]) *Node[B] {
	g.nodes = append(g.nodes, n)
	return n
}

// Input appends a placeholder node fed by the caller at evaluation time.
// The declared data format is normalized to the backend's native layout
// before any convolution sees the tensor, and float64 data is downcast
// when the backend lacks a high-precision convolution path.
func (g *Graph[B]) Input(name string, channels int, declared layout.DataFormat, caps layout.Caps) *Node[B] {
	return g.append(&Node[B]{
		name:     g.name("input", name),
		op:       &inputOp[B]{backend: g.backend, declared: declared, caps: caps},
		channels: channels,
	})
}

// Apply appends a single-input layer. The output channel count is taken
// from the layer when it changes channels (convolutions, dense) and
// inherited from the input otherwise.
func (g *Graph[B]) Apply(name string, module nn.Module[B], input *Node[B]) *Node[B] {
	channels := input.channels
	switch l := any(module).(type) {
	case interface{ Filters() int }:
		channels = l.Filters()
	case interface{ Units() int }:
		channels = l.Units()
	}
	return g.append(&Node[B]{
		name:     g.name("layer", name),
		op:       &moduleOp[B]{module: module},
		inputs:   []*Node[B]{input},
		channels: channels,
	})
}

// Concat appends a node concatenating its inputs along the channel axis.
// Inputs must agree on spatial dimensions; block assembly guarantees this
// by construction.
func (g *Graph[B]) Concat(name string, inputs ...*Node[B]) *Node[B] {
	if len(inputs) < 2 {
		panic("graph: concat needs at least two inputs")
	}
	channels := 0
	for _, in := range inputs {
		channels += in.channels
	}
	return g.append(&Node[B]{
		name:     g.name("concat", name),
		op:       &concatOp[B]{dim: 1},
		inputs:   inputs,
		channels: channels,
	})
}

// Add appends an element-wise addition of two same-shaped nodes.
func (g *Graph[B]) Add(name string, a, b *Node[B]) *Node[B] {
	return g.append(&Node[B]{
		name:     g.name("add", name),
		op:       &scaledAddOp[B]{scale: 1},
		inputs:   []*Node[B]{a, b},
		channels: a.channels,
	})
}

// ScaledAdd appends the residual combination x + scale*branch. The scale
// applies to the branch only, never to the identity path.
func (g *Graph[B]) ScaledAdd(name string, x, branch *Node[B], scale float64) *Node[B] {
	return g.append(&Node[B]{
		name:     g.name("residual", name),
		op:       &scaledAddOp[B]{scale: scale},
		inputs:   []*Node[B]{x, branch},
		channels: x.channels,
	})
}

type inputOp[B tensor.Backend] struct {
	backend  B
	declared layout.DataFormat
	caps     layout.Caps
}

func (o *inputOp[B]) forward(inputs []*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := inputs[0]
	raw, _, err := layout.NormalizeConvInput(o.backend, x.Raw(), o.declared, o.caps)
	if err != nil {
		panic(err) // the declared format was validated at assembly time
	}
	return tensor.New[float32, B](raw, o.backend)
}

func (o *inputOp[B]) parameters() []*nn.Parameter[B] { return nil }

func (o *inputOp[B]) describe() string {
	return fmt.Sprintf("Input(%s)", o.declared)
}

type moduleOp[B tensor.Backend] struct {
	module nn.Module[B]
}

func (o *moduleOp[B]) forward(inputs []*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return o.module.Forward(inputs[0])
}

func (o *moduleOp[B]) parameters() []*nn.Parameter[B] {
	return o.module.Parameters()
}

func (o *moduleOp[B]) describe() string {
	if s, ok := o.module.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", o.module)
}

type concatOp[B tensor.Backend] struct {
	dim int
}

func (o *concatOp[B]) forward(inputs []*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.Cat(inputs, o.dim)
}

func (o *concatOp[B]) parameters() []*nn.Parameter[B] { return nil }

func (o *concatOp[B]) describe() string {
	return fmt.Sprintf("Concat(dim=%d)", o.dim)
}

type scaledAddOp[B tensor.Backend] struct {
	scale float64
}

func (o *scaledAddOp[B]) forward(inputs []*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x, branch := inputs[0], inputs[1]
	if o.scale == 1 {
		return x.Add(branch)
	}
	return x.Add(branch.MulScalar(o.scale))
}

func (o *scaledAddOp[B]) parameters() []*nn.Parameter[B] { return nil }

func (o *scaledAddOp[B]) describe() string {
	if o.scale == 1 {
		return "Add"
	}
	return fmt.Sprintf("Add(scale=%g)", o.scale)
}
