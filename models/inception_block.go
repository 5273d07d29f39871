// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package models

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/graph"
	"github.com/voxel-ml/voxelnets/internal/nn"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// BlockKind identifies one of the three Inception-ResNet residual block
// families. The set is closed; anything else is rejected with
// ErrUnknownBlockKind.
type BlockKind int

// The three block families, named after their spatial resolution in the
// reference network.
const (
	Block35 BlockKind = iota // Inception-ResNet-A
	Block17                  // Inception-ResNet-B
	Block8                   // Inception-ResNet-C
)

// String returns the block family name used in layer names.
func (k BlockKind) String() string {
	switch k {
	case Block35:
		return "block35"
	case Block17:
		return "block17"
	case Block8:
		return "block8"
	default:
		return fmt.Sprintf("BlockKind(%d)", int(k))
	}
}

// ResNetBlockOpts configures one Inception-ResNet residual block.
type ResNetBlockOpts struct {
	Kind  BlockKind
	Index int

	// Scale multiplies the residual branch before it is added to the
	// identity path: out = x + Scale*branch. The identity path is never
	// scaled.
	Scale float64

	// Activation terminates the block; nn.ActivationNone omits it, which
	// the final block of the reference network relies on.
	Activation nn.Activation

	BaseChannel int
	BatchNorm   bool
}

// InceptionResNetBlock appends one residual block: parallel branches,
// channel concatenation, a biased 1x1x1 projection back to the input
// width, and the scaled residual sum. Layer names share the
// "<kind>_<index>" prefix so repeated blocks load weights independently.
func InceptionResNetBlock[B tensor.Backend](g *graph.Graph[B], x *graph.Node[B], opts ResNetBlockOpts) (*graph.Node[B], error) {
	bc := float64(opts.BaseChannel)
	conv := func(in *graph.Node[B], filters float64, kernel nn.Kernel) *graph.Node[B] {
		return ConvBlock(g, in, opts.BatchNorm, ConvBlockOpts{
			Filters: filters,
			Kernel:  kernel,
			Padding: nn.PaddingSame,
		})
	}

	var branches []*graph.Node[B]
	switch opts.Kind {
	case Block35:
		b0 := conv(x, bc, nn.Cubic(1))
		b1 := conv(x, bc, nn.Cubic(1))
		b1 = conv(b1, bc, nn.Cubic(3))
		b2 := conv(x, bc, nn.Cubic(1))
		b2 = conv(b2, 1.5*bc, nn.Cubic(3))
		b2 = conv(b2, 2*bc, nn.Cubic(3))
		branches = []*graph.Node[B]{b0, b1, b2}
	case Block17:
		b0 := conv(x, 6*bc, nn.Cubic(1))
		b1 := conv(x, 4*bc, nn.Cubic(1))
		b1 = conv(b1, 5*bc, nn.Kernel{1, 1, 7})
		b1 = conv(b1, 6*bc, nn.Kernel{1, 7, 1})
		b1 = conv(b1, 6*bc, nn.Kernel{7, 1, 1})
		branches = []*graph.Node[B]{b0, b1}
	case Block8:
		b0 := conv(x, 6*bc, nn.Cubic(1))
		b1 := conv(x, 6*bc, nn.Cubic(1))
		b1 = conv(b1, 7*bc, nn.Kernel{1, 1, 3})
		b1 = conv(b1, 8*bc, nn.Kernel{1, 3, 1})
		b1 = conv(b1, 8*bc, nn.Kernel{3, 1, 1})
		branches = []*graph.Node[B]{b0, b1}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownBlockKind, opts.Kind)
	}

	blockName := fmt.Sprintf("%s_%d", opts.Kind, opts.Index)
	mixed := g.Concat(blockName+"_mixed", branches...)

	// Project the concatenation back to the input width. The projection
	// carries a bias and no normalization so the residual sum is exact.
	up := ConvBlock(g, mixed, opts.BatchNorm, ConvBlockOpts{
		Filters:    float64(x.Channels()),
		Kernel:     nn.Cubic(1),
		Padding:    nn.PaddingSame,
		Activation: nn.ActivationNone,
		UseBias:    true,
		Name:       blockName + "_conv",
	})

	out := g.ScaledAdd(blockName, x, up, opts.Scale)
	if opts.Activation != nn.ActivationNone {
		out = g.Apply(blockName+"_ac", nn.NewActivation(opts.Activation, g.Backend()), out)
	}
	return out, nil
}
