// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package models

import (
	"github.com/voxel-ml/voxelnets/internal/graph"
	"github.com/voxel-ml/voxelnets/internal/nn"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// ConvBlockOpts configures one conv block. The zero value of Stride
// means 1; the zero value of Activation is ReLU, matching the block's
// usual configuration. Set Activation to nn.ActivationNone to skip the
// activation entirely.
type ConvBlockOpts struct {
	// Filters is the output channel count. Fractional values arise from
	// base-channel multipliers like 1.5 and 2.5 and are truncated.
	Filters float64

	Kernel     nn.Kernel
	Stride     int
	Padding    nn.Padding
	Activation nn.Activation

	// UseBias adds a convolution bias and suppresses the normalization
	// step: the two supply the same per-channel shift, and carrying both
	// would make the weights ambiguous.
	UseBias bool

	// Name prefixes the block's layers: the convolution gets Name, the
	// normalization Name+"_bn", the activation Name+"_ac". Empty picks
	// an auto-generated convolution name.
	Name string
}

// ConvBlock appends the convolution / normalization / activation
// triplet every architecture in this package is built from. The
// normalization runs without a learned scale, which the following
// activation makes redundant, and is skipped when batchNorm is false or
// the convolution carries a bias.
func ConvBlock[B tensor.Backend](g *graph.Graph[B], x *graph.Node[B], batchNorm bool, opts ConvBlockOpts) *graph.Node[B] {
	filters := int(opts.Filters)
	stride := opts.Stride
	if stride == 0 {
		stride = 1
	}
	name := opts.Name
	if name == "" {
		name = g.AutoName("conv3d")
	}

	conv := nn.NewConv3D(x.Channels(), filters, opts.Kernel, stride, opts.Padding, opts.UseBias, g.Backend())
	out := g.Apply(name, conv, x)

	if !opts.UseBias && batchNorm {
		bn := nn.NewBatchNorm3D(filters, false, 1e-3, g.Backend())
		out = g.Apply(name+"_bn", bn, out)
	}
	if opts.Activation != nn.ActivationNone {
		out = g.Apply(name+"_ac", nn.NewActivation(opts.Activation, g.Backend()), out)
	}
	return out
}
