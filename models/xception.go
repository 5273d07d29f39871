// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package models

import (
	"strconv"

	"github.com/voxel-ml/voxelnets/internal/graph"
	"github.com/voxel-ml/voxelnets/internal/nn"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// xceptionAssembler extends the shared assembler with the Xception
// layer vocabulary: bias-free convolutions and separable convolutions,
// each followed by a fully parameterized batch normalization.
type xceptionAssembler[B tensor.Backend] struct {
	assembler[B]
}

// convBN appends a bias-free convolution and its normalization. Unlike
// the inception conv block, Xception normalizations carry a learned
// scale and the activation is a separately named layer.
func (a *xceptionAssembler[B]) convBN(x *graph.Node[B], filters int, kernel nn.Kernel, stride int, padding nn.Padding, name string) *graph.Node[B] {
	if name == "" {
		name = a.g.AutoName("conv3d")
	}
	conv := nn.NewConv3D(x.Channels(), filters, kernel, stride, padding, false, a.g.Backend())
	out := a.g.Apply(name, conv, x)
	if a.batchNorm {
		bn := nn.NewBatchNorm3D(filters, true, 1e-3, a.g.Backend())
		out = a.g.Apply(name+"_bn", bn, out)
	}
	return out
}

// sep appends a stride-1 same-padded separable convolution and its
// normalization.
func (a *xceptionAssembler[B]) sep(x *graph.Node[B], filters int, name string) *graph.Node[B] {
	conv := nn.NewSeparableConv3D(x.Channels(), filters, nn.Cubic(3), 1, nn.PaddingSame, false, a.g.Backend())
	out := a.g.Apply(name, conv, x)
	if a.batchNorm {
		bn := nn.NewBatchNorm3D(filters, true, 1e-3, a.g.Backend())
		out = a.g.Apply(name+"_bn", bn, out)
	}
	return out
}

func (a *xceptionAssembler[B]) act(x *graph.Node[B], name string) *graph.Node[B] {
	return a.g.Apply(name, nn.NewActivation(nn.ActivationReLU, a.g.Backend()), x)
}

func (a *xceptionAssembler[B]) pool(x *graph.Node[B], name string) *graph.Node[B] {
	return a.maxPool(x, 3, 2, nn.PaddingSame, name)
}

// reduction appends one downsampling block: a strided 1x1x1 shortcut
// projection in parallel with two separable convolutions and a pool.
// Blocks after the first open with an activation; the entry block
// receives already-activated input.
func (a *xceptionAssembler[B]) reduction(x *graph.Node[B], width int, prefix string, openAct bool) *graph.Node[B] {
	residual := a.convBN(x, width, nn.Cubic(1), 2, nn.PaddingSame, "")
	if openAct {
		x = a.act(x, prefix+"_sepconv1_act")
	}
	x = a.sep(x, width, prefix+"_sepconv1")
	x = a.act(x, prefix+"_sepconv2_act")
	x = a.sep(x, width, prefix+"_sepconv2")
	x = a.pool(x, prefix+"_pool")
	return a.g.Add(a.g.AutoName("add"), x, residual)
}

// middleFlow appends the eight identity-residual blocks block5..block12,
// each three activated separable convolutions at constant width.
func (a *xceptionAssembler[B]) middleFlow(x *graph.Node[B], width int) *graph.Node[B] {
	for i := 5; i <= 12; i++ {
		residual := x
		prefix := "block" + strconv.Itoa(i)
		x = a.act(x, prefix+"_sepconv1_act")
		x = a.sep(x, width, prefix+"_sepconv1")
		x = a.act(x, prefix+"_sepconv2_act")
		x = a.sep(x, width, prefix+"_sepconv2")
		x = a.act(x, prefix+"_sepconv3_act")
		x = a.sep(x, width, prefix+"_sepconv3")
		x = a.g.Add(a.g.AutoName("add"), x, residual)
	}
	return x
}

// exitFlow appends block13 (the last downsampling block, with a
// narrowed first separable convolution) and block14 (two widening
// separable convolutions with post-activations).
func (a *xceptionAssembler[B]) exitFlow(x *graph.Node[B], residualW, sep1W, sep2W, final1W, final2W int) *graph.Node[B] {
	residual := a.convBN(x, residualW, nn.Cubic(1), 2, nn.PaddingSame, "")
	x = a.act(x, "block13_sepconv1_act")
	x = a.sep(x, sep1W, "block13_sepconv1")
	x = a.act(x, "block13_sepconv2_act")
	x = a.sep(x, sep2W, "block13_sepconv2")
	x = a.pool(x, "block13_pool")
	x = a.g.Add(a.g.AutoName("add"), x, residual)

	x = a.sep(x, final1W, "block14_sepconv1")
	x = a.act(x, "block14_sepconv1_act")
	x = a.sep(x, final2W, "block14_sepconv2")
	return a.act(x, "block14_sepconv2_act")
}

// Xception assembles the volumetric Xception network. The entry flow
// scales with the base channel; the deeper stages keep the canonical 2D
// widths (728, 1024, 1536, 2048). Input volumes must be at least 32
// cells per spatial axis.
func Xception[B tensor.Backend](cfg Config, backend B) (*graph.Model[B], error) {
	cfg = cfg.withDefaults(299)
	weightsPath, err := cfg.validate("xception", 32)
	if err != nil {
		return nil, err
	}

	g := graph.New(backend)
	input := g.Input("input", cfg.Channels, cfg.DataFormat, cfg.Caps)
	a := &xceptionAssembler[B]{assembler[B]{g: g, batchNorm: cfg.BatchNorm}}
	bc := cfg.BaseChannel

	x := a.convBN(input, bc, nn.Cubic(3), 2, nn.PaddingValid, "block1_conv1")
	x = a.act(x, "block1_conv1_act")
	x = a.convBN(x, 2*bc, nn.Cubic(3), 1, nn.PaddingValid, "block1_conv2")
	x = a.act(x, "block1_conv2_act")

	x = a.reduction(x, 4*bc, "block2", false)
	x = a.reduction(x, 8*bc, "block3", true)
	x = a.reduction(x, 728, "block4", true)
	x = a.middleFlow(x, 728)
	x = a.exitFlow(x, 1024, 728, 1024, 1536, 2048)
	x = a.head(x, cfg)

	model := g.Finalize("xception", input, x)
	if weightsPath != "" {
		if err := model.LoadWeights(weightsPath); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// CustomXception1 assembles the fully base-channel-scaled Xception
// variant: every stage width is a multiple of the base channel, with
// 3/2 and 3/4 factors standing in for the canonical 728 and 768 widths.
func CustomXception1[B tensor.Backend](cfg Config, backend B) (*graph.Model[B], error) {
	cfg = cfg.withDefaults(299)
	weightsPath, err := cfg.validate("xception_custom_1", 32)
	if err != nil {
		return nil, err
	}

	g := graph.New(backend)
	input := g.Input("input", cfg.Channels, cfg.DataFormat, cfg.Caps)
	a := &xceptionAssembler[B]{assembler[B]{g: g, batchNorm: cfg.BatchNorm}}
	bc := cfg.BaseChannel

	depth := 1
	x := a.convBN(input, depth*bc, nn.Cubic(3), 2, nn.PaddingValid, "block1_conv1")
	x = a.act(x, "block1_conv1_act")
	depth *= 2
	x = a.convBN(x, depth*bc, nn.Cubic(3), 1, nn.PaddingValid, "block1_conv2")
	x = a.act(x, "block1_conv2_act")

	depth *= 2
	x = a.reduction(x, depth*bc, "block2", false)
	depth *= 2
	x = a.reduction(x, depth*bc, "block3", true)
	depth *= 2
	x = a.reduction(x, depth*bc*3/2, "block4", true)
	x = a.middleFlow(x, depth*bc*3/2)
	depth *= 2
	sepW := depth * bc
	depth *= 2
	x = a.exitFlow(x, sepW, sepW*3/4, sepW, depth*bc*3/2, depth*bc)
	x = a.head(x, cfg)

	model := g.Finalize("xception_custom_1", input, x)
	if weightsPath != "" {
		if err := model.LoadWeights(weightsPath); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// CustomXception2 drops the second and third entry-flow stages: after
// the two opening convolutions the network reduces straight into the
// middle flow. Suited to inputs too small for the full downsampling
// chain.
func CustomXception2[B tensor.Backend](cfg Config, backend B) (*graph.Model[B], error) {
	cfg = cfg.withDefaults(299)
	weightsPath, err := cfg.validate("xception_custom_2", 32)
	if err != nil {
		return nil, err
	}

	g := graph.New(backend)
	input := g.Input("input", cfg.Channels, cfg.DataFormat, cfg.Caps)
	a := &xceptionAssembler[B]{assembler[B]{g: g, batchNorm: cfg.BatchNorm}}
	bc := cfg.BaseChannel

	depth := 1
	x := a.convBN(input, depth*bc, nn.Cubic(3), 2, nn.PaddingValid, "block1_conv1")
	x = a.act(x, "block1_conv1_act")
	depth *= 2
	x = a.convBN(x, depth*bc, nn.Cubic(3), 1, nn.PaddingValid, "block1_conv2")
	x = a.act(x, "block1_conv2_act")

	depth *= 2
	x = a.reduction(x, depth*bc*3/2, "block4", true)
	x = a.middleFlow(x, depth*bc*3/2)
	depth *= 2
	sepW := depth * bc
	depth *= 2
	x = a.exitFlow(x, sepW, sepW*3/4, sepW, depth*bc*3/2, depth*bc)
	x = a.head(x, cfg)

	model := g.Finalize("xception_custom_2", input, x)
	if weightsPath != "" {
		if err := model.LoadWeights(weightsPath); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// CustomXception3 drops the opening convolutions entirely: the first
// reduction block consumes the raw input. The shallowest variant,
// intended for the smallest volumes.
func CustomXception3[B tensor.Backend](cfg Config, backend B) (*graph.Model[B], error) {
	cfg = cfg.withDefaults(299)
	weightsPath, err := cfg.validate("xception_custom_3", 32)
	if err != nil {
		return nil, err
	}

	g := graph.New(backend)
	input := g.Input("input", cfg.Channels, cfg.DataFormat, cfg.Caps)
	a := &xceptionAssembler[B]{assembler[B]{g: g, batchNorm: cfg.BatchNorm}}
	bc := cfg.BaseChannel

	depth := 1
	x := a.reduction(input, depth*bc, "block2", false)
	depth *= 2
	x = a.reduction(x, depth*bc, "block3", true)
	depth *= 2
	x = a.reduction(x, depth*bc*3/2, "block4", true)
	x = a.middleFlow(x, depth*bc*3/2)
	depth *= 2
	sepW := depth * bc
	depth *= 2
	x = a.exitFlow(x, sepW, sepW*3/4, sepW, depth*bc*3/2, depth*bc)
	x = a.head(x, cfg)

	model := g.Finalize("xception_custom_3", input, x)
	if weightsPath != "" {
		if err := model.LoadWeights(weightsPath); err != nil {
			return nil, err
		}
	}
	return model, nil
}
