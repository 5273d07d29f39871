// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package models assembles volumetric convolutional network
// architectures: Inception-ResNet-V2 and the Xception family, extended
// from planar images to 3D volumes. Every filter count scales with a
// configurable base channel so the networks stay tractable on volumetric
// data, where the canonical 2D widths are rarely affordable.
package models

import (
	"github.com/voxel-ml/voxelnets/internal/graph"
	"github.com/voxel-ml/voxelnets/internal/nn"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// InceptionResNetV2 assembles the full Inception-ResNet-V2 network for
// volumetric input: stem, mixed_5b, ten block35 units, mixed_6a, twenty
// block17 units, mixed_7a, ten block8 units and the conv_7b projection,
// topped per the configuration. Input volumes must be at least 75 cells
// per spatial axis.
func InceptionResNetV2[B tensor.Backend](cfg Config, backend B) (*graph.Model[B], error) {
	cfg = cfg.withDefaults(299)
	weightsPath, err := cfg.validate("inception_resnet_v2", 75)
	if err != nil {
		return nil, err
	}

	g := graph.New(backend)
	input := g.Input("input", cfg.Channels, cfg.DataFormat, cfg.Caps)
	a := &assembler[B]{g: g, batchNorm: cfg.BatchNorm}
	bc := float64(cfg.BaseChannel)

	// Stem
	x := a.conv(input, bc, nn.Cubic(3), 2, nn.PaddingValid)
	x = a.conv(x, bc, nn.Cubic(3), 1, nn.PaddingValid)
	x = a.conv(x, 2*bc, nn.Cubic(3), 1, nn.PaddingSame)
	x = a.maxPool(x, 3, 2, nn.PaddingValid, "")
	x = a.conv(x, 2.5*bc, nn.Cubic(1), 1, nn.PaddingValid)
	x = a.conv(x, 6*bc, nn.Cubic(3), 1, nn.PaddingValid)
	x = a.maxPool(x, 3, 2, nn.PaddingValid, "")

	x, err = inceptionResNetCore(a, x, cfg)
	if err != nil {
		return nil, err
	}
	x = a.head(x, cfg)

	model := g.Finalize("inception_resnet_v2", input, x)
	if weightsPath != "" {
		if err := model.LoadWeights(weightsPath); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// CustomInceptionResNetV2 assembles the stem-free variant for smaller
// volumes (minimum 40 cells per axis). When headConv is true a reduced
// head of two conv blocks and a max pool precedes the inception core;
// otherwise the core consumes the input directly.
func CustomInceptionResNetV2[B tensor.Backend](cfg Config, headConv bool, backend B) (*graph.Model[B], error) {
	cfg = cfg.withDefaults(299)
	weightsPath, err := cfg.validate("inception_resnet_v2_custom", 40)
	if err != nil {
		return nil, err
	}

	g := graph.New(backend)
	input := g.Input("input", cfg.Channels, cfg.DataFormat, cfg.Caps)
	a := &assembler[B]{g: g, batchNorm: cfg.BatchNorm}
	bc := float64(cfg.BaseChannel)

	x := input
	if headConv {
		x = a.conv(x, 2.5*bc, nn.Cubic(1), 1, nn.PaddingValid)
		x = a.conv(x, 6*bc, nn.Cubic(3), 1, nn.PaddingValid)
		x = a.maxPool(x, 3, 2, nn.PaddingValid, "")
	}

	x, err = inceptionResNetCore(a, x, cfg)
	if err != nil {
		return nil, err
	}
	x = a.head(x, cfg)

	model := g.Finalize("inception_resnet_v2_custom", input, x)
	if weightsPath != "" {
		if err := model.LoadWeights(weightsPath); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// inceptionResNetCore appends everything between the stem and the head:
// the mixed_5b inception block, the three residual stages with their
// reduction blocks, and the conv_7b projection.
func inceptionResNetCore[B tensor.Backend](a *assembler[B], x *graph.Node[B], cfg Config) (*graph.Node[B], error) {
	g := a.g
	bc := float64(cfg.BaseChannel)

	// Mixed 5b (Inception-A)
	b0 := a.conv(x, 3*bc, nn.Cubic(1), 1, nn.PaddingSame)
	b1 := a.conv(x, 1.5*bc, nn.Cubic(1), 1, nn.PaddingSame)
	b1 = a.conv(b1, 2*bc, nn.Cubic(5), 1, nn.PaddingSame)
	b2 := a.conv(x, 2*bc, nn.Cubic(1), 1, nn.PaddingSame)
	b2 = a.conv(b2, 3*bc, nn.Cubic(3), 1, nn.PaddingSame)
	b2 = a.conv(b2, 3*bc, nn.Cubic(3), 1, nn.PaddingSame)
	bp := a.avgPool(x, 3, 1, nn.PaddingSame, "")
	bp = a.conv(bp, 2*bc, nn.Cubic(1), 1, nn.PaddingSame)
	x = g.Concat("mixed_5b", b0, b1, b2, bp)

	// 10x block35 (Inception-ResNet-A)
	var err error
	for idx := 1; idx <= 10; idx++ {
		x, err = InceptionResNetBlock(g, x, ResNetBlockOpts{
			Kind:        Block35,
			Index:       idx,
			Scale:       0.17,
			BaseChannel: cfg.BaseChannel,
			BatchNorm:   cfg.BatchNorm,
		})
		if err != nil {
			return nil, err
		}
	}

	// Mixed 6a (Reduction-A)
	b0 = a.conv(x, 12*bc, nn.Cubic(3), 2, nn.PaddingValid)
	b1 = a.conv(x, 8*bc, nn.Cubic(1), 1, nn.PaddingSame)
	b1 = a.conv(b1, 8*bc, nn.Cubic(3), 1, nn.PaddingSame)
	b1 = a.conv(b1, 12*bc, nn.Cubic(3), 2, nn.PaddingValid)
	bp = a.maxPool(x, 3, 2, nn.PaddingValid, "")
	x = g.Concat("mixed_6a", b0, b1, bp)

	// 20x block17 (Inception-ResNet-B)
	for idx := 1; idx <= 20; idx++ {
		x, err = InceptionResNetBlock(g, x, ResNetBlockOpts{
			Kind:        Block17,
			Index:       idx,
			Scale:       0.1,
			BaseChannel: cfg.BaseChannel,
			BatchNorm:   cfg.BatchNorm,
		})
		if err != nil {
			return nil, err
		}
	}

	// Mixed 7a (Reduction-B)
	b0 = a.conv(x, 8*bc, nn.Cubic(1), 1, nn.PaddingSame)
	b0 = a.conv(b0, 12*bc, nn.Cubic(3), 2, nn.PaddingValid)
	b1 = a.conv(x, 8*bc, nn.Cubic(1), 1, nn.PaddingSame)
	b1 = a.conv(b1, 9*bc, nn.Cubic(3), 2, nn.PaddingValid)
	b2 = a.conv(x, 8*bc, nn.Cubic(1), 1, nn.PaddingSame)
	b2 = a.conv(b2, 9*bc, nn.Cubic(3), 1, nn.PaddingSame)
	b2 = a.conv(b2, 10*bc, nn.Cubic(3), 2, nn.PaddingValid)
	bp = a.maxPool(x, 3, 2, nn.PaddingValid, "")
	x = g.Concat("mixed_7a", b0, b1, b2, bp)

	// 10x block8 (Inception-ResNet-C); the last runs unscaled with no
	// terminal activation.
	for idx := 1; idx <= 9; idx++ {
		x, err = InceptionResNetBlock(g, x, ResNetBlockOpts{
			Kind:        Block8,
			Index:       idx,
			Scale:       0.2,
			BaseChannel: cfg.BaseChannel,
			BatchNorm:   cfg.BatchNorm,
		})
		if err != nil {
			return nil, err
		}
	}
	x, err = InceptionResNetBlock(g, x, ResNetBlockOpts{
		Kind:        Block8,
		Index:       10,
		Scale:       1,
		Activation:  nn.ActivationNone,
		BaseChannel: cfg.BaseChannel,
		BatchNorm:   cfg.BatchNorm,
	})
	if err != nil {
		return nil, err
	}

	return ConvBlock(g, x, cfg.BatchNorm, ConvBlockOpts{
		Filters: 48 * bc,
		Kernel:  nn.Cubic(1),
		Padding: nn.PaddingSame,
		Name:    "conv_7b",
	}), nil
}
