// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package models

import (
	"github.com/voxel-ml/voxelnets/internal/graph"
	"github.com/voxel-ml/voxelnets/internal/nn"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// assembler bundles the graph and the options every layer of one model
// shares. It keeps the architecture definitions close to straight
// transcriptions of the network tables.
type assembler[B tensor.Backend] struct {
	g         *graph.Graph[B]
	batchNorm bool
}

// conv appends an auto-named conv block with ReLU activation.
func (a *assembler[B]) conv(x *graph.Node[B], filters float64, kernel nn.Kernel, stride int, padding nn.Padding) *graph.Node[B] {
	return ConvBlock(a.g, x, a.batchNorm, ConvBlockOpts{
		Filters: filters,
		Kernel:  kernel,
		Stride:  stride,
		Padding: padding,
	})
}

func (a *assembler[B]) maxPool(x *graph.Node[B], kernel, stride int, padding nn.Padding, name string) *graph.Node[B] {
	if name == "" {
		name = a.g.AutoName("max_pooling3d")
	}
	return a.g.Apply(name, nn.NewMaxPool3D(kernel, stride, padding, a.g.Backend()), x)
}

func (a *assembler[B]) avgPool(x *graph.Node[B], kernel, stride int, padding nn.Padding, name string) *graph.Node[B] {
	if name == "" {
		name = a.g.AutoName("average_pooling3d")
	}
	return a.g.Apply(name, nn.NewAvgPool3D(kernel, stride, padding, a.g.Backend()), x)
}

// head appends the classification or feature-extraction top. With
// IncludeTop the output is [N, classes] softmax scores; otherwise the
// configured pooling decides between pooled features and the raw
// volumetric feature map.
func (a *assembler[B]) head(x *graph.Node[B], cfg Config) *graph.Node[B] {
	backend := a.g.Backend()
	if cfg.IncludeTop {
		x = a.g.Apply("avg_pool", nn.NewGlobalAvgPool3D(backend), x)
		return a.g.Apply("predictions",
			nn.NewDense(x.Channels(), cfg.Classes, nn.ActivationSoftmax, backend), x)
	}
	switch cfg.Pooling {
	case PoolingAvg:
		return a.g.Apply(a.g.AutoName("global_average_pooling3d"), nn.NewGlobalAvgPool3D(backend), x)
	case PoolingMax:
		return a.g.Apply(a.g.AutoName("global_max_pooling3d"), nn.NewGlobalMaxPool3D(backend), x)
	default:
		return x
	}
}
