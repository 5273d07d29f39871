// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// Conv3D is a 3D convolutional layer.
//
// Input shape:  [batch, in_channels, depth, height, width]
// Kernel shape: [filters, in_channels, k_d, k_h, k_w]
// Output shape: [batch, filters, d_out, h_out, w_out]
//
// Kernels may be cubic or asymmetric; padding is same or valid. The bias
// is optional because conv blocks normally follow the convolution with a
// normalization step that supplies the shift instead.
type Conv3D[B tensor.Backend] struct {
	paramSet[B]

	inChannels int
	filters    int
	kernel     Kernel
	stride     int
	padding    Padding
	useBias    bool

	weight *Parameter[B]
	bias   *Parameter[B] // nil unless useBias

	backend B
}

// NewConv3D creates a 3D convolutional layer with Glorot initialization.
func NewConv3D[B tensor.Backend](inChannels, filters int, kernel Kernel, stride int, padding Padding, useBias bool, backend B) *Conv3D[B] {
	if inChannels <= 0 || filters <= 0 {
		panic(fmt.Sprintf("conv3d: invalid channels in=%d, filters=%d", inChannels, filters))
	}
	if kernel[0] <= 0 || kernel[1] <= 0 || kernel[2] <= 0 {
		panic(fmt.Sprintf("conv3d: invalid kernel size %v", kernel))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv3d: invalid stride %d", stride))
	}

	weightShape := tensor.Shape{filters, inChannels, kernel[0], kernel[1], kernel[2]}
	fanIn := inChannels * kernel.Volume()
	fanOut := filters * kernel.Volume()
	weight := NewParameter("kernel", GlorotUniform(fanIn, fanOut, weightShape, backend))

	c := &Conv3D[B]{
		inChannels: inChannels,
		filters:    filters,
		kernel:     kernel,
		stride:     stride,
		padding:    padding,
		useBias:    useBias,
		weight:     weight,
		backend:    backend,
	}
	c.params = []*Parameter[B]{weight}

	if useBias {
		c.bias = NewParameter("bias", tensor.Zeros[float32](tensor.Shape{filters}, backend))
		c.params = append(c.params, c.bias)
	}
	return c
}

// Forward performs the forward pass.
func (c *Conv3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inShape := input.Shape()
	if len(inShape) != 5 {
		panic(fmt.Sprintf("conv3d: expected 5D input [N,C,D,H,W], got %dD", len(inShape)))
	}
	if inShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv3d: input channels %d != expected %d", inShape[1], c.inChannels))
	}

	dims := [3]int{inShape[2], inShape[3], inShape[4]}
	stride := [3]int{c.stride, c.stride, c.stride}
	pad := c.padding.resolve(dims, [3]int(c.kernel), stride)

	outRaw := c.backend.Conv3D(input.Raw(), c.weight.Tensor().Raw(), stride, pad)
	if c.useBias {
		outRaw = c.backend.ChannelAffine(outRaw, nil, c.bias.Tensor().Raw())
	}
	return tensor.New[float32, B](outRaw, c.backend)
}

// Filters returns the number of output channels.
func (c *Conv3D[B]) Filters() int {
	return c.filters
}

// InChannels returns the number of input channels.
func (c *Conv3D[B]) InChannels() int {
	return c.inChannels
}

// HasBias reports whether the layer applies a learned bias.
func (c *Conv3D[B]) HasBias() bool {
	return c.useBias
}

// String returns a string representation of the layer.
func (c *Conv3D[B]) String() string {
	return fmt.Sprintf("Conv3D(in=%d, filters=%d, kernel=%s, stride=%d, padding=%s, bias=%v)",
		c.inChannels, c.filters, c.kernel, c.stride, c.padding, c.useBias)
}
