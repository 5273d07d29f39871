// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// SeparableConv3D factors a 3D convolution into a depthwise spatial
// convolution (one filter per input channel) followed by a pointwise
// 1x1x1 convolution that mixes channels. This is the workhorse of the
// Xception family.
//
// Depthwise kernel: [in_channels, 1, k_d, k_h, k_w]
// Pointwise kernel: [filters, in_channels, 1, 1, 1]
type SeparableConv3D[B tensor.Backend] struct {
	paramSet[B]

	inChannels int
	filters    int
	kernel     Kernel
	stride     int
	padding    Padding
	useBias    bool

	depthwise *Parameter[B]
	pointwise *Parameter[B]
	bias      *Parameter[B] // nil unless useBias

	backend B
}

// NewSeparableConv3D creates a separable 3D convolutional layer.
func NewSeparableConv3D[B tensor.Backend](inChannels, filters int, kernel Kernel, stride int, padding Padding, useBias bool, backend B) *SeparableConv3D[B] {
	if inChannels <= 0 || filters <= 0 {
		panic(fmt.Sprintf("separable_conv3d: invalid channels in=%d, filters=%d", inChannels, filters))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("separable_conv3d: invalid stride %d", stride))
	}

	dwShape := tensor.Shape{inChannels, 1, kernel[0], kernel[1], kernel[2]}
	pwShape := tensor.Shape{filters, inChannels, 1, 1, 1}

	depthwise := NewParameter("depthwise_kernel",
		GlorotUniform(kernel.Volume(), kernel.Volume(), dwShape, backend))
	pointwise := NewParameter("pointwise_kernel",
		GlorotUniform(inChannels, filters, pwShape, backend))

	s := &SeparableConv3D[B]{
		inChannels: inChannels,
		filters:    filters,
		kernel:     kernel,
		stride:     stride,
		padding:    padding,
		useBias:    useBias,
		depthwise:  depthwise,
		pointwise:  pointwise,
		backend:    backend,
	}
	s.params = []*Parameter[B]{depthwise, pointwise}

	if useBias {
		s.bias = NewParameter("bias", tensor.Zeros[float32](tensor.Shape{filters}, backend))
		s.params = append(s.params, s.bias)
	}
	return s
}

// Forward performs the depthwise then pointwise passes.
func (s *SeparableConv3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inShape := input.Shape()
	if len(inShape) != 5 {
		panic(fmt.Sprintf("separable_conv3d: expected 5D input [N,C,D,H,W], got %dD", len(inShape)))
	}
	if inShape[1] != s.inChannels {
		panic(fmt.Sprintf("separable_conv3d: input channels %d != expected %d", inShape[1], s.inChannels))
	}

	dims := [3]int{inShape[2], inShape[3], inShape[4]}
	stride := [3]int{s.stride, s.stride, s.stride}
	pad := s.padding.resolve(dims, [3]int(s.kernel), stride)

	mid := s.backend.DepthwiseConv3D(input.Raw(), s.depthwise.Tensor().Raw(), stride, pad)
	outRaw := s.backend.Conv3D(mid, s.pointwise.Tensor().Raw(), [3]int{1, 1, 1}, tensor.Pad3{})
	if s.useBias {
		outRaw = s.backend.ChannelAffine(outRaw, nil, s.bias.Tensor().Raw())
	}
	return tensor.New[float32, B](outRaw, s.backend)
}

// Filters returns the number of output channels.
func (s *SeparableConv3D[B]) Filters() int {
	return s.filters
}

// String returns a string representation of the layer.
func (s *SeparableConv3D[B]) String() string {
	return fmt.Sprintf("SeparableConv3D(in=%d, filters=%d, kernel=%s, stride=%d, padding=%s, bias=%v)",
		s.inChannels, s.filters, s.kernel, s.stride, s.padding, s.useBias)
}
