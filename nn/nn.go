// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for the volumetric neural network
// layers used by the voxelnets architectures.
package nn

import (
	"github.com/voxel-ml/voxelnets/internal/nn"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// Module is the common interface of all layers.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named, loadable tensor owned by a layer.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Kernel is a [depth, height, width] convolution window.
type Kernel = nn.Kernel

// Cubic returns the kernel {k, k, k}.
func Cubic(k int) Kernel {
	return nn.Cubic(k)
}

// Padding selects the convolution padding policy.
type Padding = nn.Padding

// Padding policies.
const (
	PaddingValid Padding = nn.PaddingValid
	PaddingSame  Padding = nn.PaddingSame
)

// ErrUnknownPadding reports an unrecognized padding name.
var ErrUnknownPadding = nn.ErrUnknownPadding

// ParsePadding converts "valid" or "same" into a Padding.
func ParsePadding(s string) (Padding, error) {
	return nn.ParsePadding(s)
}

// Activation names a pointwise nonlinearity.
type Activation = nn.Activation

// Recognized activations.
const (
	ActivationReLU    Activation = nn.ActivationReLU
	ActivationSoftmax Activation = nn.ActivationSoftmax
	ActivationLinear  Activation = nn.ActivationLinear
	ActivationNone    Activation = nn.ActivationNone
)

// Layers

// Conv3D is a 3D convolutional layer.
type Conv3D[B tensor.Backend] = nn.Conv3D[B]

// NewConv3D creates a 3D convolutional layer with Glorot initialization.
func NewConv3D[B tensor.Backend](inChannels, filters int, kernel Kernel, stride int, padding Padding, useBias bool, backend B) *Conv3D[B] {
	return nn.NewConv3D(inChannels, filters, kernel, stride, padding, useBias, backend)
}

// SeparableConv3D is a depthwise-separable 3D convolutional layer.
type SeparableConv3D[B tensor.Backend] = nn.SeparableConv3D[B]

// NewSeparableConv3D creates a separable 3D convolutional layer.
func NewSeparableConv3D[B tensor.Backend](inChannels, filters int, kernel Kernel, stride int, padding Padding, useBias bool, backend B) *SeparableConv3D[B] {
	return nn.NewSeparableConv3D(inChannels, filters, kernel, stride, padding, useBias, backend)
}

// BatchNorm3D applies inference-mode batch normalization over the
// channel axis.
type BatchNorm3D[B tensor.Backend] = nn.BatchNorm3D[B]

// NewBatchNorm3D creates a batch normalization layer.
func NewBatchNorm3D[B tensor.Backend](channels int, scale bool, epsilon float32, backend B) *BatchNorm3D[B] {
	return nn.NewBatchNorm3D(channels, scale, epsilon, backend)
}

// ActivationLayer applies a named nonlinearity.
type ActivationLayer[B tensor.Backend] = nn.ActivationLayer[B]

// NewActivation creates an activation layer.
func NewActivation[B tensor.Backend](kind Activation, backend B) *ActivationLayer[B] {
	return nn.NewActivation(kind, backend)
}

// MaxPool3D is a 3D max pooling layer.
type MaxPool3D[B tensor.Backend] = nn.MaxPool3D[B]

// NewMaxPool3D creates a max pooling layer with a cubic window.
func NewMaxPool3D[B tensor.Backend](kernelSize, stride int, padding Padding, backend B) *MaxPool3D[B] {
	return nn.NewMaxPool3D(kernelSize, stride, padding, backend)
}

// AvgPool3D is a 3D average pooling layer that excludes padding from
// the average.
type AvgPool3D[B tensor.Backend] = nn.AvgPool3D[B]

// NewAvgPool3D creates an average pooling layer with a cubic window.
func NewAvgPool3D[B tensor.Backend](kernelSize, stride int, padding Padding, backend B) *AvgPool3D[B] {
	return nn.NewAvgPool3D(kernelSize, stride, padding, backend)
}

// GlobalAvgPool3D collapses each channel to its mean.
type GlobalAvgPool3D[B tensor.Backend] = nn.GlobalAvgPool3D[B]

// NewGlobalAvgPool3D creates a global average pooling layer.
func NewGlobalAvgPool3D[B tensor.Backend](backend B) *GlobalAvgPool3D[B] {
	return nn.NewGlobalAvgPool3D(backend)
}

// GlobalMaxPool3D collapses each channel to its maximum.
type GlobalMaxPool3D[B tensor.Backend] = nn.GlobalMaxPool3D[B]

// NewGlobalMaxPool3D creates a global max pooling layer.
func NewGlobalMaxPool3D[B tensor.Backend](backend B) *GlobalMaxPool3D[B] {
	return nn.NewGlobalMaxPool3D(backend)
}

// Dense is a fully connected layer.
type Dense[B tensor.Backend] = nn.Dense[B]

// NewDense creates a fully connected layer with Glorot initialization.
func NewDense[B tensor.Backend](inFeatures, units int, activation Activation, backend B) *Dense[B] {
	return nn.NewDense(inFeatures, units, activation, backend)
}

// GlorotUniform samples an initialization tensor for the given fan-in
// and fan-out.
func GlorotUniform[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.GlorotUniform(fanIn, fanOut, shape, backend)
}
