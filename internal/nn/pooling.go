// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// MaxPool3D is a 3D max pooling layer. It has no parameters.
type MaxPool3D[B tensor.Backend] struct {
	paramSet[B]
	kernelSize int
	stride     int
	padding    Padding
	backend    B
}

// NewMaxPool3D creates a max pooling layer with a cubic window.
func NewMaxPool3D[B tensor.Backend](kernelSize, stride int, padding Padding, backend B) *MaxPool3D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool3d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool3d: invalid stride %d", stride))
	}
	return &MaxPool3D[B]{kernelSize: kernelSize, stride: stride, padding: padding, backend: backend}
}

// Forward performs the forward pass.
func (m *MaxPool3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inShape := input.Shape()
	if len(inShape) != 5 {
		panic(fmt.Sprintf("maxpool3d: expected 5D input [N,C,D,H,W], got %dD", len(inShape)))
	}
	dims := [3]int{inShape[2], inShape[3], inShape[4]}
	window := [3]int{m.kernelSize, m.kernelSize, m.kernelSize}
	stride := [3]int{m.stride, m.stride, m.stride}
	pad := m.padding.resolve(dims, window, stride)

	return tensor.New[float32, B](m.backend.MaxPool3D(input.Raw(), window, stride, pad), m.backend)
}

// String returns a string representation of the layer.
func (m *MaxPool3D[B]) String() string {
	return fmt.Sprintf("MaxPool3D(kernel=%d, stride=%d, padding=%s)", m.kernelSize, m.stride, m.padding)
}

// AvgPool3D is a 3D average pooling layer. Padding cells are excluded from
// the average. It has no parameters.
type AvgPool3D[B tensor.Backend] struct {
	paramSet[B]
	kernelSize int
	stride     int
	padding    Padding
	backend    B
}

// NewAvgPool3D creates an average pooling layer with a cubic window.
func NewAvgPool3D[B tensor.Backend](kernelSize, stride int, padding Padding, backend B) *AvgPool3D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("avgpool3d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("avgpool3d: invalid stride %d", stride))
	}
	return &AvgPool3D[B]{kernelSize: kernelSize, stride: stride, padding: padding, backend: backend}
}

// Forward performs the forward pass.
func (a *AvgPool3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inShape := input.Shape()
	if len(inShape) != 5 {
		panic(fmt.Sprintf("avgpool3d: expected 5D input [N,C,D,H,W], got %dD", len(inShape)))
	}
	dims := [3]int{inShape[2], inShape[3], inShape[4]}
	window := [3]int{a.kernelSize, a.kernelSize, a.kernelSize}
	stride := [3]int{a.stride, a.stride, a.stride}
	pad := a.padding.resolve(dims, window, stride)

	return tensor.New[float32, B](a.backend.AvgPool3D(input.Raw(), window, stride, pad), a.backend)
}

// String returns a string representation of the layer.
func (a *AvgPool3D[B]) String() string {
	return fmt.Sprintf("AvgPool3D(kernel=%d, stride=%d, padding=%s)", a.kernelSize, a.stride, a.padding)
}

// GlobalAvgPool3D collapses each channel to its mean:
// [N, C, D, H, W] -> [N, C].
type GlobalAvgPool3D[B tensor.Backend] struct {
	paramSet[B]
	backend B
}

// NewGlobalAvgPool3D creates a global average pooling layer.
func NewGlobalAvgPool3D[B tensor.Backend](backend B) *GlobalAvgPool3D[B] {
	return &GlobalAvgPool3D[B]{backend: backend}
}

// Forward performs the forward pass.
func (g *GlobalAvgPool3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](g.backend.GlobalAvgPool3D(input.Raw()), g.backend)
}

// String returns a string representation of the layer.
func (g *GlobalAvgPool3D[B]) String() string {
	return "GlobalAvgPool3D"
}

// GlobalMaxPool3D collapses each channel to its maximum:
// [N, C, D, H, W] -> [N, C].
type GlobalMaxPool3D[B tensor.Backend] struct {
	paramSet[B]
	backend B
}

// NewGlobalMaxPool3D creates a global max pooling layer.
func NewGlobalMaxPool3D[B tensor.Backend](backend B) *GlobalMaxPool3D[B] {
	return &GlobalMaxPool3D[B]{backend: backend}
}

// Forward performs the forward pass.
func (g *GlobalMaxPool3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](g.backend.GlobalMaxPool3D(input.Raw()), g.backend)
}

// String returns a string representation of the layer.
func (g *GlobalMaxPool3D[B]) String() string {
	return "GlobalMaxPool3D"
}
