// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

// Pad3 holds the (before, after) zero padding for each spatial dimension
// of a volumetric tensor, ordered depth, height, width. Same-style padding
// can be asymmetric, so both sides are kept.
type Pad3 [3][2]int

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations; layers and
// graph nodes only describe what to compute.
//
// Tensors flow through backends in channels-first layout [N, C, D, H, W].
// The layout package converts channels-last inputs before they reach a
// convolution primitive.
type Backend interface {
	// Element-wise binary operations. Shapes must match exactly; blocks
	// are assembled so operands always agree.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar float64) *RawTensor
	AddScalar(x *RawTensor, scalar float64) *RawTensor

	// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Volumetric convolution primitives.
	// Conv3D: input [N, C_in, D, H, W], kernel [C_out, C_in, KD, KH, KW].
	// DepthwiseConv3D: kernel [C, 1, KD, KH, KW], one filter per channel.
	Conv3D(input, kernel *RawTensor, stride [3]int, pad Pad3) *RawTensor
	DepthwiseConv3D(input, kernel *RawTensor, stride [3]int, pad Pad3) *RawTensor

	// Volumetric pooling. AvgPool3D averages over the cells of the window
	// that fall inside the input, never over padding.
	MaxPool3D(input *RawTensor, kernel, stride [3]int, pad Pad3) *RawTensor
	AvgPool3D(input *RawTensor, kernel, stride [3]int, pad Pad3) *RawTensor
	GlobalAvgPool3D(input *RawTensor) *RawTensor
	GlobalMaxPool3D(input *RawTensor) *RawTensor

	// ChannelAffine applies y[n,c,...] = x[n,c,...]*scale[c] + shift[c].
	// scale may be nil (treated as ones); shift may be nil (zeros).
	ChannelAffine(x, scale, shift *RawTensor) *RawTensor

	// Activations
	ReLU(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor

	// Type conversion
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
