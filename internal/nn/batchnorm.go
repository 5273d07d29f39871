// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"
	"math"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// BatchNorm3D applies batch normalization over the channel axis of a
// channels-first volumetric tensor, using stored moving statistics:
//
//	y = gamma * (x - moving_mean) / sqrt(moving_var + eps) + beta
//
// The layer runs in inference mode only; statistics are loaded from a
// weight file, never updated here. When scale is false no gamma is
// learned, which is how conv blocks configure it: the following
// activation makes a scale redundant.
type BatchNorm3D[B tensor.Backend] struct {
	paramSet[B]

	channels int
	scale    bool
	epsilon  float32

	gamma      *Parameter[B] // nil unless scale
	beta       *Parameter[B]
	movingMean *Parameter[B]
	movingVar  *Parameter[B]

	backend B
}

// NewBatchNorm3D creates a batch normalization layer for the given channel
// count. Gamma (if scaled) starts at ones, beta at zeros, moving mean at
// zeros and moving variance at ones, so a freshly constructed layer is an
// identity.
func NewBatchNorm3D[B tensor.Backend](channels int, scale bool, epsilon float32, backend B) *BatchNorm3D[B] {
	if channels <= 0 {
		panic(fmt.Sprintf("batchnorm3d: invalid channel count %d", channels))
	}

	bn := &BatchNorm3D[B]{
		channels:   channels,
		scale:      scale,
		epsilon:    epsilon,
		beta:       NewParameter("beta", tensor.Zeros[float32](tensor.Shape{channels}, backend)),
		movingMean: NewParameter("moving_mean", tensor.Zeros[float32](tensor.Shape{channels}, backend)),
		movingVar:  NewParameter("moving_variance", tensor.Ones[float32](tensor.Shape{channels}, backend)),
		backend:    backend,
	}
	if scale {
		bn.gamma = NewParameter("gamma", tensor.Ones[float32](tensor.Shape{channels}, backend))
		bn.params = []*Parameter[B]{bn.gamma, bn.beta, bn.movingMean, bn.movingVar}
	} else {
		bn.params = []*Parameter[B]{bn.beta, bn.movingMean, bn.movingVar}
	}
	return bn
}

// Forward normalizes the input with the stored statistics.
//
// The per-channel affine is folded once per call:
//
//	scale[c] = gamma[c] / sqrt(var[c] + eps)
//	shift[c] = beta[c] - mean[c] * scale[c]
func (bn *BatchNorm3D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inShape := input.Shape()
	if len(inShape) < 2 || inShape[1] != bn.channels {
		panic(fmt.Sprintf("batchnorm3d: input shape %v does not carry %d channels", inShape, bn.channels))
	}

	scale := tensor.Zeros[float32](tensor.Shape{bn.channels}, bn.backend)
	shift := tensor.Zeros[float32](tensor.Shape{bn.channels}, bn.backend)

	mean := bn.movingMean.Tensor().Data()
	variance := bn.movingVar.Tensor().Data()
	beta := bn.beta.Tensor().Data()
	var gamma []float32
	if bn.gamma != nil {
		gamma = bn.gamma.Tensor().Data()
	}

	sc, sh := scale.Data(), shift.Data()
	for c := 0; c < bn.channels; c++ {
		g := float32(1)
		if gamma != nil {
			g = gamma[c]
		}
		sc[c] = g / float32(math.Sqrt(float64(variance[c]+bn.epsilon)))
		sh[c] = beta[c] - mean[c]*sc[c]
	}

	outRaw := bn.backend.ChannelAffine(input.Raw(), scale.Raw(), shift.Raw())
	return tensor.New[float32, B](outRaw, bn.backend)
}

// Channels returns the channel count the layer normalizes over.
func (bn *BatchNorm3D[B]) Channels() int {
	return bn.channels
}

// Scaled reports whether the layer carries a learned gamma.
func (bn *BatchNorm3D[B]) Scaled() bool {
	return bn.scale
}

// String returns a string representation of the layer.
func (bn *BatchNorm3D[B]) String() string {
	return fmt.Sprintf("BatchNorm3D(channels=%d, scale=%v, eps=%g)", bn.channels, bn.scale, bn.epsilon)
}
