// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// Activation names a pointwise nonlinearity. The zero value is ReLU, the
// default of every conv block in the architectures.
type Activation int

// Recognized activations. ActivationNone marks "no activation" at call
// sites that take an optional activation.
const (
	ActivationReLU Activation = iota
	ActivationSoftmax
	ActivationLinear
	ActivationNone
)

// String returns the conventional activation name.
func (a Activation) String() string {
	switch a {
	case ActivationReLU:
		return "relu"
	case ActivationSoftmax:
		return "softmax"
	case ActivationLinear:
		return "linear"
	case ActivationNone:
		return "none"
	default:
		return fmt.Sprintf("Activation(%d)", int(a))
	}
}

// ActivationLayer applies a named nonlinearity. It has no parameters.
type ActivationLayer[B tensor.Backend] struct {
	paramSet[B]
	kind    Activation
	backend B
}

// NewActivation creates an activation layer.
func NewActivation[B tensor.Backend](kind Activation, backend B) *ActivationLayer[B] {
	return &ActivationLayer[B]{kind: kind, backend: backend}
}

// Forward applies the nonlinearity. Softmax runs over the last axis.
func (a *ActivationLayer[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	switch a.kind {
	case ActivationReLU:
		return tensor.New[float32, B](a.backend.ReLU(input.Raw()), a.backend)
	case ActivationSoftmax:
		return input.Softmax(-1)
	case ActivationLinear, ActivationNone:
		return input
	default:
		panic(fmt.Sprintf("activation: unknown kind %v", a.kind))
	}
}

// Kind returns the activation applied by the layer.
func (a *ActivationLayer[B]) Kind() Activation {
	return a.kind
}

// String returns a string representation of the layer.
func (a *ActivationLayer[B]) String() string {
	return fmt.Sprintf("Activation(%s)", a.kind)
}
