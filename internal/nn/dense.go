// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// Dense is a fully connected layer: y = x @ kernel + bias, with an
// optional activation. Used only for the classification head.
//
// Input shape:  [batch, in_features]
// Kernel shape: [in_features, units]
// Output shape: [batch, units]
type Dense[B tensor.Backend] struct {
	paramSet[B]

	inFeatures int
	units      int
	activation Activation

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewDense creates a fully connected layer with Glorot initialization.
func NewDense[B tensor.Backend](inFeatures, units int, activation Activation, backend B) *Dense[B] {
	if inFeatures <= 0 || units <= 0 {
		panic(fmt.Sprintf("dense: invalid dimensions in=%d, units=%d", inFeatures, units))
	}

	weight := NewParameter("kernel",
		GlorotUniform(inFeatures, units, tensor.Shape{inFeatures, units}, backend))
	bias := NewParameter("bias", tensor.Zeros[float32](tensor.Shape{units}, backend))

	d := &Dense[B]{
		inFeatures: inFeatures,
		units:      units,
		activation: activation,
		weight:     weight,
		bias:       bias,
		backend:    backend,
	}
	d.params = []*Parameter[B]{weight, bias}
	return d
}

// Forward performs the forward pass.
func (d *Dense[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inShape := input.Shape()
	if len(inShape) != 2 {
		panic(fmt.Sprintf("dense: expected 2D input [N,features], got %dD", len(inShape)))
	}
	if inShape[1] != d.inFeatures {
		panic(fmt.Sprintf("dense: input features %d != expected %d", inShape[1], d.inFeatures))
	}

	out := input.MatMul(d.weight.Tensor())

	// Broadcast the bias over the batch.
	outData := out.Data()
	biasData := d.bias.Tensor().Data()
	for n := 0; n < inShape[0]; n++ {
		row := outData[n*d.units : (n+1)*d.units]
		for i := range row {
			row[i] += biasData[i]
		}
	}

	if d.activation == ActivationSoftmax {
		return out.Softmax(-1)
	}
	if d.activation == ActivationReLU {
		return tensor.New[float32, B](d.backend.ReLU(out.Raw()), d.backend)
	}
	return out
}

// Units returns the number of output features.
func (d *Dense[B]) Units() int {
	return d.units
}

// String returns a string representation of the layer.
func (d *Dense[B]) String() string {
	return fmt.Sprintf("Dense(in=%d, units=%d, activation=%s)", d.inFeatures, d.units, d.activation)
}
