// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn implements the neural network layers voxelnets architectures
// are assembled from.
//
// Layers follow a uniform contract:
//   - Forward: compute output from input (no in-place mutation)
//   - Parameters: all learnable parameters
//   - StateDict / LoadStateDict: name-keyed parameter access for
//     weight-file matching
//
// Layers never allocate gradients or track tapes; training is owned by
// external frameworks.
package nn

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// Module is the base interface for all layers.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all learnable parameters of this module.
	// Modules without parameters return an empty slice.
	Parameters() []*Parameter[B]

	// StateDict returns a map of parameter names to raw tensors.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies values from a state dictionary into this
	// module's parameters. Keys absent from the dict are left untouched;
	// unknown keys and shape mismatches are errors.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// paramSet is the shared StateDict/LoadStateDict implementation used by
// every parameterized layer.
type paramSet[B tensor.Backend] struct {
	params []*Parameter[B]
}

func (ps *paramSet[B]) Parameters() []*Parameter[B] {
	return ps.params
}

func (ps *paramSet[B]) StateDict() map[string]*tensor.RawTensor {
	dict := make(map[string]*tensor.RawTensor, len(ps.params))
	for _, p := range ps.params {
		dict[p.Name()] = p.Tensor().Raw()
	}
	return dict
}

func (ps *paramSet[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	byName := make(map[string]*Parameter[B], len(ps.params))
	for _, p := range ps.params {
		byName[p.Name()] = p
	}
	for name, raw := range stateDict {
		p, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown parameter %q", name)
		}
		dst := p.Tensor().Raw()
		if !dst.Shape().Equal(raw.Shape()) {
			return fmt.Errorf("parameter %q: shape %v does not match %v", name, raw.Shape(), dst.Shape())
		}
		if dst.DType() != raw.DType() {
			return fmt.Errorf("parameter %q: dtype %s does not match %s", name, raw.DType(), dst.DType())
		}
		copy(dst.Data(), raw.Data())
	}
	return nil
}
