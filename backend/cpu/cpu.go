// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
package cpu

import (
	internalcpu "github.com/voxel-ml/voxelnets/internal/backend/cpu"
	"github.com/voxel-ml/voxelnets/tensor"
)

// Backend is the CPU backend implementation. Convolutions run through
// an im2col lowering onto BLAS matrix multiplication.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 16, 16, 16}, backend)
func New() *Backend {
	return internalcpu.New()
}
