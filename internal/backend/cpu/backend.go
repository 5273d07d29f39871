// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu implements the pure-Go CPU backend for tensor operations.
package cpu

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// CPUBackend is a pure Go implementation of the tensor.Backend interface.
// Convolutions use im2col plus a BLAS GEMM; everything else is plain loops.
type CPUBackend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{device: tensor.CPU}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "cpu"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition. Shapes must match exactly.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction. Shapes must match exactly.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication. Shapes must match exactly.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

func (cpu *CPUBackend) binaryOp(
	name string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("%s: shape mismatch %v vs %v", name, a.Shape(), b.Shape()))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}

	out := tensor.MustRaw(a.Shape(), a.DType(), cpu.device)
	switch a.DType() {
	case tensor.Float32:
		ad, bd, od := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
		for i := range od {
			od[i] = f32(ad[i], bd[i])
		}
	case tensor.Float64:
		ad, bd, od := a.AsFloat64(), b.AsFloat64(), out.AsFloat64()
		for i := range od {
			od[i] = f64(ad[i], bd[i])
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
	return out
}

// Reshape returns a view of the tensor with a new shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return t.WithShape(newShape)
}

// Transpose permutes the tensor's axes. axes must be a permutation of
// [0, rank).
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	rank := len(shape)
	if len(axes) != rank {
		panic(fmt.Sprintf("transpose: got %d axes for rank-%d tensor", len(axes), rank))
	}
	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	for i, ax := range axes {
		if ax < 0 || ax >= rank || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v", axes))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	out := tensor.MustRaw(outShape, t.DType(), cpu.device)
	inStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()

	n := t.NumElements()
	idx := make([]int, rank)
	copyElem := elemCopier(t, out)
	for outIdx := 0; outIdx < n; outIdx++ {
		// Decompose outIdx into output coordinates.
		rem := outIdx
		for d := 0; d < rank; d++ {
			idx[d] = rem / outStrides[d]
			rem %= outStrides[d]
		}
		// Map back to the source offset.
		srcIdx := 0
		for d := 0; d < rank; d++ {
			srcIdx += idx[d] * inStrides[axes[d]]
		}
		copyElem(outIdx, srcIdx)
	}
	return out
}

// elemCopier returns a closure copying element src of in to element dst of
// out, dispatching on dtype once instead of per element.
func elemCopier(in, out *tensor.RawTensor) func(dst, src int) {
	switch in.DType() {
	case tensor.Float32:
		id, od := in.AsFloat32(), out.AsFloat32()
		return func(dst, src int) { od[dst] = id[src] }
	case tensor.Float64:
		id, od := in.AsFloat64(), out.AsFloat64()
		return func(dst, src int) { od[dst] = id[src] }
	default:
		panic(fmt.Sprintf("unsupported dtype %s", in.DType()))
	}
}
