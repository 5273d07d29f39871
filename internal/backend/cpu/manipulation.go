// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// Cat concatenates tensors along the specified dimension. All tensors must
// share dtype and shape except along that dimension. Negative dims index
// from the end.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	first := tensors[0]
	rank := len(first.Shape())
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("cat: dim out of range for shape %v", first.Shape()))
	}

	outShape := first.Shape().Clone()
	catSize := 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != rank {
			panic(fmt.Sprintf("cat: rank mismatch %v vs %v", first.Shape(), s))
		}
		if t.DType() != first.DType() {
			panic(fmt.Sprintf("cat: dtype mismatch %s vs %s", first.DType(), t.DType()))
		}
		for i := 0; i < rank; i++ {
			if i != dim && s[i] != outShape[i] {
				panic(fmt.Sprintf("cat: shape mismatch at dim %d: %v vs %v", i, first.Shape(), s))
			}
		}
		catSize += s[dim]
	}
	outShape[dim] = catSize

	out := tensor.MustRaw(outShape, first.DType(), cpu.device)

	// Copy in block units: for each outer index, append each tensor's
	// contiguous [dim:] block in turn.
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= outShape[i]
	}
	inner := 1
	for i := dim + 1; i < rank; i++ {
		inner *= outShape[i]
	}

	elemSize := first.DType().Size()
	outData := out.Data()
	outBlock := catSize * inner * elemSize
	offset := 0
	for _, t := range tensors {
		block := t.Shape()[dim] * inner * elemSize
		tData := t.Data()
		for o := 0; o < outer; o++ {
			copy(outData[o*outBlock+offset:], tData[o*block:(o+1)*block])
		}
		offset += block
	}
	return out
}

// Cast converts the tensor to a different data type.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}

	out := tensor.MustRaw(x.Shape(), dtype, cpu.device)
	switch {
	case x.DType() == tensor.Float64 && dtype == tensor.Float32:
		xd, od := x.AsFloat64(), out.AsFloat32()
		for i, v := range xd {
			od[i] = float32(v)
		}
	case x.DType() == tensor.Float32 && dtype == tensor.Float64:
		xd, od := x.AsFloat32(), out.AsFloat64()
		for i, v := range xd {
			od[i] = float64(v)
		}
	default:
		panic(fmt.Sprintf("cast: unsupported conversion %s -> %s", x.DType(), dtype))
	}
	return out
}
