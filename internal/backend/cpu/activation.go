// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"
	"math"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := tensor.MustRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		xd, od := x.AsFloat32(), out.AsFloat32()
		for i, v := range xd {
			if v > 0 {
				od[i] = v
			}
		}
	case tensor.Float64:
		xd, od := x.AsFloat64(), out.AsFloat64()
		for i, v := range xd {
			if v > 0 {
				od[i] = v
			}
		}
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}
	return out
}

// Softmax applies softmax along the given dimension. Negative dims index
// from the end. Values are shifted by the row maximum for stability.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	rank := len(shape)
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("softmax: dim out of range for shape %v", shape))
	}

	// Collapse to [outer, size, inner] around the softmax axis.
	size := shape[dim]
	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < rank; i++ {
		inner *= shape[i]
	}

	out := tensor.MustRaw(shape, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		xd, od := x.AsFloat32(), out.AsFloat32()
		for o := 0; o < outer; o++ {
			for in := 0; in < inner; in++ {
				base := o*size*inner + in
				maxVal := xd[base]
				for s := 1; s < size; s++ {
					if v := xd[base+s*inner]; v > maxVal {
						maxVal = v
					}
				}
				var sum float32
				for s := 0; s < size; s++ {
					e := float32(math.Exp(float64(xd[base+s*inner] - maxVal)))
					od[base+s*inner] = e
					sum += e
				}
				for s := 0; s < size; s++ {
					od[base+s*inner] /= sum
				}
			}
		}
	case tensor.Float64:
		xd, od := x.AsFloat64(), out.AsFloat64()
		for o := 0; o < outer; o++ {
			for in := 0; in < inner; in++ {
				base := o*size*inner + in
				maxVal := xd[base]
				for s := 1; s < size; s++ {
					if v := xd[base+s*inner]; v > maxVal {
						maxVal = v
					}
				}
				var sum float64
				for s := 0; s < size; s++ {
					e := math.Exp(xd[base+s*inner] - maxVal)
					od[base+s*inner] = e
					sum += e
				}
				for s := 0; s < size; s++ {
					od[base+s*inner] /= sum
				}
			}
		}
	default:
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}
	return out
}
