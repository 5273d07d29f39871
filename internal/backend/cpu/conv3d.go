// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// Conv3D performs 3D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, D, H, W]
// Kernel shape: [C_out, C_in, K_d, K_h, K_w]
// Output shape: [N, C_out, D_out, H_out, W_out]
//
// Algorithm:
//  1. Transform input patches into columns (im2col)
//  2. Multiply the flattened kernel matrix with the column matrix (GEMM)
//  3. Rearrange the result to [N, C_out, D_out, H_out, W_out]
//
// Padding is per-dimension and may be asymmetric, which is what same-style
// padding produces for even strides.
func (cpu *CPUBackend) Conv3D(input, kernel *tensor.RawTensor, stride [3]int, pad tensor.Pad3) *tensor.RawTensor {
	inShape, kShape := input.Shape(), kernel.Shape()
	if len(inShape) != 5 {
		panic(fmt.Sprintf("conv3d: input must be 5D [N,C,D,H,W], got %dD", len(inShape)))
	}
	if len(kShape) != 5 {
		panic(fmt.Sprintf("conv3d: kernel must be 5D [C_out,C_in,K_d,K_h,K_w], got %dD", len(kShape)))
	}
	if inShape[1] != kShape[1] {
		panic(fmt.Sprintf("conv3d: input channels %d != kernel channels %d", inShape[1], kShape[1]))
	}
	if input.DType() != kernel.DType() {
		panic(fmt.Sprintf("conv3d: dtype mismatch %s vs %s", input.DType(), kernel.DType()))
	}

	n, cIn := inShape[0], inShape[1]
	dims := [3]int{inShape[2], inShape[3], inShape[4]}
	cOut := kShape[0]
	k := [3]int{kShape[2], kShape[3], kShape[4]}

	var outDims [3]int
	for i := 0; i < 3; i++ {
		outDims[i] = (dims[i]+pad[i][0]+pad[i][1]-k[i])/stride[i] + 1
		if outDims[i] <= 0 {
			panic(fmt.Sprintf("conv3d: non-positive output dim %d for input %v kernel %v stride %v pad %v",
				outDims[i], inShape, kShape, stride, pad))
		}
	}

	out := tensor.MustRaw(tensor.Shape{n, cOut, outDims[0], outDims[1], outDims[2]}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		conv3dFloat32(out, input, kernel, n, cIn, dims, cOut, k, outDims, stride, pad)
	case tensor.Float64:
		conv3dFloat64(out, input, kernel, n, cIn, dims, cOut, k, outDims, stride, pad)
	default:
		panic(fmt.Sprintf("conv3d: unsupported dtype %s", input.DType()))
	}
	return out
}

func conv3dFloat32(out, input, kernel *tensor.RawTensor, n, cIn int, dims [3]int, cOut int, k, outDims, stride [3]int, pad tensor.Pad3) {
	colWidth := cIn * k[0] * k[1] * k[2]
	colHeight := n * outDims[0] * outDims[1] * outDims[2]
	colBuf := make([]float32, colHeight*colWidth)
	im2colFloat32(colBuf, input.AsFloat32(), n, cIn, dims, k, outDims, stride, pad)

	// kernel is already a row-major [C_out, colWidth] matrix; multiply
	// against the transposed column matrix.
	tmp := make([]float32, cOut*colHeight)
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		blas32.General{Rows: cOut, Cols: colWidth, Stride: colWidth, Data: kernel.AsFloat32()},
		blas32.General{Rows: colHeight, Cols: colWidth, Stride: colWidth, Data: colBuf},
		0,
		blas32.General{Rows: cOut, Cols: colHeight, Stride: colHeight, Data: tmp})

	rearrangeFloat32(out.AsFloat32(), tmp, n, cOut, outDims)
}

func conv3dFloat64(out, input, kernel *tensor.RawTensor, n, cIn int, dims [3]int, cOut int, k, outDims, stride [3]int, pad tensor.Pad3) {
	colWidth := cIn * k[0] * k[1] * k[2]
	colHeight := n * outDims[0] * outDims[1] * outDims[2]
	colBuf := make([]float64, colHeight*colWidth)
	im2colFloat64(colBuf, input.AsFloat64(), n, cIn, dims, k, outDims, stride, pad)

	tmp := make([]float64, cOut*colHeight)
	blas64.Gemm(blas.NoTrans, blas.Trans, 1,
		blas64.General{Rows: cOut, Cols: colWidth, Stride: colWidth, Data: kernel.AsFloat64()},
		blas64.General{Rows: colHeight, Cols: colWidth, Stride: colWidth, Data: colBuf},
		0,
		blas64.General{Rows: cOut, Cols: colHeight, Stride: colHeight, Data: tmp})

	rearrangeFloat64(out.AsFloat64(), tmp, n, cOut, outDims)
}

// im2colFloat32 extracts one row per output position, each row holding the
// receptive field flattened as [C, K_d, K_h, K_w]. Out-of-bounds positions
// contribute zeros.
func im2colFloat32(colBuf []float32, in []float32, n, c int, dims, k, outDims, stride [3]int, pad tensor.Pad3) {
	d, h, w := dims[0], dims[1], dims[2]
	bufIdx := 0

	for batch := 0; batch < n; batch++ {
		base := batch * c * d * h * w
		for od := 0; od < outDims[0]; od++ {
			dStart := od*stride[0] - pad[0][0]
			for oh := 0; oh < outDims[1]; oh++ {
				hStart := oh*stride[1] - pad[1][0]
				for ow := 0; ow < outDims[2]; ow++ {
					wStart := ow*stride[2] - pad[2][0]
					for ch := 0; ch < c; ch++ {
						chBase := base + ch*d*h*w
						for kd := 0; kd < k[0]; kd++ {
							zd := dStart + kd
							for kh := 0; kh < k[1]; kh++ {
								zh := hStart + kh
								for kw := 0; kw < k[2]; kw++ {
									zw := wStart + kw
									if zd >= 0 && zd < d && zh >= 0 && zh < h && zw >= 0 && zw < w {
										colBuf[bufIdx] = in[chBase+zd*h*w+zh*w+zw]
									}
									bufIdx++
								}
							}
						}
					}
				}
			}
		}
	}
}

func im2colFloat64(colBuf []float64, in []float64, n, c int, dims, k, outDims, stride [3]int, pad tensor.Pad3) {
	d, h, w := dims[0], dims[1], dims[2]
	bufIdx := 0

	for batch := 0; batch < n; batch++ {
		base := batch * c * d * h * w
		for od := 0; od < outDims[0]; od++ {
			dStart := od*stride[0] - pad[0][0]
			for oh := 0; oh < outDims[1]; oh++ {
				hStart := oh*stride[1] - pad[1][0]
				for ow := 0; ow < outDims[2]; ow++ {
					wStart := ow*stride[2] - pad[2][0]
					for ch := 0; ch < c; ch++ {
						chBase := base + ch*d*h*w
						for kd := 0; kd < k[0]; kd++ {
							zd := dStart + kd
							for kh := 0; kh < k[1]; kh++ {
								zh := hStart + kh
								for kw := 0; kw < k[2]; kw++ {
									zw := wStart + kw
									if zd >= 0 && zd < d && zh >= 0 && zh < h && zw >= 0 && zw < w {
										colBuf[bufIdx] = in[chBase+zd*h*w+zh*w+zw]
									}
									bufIdx++
								}
							}
						}
					}
				}
			}
		}
	}
}

// rearrangeFloat32 converts the GEMM result [C_out, N*D*H*W] into the
// canonical [N, C_out, D, H, W] layout.
func rearrangeFloat32(out, tmp []float32, n, cOut int, outDims [3]int) {
	spatial := outDims[0] * outDims[1] * outDims[2]
	colHeight := n * spatial
	for batch := 0; batch < n; batch++ {
		for ch := 0; ch < cOut; ch++ {
			src := ch*colHeight + batch*spatial
			dst := batch*cOut*spatial + ch*spatial
			copy(out[dst:dst+spatial], tmp[src:src+spatial])
		}
	}
}

func rearrangeFloat64(out, tmp []float64, n, cOut int, outDims [3]int) {
	spatial := outDims[0] * outDims[1] * outDims[2]
	colHeight := n * spatial
	for batch := 0; batch < n; batch++ {
		for ch := 0; ch < cOut; ch++ {
			src := ch*colHeight + batch*spatial
			dst := batch*cOut*spatial + ch*spatial
			copy(out[dst:dst+spatial], tmp[src:src+spatial])
		}
	}
}
