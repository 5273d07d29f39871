// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// DepthwiseConv3D convolves each input channel with its own single filter.
//
// Input shape:  [N, C, D, H, W]
// Kernel shape: [C, 1, K_d, K_h, K_w]
// Output shape: [N, C, D_out, H_out, W_out]
//
// This is the spatial half of a separable convolution; the pointwise half
// is an ordinary 1x1x1 Conv3D.
func (cpu *CPUBackend) DepthwiseConv3D(input, kernel *tensor.RawTensor, stride [3]int, pad tensor.Pad3) *tensor.RawTensor {
	inShape, kShape := input.Shape(), kernel.Shape()
	if len(inShape) != 5 {
		panic(fmt.Sprintf("depthwise_conv3d: input must be 5D [N,C,D,H,W], got %dD", len(inShape)))
	}
	if len(kShape) != 5 || kShape[1] != 1 {
		panic(fmt.Sprintf("depthwise_conv3d: kernel must be [C,1,K_d,K_h,K_w], got %v", kShape))
	}
	if inShape[1] != kShape[0] {
		panic(fmt.Sprintf("depthwise_conv3d: input channels %d != kernel channels %d", inShape[1], kShape[0]))
	}
	if input.DType() != kernel.DType() {
		panic(fmt.Sprintf("depthwise_conv3d: dtype mismatch %s vs %s", input.DType(), kernel.DType()))
	}

	n, c := inShape[0], inShape[1]
	dims := [3]int{inShape[2], inShape[3], inShape[4]}
	k := [3]int{kShape[2], kShape[3], kShape[4]}

	var outDims [3]int
	for i := 0; i < 3; i++ {
		outDims[i] = (dims[i]+pad[i][0]+pad[i][1]-k[i])/stride[i] + 1
		if outDims[i] <= 0 {
			panic(fmt.Sprintf("depthwise_conv3d: non-positive output dim for input %v kernel %v", inShape, kShape))
		}
	}

	out := tensor.MustRaw(tensor.Shape{n, c, outDims[0], outDims[1], outDims[2]}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		depthwiseFloat32(out.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), n, c, dims, k, outDims, stride, pad)
	case tensor.Float64:
		depthwiseFloat64(out.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), n, c, dims, k, outDims, stride, pad)
	default:
		panic(fmt.Sprintf("depthwise_conv3d: unsupported dtype %s", input.DType()))
	}
	return out
}

func depthwiseFloat32(out, in, kern []float32, n, c int, dims, k, outDims, stride [3]int, pad tensor.Pad3) {
	d, h, w := dims[0], dims[1], dims[2]
	kVol := k[0] * k[1] * k[2]
	outIdx := 0

	for batch := 0; batch < n; batch++ {
		for ch := 0; ch < c; ch++ {
			chBase := (batch*c + ch) * d * h * w
			kBase := ch * kVol
			for od := 0; od < outDims[0]; od++ {
				dStart := od*stride[0] - pad[0][0]
				for oh := 0; oh < outDims[1]; oh++ {
					hStart := oh*stride[1] - pad[1][0]
					for ow := 0; ow < outDims[2]; ow++ {
						wStart := ow*stride[2] - pad[2][0]
						var sum float32
						ki := kBase
						for kd := 0; kd < k[0]; kd++ {
							zd := dStart + kd
							for kh := 0; kh < k[1]; kh++ {
								zh := hStart + kh
								for kw := 0; kw < k[2]; kw++ {
									zw := wStart + kw
									if zd >= 0 && zd < d && zh >= 0 && zh < h && zw >= 0 && zw < w {
										sum += kern[ki] * in[chBase+zd*h*w+zh*w+zw]
									}
									ki++
								}
							}
						}
						out[outIdx] = sum
						outIdx++
					}
				}
			}
		}
	}
}

func depthwiseFloat64(out, in, kern []float64, n, c int, dims, k, outDims, stride [3]int, pad tensor.Pad3) {
	d, h, w := dims[0], dims[1], dims[2]
	kVol := k[0] * k[1] * k[2]
	outIdx := 0

	for batch := 0; batch < n; batch++ {
		for ch := 0; ch < c; ch++ {
			chBase := (batch*c + ch) * d * h * w
			kBase := ch * kVol
			for od := 0; od < outDims[0]; od++ {
				dStart := od*stride[0] - pad[0][0]
				for oh := 0; oh < outDims[1]; oh++ {
					hStart := oh*stride[1] - pad[1][0]
					for ow := 0; ow < outDims[2]; ow++ {
						wStart := ow*stride[2] - pad[2][0]
						var sum float64
						ki := kBase
						for kd := 0; kd < k[0]; kd++ {
							zd := dStart + kd
							for kh := 0; kh < k[1]; kh++ {
								zh := hStart + kh
								for kw := 0; kw < k[2]; kw++ {
									zw := wStart + kw
									if zd >= 0 && zd < d && zh >= 0 && zh < h && zw >= 0 && zw < w {
										sum += kern[ki] * in[chBase+zd*h*w+zh*w+zw]
									}
									ki++
								}
							}
						}
						out[outIdx] = sum
						outIdx++
					}
				}
			}
		}
	}
}
