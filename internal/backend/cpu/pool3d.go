// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"
	"math"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// MaxPool3D takes the maximum over each pooling window.
//
// Input shape:  [N, C, D, H, W]
// Output shape: [N, C, D_out, H_out, W_out]
//
// Padded positions never win: the maximum is taken over the window cells
// that fall inside the input.
func (cpu *CPUBackend) MaxPool3D(input *tensor.RawTensor, kernel, stride [3]int, pad tensor.Pad3) *tensor.RawTensor {
	return cpu.pool3d("max_pool3d", input, kernel, stride, pad, true)
}

// AvgPool3D averages over each pooling window. Only window cells inside
// the input contribute to the average; padding is excluded from the count.
func (cpu *CPUBackend) AvgPool3D(input *tensor.RawTensor, kernel, stride [3]int, pad tensor.Pad3) *tensor.RawTensor {
	return cpu.pool3d("avg_pool3d", input, kernel, stride, pad, false)
}

func (cpu *CPUBackend) pool3d(name string, input *tensor.RawTensor, kernel, stride [3]int, pad tensor.Pad3, max bool) *tensor.RawTensor {
	inShape := input.Shape()
	if len(inShape) != 5 {
		panic(fmt.Sprintf("%s: input must be 5D [N,C,D,H,W], got %dD", name, len(inShape)))
	}

	n, c := inShape[0], inShape[1]
	dims := [3]int{inShape[2], inShape[3], inShape[4]}
	var outDims [3]int
	for i := 0; i < 3; i++ {
		outDims[i] = (dims[i]+pad[i][0]+pad[i][1]-kernel[i])/stride[i] + 1
		if outDims[i] <= 0 {
			panic(fmt.Sprintf("%s: non-positive output dim for input %v kernel %v stride %v", name, inShape, kernel, stride))
		}
	}

	out := tensor.MustRaw(tensor.Shape{n, c, outDims[0], outDims[1], outDims[2]}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		pool3dFloat32(out.AsFloat32(), input.AsFloat32(), n, c, dims, kernel, outDims, stride, pad, max)
	case tensor.Float64:
		pool3dFloat64(out.AsFloat64(), input.AsFloat64(), n, c, dims, kernel, outDims, stride, pad, max)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, input.DType()))
	}
	return out
}

func pool3dFloat32(out, in []float32, n, c int, dims, kernel, outDims, stride [3]int, pad tensor.Pad3, max bool) {
	d, h, w := dims[0], dims[1], dims[2]
	outIdx := 0

	for batch := 0; batch < n; batch++ {
		for ch := 0; ch < c; ch++ {
			chBase := (batch*c + ch) * d * h * w
			for od := 0; od < outDims[0]; od++ {
				dStart := od*stride[0] - pad[0][0]
				for oh := 0; oh < outDims[1]; oh++ {
					hStart := oh*stride[1] - pad[1][0]
					for ow := 0; ow < outDims[2]; ow++ {
						wStart := ow*stride[2] - pad[2][0]
						best := float32(math.Inf(-1))
						var sum float32
						count := 0
						for kd := 0; kd < kernel[0]; kd++ {
							zd := dStart + kd
							if zd < 0 || zd >= d {
								continue
							}
							for kh := 0; kh < kernel[1]; kh++ {
								zh := hStart + kh
								if zh < 0 || zh >= h {
									continue
								}
								for kw := 0; kw < kernel[2]; kw++ {
									zw := wStart + kw
									if zw < 0 || zw >= w {
										continue
									}
									v := in[chBase+zd*h*w+zh*w+zw]
									if v > best {
										best = v
									}
									sum += v
									count++
								}
							}
						}
						if max {
							out[outIdx] = best
						} else {
							out[outIdx] = sum / float32(count)
						}
						outIdx++
					}
				}
			}
		}
	}
}

func pool3dFloat64(out, in []float64, n, c int, dims, kernel, outDims, stride [3]int, pad tensor.Pad3, max bool) {
	d, h, w := dims[0], dims[1], dims[2]
	outIdx := 0

	for batch := 0; batch < n; batch++ {
		for ch := 0; ch < c; ch++ {
			chBase := (batch*c + ch) * d * h * w
			for od := 0; od < outDims[0]; od++ {
				dStart := od*stride[0] - pad[0][0]
				for oh := 0; oh < outDims[1]; oh++ {
					hStart := oh*stride[1] - pad[1][0]
					for ow := 0; ow < outDims[2]; ow++ {
						wStart := ow*stride[2] - pad[2][0]
						best := math.Inf(-1)
						var sum float64
						count := 0
						for kd := 0; kd < kernel[0]; kd++ {
							zd := dStart + kd
							if zd < 0 || zd >= d {
								continue
							}
							for kh := 0; kh < kernel[1]; kh++ {
								zh := hStart + kh
								if zh < 0 || zh >= h {
									continue
								}
								for kw := 0; kw < kernel[2]; kw++ {
									zw := wStart + kw
									if zw < 0 || zw >= w {
										continue
									}
									v := in[chBase+zd*h*w+zh*w+zw]
									if v > best {
										best = v
									}
									sum += v
									count++
								}
							}
						}
						if max {
							out[outIdx] = best
						} else {
							out[outIdx] = sum / float64(count)
						}
						outIdx++
					}
				}
			}
		}
	}
}

// GlobalAvgPool3D averages each channel over its whole volume:
// [N, C, D, H, W] -> [N, C].
func (cpu *CPUBackend) GlobalAvgPool3D(input *tensor.RawTensor) *tensor.RawTensor {
	return cpu.globalPool3d("global_avg_pool3d", input, false)
}

// GlobalMaxPool3D takes each channel's maximum over its whole volume:
// [N, C, D, H, W] -> [N, C].
func (cpu *CPUBackend) GlobalMaxPool3D(input *tensor.RawTensor) *tensor.RawTensor {
	return cpu.globalPool3d("global_max_pool3d", input, true)
}

func (cpu *CPUBackend) globalPool3d(name string, input *tensor.RawTensor, max bool) *tensor.RawTensor {
	inShape := input.Shape()
	if len(inShape) != 5 {
		panic(fmt.Sprintf("%s: input must be 5D [N,C,D,H,W], got %dD", name, len(inShape)))
	}
	n, c := inShape[0], inShape[1]
	vol := inShape[2] * inShape[3] * inShape[4]

	out := tensor.MustRaw(tensor.Shape{n, c}, input.DType(), cpu.device)

	switch input.DType() {
	case tensor.Float32:
		in, od := input.AsFloat32(), out.AsFloat32()
		for i := 0; i < n*c; i++ {
			seg := in[i*vol : (i+1)*vol]
			if max {
				best := seg[0]
				for _, v := range seg[1:] {
					if v > best {
						best = v
					}
				}
				od[i] = best
			} else {
				var sum float32
				for _, v := range seg {
					sum += v
				}
				od[i] = sum / float32(vol)
			}
		}
	case tensor.Float64:
		in, od := input.AsFloat64(), out.AsFloat64()
		for i := 0; i < n*c; i++ {
			seg := in[i*vol : (i+1)*vol]
			if max {
				best := seg[0]
				for _, v := range seg[1:] {
					if v > best {
						best = v
					}
				}
				od[i] = best
			} else {
				var sum float64
				for _, v := range seg {
					sum += v
				}
				od[i] = sum / float64(vol)
			}
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, input.DType()))
	}
	return out
}
