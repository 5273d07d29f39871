// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// ChannelAffine applies a per-channel affine transform to a channels-first
// tensor: y[n,c,...] = x[n,c,...]*scale[c] + shift[c].
//
// scale and shift must be 1D of length C; either may be nil, in which case
// it is treated as ones (scale) or zeros (shift). This one primitive
// carries both convolution bias addition and batch normalization.
func (cpu *CPUBackend) ChannelAffine(x, scale, shift *tensor.RawTensor) *tensor.RawTensor {
	xShape := x.Shape()
	if len(xShape) < 2 {
		panic(fmt.Sprintf("channel_affine: input must have a channel axis, got shape %v", xShape))
	}
	n, c := xShape[0], xShape[1]
	inner := x.NumElements() / (n * c)

	checkVec := func(name string, v *tensor.RawTensor) {
		if v == nil {
			return
		}
		if len(v.Shape()) != 1 || v.Shape()[0] != c {
			panic(fmt.Sprintf("channel_affine: %s must be [%d], got %v", name, c, v.Shape()))
		}
		if v.DType() != x.DType() {
			panic(fmt.Sprintf("channel_affine: %s dtype %s != input dtype %s", name, v.DType(), x.DType()))
		}
	}
	checkVec("scale", scale)
	checkVec("shift", shift)

	out := tensor.MustRaw(xShape, x.DType(), cpu.device)

	switch x.DType() {
	case tensor.Float32:
		xd, od := x.AsFloat32(), out.AsFloat32()
		var sc, sh []float32
		if scale != nil {
			sc = scale.AsFloat32()
		}
		if shift != nil {
			sh = shift.AsFloat32()
		}
		for batch := 0; batch < n; batch++ {
			for ch := 0; ch < c; ch++ {
				s := float32(1)
				if sc != nil {
					s = sc[ch]
				}
				var b float32
				if sh != nil {
					b = sh[ch]
				}
				base := (batch*c + ch) * inner
				for i := 0; i < inner; i++ {
					od[base+i] = xd[base+i]*s + b
				}
			}
		}
	case tensor.Float64:
		xd, od := x.AsFloat64(), out.AsFloat64()
		var sc, sh []float64
		if scale != nil {
			sc = scale.AsFloat64()
		}
		if shift != nil {
			sh = shift.AsFloat64()
		}
		for batch := 0; batch < n; batch++ {
			for ch := 0; ch < c; ch++ {
				s := float64(1)
				if sc != nil {
					s = sc[ch]
				}
				var b float64
				if sh != nil {
					b = sh[ch]
				}
				base := (batch*c + ch) * inner
				for i := 0; i < inner; i++ {
					od[base+i] = xd[base+i]*s + b
				}
			}
		}
	default:
		panic(fmt.Sprintf("channel_affine: unsupported dtype %s", x.DType()))
	}
	return out
}
