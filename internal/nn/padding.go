// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"errors"
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// Padding selects the spatial padding policy of a convolution or pooling
// layer.
type Padding int

// Recognized padding modes.
const (
	// PaddingValid applies no padding; windows must fit entirely inside
	// the input.
	PaddingValid Padding = iota
	// PaddingSame pads so the output size is ceil(input/stride). When the
	// total padding for a dimension is odd, the extra cell goes after.
	PaddingSame
)

// ErrUnknownPadding reports a padding mode outside the recognized values.
var ErrUnknownPadding = errors.New("nn: unknown padding mode")

// String returns the conventional name of the padding mode.
func (p Padding) String() string {
	switch p {
	case PaddingValid:
		return "valid"
	case PaddingSame:
		return "same"
	default:
		return fmt.Sprintf("Padding(%d)", int(p))
	}
}

// ParsePadding converts a conventional padding name into a Padding.
func ParsePadding(s string) (Padding, error) {
	switch s {
	case "valid":
		return PaddingValid, nil
	case "same":
		return PaddingSame, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPadding, s)
	}
}

// resolve computes the per-dimension (before, after) padding for the given
// input spatial dims, window and stride.
func (p Padding) resolve(dims, window, stride [3]int) tensor.Pad3 {
	var pad tensor.Pad3
	if p == PaddingValid {
		return pad
	}
	for i := 0; i < 3; i++ {
		out := (dims[i] + stride[i] - 1) / stride[i]
		total := (out-1)*stride[i] + window[i] - dims[i]
		if total < 0 {
			total = 0
		}
		pad[i][0] = total / 2
		pad[i][1] = total - total/2
	}
	return pad
}

// Kernel is a 3D kernel size, ordered depth, height, width. Asymmetric
// kernels such as 1x1x7 are first-class: the reduction blocks of
// Inception-ResNet factor a cubic kernel into three of them.
type Kernel [3]int

// Cubic returns a kernel of size k in every spatial dimension.
func Cubic(k int) Kernel {
	return Kernel{k, k, k}
}

// Volume returns the number of cells in the kernel.
func (k Kernel) Volume() int {
	return k[0] * k[1] * k[2]
}

func (k Kernel) String() string {
	return fmt.Sprintf("%dx%dx%d", k[0], k[1], k[2])
}
