// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package layout normalizes tensor data formats before convolution.
//
// Architectures accept inputs declared as channels-first [N, C, D, H, W]
// or channels-last [N, D, H, W, C]. Backends natively support one of the
// two; when the declared format and the native format disagree, the
// channel axis is permuted into place. The permutation is the only graph
// node this package ever produces.
package layout

import (
	"errors"
	"fmt"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// DataFormat identifies where the channel axis of a volumetric tensor
// lives.
type DataFormat int

// Recognized data formats.
const (
	ChannelsFirst DataFormat = iota // [N, C, D, H, W]
	ChannelsLast                    // [N, D, H, W, C]
)

// ErrUnsupportedFormat reports a data format tag outside the two
// recognized values.
var ErrUnsupportedFormat = errors.New("layout: unsupported data format")

// String returns the conventional name of the format.
func (f DataFormat) String() string {
	switch f {
	case ChannelsFirst:
		return "channels_first"
	case ChannelsLast:
		return "channels_last"
	default:
		return fmt.Sprintf("DataFormat(%d)", int(f))
	}
}

// Valid reports whether f is one of the recognized formats.
func (f DataFormat) Valid() bool {
	return f == ChannelsFirst || f == ChannelsLast
}

// ParseDataFormat converts a conventional format name into a DataFormat.
func ParseDataFormat(s string) (DataFormat, error) {
	switch s {
	case "channels_first":
		return ChannelsFirst, nil
	case "channels_last":
		return ChannelsLast, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Caps describes what a backend's convolution primitives natively handle.
// Capabilities are declared by the backend, never derived from version
// strings.
type Caps struct {
	// NativeChannelsFirst is true when convolutions consume
	// [N, C, D, H, W] directly. When false the backend wants
	// channels-last and channels-first inputs are transposed.
	NativeChannelsFirst bool

	// HighPrecisionConv is true when the fused convolution path handles
	// float64. When false, float64 inputs are downcast to float32 before
	// the convolution.
	HighPrecisionConv bool
}

// CPUCaps describes the in-tree CPU backend.
func CPUCaps() Caps {
	return Caps{NativeChannelsFirst: true, HighPrecisionConv: true}
}

// Native returns the data format the capabilities prefer.
func (c Caps) Native() DataFormat {
	if c.NativeChannelsFirst {
		return ChannelsFirst
	}
	return ChannelsLast
}

// NormalizeConvInput returns x in the layout the backend's convolution
// primitives require, together with the format tag of the returned
// tensor. The tensor is returned unchanged when the declared format is
// already native; otherwise its channel axis is permuted. Rank must be 5.
func NormalizeConvInput(b tensor.Backend, x *tensor.RawTensor, declared DataFormat, caps Caps) (*tensor.RawTensor, DataFormat, error) {
	if !declared.Valid() {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, declared)
	}
	if len(x.Shape()) != 5 {
		return nil, 0, fmt.Errorf("layout: expected rank-5 input, got shape %v", x.Shape())
	}

	if x.DType() == tensor.Float64 && !caps.HighPrecisionConv {
		x = b.Cast(x, tensor.Float32)
	}

	native := caps.Native()
	if declared == native {
		return x, native, nil
	}

	switch declared {
	case ChannelsLast:
		// NDHWC -> NCDHW
		return b.Transpose(x, 0, 4, 1, 2, 3), ChannelsFirst, nil
	default:
		// NCDHW -> NDHWC
		return b.Transpose(x, 0, 2, 3, 4, 1), ChannelsLast, nil
	}
}

// ChannelAxis returns the index of the channel axis for a rank-5 tensor
// in the given format.
func ChannelAxis(f DataFormat) int {
	if f == ChannelsFirst {
		return 1
	}
	return 4
}
