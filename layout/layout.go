// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package layout provides the public API for tensor data-format
// normalization.
package layout

import (
	"github.com/voxel-ml/voxelnets/internal/layout"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// DataFormat identifies where the channel axis of a volumetric tensor
// lives.
type DataFormat = layout.DataFormat

// Recognized data formats.
const (
	ChannelsFirst DataFormat = layout.ChannelsFirst
	ChannelsLast  DataFormat = layout.ChannelsLast
)

// ErrUnsupportedFormat reports a data format outside the recognized set.
var ErrUnsupportedFormat = layout.ErrUnsupportedFormat

// ParseDataFormat converts a conventional format name into a DataFormat.
func ParseDataFormat(s string) (DataFormat, error) {
	return layout.ParseDataFormat(s)
}

// Caps describes what a backend's convolution primitives natively
// handle.
type Caps = layout.Caps

// CPUCaps describes the in-tree CPU backend.
func CPUCaps() Caps {
	return layout.CPUCaps()
}

// NormalizeConvInput returns x in the layout the backend's convolution
// primitives require, together with the format of the returned tensor.
func NormalizeConvInput(b tensor.Backend, x *tensor.RawTensor, declared DataFormat, caps Caps) (*tensor.RawTensor, DataFormat, error) {
	return layout.NormalizeConvInput(b, x, declared, caps)
}

// ChannelAxis returns the channel axis index for a rank-5 tensor in the
// given format.
func ChannelAxis(f DataFormat) int {
	return layout.ChannelAxis(f)
}
