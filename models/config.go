// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package models

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/voxel-ml/voxelnets/internal/layout"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// WeightsImageNet selects pretrained ImageNet weights from the local
// weight cache. Weight files are never downloaded; populate the cache
// with SaveWeights or an external tool first.
const WeightsImageNet = "imagenet"

// Pooling selects the feature-extraction head applied when the
// classification top is omitted.
type Pooling int

// Pooling modes. PoolingNone leaves the volumetric feature map as the
// model output.
const (
	PoolingNone Pooling = iota
	PoolingAvg
	PoolingMax
)

// String returns the conventional pooling name.
func (p Pooling) String() string {
	switch p {
	case PoolingNone:
		return "none"
	case PoolingAvg:
		return "avg"
	case PoolingMax:
		return "max"
	default:
		return fmt.Sprintf("Pooling(%d)", int(p))
	}
}

// Config carries the options shared by every architecture in this
// package. Use DefaultConfig as the starting point; the zero value of
// Config disables both the classification top and batch normalization,
// which is rarely what you want.
type Config struct {
	// IncludeTop appends global average pooling and a softmax
	// classification layer.
	IncludeTop bool

	// Weights is "", WeightsImageNet, or a path to a weight file.
	Weights string

	// Pooling selects the feature-extraction head when IncludeTop is
	// false. Ignored otherwise.
	Pooling Pooling

	// Classes is the classification class count. Only meaningful with
	// IncludeTop.
	Classes int

	// BaseChannel scales every filter count in the architecture. The
	// canonical networks use 32.
	BaseChannel int

	// BatchNorm toggles the normalization step inside conv blocks.
	BatchNorm bool

	// InputSize is the spatial extent [depth, height, width] of the
	// input volume. All zeros selects the architecture default.
	InputSize [3]int

	// Channels is the input channel count, 3 by default.
	Channels int

	// DataFormat declares the layout of tensors fed to the model.
	DataFormat layout.DataFormat

	// Caps describes the convolution capabilities of the backend the
	// model will run on.
	Caps layout.Caps
}

// DefaultConfig mirrors the canonical configuration: classification top
// over 1000 classes, batch normalization on, base channel 32, native
// channels-first layout, no pretrained weights.
func DefaultConfig() Config {
	return Config{
		IncludeTop:  true,
		Classes:     1000,
		BaseChannel: 32,
		BatchNorm:   true,
		Channels:    3,
		DataFormat:  layout.ChannelsFirst,
		Caps:        layout.CPUCaps(),
	}
}

// withDefaults fills unset numeric fields.
func (c Config) withDefaults(defaultSize int) Config {
	if c.Classes == 0 {
		c.Classes = 1000
	}
	if c.BaseChannel == 0 {
		c.BaseChannel = 32
	}
	if c.Channels == 0 {
		c.Channels = 3
	}
	if c.InputSize == [3]int{} {
		c.InputSize = [3]int{defaultSize, defaultSize, defaultSize}
	}
	return c
}

// validate checks the configuration against an architecture's input
// constraints and resolves the weight source to a concrete file path
// ("" when no weights are to be loaded). All checks run before any
// layer is constructed.
func (c Config) validate(arch string, minSize int) (string, error) {
	pretrained := c.Weights == WeightsImageNet

	if c.Weights != "" && !pretrained {
		if _, err := os.Stat(c.Weights); err != nil {
			return "", fmt.Errorf("%w: %q is not %q or a readable file: %v",
				ErrInvalidWeightsSource, c.Weights, WeightsImageNet, err)
		}
	}
	if pretrained && c.IncludeTop && c.Classes != 1000 {
		return "", fmt.Errorf("%w: %s weights with the classification top require 1000 classes, got %d",
			ErrConfigConflict, WeightsImageNet, c.Classes)
	}
	if pretrained && c.Channels != 3 {
		return "", fmt.Errorf("%w: %s weights require 3 input channels, got %d",
			ErrConfigConflict, WeightsImageNet, c.Channels)
	}
	if !c.DataFormat.Valid() {
		return "", fmt.Errorf("%w: %v", layout.ErrUnsupportedFormat, c.DataFormat)
	}
	for _, dim := range c.InputSize {
		if dim < minSize {
			return "", fmt.Errorf("%w: input size %v below the minimum %d for %s",
				ErrInvalidInputShape, c.InputSize, minSize, arch)
		}
	}

	if pretrained {
		return cachedWeightsPath(arch, c.IncludeTop)
	}
	return c.Weights, nil
}

// cachedWeightsPath locates pretrained weights in the user cache. There
// is no download path: a missing file is an error naming the expected
// location.
func cachedWeightsPath(arch string, includeTop bool) (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%w: no cache directory: %v", ErrInvalidWeightsSource, err)
	}
	file := arch + "_imagenet.safetensors"
	if !includeTop {
		file = arch + "_imagenet_notop.safetensors"
	}
	path := filepath.Join(cache, "voxelnets", file)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: pretrained weights not cached at %s", ErrInvalidWeightsSource, path)
	}
	return path, nil
}

// PreprocessInput maps raw intensities in [0, 255] to the [-1, 1] range
// the pretrained networks were trained on. The input is not modified.
func PreprocessInput[T tensor.DType, B tensor.Backend](x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	out := x.Clone()
	data := out.Data()
	for i, v := range data {
		data[i] = v/T(127.5) - T(1)
	}
	return out
}
