// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package models

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxel-ml/voxelnets/internal/backend/cpu"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

func TestInceptionResNetV2Structure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseChannel = 2
	cfg.Classes = 10

	model, err := InceptionResNetV2(cfg, cpu.New())
	require.NoError(t, err)
	assert.Equal(t, "inception_resnet_v2", model.Name())

	// Concatenation widths, in base-channel units: mixed_5b is 10bc,
	// mixed_6a adds 24bc on top of it, mixed_7a adds another 31bc, and
	// conv_7b projects to 48bc.
	for name, channels := range map[string]int{
		"mixed_5b":   20,
		"mixed_6a":   68,
		"mixed_7a":   130,
		"conv_7b_ac": 96,
	} {
		node := model.Node(name)
		require.NotNil(t, node, name)
		assert.Equal(t, channels, node.Channels(), name)
	}

	// All three residual stages are fully unrolled.
	assert.NotNil(t, model.Node("block35_10"))
	assert.NotNil(t, model.Node("block17_20"))
	assert.NotNil(t, model.Node("block8_10"))

	// The final block8 runs without a terminal activation.
	assert.NotNil(t, model.Node("block8_9_ac"))
	assert.Nil(t, model.Node("block8_10_ac"))

	require.NotNil(t, model.Node("avg_pool"))
	predictions := model.Node("predictions")
	require.NotNil(t, predictions)
	assert.Equal(t, 10, predictions.Channels())
	assert.Equal(t, 10, model.OutputChannels())
}

func TestInceptionResNetV2Forward(t *testing.T) {
	backend := cpu.New()

	cfg := DefaultConfig()
	cfg.BaseChannel = 2
	cfg.Classes = 5
	cfg.InputSize = [3]int{75, 75, 75}

	model, err := InceptionResNetV2(cfg, backend)
	require.NoError(t, err)

	x := tensor.RandnSeeded[float32](tensor.Shape{1, 3, 75, 75, 75}, 1, backend)
	y := model.Forward(x)
	require.Equal(t, tensor.Shape{1, 5}, y.Shape())

	var sum float32
	for _, v := range y.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestInceptionResNetV2FeatureExtraction(t *testing.T) {
	backend := cpu.New()

	cfg := DefaultConfig()
	cfg.BaseChannel = 2
	cfg.IncludeTop = false

	model, err := InceptionResNetV2(cfg, backend)
	require.NoError(t, err)
	assert.Nil(t, model.Node("predictions"))
	assert.Equal(t, 96, model.OutputChannels())

	cfg.Pooling = PoolingAvg
	pooled, err := InceptionResNetV2(cfg, backend)
	require.NoError(t, err)
	assert.Equal(t, 96, pooled.OutputChannels())
	assert.NotNil(t, pooled.Node("global_average_pooling3d_1"))
}

func TestInceptionResNetV2WithoutBatchNorm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseChannel = 2
	cfg.BatchNorm = false

	model, err := InceptionResNetV2(cfg, cpu.New())
	require.NoError(t, err)
	assert.NotNil(t, model.Node("conv_7b"))
	assert.Nil(t, model.Node("conv_7b_bn"))
	assert.NotNil(t, model.Node("conv_7b_ac"))
}

func TestCustomInceptionResNetV2Forward(t *testing.T) {
	backend := cpu.New()

	cfg := DefaultConfig()
	cfg.BaseChannel = 2
	cfg.Classes = 4
	cfg.InputSize = [3]int{40, 40, 40}

	model, err := CustomInceptionResNetV2(cfg, true, backend)
	require.NoError(t, err)
	assert.Equal(t, "inception_resnet_v2_custom", model.Name())

	x := tensor.RandnSeeded[float32](tensor.Shape{1, 3, 40, 40, 40}, 2, backend)
	y := model.Forward(x)
	require.Equal(t, tensor.Shape{1, 4}, y.Shape())

	var sum float32
	for _, v := range y.Data() {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestCustomInceptionResNetV2SkipsStem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseChannel = 2
	cfg.InputSize = [3]int{40, 40, 40}

	model, err := CustomInceptionResNetV2(cfg, false, cpu.New())
	require.NoError(t, err)

	// Without the head convs the first layers feed mixed_5b directly, so
	// no pooling precedes it.
	assert.Nil(t, model.Node("max_pooling3d_1"))
	assert.NotNil(t, model.Node("mixed_5b"))

	withHead, err := CustomInceptionResNetV2(cfg, true, cpu.New())
	require.NoError(t, err)
	assert.NotNil(t, withHead.Node("max_pooling3d_1"))
}

func TestInceptionResNetV2WeightRoundTrip(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "irv2.safetensors")

	cfg := DefaultConfig()
	cfg.BaseChannel = 1
	cfg.Classes = 3
	cfg.InputSize = [3]int{40, 40, 40}

	src, err := CustomInceptionResNetV2(cfg, false, backend)
	require.NoError(t, err)
	require.NoError(t, src.SaveWeights(path))

	cfg.Weights = path
	dst, err := CustomInceptionResNetV2(cfg, false, backend)
	require.NoError(t, err)

	srcDict, dstDict := src.StateDict(), dst.StateDict()
	require.Equal(t, len(srcDict), len(dstDict))
	for key, want := range srcDict {
		got := dstDict[key]
		require.NotNil(t, got, key)
		assert.Equal(t, want.Data(), got.Data(), key)
	}
}
