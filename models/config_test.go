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

func TestPretrainedTopRequires1000Classes(t *testing.T) {
	backend := cpu.New()

	cfg := DefaultConfig()
	cfg.Weights = WeightsImageNet
	cfg.Classes = 500

	_, err := InceptionResNetV2(cfg, backend)
	assert.ErrorIs(t, err, ErrConfigConflict)

	// Without the classification top the class count is unused and the
	// conflict disappears (the cache lookup then decides the outcome).
	cfg.IncludeTop = false
	_, err = InceptionResNetV2(cfg, backend)
	assert.NotErrorIs(t, err, ErrConfigConflict)
}

func TestMissingWeightsFileFailsBeforeAssembly(t *testing.T) {
	backend := cpu.New()

	cfg := DefaultConfig()
	cfg.Weights = filepath.Join(t.TempDir(), "does_not_exist.safetensors")

	_, err := InceptionResNetV2(cfg, backend)
	assert.ErrorIs(t, err, ErrInvalidWeightsSource)

	_, err = Xception(cfg, backend)
	assert.ErrorIs(t, err, ErrInvalidWeightsSource)
}

func TestInputBelowMinimumRejected(t *testing.T) {
	backend := cpu.New()

	cfg := DefaultConfig()
	cfg.Weights = ""
	cfg.InputSize = [3]int{64, 75, 75} // depth below the 75 minimum

	_, err := InceptionResNetV2(cfg, backend)
	assert.ErrorIs(t, err, ErrInvalidInputShape)

	cfg.InputSize = [3]int{16, 32, 32}
	_, err = Xception(cfg, backend)
	assert.ErrorIs(t, err, ErrInvalidInputShape)
}

func TestCustomVariantAcceptsSmallerInput(t *testing.T) {
	backend := cpu.New()

	cfg := DefaultConfig()
	cfg.BaseChannel = 2
	cfg.InputSize = [3]int{40, 40, 40}

	_, err := CustomInceptionResNetV2(cfg, false, backend)
	require.NoError(t, err)

	cfg.InputSize = [3]int{39, 40, 40}
	_, err = CustomInceptionResNetV2(cfg, false, backend)
	assert.ErrorIs(t, err, ErrInvalidInputShape)
}

func TestPreprocessInput(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{0, 127.5, 255}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	out := PreprocessInput(x)
	assert.InDelta(t, -1, out.Data()[0], 1e-6)
	assert.InDelta(t, 0, out.Data()[1], 1e-6)
	assert.InDelta(t, 1, out.Data()[2], 1e-6)

	// The input itself is untouched.
	assert.Equal(t, []float32{0, 127.5, 255}, x.Data())
}

func TestPoolingString(t *testing.T) {
	assert.Equal(t, "none", PoolingNone.String())
	assert.Equal(t, "avg", PoolingAvg.String())
	assert.Equal(t, "max", PoolingMax.String())
}
