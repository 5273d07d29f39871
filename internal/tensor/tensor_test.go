// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxel-ml/voxelnets/internal/backend/cpu"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

func TestShapeBasics(t *testing.T) {
	s := tensor.Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.NoError(t, s.Validate())
	assert.True(t, s.Equal(tensor.Shape{2, 3, 4}))
	assert.False(t, s.Equal(tensor.Shape{2, 3}))
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())

	bad := tensor.Shape{2, -1}
	assert.Error(t, bad.Validate())
}

func TestShapeCloneIsIndependent(t *testing.T) {
	s := tensor.Shape{2, 3}
	c := s.Clone()
	c[0] = 99
	assert.Equal(t, 2, s[0])
}

func TestRawTensorAllocation(t *testing.T) {
	rt, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, 4, rt.NumElements())
	assert.Equal(t, 16, rt.ByteSize())
	assert.Equal(t, tensor.Float32, rt.DType())

	for _, v := range rt.AsFloat32() {
		assert.Zero(t, v)
	}

	_, err = tensor.NewRaw(tensor.Shape{-1}, tensor.Float32, tensor.CPU)
	assert.Error(t, err)
}

func TestRawTensorTypedViewsShareStorage(t *testing.T) {
	rt := tensor.MustRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	view := rt.AsFloat32()
	view[1] = 7

	again := rt.AsFloat32()
	assert.Equal(t, float32(7), again[1])

	assert.Panics(t, func() { rt.AsFloat64() })
}

func TestWithShapeView(t *testing.T) {
	rt := tensor.MustRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	rt.AsFloat32()[0] = 5

	v := rt.WithShape(tensor.Shape{3, 2})
	assert.Equal(t, tensor.Shape{3, 2}, v.Shape())
	assert.Equal(t, float32(5), v.AsFloat32()[0])

	assert.Panics(t, func() { rt.WithShape(tensor.Shape{4}) })
}

func TestFromSlice(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, x.Data())

	_, err = tensor.FromSlice([]float32{1, 2}, tensor.Shape{3}, backend)
	assert.Error(t, err)
}

func TestCreationHelpers(t *testing.T) {
	backend := cpu.New()

	z := tensor.Zeros[float32](tensor.Shape{4}, backend)
	assert.Equal(t, []float32{0, 0, 0, 0}, z.Data())

	o := tensor.Ones[float64](tensor.Shape{2}, backend)
	assert.Equal(t, []float64{1, 1}, o.Data())

	f := tensor.Full(tensor.Shape{3}, float32(2.5), backend)
	assert.Equal(t, []float32{2.5, 2.5, 2.5}, f.Data())
}

func TestRandnSeededIsDeterministic(t *testing.T) {
	backend := cpu.New()

	a := tensor.RandnSeeded[float32](tensor.Shape{16}, 42, backend)
	b := tensor.RandnSeeded[float32](tensor.Shape{16}, 42, backend)
	assert.Equal(t, a.Data(), b.Data())

	c := tensor.RandnSeeded[float32](tensor.Shape{16}, 43, backend)
	assert.NotEqual(t, a.Data(), c.Data())
}

func TestTensorOps(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	y, err := tensor.FromSlice([]float32{10, 20, 30, 40}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	assert.Equal(t, []float32{11, 22, 33, 44}, x.Add(y).Data())
	assert.Equal(t, []float32{9, 18, 27, 36}, y.Sub(x).Data())
	assert.Equal(t, []float32{2, 4, 6, 8}, x.MulScalar(2).Data())
	assert.Equal(t, []float32{70, 100, 150, 220}, x.MatMul(y).Data())
}

func TestCatTensors(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)
	y, err := tensor.FromSlice([]float32{3, 4}, tensor.Shape{1, 2}, backend)
	require.NoError(t, err)

	rows := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{x, y}, 0)
	assert.Equal(t, tensor.Shape{2, 2}, rows.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, rows.Data())

	cols := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{x, y}, 1)
	assert.Equal(t, tensor.Shape{1, 4}, cols.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, cols.Data())
}

func TestCloneIsDeep(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	c := x.Clone()
	c.Data()[0] = 99
	assert.Equal(t, float32(1), x.Data()[0])
}
