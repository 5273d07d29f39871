// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package graph

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxel-ml/voxelnets/internal/backend/cpu"
	"github.com/voxel-ml/voxelnets/internal/layout"
	"github.com/voxel-ml/voxelnets/internal/nn"
	"github.com/voxel-ml/voxelnets/internal/tensor"
	"github.com/voxel-ml/voxelnets/internal/weights"
)

func testInput(t *testing.T, g *Graph[*cpu.CPUBackend], channels int) *Node[*cpu.CPUBackend] {
	t.Helper()
	return g.Input("input", channels, layout.ChannelsFirst, layout.CPUCaps())
}

func TestAutoNamesArePerGraph(t *testing.T) {
	backend := cpu.New()

	g1 := New(backend)
	assert.Equal(t, "conv3d_1", g1.AutoName("conv3d"))
	assert.Equal(t, "conv3d_2", g1.AutoName("conv3d"))
	assert.Equal(t, "add_1", g1.AutoName("add"))

	// A second graph starts its counters fresh.
	g2 := New(backend)
	assert.Equal(t, "conv3d_1", g2.AutoName("conv3d"))
}

func TestApplyTracksChannels(t *testing.T) {
	backend := cpu.New()
	g := New(backend)
	in := testInput(t, g, 3)
	assert.Equal(t, 3, in.Channels())

	conv := g.Apply("conv", nn.NewConv3D(3, 8, nn.Cubic(3), 1, nn.PaddingSame, false, backend), in)
	assert.Equal(t, 8, conv.Channels())

	// Channel-preserving layers inherit.
	bn := g.Apply("conv_bn", nn.NewBatchNorm3D(8, false, 1e-3, backend), conv)
	assert.Equal(t, 8, bn.Channels())

	dense := g.Apply("head", nn.NewDense(8, 10, nn.ActivationSoftmax, backend), bn)
	assert.Equal(t, 10, dense.Channels())
}

func TestConcatSumsChannels(t *testing.T) {
	backend := cpu.New()
	g := New(backend)
	in := testInput(t, g, 4)

	a := g.Apply("a", nn.NewConv3D(4, 2, nn.Cubic(1), 1, nn.PaddingSame, false, backend), in)
	b := g.Apply("b", nn.NewConv3D(4, 3, nn.Cubic(1), 1, nn.PaddingSame, false, backend), in)
	cat := g.Concat("mixed", a, b)
	assert.Equal(t, 5, cat.Channels())
}

func TestScaledAddForward(t *testing.T) {
	backend := cpu.New()
	g := New(backend)
	in := testInput(t, g, 1)

	// The branch doubles the input via a fixed pointwise convolution, so
	// out = x + 0.5*(2x) = 2x.
	conv := nn.NewConv3D(1, 1, nn.Cubic(1), 1, nn.PaddingSame, false, backend)
	copy(conv.Parameters()[0].Tensor().Data(), []float32{2})
	branch := g.Apply("branch", conv, in)
	out := g.ScaledAdd("residual", in, branch, 0.5)

	model := g.Finalize("m", in, out)
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8},
		tensor.Shape{1, 1, 2, 2, 2}, backend)
	require.NoError(t, err)

	y := model.Forward(x)
	require.Equal(t, x.Shape(), y.Shape())
	for i, v := range y.Data() {
		assert.InDelta(t, 2*x.Data()[i], v, 1e-6)
	}
}

func TestAddForward(t *testing.T) {
	backend := cpu.New()
	g := New(backend)
	in := testInput(t, g, 1)

	conv := nn.NewConv3D(1, 1, nn.Cubic(1), 1, nn.PaddingSame, false, backend)
	copy(conv.Parameters()[0].Tensor().Data(), []float32{3})
	branch := g.Apply("branch", conv, in)
	out := g.Add("sum", in, branch)

	model := g.Finalize("m", in, out)
	x, err := tensor.FromSlice([]float32{1, -2}, tensor.Shape{1, 1, 1, 1, 2}, backend)
	require.NoError(t, err)

	y := model.Forward(x)
	assert.Equal(t, []float32{4, -8}, y.Data())
}

func TestConcatForwardOrder(t *testing.T) {
	backend := cpu.New()
	g := New(backend)
	in := testInput(t, g, 1)

	double := nn.NewConv3D(1, 1, nn.Cubic(1), 1, nn.PaddingSame, false, backend)
	copy(double.Parameters()[0].Tensor().Data(), []float32{2})
	triple := nn.NewConv3D(1, 1, nn.Cubic(1), 1, nn.PaddingSame, false, backend)
	copy(triple.Parameters()[0].Tensor().Data(), []float32{3})

	a := g.Apply("a", double, in)
	b := g.Apply("b", triple, in)
	out := g.Concat("mixed", a, b)

	model := g.Finalize("m", in, out)
	x, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 1, 1, 1, 2}, backend)
	require.NoError(t, err)

	y := model.Forward(x)
	require.Equal(t, tensor.Shape{1, 2, 1, 1, 2}, y.Shape())
	assert.Equal(t, []float32{2, 4, 3, 6}, y.Data())
}

func TestInputNormalizesChannelsLast(t *testing.T) {
	backend := cpu.New()
	g := New(backend)
	in := g.Input("input", 2, layout.ChannelsLast, layout.CPUCaps())

	model := g.Finalize("m", in, in)
	x, err := tensor.FromSlice([]float32{1, 10, 2, 20, 3, 30, 4, 40},
		tensor.Shape{1, 1, 2, 2, 2}, backend)
	require.NoError(t, err)

	y := model.Forward(x)
	require.Equal(t, tensor.Shape{1, 2, 1, 2, 2}, y.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 10, 20, 30, 40}, y.Data())
}

func TestFinalizeDropsUnreachableNodes(t *testing.T) {
	backend := cpu.New()
	g := New(backend)
	in := testInput(t, g, 1)

	kept := g.Apply("kept", nn.NewActivation(nn.ActivationReLU, backend), in)
	g.Apply("dangling", nn.NewActivation(nn.ActivationReLU, backend), in)

	model := g.Finalize("m", in, kept)
	assert.NotNil(t, model.Node("kept"))
	assert.Nil(t, model.Node("dangling"))
	assert.Len(t, model.Nodes(), 2)
}

func TestStateDictKeysCarryNodePrefix(t *testing.T) {
	backend := cpu.New()
	g := New(backend)
	in := testInput(t, g, 1)

	conv := g.Apply("stem", nn.NewConv3D(1, 2, nn.Cubic(1), 1, nn.PaddingSame, true, backend), in)
	bn := g.Apply("stem_bn", nn.NewBatchNorm3D(2, false, 1e-3, backend), conv)
	model := g.Finalize("m", in, bn)

	dict := model.StateDict()
	assert.Contains(t, dict, "stem.kernel")
	assert.Contains(t, dict, "stem.bias")
	assert.Contains(t, dict, "stem_bn.beta")
	assert.Contains(t, dict, "stem_bn.moving_mean")
	assert.Contains(t, dict, "stem_bn.moving_variance")
	assert.Len(t, dict, 5)

	assert.Equal(t, 2+2+2+2+2, model.NumParameters())
}

func TestLoadStateDictPartialMatch(t *testing.T) {
	backend := cpu.New()
	g := New(backend)
	in := testInput(t, g, 1)
	conv := g.Apply("stem", nn.NewConv3D(1, 1, nn.Cubic(1), 1, nn.PaddingSame, true, backend), in)
	model := g.Finalize("m", in, conv)

	kernel := tensor.MustRaw(tensor.Shape{1, 1, 1, 1, 1}, tensor.Float32, tensor.CPU)
	copy(kernel.AsFloat32(), []float32{9})

	// One matching key, one foreign key: the foreign key is ignored.
	matched, err := model.LoadStateDict(map[string]*tensor.RawTensor{
		"stem.kernel":  kernel,
		"other.kernel": kernel,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, matched)
	assert.Equal(t, []float32{9}, model.StateDict()["stem.kernel"].AsFloat32())
}

func TestLoadStateDictShapeMismatch(t *testing.T) {
	backend := cpu.New()
	g := New(backend)
	in := testInput(t, g, 1)
	conv := g.Apply("stem", nn.NewConv3D(1, 1, nn.Cubic(1), 1, nn.PaddingSame, false, backend), in)
	model := g.Finalize("m", in, conv)

	wrong := tensor.MustRaw(tensor.Shape{2, 1, 1, 1, 1}, tensor.Float32, tensor.CPU)
	_, err := model.LoadStateDict(map[string]*tensor.RawTensor{"stem.kernel": wrong})
	assert.ErrorIs(t, err, weights.ErrIncompatible)
}

func TestSaveAndLoadWeights(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "m.safetensors")

	build := func() *Model[*cpu.CPUBackend] {
		g := New(backend)
		in := testInput(t, g, 1)
		conv := g.Apply("stem", nn.NewConv3D(1, 2, nn.Cubic(3), 1, nn.PaddingSame, true, backend), in)
		return g.Finalize("m", in, conv)
	}

	src := build()
	require.NoError(t, src.SaveWeights(path))

	dst := build()
	require.NoError(t, dst.LoadWeights(path))

	srcDict, dstDict := src.StateDict(), dst.StateDict()
	require.Len(t, dstDict, len(srcDict))
	for key, want := range srcDict {
		assert.Equal(t, want.AsFloat32(), dstDict[key].AsFloat32(), key)
	}
}

func TestLoadWeightsRejectsForeignFile(t *testing.T) {
	backend := cpu.New()
	path := filepath.Join(t.TempDir(), "foreign.safetensors")

	foreign := tensor.MustRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	require.NoError(t, weights.Save(path, map[string]*tensor.RawTensor{"nothing.here": foreign}))

	g := New(backend)
	in := testInput(t, g, 1)
	conv := g.Apply("stem", nn.NewConv3D(1, 1, nn.Cubic(1), 1, nn.PaddingSame, false, backend), in)
	model := g.Finalize("m", in, conv)

	err := model.LoadWeights(path)
	assert.ErrorIs(t, err, weights.ErrIncompatible)
}
