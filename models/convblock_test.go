// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxel-ml/voxelnets/internal/backend/cpu"
	"github.com/voxel-ml/voxelnets/internal/graph"
	"github.com/voxel-ml/voxelnets/internal/layout"
	"github.com/voxel-ml/voxelnets/internal/nn"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

func testGraph(t *testing.T, channels int) (*graph.Graph[*cpu.CPUBackend], *graph.Node[*cpu.CPUBackend]) {
	t.Helper()
	g := graph.New(cpu.New())
	return g, g.Input("input", channels, layout.ChannelsFirst, layout.CPUCaps())
}

func TestConvBlockLayerChain(t *testing.T) {
	g, in := testGraph(t, 3)

	out := ConvBlock(g, in, true, ConvBlockOpts{
		Filters: 8,
		Kernel:  nn.Cubic(3),
		Padding: nn.PaddingSame,
		Name:    "stem",
	})
	assert.Equal(t, "stem_ac", out.Name())
	assert.Equal(t, 8, out.Channels())

	model := g.Finalize("m", in, out)
	require.NotNil(t, model.Node("stem"))
	require.NotNil(t, model.Node("stem_bn"))
	require.NotNil(t, model.Node("stem_ac"))

	// The normalization runs without a learned scale.
	dict := model.StateDict()
	assert.Contains(t, dict, "stem_bn.beta")
	assert.NotContains(t, dict, "stem_bn.gamma")
}

func TestConvBlockBiasSuppressesNorm(t *testing.T) {
	g, in := testGraph(t, 3)

	out := ConvBlock(g, in, true, ConvBlockOpts{
		Filters:    4,
		Kernel:     nn.Cubic(1),
		Padding:    nn.PaddingSame,
		Activation: nn.ActivationNone,
		UseBias:    true,
		Name:       "proj",
	})
	assert.Equal(t, "proj", out.Name())

	model := g.Finalize("m", in, out)
	assert.Nil(t, model.Node("proj_bn"))
	assert.Nil(t, model.Node("proj_ac"))
	assert.Contains(t, model.StateDict(), "proj.bias")
}

func TestConvBlockWithoutBatchNorm(t *testing.T) {
	g, in := testGraph(t, 3)

	out := ConvBlock(g, in, false, ConvBlockOpts{
		Filters: 4,
		Kernel:  nn.Cubic(3),
		Padding: nn.PaddingValid,
		Name:    "bare",
	})

	model := g.Finalize("m", in, out)
	require.NotNil(t, model.Node("bare"))
	assert.Nil(t, model.Node("bare_bn"))
	require.NotNil(t, model.Node("bare_ac"))
}

func TestConvBlockTruncatesFractionalFilters(t *testing.T) {
	g, in := testGraph(t, 3)

	// 2.5 * base channel 1 truncates to 2 filters.
	out := ConvBlock(g, in, true, ConvBlockOpts{
		Filters: 2.5,
		Kernel:  nn.Cubic(1),
		Padding: nn.PaddingValid,
		Name:    "narrow",
	})
	assert.Equal(t, 2, out.Channels())
}

func TestConvBlockAutoName(t *testing.T) {
	g, in := testGraph(t, 3)

	first := ConvBlock(g, in, true, ConvBlockOpts{
		Filters: 2, Kernel: nn.Cubic(1), Padding: nn.PaddingSame,
	})
	second := ConvBlock(g, first, true, ConvBlockOpts{
		Filters: 2, Kernel: nn.Cubic(1), Padding: nn.PaddingSame,
	})
	assert.Equal(t, "conv3d_1_ac", first.Name())
	assert.Equal(t, "conv3d_2_ac", second.Name())
}

func TestInceptionResNetBlockUnknownKind(t *testing.T) {
	g, in := testGraph(t, 4)

	_, err := InceptionResNetBlock(g, in, ResNetBlockOpts{
		Kind:        BlockKind(99),
		Index:       1,
		Scale:       0.17,
		Activation:  nn.ActivationReLU,
		BaseChannel: 1,
		BatchNorm:   true,
	})
	assert.ErrorIs(t, err, ErrUnknownBlockKind)
}

func TestInceptionResNetBlockStructure(t *testing.T) {
	g, in := testGraph(t, 20)

	out, err := InceptionResNetBlock(g, in, ResNetBlockOpts{
		Kind:        Block17,
		Index:       3,
		Scale:       0.1,
		Activation:  nn.ActivationReLU,
		BaseChannel: 2,
		BatchNorm:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "block17_3_ac", out.Name())

	// The residual sum restores the input width.
	assert.Equal(t, 20, out.Channels())

	model := g.Finalize("m", in, out)

	// Two branches of 6*bc channels each.
	mixed := model.Node("block17_3_mixed")
	require.NotNil(t, mixed)
	assert.Equal(t, 24, mixed.Channels())

	// The projection is biased and unnormalized.
	require.NotNil(t, model.Node("block17_3_conv"))
	assert.Nil(t, model.Node("block17_3_conv_bn"))
	assert.Contains(t, model.StateDict(), "block17_3_conv.bias")
}

func TestInceptionResNetBlockWithoutActivation(t *testing.T) {
	g, in := testGraph(t, 8)

	out, err := InceptionResNetBlock(g, in, ResNetBlockOpts{
		Kind:        Block8,
		Index:       10,
		Scale:       1,
		Activation:  nn.ActivationNone,
		BaseChannel: 1,
		BatchNorm:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "block8_10", out.Name())
}

func TestInceptionResNetBlockResidualIdentity(t *testing.T) {
	backend := cpu.New()
	g := graph.New(backend)
	in := g.Input("input", 4, layout.ChannelsFirst, layout.CPUCaps())

	out, err := InceptionResNetBlock(g, in, ResNetBlockOpts{
		Kind:        Block35,
		Index:       1,
		Scale:       1,
		Activation:  nn.ActivationNone,
		BaseChannel: 1,
		BatchNorm:   true,
	})
	require.NoError(t, err)

	model := g.Finalize("m", in, out)

	// With the projection zeroed the residual branch contributes nothing
	// and the block is the identity.
	dict := model.StateDict()
	for _, key := range []string{"block35_1_conv.kernel", "block35_1_conv.bias"} {
		data := dict[key].AsFloat32()
		require.NotNil(t, data, key)
		for i := range data {
			data[i] = 0
		}
	}

	x := tensor.RandnSeeded[float32](tensor.Shape{1, 4, 5, 5, 5}, 7, backend)
	y := model.Forward(x)
	require.Equal(t, x.Shape(), y.Shape())
	for i, v := range y.Data() {
		assert.InDelta(t, x.Data()[i], v, 1e-5)
	}
}
