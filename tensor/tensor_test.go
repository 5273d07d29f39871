// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/voxel-ml/voxelnets/internal/backend/cpu"
	"github.com/voxel-ml/voxelnets/tensor"
)

// TestBackendInterface verifies that cpu.CPUBackend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = (*cpu.CPUBackend)(nil)
}

// TestRawTensorAPI verifies the RawTensor alias exposes the expected API.
func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	if !raw.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("Shape() = %v, want [2 3]", raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		t.Errorf("DType() = %v, want Float32", raw.DType())
	}
	if raw.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want CPU", raw.Device())
	}
	if n := raw.NumElements(); n != 6 {
		t.Errorf("NumElements() = %d, want 6", n)
	}
}

// TestTensorAPI verifies creation helpers and ops through the facade.
func TestTensorAPI(t *testing.T) {
	backend := cpu.New()

	x := tensor.Ones[float32](tensor.Shape{2, 2}, backend)
	y := tensor.Full(tensor.Shape{2, 2}, float32(2), backend)
	z := x.Add(y)
	for i, v := range z.Data() {
		if v != 3 {
			t.Errorf("Add()[%d] = %v, want 3", i, v)
		}
	}

	fs, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	if fs.Data()[3] != 4 {
		t.Errorf("FromSlice data mismatch: %v", fs.Data())
	}

	if _, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2}, backend); err == nil {
		t.Error("FromSlice accepted mismatched length")
	}

	cat := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{x, fs}, 0)
	if !cat.Shape().Equal(tensor.Shape{4, 2}) {
		t.Errorf("Cat shape = %v, want [4 2]", cat.Shape())
	}
}
