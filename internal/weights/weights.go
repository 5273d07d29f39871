// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package weights reads and writes name-keyed tensor files in the
// safetensors format: an 8-byte little-endian header length, a JSON
// header mapping tensor names to dtype, shape and byte offsets, then a
// single contiguous data section.
package weights

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/x448/float16"

	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// ErrIncompatible reports a weight file whose contents cannot be applied
// to the target model.
var ErrIncompatible = errors.New("weights: incompatible weight file")

// maxHeaderSize bounds the JSON header so a corrupt length prefix cannot
// trigger a huge allocation.
const maxHeaderSize = 100 << 20

type tensorEntry struct {
	DType   string `json:"dtype"`
	Shape   []int  `json:"shape"`
	Offsets [2]int `json:"data_offsets"`
}

// Load reads every tensor in the file. F16 entries are widened to
// float32; F32 and F64 load as-is.
func Load(path string) (map[string]*tensor.RawTensor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("weights: read %s: %w", path, err)
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("%w: %s: truncated header", ErrIncompatible, path)
	}

	headerLen := binary.LittleEndian.Uint64(raw[:8])
	if headerLen > maxHeaderSize || 8+headerLen > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: %s: header length %d out of range", ErrIncompatible, path, headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(raw[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIncompatible, path, err)
	}
	data := raw[8+headerLen:]

	dict := make(map[string]*tensor.RawTensor, len(header))
	for name, msg := range header {
		if name == "__metadata__" {
			continue
		}
		var entry tensorEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			return nil, fmt.Errorf("%w: %s: entry %q: %v", ErrIncompatible, path, name, err)
		}
		begin, end := entry.Offsets[0], entry.Offsets[1]
		if begin < 0 || end < begin || end > len(data) {
			return nil, fmt.Errorf("%w: %s: entry %q: offsets [%d,%d) out of range",
				ErrIncompatible, path, name, begin, end)
		}
		rt, err := decode(entry, data[begin:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: entry %q: %v", ErrIncompatible, path, name, err)
		}
		dict[name] = rt
	}
	return dict, nil
}

func decode(entry tensorEntry, data []byte) (*tensor.RawTensor, error) {
	shape := tensor.Shape(entry.Shape)
	n := shape.NumElements()

	switch entry.DType {
	case "F32":
		if len(data) != n*4 {
			return nil, fmt.Errorf("F32 tensor %v needs %d bytes, have %d", shape, n*4, len(data))
		}
		rt := tensor.MustRaw(shape, tensor.Float32, tensor.CPU)
		copy(rt.Data(), data)
		return rt, nil

	case "F64":
		if len(data) != n*8 {
			return nil, fmt.Errorf("F64 tensor %v needs %d bytes, have %d", shape, n*8, len(data))
		}
		rt := tensor.MustRaw(shape, tensor.Float64, tensor.CPU)
		copy(rt.Data(), data)
		return rt, nil

	case "F16":
		if len(data) != n*2 {
			return nil, fmt.Errorf("F16 tensor %v needs %d bytes, have %d", shape, n*2, len(data))
		}
		rt := tensor.MustRaw(shape, tensor.Float32, tensor.CPU)
		out := rt.AsFloat32()
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint16(data[i*2:])
			out[i] = float16.Frombits(bits).Float32()
		}
		return rt, nil

	default:
		return nil, fmt.Errorf("unsupported dtype %q", entry.DType)
	}
}

// Save writes the dictionary to path. Tensor names are sorted so the
// output is deterministic.
func Save(path string, dict map[string]*tensor.RawTensor) error {
	names := make([]string, 0, len(dict))
	for name := range dict {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]tensorEntry, len(dict))
	offset := 0
	for _, name := range names {
		rt := dict[name]
		var dtype string
		switch rt.DType() {
		case tensor.Float32:
			dtype = "F32"
		case tensor.Float64:
			dtype = "F64"
		default:
			return fmt.Errorf("weights: cannot save dtype %s", rt.DType())
		}
		size := rt.ByteSize()
		header[name] = tensorEntry{
			DType:   dtype,
			Shape:   rt.Shape(),
			Offsets: [2]int{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("weights: marshal header: %w", err)
	}

	buf := make([]byte, 0, 8+len(headerJSON)+offset)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(headerJSON)))
	buf = append(buf, headerJSON...)
	for _, name := range names {
		buf = append(buf, dict[name].Data()...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("weights: write %s: %w", path, err)
	}
	return nil
}

// EncodeF16 converts a float32 slice to packed little-endian F16 bytes.
// Out-of-range values saturate to infinity per IEEE 754 rounding.
func EncodeF16(values []float32) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		bits := float16.Fromfloat32(v).Bits()
		binary.LittleEndian.PutUint16(out[i*2:], bits)
	}
	return out
}
