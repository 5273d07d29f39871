// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the public API for assembling and evaluating
// the static computation graphs voxelnets architectures are built from.
package graph

import (
	"github.com/voxel-ml/voxelnets/internal/graph"
	"github.com/voxel-ml/voxelnets/internal/tensor"
)

// Graph accumulates nodes during model assembly. Name counters are per
// graph, so concurrent constructions never collide.
type Graph[B tensor.Backend] = graph.Graph[B]

// Node is one operation in a computation graph.
type Node[B tensor.Backend] = graph.Node[B]

// Model is a finalized computation graph with a single input and a
// single output.
type Model[B tensor.Backend] = graph.Model[B]

// New creates an empty graph over the given backend.
func New[B tensor.Backend](backend B) *Graph[B] {
	return graph.New(backend)
}
