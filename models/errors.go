// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package models

import "errors"

// Configuration and assembly errors. Assemblers report these before any
// graph is built, so a failed call never does convolution work.
var (
	// ErrConfigConflict reports mutually exclusive configuration values,
	// such as pretrained classification weights with a custom class count.
	ErrConfigConflict = errors.New("models: conflicting configuration")

	// ErrInvalidWeightsSource reports a weights value that is neither
	// empty, "imagenet", nor a path to an existing file.
	ErrInvalidWeightsSource = errors.New("models: invalid weights source")

	// ErrInvalidInputShape reports a spatial input size below the
	// architecture's minimum.
	ErrInvalidInputShape = errors.New("models: invalid input shape")

	// ErrUnknownBlockKind reports a BlockKind outside the closed set of
	// Inception-ResNet block types.
	ErrUnknownBlockKind = errors.New("models: unknown inception-resnet block kind")
)
