// Copyright 2025 VoxelNets Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package main provides the voxelnets CLI.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/voxel-ml/voxelnets/backend/cpu"
	"github.com/voxel-ml/voxelnets/graph"
	"github.com/voxel-ml/voxelnets/models"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("voxelnets %s\n", version)
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "summary" {
		if err := summary(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "voxelnets:", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("voxelnets - volumetric CNN architectures for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  summary    Assemble an architecture and print its layers")
}

func summary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	arch := fs.String("arch", "inception_resnet_v2", "architecture: inception_resnet_v2, inception_resnet_v2_custom, xception, xception_custom_1, xception_custom_2, xception_custom_3")
	baseChannel := fs.Int("base-channel", 32, "filter count multiplier")
	classes := fs.Int("classes", 1000, "classification class count")
	includeTop := fs.Bool("include-top", true, "append the classification head")
	pooling := fs.String("pooling", "", "feature pooling without the top: avg or max")
	weightsPath := fs.String("weights", "", "weight file to load, or 'imagenet'")
	noBatchNorm := fs.Bool("no-batchnorm", false, "assemble without batch normalization")
	headConv := fs.Bool("head-conv", true, "reduced head convolutions (inception_resnet_v2_custom only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := models.DefaultConfig()
	cfg.IncludeTop = *includeTop
	cfg.Classes = *classes
	cfg.BaseChannel = *baseChannel
	cfg.BatchNorm = !*noBatchNorm
	cfg.Weights = *weightsPath
	switch *pooling {
	case "":
		cfg.Pooling = models.PoolingNone
	case "avg":
		cfg.Pooling = models.PoolingAvg
	case "max":
		cfg.Pooling = models.PoolingMax
	default:
		return fmt.Errorf("unknown pooling %q", *pooling)
	}

	backend := cpu.New()
	var (
		model *graph.Model[*cpu.Backend]
		err   error
	)
	switch *arch {
	case "inception_resnet_v2":
		model, err = models.InceptionResNetV2(cfg, backend)
	case "inception_resnet_v2_custom":
		model, err = models.CustomInceptionResNetV2(cfg, *headConv, backend)
	case "xception":
		model, err = models.Xception(cfg, backend)
	case "xception_custom_1":
		model, err = models.CustomXception1(cfg, backend)
	case "xception_custom_2":
		model, err = models.CustomXception2(cfg, backend)
	case "xception_custom_3":
		model, err = models.CustomXception3(cfg, backend)
	default:
		return fmt.Errorf("unknown architecture %q", *arch)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Model: %s\n", model.Name())
	fmt.Printf("%-28s %-44s %s\n", "Layer", "Op", "Channels")
	for _, n := range model.Nodes() {
		fmt.Printf("%-28s %-44s %d\n", n.Name(), n.Op(), n.Channels())
	}
	fmt.Printf("\nLayers: %d\n", len(model.Nodes()))
	fmt.Printf("Parameters: %d\n", model.NumParameters())
	return nil
}
