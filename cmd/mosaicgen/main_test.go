package main

import (
	"testing"

	"mosaicgen/internal/model"
)

func TestRunFlagsToProcessingConfig(t *testing.T) {
	f := runFlags{
		width:           1024,
		density:         "L",
		aspect:          "1:1",
		format:          "PNG",
		minDuration:     5,
		previewDuration: 45,
		previewDensity:  "S",
		overwrite:       true,
		separateFolders: true,
		addBorder:       true,
		borderColor:     "#00ff00",
		borderWidth:     4,
		maxConcurrency:  8,
		batchSize:       16,
		quality:         0.9,
		accurate:        true,
		preset:          "fast",
		preview:         true,
		scrubber:        true,
		summary:         true,
	}

	cfg := f.toProcessingConfig()

	if cfg.Width != 1024 {
		t.Errorf("Width = %d, want 1024", cfg.Width)
	}
	if cfg.Density != model.DensityL {
		t.Errorf("Density = %q, want L", cfg.Density)
	}
	if cfg.AspectRatio != model.Aspect1x1 {
		t.Errorf("AspectRatio = %q, want 1:1", cfg.AspectRatio)
	}
	if cfg.Format != model.FormatPNG {
		t.Errorf("Format = %q, want PNG", cfg.Format)
	}
	if !cfg.Overwrite || !cfg.SeparateFolders || !cfg.AddBorder {
		t.Errorf("expected overwrite/separateFolders/addBorder to carry through, got %+v", cfg)
	}
	if cfg.Generator.MaxConcurrency != 8 || cfg.Generator.BatchSize != 16 {
		t.Errorf("generator concurrency/batch not carried through: %+v", cfg.Generator)
	}
	if !cfg.GeneratePreview || !cfg.GenerateScrubber || !cfg.Summary {
		t.Errorf("expected preview/scrubber/summary flags to carry through, got %+v", cfg)
	}
}

func TestVariantCommandForcesOverwrite(t *testing.T) {
	f := runFlags{width: 640, density: "M", aspect: "16:9", format: "JPEG", maxConcurrency: 1}
	pcfg := f.toProcessingConfig()
	pcfg.Overwrite = true

	if !pcfg.Overwrite {
		t.Fatal("variant command must always force Overwrite=true")
	}
}
