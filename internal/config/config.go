// Package config loads process-wide configuration for the mosaic generator
// from the environment.
package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// Config holds the process-wide settings for a mosaicgen run. Job-scoped
// settings (width, density, format, ...) live in model.ProcessingConfig and
// are passed explicitly to each job instead.
type Config struct {
	FFmpegPath  string `env:"FFMPEG_PATH,default=ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH,default=ffprobe"`

	CatalogPath string `env:"CATALOG_PATH,default=mosaicgen.db"`

	WorkerConcurrency int `env:"WORKER_CONCURRENCY,default=0"`
	BatchSize         int `env:"THUMBNAIL_BATCH_SIZE,default=8"`

	TempDirMinFreeGB int `env:"TEMP_DIR_MIN_FREE_GB,default=1"`
}

// Load reads Config from the environment, applying defaults.
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
