// Package preview implements the PreviewComposer (C7): selecting evenly
// spread segments from a source video, concatenating them at double speed
// into a short teaser clip.
//
// Grounded on the teacher's pkg/preview package (sprite sheet + VTT
// scrubber generation) for the "derive N samples from one duration, export
// alongside the main artifact" shape, and on pkg/ffmpeg's filter_complex
// split/trim/concat idiom (internal/ffmpeg.ExportPreview) for the actual
// encode.
package preview

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"mosaicgen/internal/ffmpeg"
	"mosaicgen/internal/mosaicerr"
	"mosaicgen/internal/model"
	"mosaicgen/internal/videobackend"
)

const previewSpeedFactor = 2.0

// plan is the resolved segment selection for one preview export.
type plan struct {
	Segments      []ffmpeg.PreviewSegment
	TargetSeconds float64
}

// extractsPerMinute and targetDuration mirror §4.5 step 1-2's duration
// bands: short (<300s), medium (<1200s), long (>=1200s).
func extractsPerMinute(duration float64) float64 {
	switch {
	case duration < 300:
		return 8.0
	case duration < 1200:
		return 3.0
	default:
		return 0.5
	}
}

func targetDuration(duration float64) float64 {
	switch {
	case duration < 300:
		return 30
	case duration < 1200:
		return 60
	default:
		return 90
	}
}

// buildPlan implements §4.5 steps 1 and 3: pick extract_count and
// extract_duration, then lay out evenly spaced, non-overlapping segments
// covering [0, duration).
func buildPlan(duration float64, previewDuration float64, density model.Density) (plan, error) {
	if duration <= 0 {
		return plan{}, fmt.Errorf("%w: non-positive duration", mosaicerr.ErrNoVideoOrAudio)
	}

	rate := extractsPerMinute(duration) / density.Factor()
	extractCount := int(math.Ceil(duration / 60 * rate))
	if extractCount < 1 {
		extractCount = 1
	}

	target := targetDuration(duration)
	if previewDuration > 0 && previewDuration < target {
		target = previewDuration
	}

	extractDuration := target / float64(extractCount)
	if byDuration := duration / float64(extractCount); byDuration < extractDuration {
		extractDuration = byDuration
	}
	if extractDuration <= 0 {
		return plan{}, fmt.Errorf("%w: degenerate extract duration", mosaicerr.ErrNoVideoOrAudio)
	}

	segments := make([]ffmpeg.PreviewSegment, extractCount)
	if extractCount == 1 {
		segments[0] = ffmpeg.PreviewSegment{StartSecond: 0, DurationSecond: extractDuration}
	} else {
		span := duration - extractDuration
		if span < 0 {
			span = 0
		}
		for i := 0; i < extractCount; i++ {
			start := float64(i) * span / float64(extractCount-1)
			segments[i] = ffmpeg.PreviewSegment{StartSecond: start, DurationSecond: extractDuration}
		}
	}

	return plan{Segments: segments, TargetSeconds: target}, nil
}

// Composer exports a teaser preview clip via a Backend.
type Composer struct {
	Backend videobackend.Backend
}

func New(backend videobackend.Backend) *Composer {
	return &Composer{Backend: backend}
}

// Export builds and writes the preview clip for asset to its default
// location (§4.5 step 6: "<output_dir>/../amprv/<stem>-amprv-<density>.mp4")
// and returns the written path.
func (c *Composer) Export(ctx context.Context, asset videobackend.Asset, meta model.VideoMetadata, outputDir string, previewDuration float64, density model.Density, preset string, width int) (string, error) {
	p, err := buildPlan(meta.DurationSeconds, previewDuration, density)
	if err != nil {
		return "", err
	}

	outPath := OutputPath(outputDir, meta.FilePath, density)

	select {
	case <-ctx.Done():
		return "", mosaicerr.ErrCancelled
	default:
	}

	if err := c.Backend.ExportPreview(ctx, asset, p.Segments, previewSpeedFactor, width, preset, outPath); err != nil {
		return "", &mosaicerr.ExportFailure{Reason: "preview export", Err: err}
	}
	return outPath, nil
}

// OutputPath computes the default preview path for a source file, per
// §4.5 step 6.
func OutputPath(outputDir, sourcePath string, density model.Density) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	previewDir := filepath.Join(outputDir, "..", "amprv")
	return filepath.Join(previewDir, fmt.Sprintf("%s-amprv-%s.mp4", stem, density))
}
