// Package videobackend defines the abstract contract the pipeline uses to
// talk to a video asset (C1 in the spec), and provides an ffmpeg-backed
// implementation. Other backends (e.g. a native decoder) can satisfy the
// same interface.
package videobackend

import (
	"context"
	"time"

	"mosaicgen/internal/ffmpeg"
	"mosaicgen/internal/model"
)

// Asset is an opaque handle to an open video, sufficient to probe and
// extract from it.
type Asset struct {
	Path string
}

// Backend abstracts access to a video asset: duration, natural size, codec,
// frame extraction, and composition export.
type Backend interface {
	// Load opens path and returns an asset handle.
	Load(ctx context.Context, path string) (Asset, error)
	// Metadata returns the asset's VideoMetadata.
	Metadata(ctx context.Context, asset Asset) (model.VideoMetadata, error)
	// ExtractFrame decodes a single frame near targetSecond, scaled to
	// width x height (height<=0 preserves aspect), honoring
	// toleranceSeconds (0 = accurate/frame-exact).
	ExtractFrame(ctx context.Context, asset Asset, targetSecond, toleranceSeconds float64, width, height int) (model.TimedThumbnail, error)
	// ExportPreview writes a concatenated, time-scaled preview composed of
	// segments to outPath.
	ExportPreview(ctx context.Context, asset Asset, segments []ffmpeg.PreviewSegment, speedFactor float64, width int, preset, outPath string) error
}

// FFmpegBackend implements Backend by shelling out to ffmpeg/ffprobe.
type FFmpegBackend struct {
	FFmpegPath  string
	FFprobePath string
}

func New(ffmpegPath, ffprobePath string) *FFmpegBackend {
	return &FFmpegBackend{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

func (b *FFmpegBackend) Load(_ context.Context, path string) (Asset, error) {
	return Asset{Path: path}, nil
}

func (b *FFmpegBackend) Metadata(ctx context.Context, asset Asset) (model.VideoMetadata, error) {
	info, err := ffmpeg.Probe(ctx, b.FFprobePath, asset.Path)
	if err != nil {
		return model.VideoMetadata{}, err
	}
	md := model.VideoMetadata{
		FilePath:        asset.Path,
		DurationSeconds: info.DurationSec,
		Width:           info.Width,
		Height:          info.Height,
		Codec:           info.CodecName,
		Bucket:          model.BucketForDuration(info.DurationSec),
	}
	if info.CreationTime != "" {
		if t, err := time.Parse(time.RFC3339, info.CreationTime); err == nil {
			md.CreationTime = &t
		}
	}
	return md, nil
}

func (b *FFmpegBackend) ExtractFrame(ctx context.Context, asset Asset, targetSecond, toleranceSeconds float64, width, height int) (model.TimedThumbnail, error) {
	frame, err := ffmpeg.ExtractFrame(ctx, b.FFmpegPath, asset.Path, ffmpeg.FrameRequest{TargetSecond: targetSecond}, toleranceSeconds, width, height)
	if err != nil {
		return model.TimedThumbnail{}, err
	}
	return model.TimedThumbnail{
		Image:            frame.EncodedBytes,
		TimestampSeconds: frame.ActualSecond,
	}, nil
}

func (b *FFmpegBackend) ExportPreview(ctx context.Context, asset Asset, segments []ffmpeg.PreviewSegment, speedFactor float64, width int, preset, outPath string) error {
	return ffmpeg.ExportPreview(ctx, b.FFmpegPath, asset.Path, outPath, preset, segments, speedFactor, width)
}
