package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"mosaicgen/internal/catalog"
	"mosaicgen/internal/ffmpeg"
	"mosaicgen/internal/model"
	"mosaicgen/internal/videobackend"
)

// fakeBackend answers every request without touching ffmpeg/ffprobe,
// mirroring internal/thumbnail's test fake but also implementing Metadata
// and ExportPreview so the full pipeline can run against a synthetic
// source of the duration and size each test sets.
type fakeBackend struct {
	duration float64
	width    int
	height   int
}

func (f *fakeBackend) Load(_ context.Context, path string) (videobackend.Asset, error) {
	return videobackend.Asset{Path: path}, nil
}

func (f *fakeBackend) Metadata(_ context.Context, asset videobackend.Asset) (model.VideoMetadata, error) {
	return model.VideoMetadata{
		FilePath:        asset.Path,
		DurationSeconds: f.duration,
		Width:           f.width,
		Height:          f.height,
		Codec:           "h264",
		Bucket:          model.BucketForDuration(f.duration),
	}, nil
}

func (f *fakeBackend) ExtractFrame(_ context.Context, _ videobackend.Asset, targetSecond, _ float64, w, h int) (model.TimedThumbnail, error) {
	if w <= 0 {
		w = 16
	}
	if h <= 0 {
		h = 9
	}
	return model.TimedThumbnail{TimestampSeconds: targetSecond, Image: solidJPEG(w, h)}, nil
}

func (f *fakeBackend) ExportPreview(_ context.Context, _ videobackend.Asset, _ []ffmpeg.PreviewSegment, _ float64, _ int, _, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("fake-preview"), 0o644)
}

func solidJPEG(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

func baseConfig(width int) model.ProcessingConfig {
	return model.ProcessingConfig{
		Width:       width,
		Density:     model.DensityM,
		AspectRatio: model.Aspect16x9,
		Format:      model.FormatJPEG,
		Overwrite:   true,
		Generator: model.GeneratorConfig{
			MaxConcurrency:     2,
			BatchSize:          4,
			CompressionQuality: 0.8,
		},
	}
}

func writeFixtureVideo(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not a real video"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestRunJob_DirectoryInput_ProducesMosaicAndCatalogEntry(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVideo(t, dir, "clip.mp4")

	cat, err := catalog.OpenInMemory()
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer cat.Close()

	p := New(&fakeBackend{duration: 60, width: 640, height: 360}, cat, "ffmpeg")
	cfg := baseConfig(320)

	res, err := p.RunJob(context.Background(), dir, cfg, nil)
	if err != nil {
		t.Fatalf("run job: %v", err)
	}
	if res.Completed != 1 || res.Errored != 0 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("expected one catalog entry, got %d", len(res.Entries))
	}
	if _, err := os.Stat(res.Entries[0].MosaicFilePath); err != nil {
		t.Fatalf("mosaic file not written: %v", err)
	}

	entries, err := cat.FetchAll()
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one persisted row, got %d", len(entries))
	}
}

func TestRunJob_SingleFileInput_ProducesMosaicAndCatalogEntry(t *testing.T) {
	dir := t.TempDir()
	file := writeFixtureVideo(t, dir, "clip.mp4")

	cat, err := catalog.OpenInMemory()
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer cat.Close()

	p := New(&fakeBackend{duration: 60, width: 640, height: 360}, cat, "ffmpeg")
	cfg := baseConfig(320)

	res, err := p.RunJob(context.Background(), file, cfg, nil)
	if err != nil {
		t.Fatalf("run job: %v", err)
	}
	if res.Completed != 1 || res.Errored != 0 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("expected one catalog entry, got %d", len(res.Entries))
	}
}

func TestRunJob_SingleFileInput_SuppressesSummary(t *testing.T) {
	dir := t.TempDir()
	file := writeFixtureVideo(t, dir, "clip.mp4")

	cat, _ := catalog.OpenInMemory()
	defer cat.Close()

	p := New(&fakeBackend{duration: 600, width: 640, height: 360}, cat, "ffmpeg")
	cfg := baseConfig(320)
	cfg.GeneratePreview = true
	cfg.PreviewDuration = 30
	cfg.PreviewDensity = model.DensityM
	cfg.Summary = true

	res, err := p.RunJob(context.Background(), file, cfg, nil)
	if err != nil {
		t.Fatalf("run job: %v", err)
	}
	if res.Completed != 1 {
		t.Fatalf("expected one completed item, got %+v", res)
	}
	if res.SummaryPath != "" {
		t.Fatalf("a single-file input must never produce a summary video, got %q", res.SummaryPath)
	}
}

func TestRunJob_OverwriteFalse_SkipsExistingOutput(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVideo(t, dir, "clip.mp4")

	cat, err := catalog.OpenInMemory()
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer cat.Close()

	p := New(&fakeBackend{duration: 60, width: 640, height: 360}, cat, "ffmpeg")
	cfg := baseConfig(320)

	if _, err := p.RunJob(context.Background(), dir, cfg, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}

	cfg.Overwrite = false
	res, err := p.RunJob(context.Background(), dir, cfg, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Skipped != 1 || res.Completed != 0 {
		t.Fatalf("expected the rerun to skip the existing mosaic, got %+v", res)
	}

	entries, err := cat.FetchAll()
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no new catalog rows from the skipped rerun, got %d", len(entries))
	}
}

func TestRunJob_MinDuration_SkipsShortSources(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVideo(t, dir, "short.mp4")

	cat, _ := catalog.OpenInMemory()
	defer cat.Close()

	p := New(&fakeBackend{duration: 3, width: 640, height: 360}, cat, "ffmpeg")
	cfg := baseConfig(320)
	cfg.MinDuration = 10

	res, err := p.RunJob(context.Background(), dir, cfg, nil)
	if err != nil {
		t.Fatalf("run job: %v", err)
	}
	if res.Skipped != 1 || res.Completed != 0 {
		t.Fatalf("expected short source to be skipped, got %+v", res)
	}
}

func TestRunJob_CancelledBeforeStart_StartsNoItems(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVideo(t, dir, "clip.mp4")
	writeFixtureVideo(t, dir, "clip2.mp4")

	cat, _ := catalog.OpenInMemory()
	defer cat.Close()

	p := New(&fakeBackend{duration: 60, width: 640, height: 360}, cat, "ffmpeg")
	cfg := baseConfig(320)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.RunJob(ctx, dir, cfg, nil)
	if err != nil {
		t.Fatalf("run job: %v", err)
	}
	if !res.Cancelled {
		t.Fatalf("expected job to report cancelled, got %+v", res)
	}
	if res.Completed != 0 {
		t.Fatalf("expected no items to complete after pre-cancellation, got %+v", res)
	}
}

func TestRunJob_EmptyDirectory_ReturnsEmptyResult(t *testing.T) {
	dir := t.TempDir()
	cat, _ := catalog.OpenInMemory()
	defer cat.Close()

	p := New(&fakeBackend{duration: 60, width: 640, height: 360}, cat, "ffmpeg")
	cfg := baseConfig(320)

	res, err := p.RunJob(context.Background(), dir, cfg, nil)
	if err != nil {
		t.Fatalf("run job: %v", err)
	}
	if res.Completed != 0 || res.Skipped != 0 || res.Errored != 0 {
		t.Fatalf("expected an empty result for an empty directory, got %+v", res)
	}
}

func TestRunJob_GenerateScrubber_DoesNotFailItemOnExportFailure(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVideo(t, dir, "clip.mp4")

	cat, _ := catalog.OpenInMemory()
	defer cat.Close()

	// The fake backend has no ffmpeg binary behind it, so ExportScrubber's
	// real ffmpeg.Command.Run will fail to find "ffmpeg-does-not-exist" on
	// PATH; RunJob must still report the mosaic item as completed (§7).
	p := New(&fakeBackend{duration: 60, width: 640, height: 360}, cat, "ffmpeg-does-not-exist")
	cfg := baseConfig(320)
	cfg.GenerateScrubber = true

	res, err := p.RunJob(context.Background(), dir, cfg, nil)
	if err != nil {
		t.Fatalf("run job: %v", err)
	}
	if res.Completed != 1 || res.Errored != 0 {
		t.Fatalf("expected scrubber export failure to be non-fatal, got %+v", res)
	}
}

func TestRunJob_GeneratePreview_WritesPreviewFile(t *testing.T) {
	dir := t.TempDir()
	writeFixtureVideo(t, dir, "clip.mp4")

	cat, _ := catalog.OpenInMemory()
	defer cat.Close()

	p := New(&fakeBackend{duration: 600, width: 640, height: 360}, cat, "ffmpeg")
	cfg := baseConfig(320)
	cfg.GeneratePreview = true
	cfg.PreviewDuration = 30
	cfg.PreviewDensity = model.DensityM

	res, err := p.RunJob(context.Background(), dir, cfg, nil)
	if err != nil {
		t.Fatalf("run job: %v", err)
	}
	if res.Completed != 1 {
		t.Fatalf("expected one completed item, got %+v", res)
	}
	previewPath := filepath.Join(dir, "0th", "amprv", "clip-amprv-M.mp4")
	if _, err := os.Stat(previewPath); err != nil {
		t.Fatalf("expected preview file at %s: %v", previewPath, err)
	}
}
