// Package pipeline implements the orchestrator (C10): it discovers work
// items, runs up to max_concurrency of them concurrently through the
// per-item state machine (§4.7), routes progress through a
// progress.Tracker, writes results to the catalog, and honours a single
// cooperative cancellation token.
//
// Grounded on the teacher's main() claim-loop (pre-flight check, semaphore
// acquisition, activeJobs drain-on-cancel) and its signal-handling
// goroutine (first SIGINT cancels gracefully, second forces exit), adapted
// from "claim one DB job, run 4 fixed goroutines per job" to "discover N
// local work items, run up to max_concurrency of them, each through the
// mosaic/preview stage sequence."
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"mosaicgen/internal/catalog"
	"mosaicgen/internal/discovery"
	"mosaicgen/internal/ffmpeg"
	"mosaicgen/internal/layout"
	"mosaicgen/internal/mosaic"
	"mosaicgen/internal/mosaicerr"
	"mosaicgen/internal/model"
	"mosaicgen/internal/preview"
	"mosaicgen/internal/progress"
	"mosaicgen/internal/thumbnail"
	"mosaicgen/internal/videobackend"
)

// Result summarizes one RunJob call.
type Result struct {
	Completed   int
	Skipped     int
	Errored     int
	Cancelled   bool
	Entries     []model.CatalogEntry
	SummaryPath string
}

// Pipeline owns the worker pool, the video backend, and the catalog
// connection for a run. One Pipeline may execute many jobs sequentially;
// RunJob is not re-entrant on the same Pipeline value.
type Pipeline struct {
	Backend videobackend.Backend
	Catalog *catalog.Catalog

	ffmpegPath string
	thumbnails *thumbnail.Engine
	mosaics    *mosaic.Composer
	previews   *preview.Composer

	cancelsMu sync.Mutex
	cancels   map[string]context.CancelFunc
}

// New builds a Pipeline from a video backend, a catalog, and the ffmpeg
// binary path used by the mosaic compositor's HEIC fallback encoder and by
// the summary video's final concat step.
func New(backend videobackend.Backend, cat *catalog.Catalog, ffmpegPath string) *Pipeline {
	return &Pipeline{
		Backend:    backend,
		Catalog:    cat,
		ffmpegPath: ffmpegPath,
		thumbnails: thumbnail.New(backend),
		mosaics:    mosaic.New(ffmpegPath),
		previews:   preview.New(backend),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// CancelFile cancels a single in-flight item by source filename, per
// spec.md §4.7's "per-file cancellation" rule. Returns false if no such
// item is currently running.
func (p *Pipeline) CancelFile(filename string) bool {
	p.cancelsMu.Lock()
	defer p.cancelsMu.Unlock()
	cancel, ok := p.cancels[filename]
	if ok {
		cancel()
	}
	return ok
}

func (p *Pipeline) registerItem(ctx context.Context, filename string) (context.Context, context.CancelFunc) {
	itemCtx, cancel := context.WithCancel(ctx)
	p.cancelsMu.Lock()
	p.cancels[filename] = cancel
	p.cancelsMu.Unlock()
	return itemCtx, func() {
		cancel()
		p.cancelsMu.Lock()
		delete(p.cancels, filename)
		p.cancelsMu.Unlock()
	}
}

// RunJob expands input into work items, processes up to
// cfg.Generator.MaxConcurrency of them concurrently, and returns the
// aggregate result. onProgress, if non-nil, is registered on the job's
// progress.Tracker before any item starts.
func (p *Pipeline) RunJob(ctx context.Context, input string, cfg model.ProcessingConfig, onProgress progress.Handler) (Result, error) {
	if cfg.Width <= 0 {
		return Result{}, &mosaicerr.ConfigurationError{Reason: "width must be positive"}
	}
	if cfg.Generator.MaxConcurrency <= 0 {
		return Result{}, &mosaicerr.ConfigurationError{Reason: "max_concurrency must be >= 1"}
	}

	items, singleFile, err := discovery.Discover(ctx, input, discovery.Options{
		Width:      cfg.Width,
		SaveAtRoot: cfg.SaveAtRoot,
	})
	if err != nil {
		return Result{}, err
	}
	if singleFile {
		// §4.1: a single-file input follows the directory case in every
		// respect except the summary artifact, which has nothing to
		// concatenate beyond that one item's own preview.
		cfg.Summary = false
	}

	total := len(items)
	if cfg.Summary && total > 0 {
		total++ // the summary video is one extra pseudo-item (§4.7)
	}
	tracker := progress.New(total)
	if onProgress != nil {
		tracker.OnProgress(onProgress)
	}
	if total == 0 {
		tracker.Finish()
		return Result{}, nil
	}

	sem := semaphore.NewWeighted(int64(cfg.Generator.MaxConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	res := Result{}
	var previewPaths []string

	for _, item := range items {
		item := item

		select {
		case <-ctx.Done():
			// Cancellation observed before dispatch: stop starting new
			// items (§4.7, §5).
			mu.Lock()
			res.Cancelled = true
			mu.Unlock()
		default:
		}

		mu.Lock()
		cancelled := res.Cancelled
		mu.Unlock()
		if cancelled {
			break
		}

		if err := sem.Acquire(gctx, 1); err != nil {
			// gctx is cancelled only through ctx (item goroutines always
			// return nil); record it directly instead of relying on some
			// other item to notice ctx.Done() first, since none may be running.
			mu.Lock()
			res.Cancelled = true
			mu.Unlock()
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			itemCtx, done := p.registerItem(gctx, item.SourcePath)
			defer done()

			outcome, err := p.processItem(itemCtx, item, cfg, tracker)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == mosaicerr.ErrCancelled:
				res.Cancelled = true
			case outcome.skipped:
				res.Skipped++
			case outcome.errored:
				res.Errored++
			default:
				res.Completed++
				if outcome.entry != nil {
					res.Entries = append(res.Entries, *outcome.entry)
				}
				if outcome.previewPath != "" {
					previewPaths = append(previewPaths, outcome.previewPath)
				}
			}
			return nil
		})
	}

	_ = g.Wait()
	tracker.Finish()

	if cfg.Summary && len(previewPaths) > 0 && !res.Cancelled {
		summaryPath, err := p.buildSummary(ctx, items[0].OutputDir, previewPaths)
		if err == nil {
			res.SummaryPath = summaryPath
			tracker.UpdateFile(model.FileProgress{
				Filename:   "summary",
				Progress:   1,
				Stage:      model.StageDone,
				IsComplete: true,
				OutputURL:  summaryPath,
			})
		} else {
			tracker.UpdateFile(model.FileProgress{
				Filename:     "summary",
				Stage:        model.StageError,
				IsError:      true,
				ErrorMessage: err.Error(),
			})
		}
		tracker.Finish()
	}

	return res, nil
}

// itemOutcome reports how one work item concluded, for RunJob's tally.
type itemOutcome struct {
	skipped     bool
	errored     bool
	entry       *model.CatalogEntry
	previewPath string
}

// processItem runs one work item through QUEUED -> DISCOVERED -> PLANNED ->
// EXTRACTING -> COMPOSING -> WRITING -> DONE, or one of its SKIPPED /
// ERROR / CANCELLED exits (§4.7).
func (p *Pipeline) processItem(ctx context.Context, item discovery.WorkItem, cfg model.ProcessingConfig, tracker *progress.Tracker) (itemOutcome, error) {
	filename := item.SourcePath
	itemID := uuid.NewString() // job-scoped id, kept alongside filename for cancellation addressing (§9)
	log.Debug("processing work item", "item_id", itemID, "file", filename)

	report := func(fp model.FileProgress) {
		fp.Filename = filename
		tracker.UpdateFile(fp)
	}

	report(model.FileProgress{Stage: model.StageQueued, Progress: 0})

	asset, err := p.Backend.Load(ctx, item.SourcePath)
	if err != nil {
		return p.fail(report, err), nil
	}
	meta, err := p.Backend.Metadata(ctx, asset)
	if err != nil {
		return p.fail(report, err), nil
	}
	report(model.FileProgress{Stage: model.StageDiscovered, Progress: 0.05})

	if cfg.MinDuration > 0 && meta.DurationSeconds < cfg.MinDuration {
		report(model.FileProgress{Stage: model.StageSkipped, Progress: 1, IsSkipped: true})
		return itemOutcome{skipped: true}, nil
	}

	lay := layout.Plan(meta, cfg.Width, cfg.Density, cfg.AspectRatio)
	report(model.FileProgress{Stage: model.StagePlanned, Progress: 0.1})

	// The pipeline's skip decision (§4.7) is made against the unversioned
	// predicted path, before any versioning kicks in. Since we only reach
	// mosaic.OutputPath here after confirming the unversioned candidate is
	// free (or overwrite is set), its "_v2, _v3, ..." search (§4.4 step 7)
	// never versions in this call path. The generate_variant surface runs
	// through here too with overwrite forced on, so it replaces an existing
	// mosaic of the same name rather than writing a versioned copy.
	stem := strings.TrimSuffix(filepath.Base(item.SourcePath), filepath.Ext(item.SourcePath))
	predicted := defaultCandidate(item.OutputDir, meta.Bucket, stem, cfg.Density, cfg.Format, cfg.SeparateFolders)
	if skip, err := shouldSkip(predicted, cfg.Overwrite); err != nil {
		return p.fail(report, err), nil
	} else if skip {
		report(model.FileProgress{Stage: model.StageSkipped, Progress: 1, IsSkipped: true, OutputURL: predicted})
		return itemOutcome{skipped: true}, nil
	}
	outPath, err := mosaic.OutputPath(item.OutputDir, meta.Bucket, stem, cfg.Density, cfg.Format, cfg.Overwrite, cfg.SeparateFolders)
	if err != nil {
		return p.fail(report, err), nil
	}

	select {
	case <-ctx.Done():
		report(model.FileProgress{Stage: model.StageCancelled, IsCancelled: true})
		return itemOutcome{}, mosaicerr.ErrCancelled
	default:
	}

	report(model.FileProgress{Stage: model.StageExtracting, Progress: 0.15})
	thumbs, err := p.thumbnails.Extract(ctx, asset, meta, thumbnail.Options{
		Count:            lay.ThumbCount,
		Width:            lay.ThumbWidth,
		Height:           lay.ThumbHeight,
		Accurate:         cfg.Generator.AccurateTimestamps,
		BatchSize:        cfg.Generator.BatchSize,
		ToleranceSeconds: 2,
	})
	if err == mosaicerr.ErrCancelled {
		report(model.FileProgress{Stage: model.StageCancelled, IsCancelled: true})
		return itemOutcome{}, mosaicerr.ErrCancelled
	}
	if err != nil {
		return p.fail(report, err), nil
	}
	report(model.FileProgress{Stage: model.StageExtracting, Progress: 0.55})

	report(model.FileProgress{Stage: model.StageComposing, Progress: 0.6})
	canvas, err := p.mosaics.Compose(thumbs, lay, meta, mosaic.Style{
		DrawTimestamps: true, // timestamps are always stamped (§4.4 step 3)
		AddBorder:      cfg.AddBorder,
		AddShadow:      cfg.AddShadow,
		BorderColor:    parseBorderColor(cfg.BorderColor),
		BorderWidth:    cfg.BorderWidth,
	})
	if err != nil {
		return p.fail(report, err), nil
	}
	report(model.FileProgress{Stage: model.StageWriting, Progress: 0.85})

	if err := p.mosaics.Write(canvas, outPath, cfg.Format, cfg.Generator.CompressionQuality); err != nil {
		return p.fail(report, err), nil
	}

	hash, err := hashFile(outPath)
	if err != nil {
		return p.fail(report, err), nil
	}

	entry := model.CatalogEntry{
		MovieFilePath:    item.SourcePath,
		MosaicFilePath:   outPath,
		Size:             cfg.Width,
		Density:          cfg.Density,
		FolderHierarchy:  filepath.Dir(item.SourcePath),
		ContentHash:      hash,
		Duration:         meta.DurationSeconds,
		ResolutionWidth:  meta.Width,
		ResolutionHeight: meta.Height,
		Codec:            meta.Codec,
		VideoType:        meta.Bucket,
		CreationDate:     creationDateOrNow(meta),
	}
	if p.Catalog != nil {
		if err := p.Catalog.Insert(entry); err != nil {
			return p.fail(report, err), nil
		}
	}

	var previewPath string
	if cfg.GeneratePreview {
		previewPath, err = p.previews.Export(ctx, asset, meta, item.OutputDir, cfg.PreviewDuration, cfg.PreviewDensity, cfg.Generator.VideoExportPreset, 0)
		if err != nil && err != mosaicerr.ErrCancelled {
			// A failed preview does not fail the mosaic item (§7:
			// ExportFailure is fatal to the sub-artifact, not the job).
			previewPath = ""
		}
	}

	if cfg.GenerateScrubber {
		if _, err := preview.ExportScrubber(ctx, p.ffmpegPath, item.SourcePath, item.OutputDir, stem, cfg.Density, meta, lay.ThumbWidth); err != nil && err != mosaicerr.ErrCancelled {
			// Same rule as the preview clip: a failed scrubber sprite does
			// not fail the mosaic item.
			log.Warn("scrubber export failed", "file", filename, "err", err)
		}
	}

	report(model.FileProgress{Stage: model.StageDone, Progress: 1, IsComplete: true, OutputURL: outPath})

	return itemOutcome{entry: &entry, previewPath: previewPath}, nil
}

func (p *Pipeline) fail(report func(model.FileProgress), err error) itemOutcome {
	report(model.FileProgress{Stage: model.StageError, IsError: true, ErrorMessage: err.Error()})
	return itemOutcome{errored: true}
}

// buildSummary concatenates per-item preview clips into one summary video
// at "<parent_of_output>/<YYYYMMDDHHMM>-amprv.mp4" (§6). The 1920x1080
// pixel format the original hard-codes is left as the export backend's
// default; nothing here re-encodes to a fixed size since ConcatFiles uses
// stream copy.
func (p *Pipeline) buildSummary(ctx context.Context, firstOutputDir string, previewPaths []string) (string, error) {
	parent := filepath.Dir(firstOutputDir)
	outPath := filepath.Join(parent, fmt.Sprintf("%s-amprv.mp4", time.Now().Format("200601021504")))
	if err := ffmpeg.ConcatFiles(ctx, p.ffmpegPath, previewPaths, outPath); err != nil {
		return "", &mosaicerr.ExportFailure{Reason: "summary concat", Err: err}
	}
	return outPath, nil
}

func defaultCandidate(outputDir string, bucket model.DurationBucket, stem string, density model.Density, format model.OutputFormat, separateFolders bool) string {
	dir := outputDir
	if separateFolders {
		dir = filepath.Join(outputDir, string(bucket))
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s-%s.%s", bucket, stem, density, format.Ext()))
}

func shouldSkip(outPath string, overwrite bool) (bool, error) {
	if overwrite {
		return false, nil
	}
	_, err := os.Stat(outPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &mosaicerr.IOError{Path: outPath, Err: err}
}

func creationDateOrNow(meta model.VideoMetadata) time.Time {
	if meta.CreationTime != nil {
		return *meta.CreationTime
	}
	return time.Now()
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &mosaicerr.IOError{Path: path, Err: err}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// parseBorderColor maps a hex (#rrggbb) or empty border color config value
// to a drawable color.Color, defaulting to opaque white.
func parseBorderColor(hex string) color.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return color.White
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.White
	}
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
