// Package thumbnail implements the ThumbnailEngine (C5): batched,
// tolerant seek-and-decode of N evenly-spaced frames from a video asset.
// Grounded on the teacher's S3Syncer.SyncDirectory worker-pool shape
// (pkg/storage/s3syncer.go), generalized from a raw semaphore channel to
// the pack's golang.org/x/sync/errgroup + semaphore idiom. A failed frame
// does not cancel its siblings; it is logged and dropped.
package thumbnail

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"mosaicgen/internal/mosaicerr"
	"mosaicgen/internal/model"
	"mosaicgen/internal/videobackend"
)

// Options configures one extraction run.
type Options struct {
	Count             int
	Width             int
	Height            int
	Accurate          bool
	BatchSize         int
	ToleranceSeconds  float64 // used when Accurate is false; 0 when true
}

// Engine extracts timed thumbnails from a video asset via a Backend.
type Engine struct {
	Backend videobackend.Backend
}

func New(backend videobackend.Backend) *Engine {
	return &Engine{Backend: backend}
}

// Extract produces Count evenly spaced thumbnails on [0, duration), in
// batches of BatchSize run concurrently, honoring ctx cancellation between
// batches. Per-frame decode failures are logged and dropped, so the
// returned TimedThumbnail slice may be shorter than Count; if every frame
// fails, Extract returns a *mosaicerr.PartialExtractionFailure.
func (e *Engine) Extract(ctx context.Context, asset videobackend.Asset, meta model.VideoMetadata, opts Options) ([]model.TimedThumbnail, error) {
	if opts.Count <= 0 {
		return nil, nil
	}
	targets := targetTimes(meta.DurationSeconds, opts.Count)

	tolerance := opts.ToleranceSeconds
	if opts.Accurate {
		tolerance = 0
	} else if tolerance <= 0 {
		tolerance = 2
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(targets)
	}

	results := make([]*model.TimedThumbnail, len(targets))
	failed := 0

	for start := 0; start < len(targets); start += batchSize {
		end := start + batchSize
		if end > len(targets) {
			end = len(targets)
		}

		select {
		case <-ctx.Done():
			return nil, mosaicerr.ErrCancelled
		default:
		}

		g, gctx := errgroup.WithContext(ctx)
		sem := semaphore.NewWeighted(int64(batchSize))

		for i := start; i < end; i++ {
			i := i
			if err := sem.Acquire(gctx, 1); err != nil {
				_ = g.Wait()
				return nil, mosaicerr.ErrCancelled
			}
			g.Go(func() error {
				defer sem.Release(1)
				thumb, err := e.Backend.ExtractFrame(gctx, asset, targets[i], tolerance, opts.Width, opts.Height)
				if err != nil {
					// Per-frame failures are logged and dropped, not
					// propagated: the batch continues and the slot stays
					// nil (§4.3).
					log.Warn("frame extraction failed", "index", i, "target_second", targets[i], "err", err)
					return nil
				}
				thumb.Index = i
				results[i] = &thumb
				return nil
			})
		}
		// errgroup.Go errors are always nil here by construction, and a
		// cancelled semaphore acquire returns above, so Wait only waits for
		// the batch to finish.
		if err := g.Wait(); err != nil {
			return nil, mosaicerr.ErrCancelled
		}
	}

	out := make([]model.TimedThumbnail, 0, len(targets))
	for _, r := range results {
		if r == nil {
			failed++
			continue
		}
		out = append(out, *r)
	}
	if len(out) == 0 {
		return nil, &mosaicerr.PartialExtractionFailure{Successful: 0, Failed: failed}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// targetTimes returns n evenly spaced timestamps on [0, duration) with step
// duration/n (§4.3).
func targetTimes(duration float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	step := duration / float64(n)
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = step * float64(i)
	}
	return times
}
