// Package progress implements the ProgressTracker (C9): a global counter
// stream plus a per-filename status map, emitted to a single registered
// handler at a rate-limited cadence.
//
// Grounded on the teacher's JobTracker/JobStatus (main.go): a
// mutex-guarded map of per-item status structs updated by named Update*
// methods, and logJobStatus's periodic heartbeat summary. Generalized from
// the teacher's fixed four-task-per-job shape (HLS/poster/scrubber/hover)
// to an arbitrary per-file Stage string, and from direct log lines to a
// subscribable handler, since spec.md requires an outbound event stream
// rather than a log sink.
package progress

import (
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"mosaicgen/internal/model"
)

// Handler receives coalesced progress snapshots. It is invoked on the
// goroutine whose update triggered the emission, serialized by the Tracker
// so it never runs concurrently and need not be thread-safe itself — but
// it must not block indefinitely, since every subsequent update waits
// behind it.
type Handler func(Snapshot)

// Snapshot is one emitted update: the global counters plus the full set of
// per-file records known at emission time.
type Snapshot struct {
	Completed int
	Total     int
	Skipped   int
	Errored   int
	Elapsed   time.Duration
	FPS       float64
	ETA       time.Duration
	Files     map[string]model.FileProgress
}

// minEmitInterval caps emission at roughly 30Hz per spec.md §4.8.
const minEmitInterval = time.Second / 30

// Tracker maintains global and per-file progress and dispatches
// rate-limited snapshots to a single registered Handler.
type Tracker struct {
	mu        sync.Mutex
	startedAt time.Time
	total     int
	completed int
	skipped   int
	errored   int
	files     map[string]model.FileProgress

	handler  Handler
	lastEmit time.Time
	emitMu   sync.Mutex // serializes handler calls
}

// New creates a Tracker for a job of the given total item count.
func New(total int) *Tracker {
	return &Tracker{
		startedAt: time.Now(),
		total:     total,
		files:     make(map[string]model.FileProgress),
	}
}

// OnProgress registers the single handler invoked on each rate-limited
// emission. Replaces any previously registered handler.
func (t *Tracker) OnProgress(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// UpdateFile records a per-file progress update and emits if the rate
// limit allows.
func (t *Tracker) UpdateFile(fp model.FileProgress) {
	t.mu.Lock()
	t.files[fp.Filename] = fp
	switch {
	case fp.IsComplete:
		t.completed++
	case fp.IsSkipped:
		t.skipped++
	case fp.IsError:
		t.errored++
	}
	t.mu.Unlock()
	t.maybeEmit(false)
}

// Finish forces a final emission regardless of the rate limit, used once
// the job (or its cancellation) completes.
func (t *Tracker) Finish() {
	t.maybeEmit(true)
}

func (t *Tracker) maybeEmit(force bool) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	now := time.Now()
	if !force && now.Sub(t.lastEmit) < minEmitInterval {
		t.mu.Unlock()
		return
	}
	t.lastEmit = now
	snap := t.snapshotLocked(now)
	handler := t.handler
	t.mu.Unlock()

	if handler != nil {
		handler(snap)
	}
}

func (t *Tracker) snapshotLocked(now time.Time) Snapshot {
	elapsed := now.Sub(t.startedAt)
	progress := 0.0
	if t.total > 0 {
		progress = float64(t.completed+t.skipped+t.errored) / float64(t.total)
	}

	fps := 0.0
	if elapsed > 0 {
		fps = float64(t.completed) / elapsed.Seconds()
	}

	eta := time.Duration(0)
	if progress > 0 && !math.IsInf(progress, 0) && !math.IsNaN(progress) {
		etaSeconds := elapsed.Seconds()/progress - elapsed.Seconds()
		if etaSeconds > 0 && !math.IsInf(etaSeconds, 0) && !math.IsNaN(etaSeconds) {
			eta = time.Duration(etaSeconds * float64(time.Second))
		}
	}

	files := make(map[string]model.FileProgress, len(t.files))
	for k, v := range t.files {
		files[k] = v
	}

	return Snapshot{
		Completed: t.completed,
		Total:     t.total,
		Skipped:   t.skipped,
		Errored:   t.errored,
		Elapsed:   elapsed,
		FPS:       fps,
		ETA:       eta,
		Files:     files,
	}
}

// LogHeartbeat logs a one-line status summary, in the teacher's
// logJobStatus style, suitable for a periodic ticker.
func (t *Tracker) LogHeartbeat() {
	t.mu.Lock()
	now := time.Now()
	snap := t.snapshotLocked(now)
	t.mu.Unlock()

	log.Info("mosaicgen job status",
		"completed", snap.Completed,
		"total", snap.Total,
		"skipped", snap.Skipped,
		"errored", snap.Errored,
		"fps", snap.FPS,
		"eta", snap.ETA.Truncate(time.Second),
	)
}
