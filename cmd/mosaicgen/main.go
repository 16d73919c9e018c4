// Command mosaicgen is the CLI entrypoint wiring configuration, the
// catalog, the ffmpeg-backed video backend, and the pipeline orchestrator
// together (§6's "CLI/programmatic surface").
//
// Grounded on the teacher's main.go top half (config load, signal
// handling, DB open, component wiring); the teacher's queue-claim loop is
// dropped since this core runs one submitted job per invocation instead of
// polling an external queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mosaicgen/internal/catalog"
	"mosaicgen/internal/config"
	"mosaicgen/internal/model"
	"mosaicgen/internal/pipeline"
	"mosaicgen/internal/playlist"
	"mosaicgen/internal/progress"
	"mosaicgen/internal/videobackend"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", "error", err)
	}

	root := &cobra.Command{
		Use:   "mosaicgen",
		Short: "Generate time-ordered mosaic images and preview clips from video files",
	}
	root.AddCommand(newRunCmd(cfg))
	root.AddCommand(newVariantCmd(cfg))
	root.AddCommand(newPlaylistCmd())
	root.AddCommand(newCatalogCmd(cfg))

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

// withCancelOnSignal mirrors the teacher's main() shutdown goroutine: the
// first SIGINT/SIGTERM cancels gracefully, a second forces immediate exit.
func withCancelOnSignal() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("signal received, shutting down gracefully... (press Ctrl+C again to force exit)", "signal", sig)
		cancel()
		sig = <-sigCh
		log.Error("second signal received, forcing immediate exit", "signal", sig)
		os.Exit(1)
	}()
	return ctx, cancel
}

type runFlags struct {
	width            int
	density          string
	aspect           string
	format           string
	minDuration      float64
	previewDuration  float64
	previewDensity   string
	overwrite        bool
	saveAtRoot       bool
	separateFolders  bool
	addFullPath      bool
	addBorder        bool
	addShadow        bool
	borderColor      string
	borderWidth      int
	maxConcurrency   int
	batchSize        int
	quality          float64
	accurate         bool
	preset           string
	preview          bool
	scrubber         bool
	summary          bool
}

func (f runFlags) toProcessingConfig() model.ProcessingConfig {
	return model.ProcessingConfig{
		Width:           f.width,
		Density:         model.Density(f.density),
		AspectRatio:     model.AspectMode(f.aspect),
		Format:          model.OutputFormat(f.format),
		MinDuration:     f.minDuration,
		PreviewDuration: f.previewDuration,
		PreviewDensity:  model.Density(f.previewDensity),
		Overwrite:       f.overwrite,
		SaveAtRoot:      f.saveAtRoot,
		SeparateFolders: f.separateFolders,
		AddFullPath:     f.addFullPath,
		AddBorder:       f.addBorder,
		AddShadow:       f.addShadow,
		BorderColor:     f.borderColor,
		BorderWidth:     f.borderWidth,
		Generator: model.GeneratorConfig{
			MaxConcurrency:     f.maxConcurrency,
			BatchSize:          f.batchSize,
			CompressionQuality: f.quality,
			AccurateTimestamps: f.accurate,
			VideoExportPreset:  f.preset,
		},
		GeneratePreview:  f.preview,
		GenerateScrubber: f.scrubber,
		Summary:          f.summary,
	}
}

func bindRunFlags(cmd *cobra.Command, f *runFlags, cfg *config.Config) {
	defaultConcurrency := cfg.WorkerConcurrency
	if defaultConcurrency <= 0 {
		defaultConcurrency = runtime.GOMAXPROCS(0)
	}

	cmd.Flags().IntVar(&f.width, "width", 1024, "target mosaic canvas width in pixels")
	cmd.Flags().StringVar(&f.density, "density", string(model.DensityM), "thumbnail density: XXS,XS,S,M,L,XL,XXL")
	cmd.Flags().StringVar(&f.aspect, "aspect", string(model.Aspect16x9), "canvas aspect ratio: 16:9,1:1,9:16")
	cmd.Flags().StringVar(&f.format, "format", string(model.FormatJPEG), "output format: HEIC,JPEG,PNG")
	cmd.Flags().Float64Var(&f.minDuration, "min-duration", 0, "skip sources shorter than this many seconds")
	cmd.Flags().Float64Var(&f.previewDuration, "preview-duration", 30, "target preview clip length in seconds")
	cmd.Flags().StringVar(&f.previewDensity, "preview-density", string(model.DensityM), "preview sampling density")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "overwrite existing mosaics instead of skipping")
	cmd.Flags().BoolVar(&f.saveAtRoot, "save-at-root", false, "write all mosaics under the input root instead of per-directory")
	cmd.Flags().BoolVar(&f.separateFolders, "separate-folders", false, "nest mosaics under a duration-bucket subfolder")
	cmd.Flags().BoolVar(&f.addFullPath, "add-full-path", true, "accepted for compatibility; the mosaic footer always shows the full source path")
	cmd.Flags().BoolVar(&f.addBorder, "add-border", false, "draw a border around each thumbnail")
	cmd.Flags().BoolVar(&f.addShadow, "add-shadow", false, "accepted for compatibility; no drop shadow is drawn")
	cmd.Flags().StringVar(&f.borderColor, "border-color", "#ffffff", "thumbnail border color, as #rrggbb")
	cmd.Flags().IntVar(&f.borderWidth, "border-width", 2, "thumbnail border width in pixels")
	cmd.Flags().IntVar(&f.maxConcurrency, "max-concurrency", defaultConcurrency, "maximum number of videos processed concurrently")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", cfg.BatchSize, "thumbnail extraction batch size")
	cmd.Flags().Float64Var(&f.quality, "quality", 0.85, "encoder compression quality, 0..1")
	cmd.Flags().BoolVar(&f.accurate, "accurate", false, "demand frame-exact (zero tolerance) seeking")
	cmd.Flags().StringVar(&f.preset, "preset", "veryfast", "video export encoder preset")
	cmd.Flags().BoolVar(&f.preview, "preview", false, "also generate a fast-cut preview clip per video")
	cmd.Flags().BoolVar(&f.scrubber, "scrubber", false, "also generate a hover-scrub sprite sheet per video")
	cmd.Flags().BoolVar(&f.summary, "summary", false, "concatenate all generated previews into one summary video")
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Run the mosaic pipeline over a directory, file, or M3U8 playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cfg, args[0], f.toProcessingConfig())
		},
	}
	bindRunFlags(cmd, &f, cfg)
	return cmd
}

func newVariantCmd(cfg *config.Config) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "variant <movie>",
		Short: "Generate a single mosaic variant for one movie file (§6 generate_variant)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pcfg := f.toProcessingConfig()
			pcfg.Overwrite = true // a "variant" is always regenerated, never a skip; it replaces a same-named mosaic
			return runJob(cfg, args[0], pcfg)
		},
	}
	bindRunFlags(cmd, &f, cfg)
	return cmd
}

func runJob(cfg *config.Config, input string, pcfg model.ProcessingConfig) error {
	ctx, cancel := withCancelOnSignal()
	defer cancel()

	if err := checkDiskSpace(os.TempDir(), cfg.TempDirMinFreeGB); err != nil {
		return err
	}

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	backend := videobackend.New(cfg.FFmpegPath, cfg.FFprobePath)
	pl := pipeline.New(backend, cat, cfg.FFmpegPath)

	var bar *progressbar.ProgressBar
	handler := func(snap progress.Snapshot) {
		if bar == nil {
			bar = progressbar.NewOptions(snap.Total,
				progressbar.OptionSetDescription("mosaicgen"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(30),
			)
		}
		_ = bar.Set(snap.Completed + snap.Skipped + snap.Errored)
	}

	start := time.Now()
	res, err := pl.RunJob(ctx, input, pcfg, handler)
	if err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
	}

	log.Info("job finished",
		"completed", res.Completed,
		"skipped", res.Skipped,
		"errored", res.Errored,
		"cancelled", res.Cancelled,
		"elapsed", time.Since(start).Truncate(time.Second),
	)
	if res.SummaryPath != "" {
		log.Info("summary video written", "path", res.SummaryPath)
	}
	return nil
}

func newPlaylistCmd() *cobra.Command {
	var outDir string
	var mode string
	var label string
	cmd := &cobra.Command{
		Use:   "playlist <input>",
		Short: "Build an M3U8 playlist from a discovered set of inputs (§6 build_playlist)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if outDir == "" {
				outDir = filepath.Dir(input)
			}
			entries, err := collectPlaylistEntries(input)
			if err != nil {
				return err
			}
			path, err := playlist.BuildFromInputs(time.Now(), outDir, entries, playlist.Mode(mode), label)
			if err != nil {
				return err
			}
			log.Info("playlist written", "path", path, "entries", len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (defaults to the input's parent directory)")
	cmd.Flags().StringVar(&mode, "mode", string(playlist.ModeStandard), "standard or duration_based")
	cmd.Flags().StringVar(&label, "label", "all", "range label embedded in the playlist filename")
	return cmd
}

// collectPlaylistEntries reads an existing playlist verbatim (for
// round-tripping) or walks a directory for recognized video files.
func collectPlaylistEntries(input string) ([]playlist.Entry, error) {
	if filepath.Ext(input) == ".m3u8" {
		return playlist.Parse(input)
	}
	videoExts := map[string]bool{
		".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
		".m4v": true, ".webm": true, ".ts": true,
	}
	var entries []playlist.Entry
	err := filepath.WalkDir(input, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !videoExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		entries = append(entries, playlist.Entry{Path: path})
		return nil
	})
	return entries, err
}

func newCatalogCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect or maintain the mosaic catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all catalog entries, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Open(cfg.CatalogPath)
			if err != nil {
				return err
			}
			defer cat.Close()
			entries, err := cat.FetchAll()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%d\t%s\t%s\t%s\t%s\n", e.MosaicID, e.Density, e.VideoType, e.MovieFilePath, e.MosaicFilePath)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove catalog rows whose source video no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Open(cfg.CatalogPath)
			if err != nil {
				return err
			}
			defer cat.Close()
			n, err := cat.Clean()
			if err != nil {
				return err
			}
			log.Info("catalog cleaned", "removed", n)
			return nil
		},
	})
	return cmd
}
