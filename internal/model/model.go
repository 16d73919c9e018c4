// Package model defines the data types shared across the mosaic pipeline
// stages: video metadata, layout, thumbnails, processing configuration, and
// catalog rows.
package model

import "time"

// DurationBucket is the coarse duration tag used for output folder naming
// and catalog filtering.
type DurationBucket string

const (
	BucketXS DurationBucket = "XS"
	BucketS  DurationBucket = "S"
	BucketM  DurationBucket = "M"
	BucketL  DurationBucket = "L"
	BucketXL DurationBucket = "XL"
)

// BucketForDuration derives the DurationBucket from a duration in seconds.
func BucketForDuration(durationSeconds float64) DurationBucket {
	switch {
	case durationSeconds <= 60:
		return BucketXS
	case durationSeconds <= 300:
		return BucketS
	case durationSeconds <= 900:
		return BucketM
	case durationSeconds <= 1800:
		return BucketL
	default:
		return BucketXL
	}
}

// VideoMetadata is immutable metadata about a source video, produced by a
// VideoBackend.
type VideoMetadata struct {
	FilePath        string
	DurationSeconds float64
	Width           int
	Height          int
	Codec           string
	CreationTime    *time.Time
	Bucket          DurationBucket
}

// AspectRatio returns width/height, or 0 if height is not positive.
func (m VideoMetadata) AspectRatio() float64 {
	if m.Height <= 0 {
		return 0
	}
	return float64(m.Width) / float64(m.Height)
}

// Position is a (column, row) cell in a mosaic grid, 0-indexed.
type Position struct {
	Col int
	Row int
}

// MosaicLayout is the immutable grid plan produced by the LayoutPlanner.
type MosaicLayout struct {
	Rows          int
	Cols          int
	ThumbWidth    int
	ThumbHeight   int
	Positions     []Position
	ThumbCount    int
	CanvasWidth   int
	CanvasHeight  int
}

// TimedThumbnail is a single decoded frame with its actual (post-seek)
// timestamp, produced by the ThumbnailEngine.
type TimedThumbnail struct {
	Index            int
	Image            []byte // encoded raster bytes (caller decodes with image.Decode)
	TimestampSeconds float64
}

// Density is a coarse token controlling thumbnail/extract count for a given
// duration.
type Density string

const (
	DensityXXS Density = "XXS"
	DensityXS  Density = "XS"
	DensityS   Density = "S"
	DensityM   Density = "M"
	DensityL   Density = "L"
	DensityXL  Density = "XL"
	DensityXXL Density = "XXL"
)

// Factor returns the density scaling factor used by the layout planner and
// preview composer.
func (d Density) Factor() float64 {
	switch d {
	case DensityXXS:
		return 0.25
	case DensityXS:
		return 0.5
	case DensityS:
		return 1.0
	case DensityM:
		return 1.5
	case DensityL:
		return 2.0
	case DensityXL:
		return 4.0
	case DensityXXL:
		return 8.0
	default:
		return 1.0
	}
}

// AspectMode is the target mosaic canvas aspect ratio.
type AspectMode string

const (
	Aspect16x9 AspectMode = "16:9"
	Aspect1x1  AspectMode = "1:1"
	Aspect9x16 AspectMode = "9:16"
)

// Ratio returns the numeric width/height ratio for the aspect mode.
func (a AspectMode) Ratio() float64 {
	switch a {
	case Aspect1x1:
		return 1.0
	case Aspect9x16:
		return 9.0 / 16.0
	default:
		return 16.0 / 9.0
	}
}

// OutputFormat is the mosaic image encoding format.
type OutputFormat string

const (
	FormatHEIC OutputFormat = "HEIC"
	FormatJPEG OutputFormat = "JPEG"
	FormatPNG  OutputFormat = "PNG"
)

// Ext returns the lowercase file extension (without dot) for the format.
func (f OutputFormat) Ext() string {
	switch f {
	case FormatHEIC:
		return "heic"
	case FormatPNG:
		return "png"
	default:
		return "jpg"
	}
}

// GeneratorConfig groups the lower-level knobs governing extraction and
// encoding behavior.
type GeneratorConfig struct {
	MaxConcurrency      int
	BatchSize           int
	CompressionQuality  float64 // [0,1]
	AccurateTimestamps  bool
	VideoExportPreset   string
}

// ProcessingConfig is the user-provided, job-scoped configuration. It is
// captured once at job start and never mutated afterward.
type ProcessingConfig struct {
	Width           int
	Density         Density
	AspectRatio     AspectMode
	Format          OutputFormat
	MinDuration     float64
	PreviewDuration float64
	PreviewDensity  Density

	Overwrite        bool
	SaveAtRoot       bool
	SeparateFolders  bool
	AddFullPath      bool
	AddBorder        bool
	AddShadow        bool

	BorderColor string
	BorderWidth int

	Generator GeneratorConfig

	// GeneratePreview and GenerateScrubber gate the optional preview/sprite
	// artifacts alongside the mosaic.
	GeneratePreview  bool
	GenerateScrubber bool

	// Summary concatenates all per-item previews into one summary clip
	// after the job completes.
	Summary bool

	OutputRoot string
}

// CatalogEntry is a persisted row describing one produced mosaic.
type CatalogEntry struct {
	MosaicID         int64
	MovieFilePath    string
	MosaicFilePath   string
	Size             int
	Density          Density
	FolderHierarchy  string
	ContentHash      string
	Duration         float64
	ResolutionWidth  int
	ResolutionHeight int
	Codec            string
	VideoType        DurationBucket
	CreationDate     time.Time
}

// Stage names the per-item pipeline stage, used in FileProgress.Stage and
// for monotonic stage-ordering checks.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageDiscovered Stage = "discovered"
	StagePlanned    Stage = "planned"
	StageExtracting Stage = "extracting"
	StageComposing  Stage = "composing"
	StageWriting    Stage = "writing"
	StageDone       Stage = "done"
	StageSkipped    Stage = "skipped"
	StageError      Stage = "error"
	StageCancelled  Stage = "cancelled"
)

// FileProgress is the per-item progress record surfaced to callers.
type FileProgress struct {
	Filename     string
	Progress     float64
	Stage        Stage
	IsComplete   bool
	IsCancelled  bool
	IsError      bool
	IsSkipped    bool
	OutputURL    string
	ErrorMessage string
}
