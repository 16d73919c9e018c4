// Scrubber sprite + WebVTT generation: an optional companion artifact to
// the preview clip, letting a player hover-scrub a video without decoding
// it. Adapted from the teacher's pkg/preview/sprite.go SpriteBuilder and
// pkg/preview/vtt.go VTTBuilder, retargeted at internal/ffmpeg and at a
// grid sized from the job's density rather than a caller-supplied cols/rows
// pair.
package preview

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mosaicgen/internal/ffmpeg"
	"mosaicgen/internal/mosaicerr"
	"mosaicgen/internal/model"
)

// ScrubberGrid derives a sprite sheet's tile grid from a density token: the
// same Factor() used elsewhere scales tile count, biased toward a roughly
// square sheet.
func ScrubberGrid(density model.Density) (cols, rows int) {
	tiles := int(math.Round(10 * density.Factor()))
	if tiles < 4 {
		tiles = 4
	}
	cols = int(math.Ceil(math.Sqrt(float64(tiles))))
	rows = int(math.Ceil(float64(tiles) / float64(cols)))
	return cols, rows
}

// spriteSheetBuilder is a fluent wrapper over an ffmpeg tile-filter
// invocation that samples evenly spaced frames into one sprite image.
type spriteSheetBuilder struct {
	ffmpegPath string
	inputPath  string
	outputPath string
	cols, rows int
	thumbWidth int
	fps        float64
	quality    int
}

func newSpriteSheetBuilder(ffmpegPath string) *spriteSheetBuilder {
	return &spriteSheetBuilder{ffmpegPath: ffmpegPath, quality: 3}
}

func (b *spriteSheetBuilder) run(ctx context.Context) error {
	cmd := ffmpeg.New(b.ffmpegPath).Overwrite(true).Input(b.inputPath)

	fc := ffmpeg.NewFilterChain()
	if b.fps > 0 && float64(int(b.fps)) == b.fps {
		fc.FPS(int(b.fps))
	}
	fc.Scale(b.thumbWidth, -2).Tile(b.cols, b.rows)
	// A fractional fps filter must sample before tile, like the integer one.
	if b.fps > 0 && float64(int(b.fps)) != b.fps {
		cmd.Filter(fmt.Sprintf("fps=%.3f", b.fps))
	}
	cmd.FilterChain(fc)
	cmd.Arg("-frames:v", "1").
		Arg("-q:v", strconv.Itoa(b.quality)).
		Output(b.outputPath)

	return cmd.Run(ctx)
}

// scrubberTimeline accumulates WebVTT cues mapping playback time to a
// region within a sprite sheet.
type scrubberTimeline struct {
	lines          []string
	spriteBasename string
	cols, rows     int
	tileW, tileH   int
}

func newScrubberTimeline(spriteBasename string, cols, rows, tileW, tileH int) *scrubberTimeline {
	return &scrubberTimeline{
		lines:          []string{"WEBVTT", ""},
		spriteBasename: spriteBasename,
		cols:           cols, rows: rows,
		tileW: tileW, tileH: tileH,
	}
}

// addCues emits one cue per tile, evenly spaced across [0, duration).
func (t *scrubberTimeline) addCues(duration float64) *scrubberTimeline {
	n := t.cols * t.rows
	if n <= 0 || duration <= 0 {
		return t
	}
	step := duration / float64(n)
	for i := 0; i < n; i++ {
		start := step * float64(i)
		end := start + step
		x := (i % t.cols) * t.tileW
		y := (i / t.cols) * t.tileH
		t.lines = append(t.lines,
			fmt.Sprintf("%s --> %s", formatVTTTimestamp(start), formatVTTTimestamp(end)),
			fmt.Sprintf("%s#xywh=%d,%d,%d,%d", t.spriteBasename, x, y, t.tileW, t.tileH),
			"",
		)
	}
	return t
}

func (t *scrubberTimeline) String() string {
	return strings.Join(t.lines, "\n") + "\n"
}

func formatVTTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := int(seconds) / 3600
	m := (int(seconds) % 3600) / 60
	s := seconds - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

// ExportScrubber writes a sprite sheet and its accompanying .vtt file
// alongside the mosaic output, sized from density. Returns the sprite
// image path.
func ExportScrubber(ctx context.Context, ffmpegPath, inputPath, outputDir, stem string, density model.Density, meta model.VideoMetadata, thumbWidth int) (string, error) {
	cols, rows := ScrubberGrid(density)
	spritePath := filepath.Join(outputDir, stem+"-scrub.jpg")
	vttPath := filepath.Join(outputDir, stem+"-scrub.vtt")

	b := newSpriteSheetBuilder(ffmpegPath)
	b.inputPath = inputPath
	b.outputPath = spritePath
	b.cols, b.rows = cols, rows
	b.thumbWidth = thumbWidth
	if meta.DurationSeconds > 0 {
		b.fps = float64(cols*rows) / meta.DurationSeconds
	}

	if err := b.run(ctx); err != nil {
		return "", &mosaicerr.ExportFailure{Reason: "scrubber sprite export", Err: err}
	}

	tileH := thumbWidth
	if meta.AspectRatio() > 0 {
		tileH = int(float64(thumbWidth) / meta.AspectRatio())
	}
	timeline := newScrubberTimeline(filepath.Base(spritePath), cols, rows, thumbWidth, tileH).addCues(meta.DurationSeconds)
	if err := os.WriteFile(vttPath, []byte(timeline.String()), 0o644); err != nil {
		return "", &mosaicerr.IOError{Path: vttPath, Err: err}
	}
	return spritePath, nil
}
