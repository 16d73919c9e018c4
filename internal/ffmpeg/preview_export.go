package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PreviewSegment is one source window to sample into a preview composition.
type PreviewSegment struct {
	StartSecond    float64
	DurationSecond float64
}

// ExportPreview concatenates segments from inputPath, time-scaling each by
// speedFactor (e.g. 2.0 halves each segment's playback duration), and
// writes an audio+video .mp4 to outPath. Grounded on the split/trim/concat
// filter_complex idiom used for short multi-clip teaser exports.
func ExportPreview(ctx context.Context, ffmpegPath, inputPath, outPath, preset string, segments []PreviewSegment, speedFactor float64, width int) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments to export")
	}
	if speedFactor <= 0 {
		speedFactor = 1
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create preview output dir: %w", err)
	}

	n := len(segments)
	var b strings.Builder

	fmt.Fprintf(&b, "[0:v]split=%d", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[v%d]", i)
	}
	b.WriteString(";")
	fmt.Fprintf(&b, "[0:a]asplit=%d", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[a%d]", i)
	}
	b.WriteString(";")

	scaleFilter := ""
	if width > 0 {
		scaleFilter = fmt.Sprintf(",scale=%d:-2", width)
	}
	audioTempo := tempoChain(speedFactor)

	for i, seg := range segments {
		fmt.Fprintf(&b, "[v%d]trim=start=%.3f:duration=%.3f,setpts=(PTS-STARTPTS)/%.6f%s[cv%d];",
			i, seg.StartSecond, seg.DurationSecond, speedFactor, scaleFilter, i)
		fmt.Fprintf(&b, "[a%d]atrim=start=%.3f:duration=%.3f,asetpts=PTS-STARTPTS,%s[ca%d];",
			i, seg.StartSecond, seg.DurationSecond, audioTempo, i)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[cv%d][ca%d]", i, i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[outv][outa]", n)

	cmd := New(ffmpegPath).
		Overwrite(true).
		Input(inputPath).
		Arg("-filter_complex", b.String()).
		Arg("-map", "[outv]").
		Arg("-map", "[outa]").
		VideoCodec("libx264").
		Preset(firstNonEmpty(preset, "veryfast")).
		AudioCodec("aac").
		Arg("-movflags", "+faststart").
		Output(outPath)

	if err := cmd.Run(ctx); err != nil {
		return fmt.Errorf("export preview: %w", err)
	}
	return nil
}

// tempoChain builds a single ffmpeg "atempo" stage for speedFactor; one
// stage accepts [0.5, 100.0], which covers the 2x case. Factors outside
// that range are not split into chained stages.
func tempoChain(speedFactor float64) string {
	if speedFactor <= 0 {
		speedFactor = 1
	}
	return fmt.Sprintf("atempo=%.6f", speedFactor)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ConcatFiles concatenates pre-encoded mp4 files (e.g. per-item preview
// clips into one summary video) via ffmpeg's concat demuxer.
func ConcatFiles(ctx context.Context, ffmpegPath string, inputPaths []string, outPath string) error {
	if len(inputPaths) == 0 {
		return fmt.Errorf("no inputs to concat")
	}
	listFile, err := os.CreateTemp("", "mosaicgen-concat-*.txt")
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer os.Remove(listFile.Name())
	for _, p := range inputPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		fmt.Fprintf(listFile, "file '%s'\n", strings.ReplaceAll(abs, "'", "'\\''"))
	}
	listFile.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create concat output dir: %w", err)
	}

	cmd := New(ffmpegPath).
		Overwrite(true).
		Arg("-f", "concat", "-safe", "0").
		Input(listFile.Name()).
		Arg("-c", "copy").
		Output(outPath)

	if err := cmd.Run(ctx); err != nil {
		return fmt.Errorf("concat files: %w", err)
	}
	return nil
}
