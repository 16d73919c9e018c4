package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// showInfoPTSTime matches the pts_time field the showinfo filter writes to
// stderr for each decoded frame, e.g.
// "[Parsed_showinfo_1 @ 0x...] n:0 pts:1001 pts_time:0.033333 ...".
var showInfoPTSTime = regexp.MustCompile(`pts_time:([0-9.]+)`)

// actualSecondFrom scans ffmpeg's showinfo stderr output for the decoded
// frame's real timestamp, falling back to the requested target if showinfo
// produced no parseable line (e.g. an old ffmpeg build without the filter).
func actualSecondFrom(stderrLines []string, fallback float64) float64 {
	for i := len(stderrLines) - 1; i >= 0; i-- {
		m := showInfoPTSTime.FindStringSubmatch(stderrLines[i])
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v
		}
	}
	return fallback
}

// FrameRequest is one target timestamp for a single-frame extraction.
type FrameRequest struct {
	Index        int
	TargetSecond float64
}

// ExtractedFrame is the result of one successful FrameRequest.
type ExtractedFrame struct {
	Index         int
	ActualSecond  float64
	EncodedBytes  []byte
}

// ExtractFrame seeks to req.TargetSecond (within toleranceSeconds, which
// only selects the -ss/-i ordering below) and decodes exactly one frame,
// scaled to targetWidth x targetHeight (targetHeight<=0 preserves aspect).
//
// ffmpeg has no native "decode within +/-N seconds" primitive; tolerance is
// approximated by choosing accurate (output-side, -ss after -i, slow)
// seeking when toleranceSeconds <= 0, and fast input-side seeking (-ss
// before -i) otherwise, which can
// land up to a keyframe interval away from the target — acceptable within
// the +/-2s tolerance spec.md allows for inaccurate mode.
func ExtractFrame(ctx context.Context, ffmpegPath, inputPath string, req FrameRequest, toleranceSeconds float64, targetWidth, targetHeight int) (ExtractedFrame, error) {
	tmpDir, err := os.MkdirTemp("", "mosaicgen-frame-*")
	if err != nil {
		return ExtractedFrame{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, fmt.Sprintf("frame-%04d.jpg", req.Index))

	cmd := New(ffmpegPath).Overwrite(true)

	accurate := toleranceSeconds <= 0
	seekAt := time.Duration(req.TargetSecond * float64(time.Second))
	if accurate {
		// Input after -i with -ss re-decodes from the nearest keyframe and
		// seeks frame-accurately, at the cost of speed.
		cmd.Input(inputPath).StartAt(seekAt)
	} else {
		// -ss before -i is fast (keyframe-only) seeking.
		cmd.StartAt(seekAt).Input(inputPath)
	}

	cmd.Arg("-vframes", "1")
	fc := NewFilterChain()
	if targetWidth > 0 {
		if targetHeight > 0 {
			fc.Scale(targetWidth, targetHeight)
		} else {
			fc.Scale(targetWidth, -2)
		}
	}
	fc.ShowInfo()
	cmd.FilterChain(fc)
	cmd.Arg("-q:v", "2").Output(outPath)

	stderrLines, err := cmd.RunCollectStderr(ctx)
	if err != nil {
		return ExtractedFrame{}, fmt.Errorf("extract frame at %.3fs: %w", req.TargetSecond, err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return ExtractedFrame{}, fmt.Errorf("read extracted frame: %w", err)
	}

	return ExtractedFrame{
		Index:        req.Index,
		ActualSecond: actualSecondFrom(stderrLines, req.TargetSecond),
		EncodedBytes: data,
	}, nil
}
