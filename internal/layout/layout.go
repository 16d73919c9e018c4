// Package layout implements the LayoutPlanner (C4): picking a thumbnail
// count and grid that fills the target canvas as tightly as possible.
package layout

import (
	"math"

	"mosaicgen/internal/model"
)

const maxThumbCount = 800

// calculateThumbnailCount reproduces spec.md's open-question-preserved
// arithmetic verbatim: calculateThumbnailCount divides by the density
// factor (not multiplies), which is the opposite sense from what "density"
// implies elsewhere in the source — a known inconsistency spec.md directs
// us to preserve rather than fix, with the 800 cap applied after scaling.
func calculateThumbnailCount(width int, durationSeconds float64, density model.Density) int {
	if durationSeconds < 5 {
		return 4
	}
	factor := density.Factor()
	base := float64(width) / 200.0
	raw := base + 10*math.Log(durationSeconds)
	count := raw / factor
	n := int(math.Round(count))
	if n < 1 {
		n = 1
	}
	if n > maxThumbCount {
		n = maxThumbCount
	}
	return n
}

// candidateScore scores one (rows, cols) candidate per spec §4.2 step 3.
func candidateScore(rows, cols, thumbCount int, thumbH, canvasHeight float64) float64 {
	fillRatio := (float64(rows) * thumbH) / canvasHeight
	countDelta := math.Abs(float64(rows*cols-thumbCount)) / float64(thumbCount)
	return (1 - fillRatio) + countDelta
}

// Plan computes the MosaicLayout for a video with the given metadata,
// target canvas width, density, and aspect ratio.
func Plan(meta model.VideoMetadata, width int, density model.Density, aspect model.AspectMode) model.MosaicLayout {
	thumbCount := calculateThumbnailCount(width, meta.DurationSeconds, density)

	canvasHeight := float64(width) / aspect.Ratio()
	sourceAspect := meta.AspectRatio()
	if sourceAspect <= 0 {
		sourceAspect = 16.0 / 9.0
	}

	bestRows := 1
	bestCols := thumbCount
	bestScore := math.Inf(1)
	var bestThumbW, bestThumbH float64

	for rows := 1; rows <= thumbCount; rows++ {
		cols := int(math.Ceil(float64(thumbCount) / float64(rows)))
		thumbW := float64(width) / float64(cols)
		thumbH := thumbW / sourceAspect

		if float64(rows)*thumbH > canvasHeight && rows > 1 {
			// Further rows only overflow; stop iterating (§4.2 step 3).
			break
		}
		// rows==1 is exempt from the guard above, not skipped: cols is
		// largest and thumbW/thumbH smallest at rows==1, so rows*thumbH is
		// minimized there. If even that overflows canvasHeight, every
		// larger row count overflows strictly more (thumbH grows as cols
		// shrinks), so rows==1 is still the least-bad candidate and must
		// be scored rather than rejected outright.

		score := candidateScore(rows, cols, thumbCount, thumbH, canvasHeight)
		if score < bestScore-1e-9 {
			bestScore = score
			bestRows = rows
			bestCols = cols
			bestThumbW = thumbW
			bestThumbH = thumbH
		}
	}

	// thumbH is floored, not rounded, so rows*thumbH never exceeds the
	// target canvas height after integer rounding (§4.2 guarantee).
	thumbW := int(math.Round(bestThumbW))
	thumbH := int(math.Floor(bestThumbH))
	if thumbW < 1 {
		thumbW = 1
	}
	if thumbH < 1 {
		thumbH = 1
	}

	// thumb_w is width / cols rounded down, as the last rounding step, so
	// cols * thumb_w never exceeds width. It equals width only when cols
	// divides width; otherwise the canvas is up to cols-1 pixels narrower.
	exactThumbW := width / bestCols
	if exactThumbW < 1 {
		exactThumbW = 1
	}
	thumbW = exactThumbW

	positions := make([]model.Position, 0, thumbCount)
	for i := 0; i < thumbCount; i++ {
		positions = append(positions, model.Position{
			Col: i % bestCols,
			Row: i / bestCols,
		})
	}

	return model.MosaicLayout{
		Rows:         bestRows,
		Cols:         bestCols,
		ThumbWidth:   thumbW,
		ThumbHeight:  thumbH,
		Positions:    positions,
		ThumbCount:   thumbCount,
		CanvasWidth:  bestCols * thumbW,
		CanvasHeight: bestRows * thumbH,
	}
}
