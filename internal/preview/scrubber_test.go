package preview

import (
	"strings"
	"testing"

	"mosaicgen/internal/model"
)

func TestScrubberGrid_ScalesWithDensity(t *testing.T) {
	colsS, rowsS := ScrubberGrid(model.DensityS)
	colsXL, rowsXL := ScrubberGrid(model.DensityXL)
	if colsXL*rowsXL <= colsS*rowsS {
		t.Fatalf("expected XL density grid to have more tiles than S: %dx%d vs %dx%d", colsXL, rowsXL, colsS, rowsS)
	}
}

func TestScrubberTimeline_CueCountMatchesGrid(t *testing.T) {
	tl := newScrubberTimeline("sprite.jpg", 3, 2, 100, 56).addCues(60)
	out := tl.String()
	if !strings.HasPrefix(out, "WEBVTT") {
		t.Fatalf("missing WEBVTT header:\n%s", out)
	}
	if got := strings.Count(out, "-->"); got != 6 {
		t.Fatalf("expected 6 cues for a 3x2 grid, got %d", got)
	}
	if !strings.Contains(out, "sprite.jpg#xywh=0,0,100,56") {
		t.Fatalf("expected first tile cue, got:\n%s", out)
	}
	if !strings.Contains(out, "sprite.jpg#xywh=200,56,100,56") {
		t.Fatalf("expected last tile cue (col=2,row=1), got:\n%s", out)
	}
}

func TestFormatVTTTimestamp_HMSFraction(t *testing.T) {
	got := formatVTTTimestamp(3661.5)
	want := "01:01:01.500"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
