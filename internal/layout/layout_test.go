package layout

import (
	"testing"

	"mosaicgen/internal/model"
)

func TestCalculateThumbnailCount_ShortVideoForcesFour(t *testing.T) {
	if n := calculateThumbnailCount(1920, 3, model.DensityM); n != 4 {
		t.Fatalf("expected 4 thumbnails for sub-5s video, got %d", n)
	}
}

func TestCalculateThumbnailCount_CapAt800(t *testing.T) {
	n := calculateThumbnailCount(100000, 100000, model.DensityXXL)
	if n > maxThumbCount {
		t.Fatalf("expected cap at %d, got %d", maxThumbCount, n)
	}
}

func TestPlan_InvariantsHoldForTypicalInputs(t *testing.T) {
	meta := model.VideoMetadata{DurationSeconds: 120, Width: 1920, Height: 1080}
	l := Plan(meta, 5120, model.DensityM, model.Aspect16x9)

	if l.Rows < 1 || l.Cols < 1 {
		t.Fatalf("expected rows/cols >= 1, got rows=%d cols=%d", l.Rows, l.Cols)
	}
	if len(l.Positions) != l.ThumbCount {
		t.Fatalf("expected %d positions, got %d", l.ThumbCount, len(l.Positions))
	}
	if l.ThumbCount > l.Rows*l.Cols {
		t.Fatalf("thumb count %d exceeds grid capacity %d", l.ThumbCount, l.Rows*l.Cols)
	}
	if l.ThumbCount > maxThumbCount {
		t.Fatalf("thumb count %d exceeds cap", l.ThumbCount)
	}
	canvasHeight := float64(5120) / model.Aspect16x9.Ratio()
	if float64(l.Rows*l.ThumbHeight) > canvasHeight+1e-6 {
		t.Fatalf("rows*thumbHeight %d exceeds canvas height %.2f", l.Rows*l.ThumbHeight, canvasHeight)
	}

	seen := map[model.Position]bool{}
	for i, p := range l.Positions {
		if seen[p] {
			t.Fatalf("duplicate position %+v", p)
		}
		seen[p] = true
		wantRow := i / l.Cols
		wantCol := i % l.Cols
		if p.Row != wantRow || p.Col != wantCol {
			t.Fatalf("position %d not row-major: got %+v want row=%d col=%d", i, p, wantRow, wantCol)
		}
	}
}

func TestPlan_CountInEngineeringRangeForS1Scenario(t *testing.T) {
	meta := model.VideoMetadata{DurationSeconds: 120, Width: 1920, Height: 1080}
	l := Plan(meta, 5120, model.DensityM, model.Aspect16x9)
	if l.ThumbCount < 30 || l.ThumbCount > 80 {
		t.Fatalf("expected thumb count in [30,80] per spec S1, got %d", l.ThumbCount)
	}
}
