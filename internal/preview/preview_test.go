package preview

import (
	"math"
	"testing"

	"mosaicgen/internal/model"
)

func TestBuildPlan_SegmentsCoverDurationWithoutOverflow(t *testing.T) {
	p, err := buildPlan(200, 0, model.DensityS)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}
	if len(p.Segments) == 0 {
		t.Fatal("expected at least one segment")
	}
	for i, seg := range p.Segments {
		if seg.StartSecond < 0 || seg.StartSecond+seg.DurationSecond > 200+1e-6 {
			t.Fatalf("segment %d out of bounds: %+v", i, seg)
		}
	}
}

func TestBuildPlan_HigherDensityMeansFewerExtracts(t *testing.T) {
	low, err := buildPlan(200, 0, model.DensityXXS)
	if err != nil {
		t.Fatal(err)
	}
	high, err := buildPlan(200, 0, model.DensityXXL)
	if err != nil {
		t.Fatal(err)
	}
	// rate is divided by the density factor (§4.2), so a larger factor
	// yields fewer extracts.
	if len(high.Segments) >= len(low.Segments) {
		t.Fatalf("expected XXL density to produce fewer segments than XXS: got %d vs %d", len(high.Segments), len(low.Segments))
	}
}

func TestBuildPlan_RespectsShorterCallerPreviewDuration(t *testing.T) {
	p, err := buildPlan(200, 5, model.DensityS)
	if err != nil {
		t.Fatal(err)
	}
	if p.TargetSeconds != 5 {
		t.Fatalf("expected caller's shorter preview duration (5) to win, got %v", p.TargetSeconds)
	}
}

func TestBuildPlan_TargetByDurationBand(t *testing.T) {
	cases := []struct {
		duration float64
		want     float64
	}{
		{100, 30},
		{600, 60},
		{1800, 90},
	}
	for _, c := range cases {
		p, err := buildPlan(c.duration, math.Inf(1), model.DensityS)
		if err != nil {
			t.Fatal(err)
		}
		if p.TargetSeconds != c.want {
			t.Fatalf("duration %.0f: expected target %v, got %v", c.duration, c.want, p.TargetSeconds)
		}
	}
}

func TestOutputPath_NamesUnderSiblingAmprvDir(t *testing.T) {
	got := OutputPath("/videos/0th/1024", "/videos/clip.mp4", model.DensityM)
	want := "/videos/0th/amprv/clip-amprv-M.mp4"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
