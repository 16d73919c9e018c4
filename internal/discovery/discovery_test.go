package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDiscover_DirectorySkipsPreviewsAndNonVideo(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.mp4"), "x")
	mustWrite(t, filepath.Join(dir, "b.txt"), "x")
	mustWrite(t, filepath.Join(dir, "c-amprv-M.mp4"), "x")

	items, single, err := Discover(context.Background(), dir, Options{Width: 1024})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(items) != 1 || filepath.Base(items[0].SourcePath) != "a.mp4" {
		t.Fatalf("expected only a.mp4, got %+v", items)
	}
	if single {
		t.Fatal("a directory input must not report single=true")
	}
	wantOut := filepath.Join(dir, "0th", "1024")
	if items[0].OutputDir != wantOut {
		t.Fatalf("expected output dir %s, got %s", wantOut, items[0].OutputDir)
	}
	if _, err := os.Stat(wantOut); err != nil {
		t.Fatalf("expected output dir to be created: %v", err)
	}
}

func TestDiscover_M3U8SkipsCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "a.mp4")
	mustWrite(t, video, "x")
	playlist := filepath.Join(dir, "list.m3u8")
	mustWrite(t, playlist, "#EXTM3U\n\n#EXTINF:-1,Title\n"+video+"\n")

	items, single, err := Discover(context.Background(), playlist, Options{Width: 800})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(items) != 1 || items[0].SourcePath != video {
		t.Fatalf("expected [%s], got %+v", video, items)
	}
	if single {
		t.Fatal("a playlist input must not report single=true")
	}
	wantOut := filepath.Join(dir, "Playlist", "list")
	if items[0].OutputDir != wantOut {
		t.Fatalf("expected output dir %s, got %s", wantOut, items[0].OutputDir)
	}
}

func TestDiscover_SingleFileRejectsNonVideo(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "notvideo.txt")
	mustWrite(t, f, "x")

	if _, _, err := Discover(context.Background(), f, Options{Width: 640}); err == nil {
		t.Fatal("expected error for non-video file")
	}
}

func TestDiscover_SingleFileReportsSingle(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "a.mp4")
	mustWrite(t, video, "x")

	items, single, err := Discover(context.Background(), video, Options{Width: 640})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(items) != 1 || items[0].SourcePath != video {
		t.Fatalf("expected [%s], got %+v", video, items)
	}
	if !single {
		t.Fatal("a single video file input must report single=true")
	}
}

func mustWrite(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
