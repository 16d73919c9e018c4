package playlist

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBuilder_StringEmitsMinimalSubset(t *testing.T) {
	out := New().Add("/videos/a.mp4").AddWithTitle("/videos/b.mp4", "Clip B").String()
	want := "#EXTM3U\n/videos/a.mp4\n#EXTINF:-1,Clip B\n/videos/b.mp4\n"
	if out != want {
		t.Fatalf("expected:\n%q\ngot:\n%q", want, out)
	}
}

func TestBuildFromInputs_NamesFileByDateAndRange(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	path, err := BuildFromInputs(now, dir, []Entry{{Path: "/videos/a.mp4"}}, ModeStandard, "today")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := filepath.Join(dir, "20260305-today.m3u8")
	if path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected playlist file to exist: %v", err)
	}
}

func TestParse_RoundTripsWrittenPlaylist(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "list.m3u8")
	b := New().Add("/videos/a.mp4").AddWithTitle("/videos/b.mp4", "Clip B")
	if err := b.WriteFile(out); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := Parse(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Path != "/videos/a.mp4" || entries[0].Title != "" {
		t.Fatalf("unexpected entry 0: %+v", entries[0])
	}
	if entries[1].Path != "/videos/b.mp4" || entries[1].Title != "Clip B" {
		t.Fatalf("unexpected entry 1: %+v", entries[1])
	}
}

func TestParse_SkipsCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "list.m3u8")
	content := "#EXTM3U\n\n# a note\n/videos/a.mp4\n"
	if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := Parse(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "/videos/a.mp4" {
		t.Fatalf("expected [/videos/a.mp4], got %+v", entries)
	}
}
