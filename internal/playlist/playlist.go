// Package playlist implements the PlaylistBuilder (C8): emitting the
// minimal M3U8 subset spec.md allows as input (#EXTM3U header, optional
// #EXTINF title lines, one file path per line) from a caller-supplied list
// of inputs. The date or range only names the output file; no selection
// over catalog rows is made here.
//
// Grounded on the teacher's pkg/hls/master.go MasterBuilder fluent shape
// (New...().Add...().String()/WriteFile), stripped of HLS's
// #EXT-X-STREAM-INF variant-stream machinery since the target format here
// is a plain file-path playlist, not an adaptive-bitrate manifest.
package playlist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mosaicgen/internal/mosaicerr"
)

// Entry is one playlist line: a file path with an optional display title.
type Entry struct {
	Path  string
	Title string
}

// Builder is a fluent M3U8 emitter.
type Builder struct {
	entries []Entry
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) Add(path string) *Builder {
	b.entries = append(b.entries, Entry{Path: path})
	return b
}

func (b *Builder) AddWithTitle(path, title string) *Builder {
	b.entries = append(b.entries, Entry{Path: path, Title: title})
	return b
}

// String renders the playlist per spec.md §6's minimal subset, terminated
// with a trailing newline.
func (b *Builder) String() string {
	lines := []string{"#EXTM3U"}
	for _, e := range b.entries {
		if e.Title != "" {
			lines = append(lines, fmt.Sprintf("#EXTINF:-1,%s", e.Title))
		}
		lines = append(lines, e.Path)
	}
	return strings.Join(lines, "\n") + "\n"
}

func (b *Builder) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &mosaicerr.IOError{Path: filepath.Dir(path), Err: err}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return &mosaicerr.IOError{Path: path, Err: err}
	}
	return nil
}

// Mode selects how BuildFromInputs names its output file (§6's
// `build_playlist(inputs, out_dir, mode)` surface).
type Mode string

const (
	ModeStandard      Mode = "standard"
	ModeDurationBased Mode = "duration_based"
)

// BuildFromInputs writes a playlist of inputs into outDir, named per
// spec.md §6: "<outDir>/<YYYYMMDD>-<range>.m3u8". rangeLabel is a
// caller-supplied tag describing the selection window (e.g. "today",
// "7d"). Entries are written in the given order. When mode is
// ModeDurationBased, an entry's own Title is kept as an #EXTINF line; in
// standard mode titles are dropped. Entries are not grouped or titled by
// duration bucket.
func BuildFromInputs(now time.Time, outDir string, inputs []Entry, mode Mode, rangeLabel string) (string, error) {
	if rangeLabel == "" {
		rangeLabel = "all"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", &mosaicerr.IOError{Path: outDir, Err: err}
	}

	b := New()
	for _, e := range inputs {
		if mode == ModeDurationBased && e.Title != "" {
			b.AddWithTitle(e.Path, e.Title)
		} else {
			b.Add(e.Path)
		}
	}

	filename := fmt.Sprintf("%s-%s.m3u8", now.Format("20060102"), rangeLabel)
	outPath := filepath.Join(outDir, filename)
	if err := b.WriteFile(outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

// Parse reads the minimal M3U8 subset back into a slice of Entry, skipping
// comment and blank lines per §6. A preceding #EXTINF:-1,<title> line
// attaches Title to the following path line.
func Parse(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &mosaicerr.IOError{Path: path, Err: err}
	}

	var entries []Entry
	var pendingTitle string
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			if idx := strings.IndexByte(line, ','); idx >= 0 {
				pendingTitle = line[idx+1:]
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, Entry{Path: line, Title: pendingTitle})
		pendingTitle = ""
	}
	return entries, nil
}
