// Package discovery implements FileDiscovery (C3): expanding an input path
// (directory, single file, or M3U8 playlist) into an ordered list of
// (source, output directory) work items. Grounded on the teacher's
// S3Syncer.SyncDirectory walk-then-fan-out shape, adapted to a pure local
// classify step (no upload).
package discovery

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mosaicgen/internal/mosaicerr"
)

// recognizedExtensions is the set of video file extensions FileDiscovery
// will walk into.
var recognizedExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".m4v": true, ".webm": true, ".ts": true,
}

// previewMarker is the filename substring used to skip already-generated
// preview clips during a directory walk.
const previewMarker = "-amprv-"

// WorkItem is one (source video, output directory) pair.
type WorkItem struct {
	SourcePath string
	OutputDir  string
}

// ProgressFunc is invoked as discovery proceeds, reporting the running
// count of discovered items.
type ProgressFunc func(countSoFar int)

// Options configures discovery's output-directory derivation.
type Options struct {
	Width      int
	SaveAtRoot bool
	OnProgress ProgressFunc
}

// Discover expands path into an ordered list of WorkItems. The second
// return value reports whether path resolved to a single source video file
// rather than a directory or playlist — callers use this to suppress
// per-job artifacts that only make sense across multiple items (spec.md's
// "single file: same rule as the directory case but the summary artifact
// is disabled").
func Discover(ctx context.Context, path string, opts Options) ([]WorkItem, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, fmt.Errorf("%w: %s", mosaicerr.ErrInputNotFound, path)
		}
		return nil, false, &mosaicerr.IOError{Path: path, Err: err}
	}

	if strings.EqualFold(filepath.Ext(path), ".m3u8") {
		items, err := discoverPlaylist(ctx, path, opts)
		return items, false, err
	}
	if info.IsDir() {
		items, err := discoverDirectory(ctx, path, opts)
		return items, false, err
	}
	items, err := discoverSingleFile(path, opts)
	return items, true, err
}

func discoverSingleFile(path string, opts Options) ([]WorkItem, error) {
	if !recognizedExtensions[strings.ToLower(filepath.Ext(path))] {
		return nil, fmt.Errorf("%w: %s", mosaicerr.ErrNotAVideoFile, path)
	}
	outDir, err := outputDirFor(path, filepath.Dir(path), opts)
	if err != nil {
		return nil, err
	}
	return []WorkItem{{SourcePath: path, OutputDir: outDir}}, nil
}

func discoverDirectory(ctx context.Context, root string, opts Options) ([]WorkItem, error) {
	var items []WorkItem
	count := 0

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return &mosaicerr.IOError{Path: path, Err: err}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			return nil
		}
		if !recognizedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if strings.Contains(filepath.Base(path), previewMarker) {
			return nil
		}
		outDir, err := outputDirFor(path, root, opts)
		if err != nil {
			return err
		}
		items = append(items, WorkItem{SourcePath: path, OutputDir: outDir})
		count++
		if opts.OnProgress != nil {
			opts.OnProgress(count)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func discoverPlaylist(ctx context.Context, playlistPath string, opts Options) ([]WorkItem, error) {
	f, err := os.Open(playlistPath)
	if err != nil {
		return nil, &mosaicerr.IOError{Path: playlistPath, Err: err}
	}
	defer f.Close()

	parentDir := filepath.Dir(playlistPath)
	stem := strings.TrimSuffix(filepath.Base(playlistPath), filepath.Ext(playlistPath))
	outDir := filepath.Join(parentDir, "Playlist", stem)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &mosaicerr.IOError{Path: outDir, Err: err}
	}

	var items []WorkItem
	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, WorkItem{SourcePath: line, OutputDir: outDir})
		count++
		if opts.OnProgress != nil {
			opts.OnProgress(count)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &mosaicerr.IOError{Path: playlistPath, Err: err}
	}
	return items, nil
}

// outputDirFor computes and idempotently creates the default output
// directory for a discovered source file per spec §4.1. root is the
// directory originally passed to Discover (used when SaveAtRoot is set);
// for a single-file input it is the file's parent directory.
func outputDirFor(sourcePath, root string, opts Options) (string, error) {
	var base string
	if opts.SaveAtRoot {
		base = root
	} else {
		base = filepath.Dir(sourcePath)
	}
	outDir := filepath.Join(base, "0th", fmt.Sprintf("%d", opts.Width))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", &mosaicerr.IOError{Path: outDir, Err: err}
	}
	return outDir, nil
}
