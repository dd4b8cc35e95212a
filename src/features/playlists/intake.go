package playlists

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/contre95/usbdeck/src/music"
)

// CollectAudio turns a path into songs. A file becomes one song under label (root when empty).
// A directory is walked recursively and every audio file in it is grouped under the directory's
// base name, unless label overrides it.
func CollectAudio(path, label string) ([]music.Song, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if !info.IsDir() {
		if !music.IsAudioFile(path) {
			return nil, fmt.Errorf("%s is not a supported audio file", path)
		}
		return []music.Song{{Path: path, Destination: label}}, nil
	}

	if label == "" {
		label = filepath.Base(filepath.Clean(path))
	}
	var paths []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("Skipping unreadable path", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && music.IsAudioFile(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", path, err)
	}
	sort.Strings(paths)

	songs := make([]music.Song, len(paths))
	for i, p := range paths {
		songs[i] = music.Song{Path: p, Destination: label}
	}
	slog.Debug("Collected audio files", "path", path, "destination", label, "count", len(songs))
	return songs, nil
}
