package tag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/contre95/usbdeck/src/features/config"
	"github.com/contre95/usbdeck/src/music"
)

// ErrUnsupportedFormat is returned for containers no strategy can tag.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

type format int

const (
	formatUnknown format = iota
	formatMP3
	formatADTS
	formatMP4
	formatFLAC
	formatVorbis
	formatOpus
)

func (f format) String() string {
	switch f {
	case formatMP3:
		return "mp3"
	case formatADTS:
		return "aac"
	case formatMP4:
		return "mp4"
	case formatFLAC:
		return "flac"
	case formatVorbis:
		return "ogg"
	case formatOpus:
		return "opus"
	default:
		return "unknown"
	}
}

func formatFromExt(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return formatMP3
	case ".aac":
		return formatADTS
	case ".m4a", ".mp4", ".m4b":
		return formatMP4
	case ".flac":
		return formatFLAC
	case ".ogg", ".oga":
		return formatVorbis
	case ".opus":
		return formatOpus
	default:
		return formatUnknown
	}
}

// TagWriter stamps album, genre and cover art onto copied files.
type TagWriter struct {
	config *config.Manager
}

// NewTagWriter creates a new TagWriter. cfg may be nil, in which case covers are embedded as-is
// and ffmpeg is looked up in PATH.
func NewTagWriter(cfg *config.Manager) *TagWriter {
	return &TagWriter{config: cfg}
}

// Apply writes the patch into the file. The strategy is picked from the extension, unknown
// extensions are sniffed by content. WAV and WMA have no strategy and fail with
// ErrUnsupportedFormat.
func (t *TagWriter) Apply(ctx context.Context, filePath string, patch music.MetadataPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	f := formatFromExt(filePath)
	if f == formatADTS {
		sniffed, err := sniffAAC(filePath)
		if err != nil {
			return err
		}
		f = sniffed
	}
	if f == formatUnknown {
		sniffed, err := sniffFormat(filePath)
		if err != nil {
			return err
		}
		slog.Debug("Sniffed audio container", "filePath", filePath, "format", sniffed)
		f = sniffed
	}

	cov, err := t.loadCover(patch.CoverPath)
	if err != nil {
		return err
	}

	album := strings.TrimSpace(patch.Album)
	genre := strings.TrimSpace(patch.Genre)
	// Comment is not written by any strategy.
	if album == "" && genre == "" && cov == nil {
		return nil
	}

	switch f {
	case formatMP3, formatADTS:
		err = t.tagID3(filePath, album, genre, cov)
	case formatMP4:
		err = t.tagMP4(ctx, filePath, album, genre, cov)
	case formatFLAC:
		err = t.tagFLAC(filePath, album, genre, cov)
	case formatVorbis, formatOpus:
		err = t.tagOgg(filePath, f, album, genre, cov)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filePath)
	}
	if err != nil {
		return err
	}

	slog.Debug("Tagged file", "filePath", filePath, "format", f, "album", album, "genre", genre, "cover", cov != nil)
	return nil
}

// replaceFile runs write against a sibling temp path and renames it over target on success.
func replaceFile(target string, write func(tmpPath string) error) error {
	dir := filepath.Dir(target)
	ext := filepath.Ext(target)
	tmp, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(target), ext)+".*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file next to %s: %w", target, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := write(tmpPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if info, err := os.Stat(target); err == nil {
		os.Chmod(tmpPath, info.Mode().Perm())
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	return nil
}
