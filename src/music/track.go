package music

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RootDestination is the destination label that maps to the root of the USB drive.
const RootDestination = "/"

// UnknownField is used for tag fields the reader could not find.
const UnknownField = "Unknown"

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".aac":  true,
	".ogg":  true,
	".m4a":  true,
	".wma":  true,
	".opus": true,
}

// IsAudioFile reports whether the path has one of the supported audio extensions.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsRootDestination reports whether a label targets the root of the drive.
func IsRootDestination(label string) bool {
	return label == "" || label == RootDestination
}

// Song is a single audio file in a playlist together with the destination label it is grouped under.
type Song struct {
	Path        string
	Destination string
}

// FileName returns the last path segment of the song's source path.
func (s Song) FileName() string {
	return filepath.Base(s.Path)
}

// Size returns the size of the source file in bytes, 0 when it cannot be read.
func (s Song) Size() int64 {
	info, err := os.Stat(s.Path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Validate validates the song fields.
func (s Song) Validate() error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("song path cannot be empty")
	}
	return nil
}

// SongEntry is the frozen per-job view of a song. It is built once when a copy job is created
// and never mutated afterwards.
type SongEntry struct {
	SourcePath       string
	DestinationLabel string
	FileName         string
}

// NewSongEntry builds the snapshot entry for a song.
func NewSongEntry(song Song) SongEntry {
	return SongEntry{
		SourcePath:       song.Path,
		DestinationLabel: song.Destination,
		FileName:         song.FileName(),
	}
}

// AudioMetadata is the best-effort record returned by a TagReader.
type AudioMetadata struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Genre    string `json:"genre"`
	Bitrate  int    `json:"bitrate"`  // kbps
	Duration int    `json:"duration"` // seconds
}

// PlaceholderMetadata returns the record used when nothing could be read from a file.
func PlaceholderMetadata(path string) AudioMetadata {
	name := filepath.Base(path)
	return AudioMetadata{
		Title:  strings.TrimSuffix(name, filepath.Ext(name)),
		Artist: UnknownField,
		Album:  UnknownField,
		Genre:  UnknownField,
	}
}
