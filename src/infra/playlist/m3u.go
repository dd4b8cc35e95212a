package playlist

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/contre95/usbdeck/src/music"
)

const (
	m3uHeader         = "#EXTM3U"
	destinationMarker = "#DESTINATION:"
	legacyMarker      = "#DESTINO:"
)

// M3UStore implements music.PlaylistStore on an M3U file extended with destination markers.
type M3UStore struct{}

// NewM3UStore creates a new M3U playlist store
func NewM3UStore() *M3UStore {
	return &M3UStore{}
}

// Load reads a playlist file. Songs before the first marker, or behind a root marker,
// get the empty label.
func (s *M3UStore) Load(path string) (*music.Playlist, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer file.Close()

	pl := music.NewPlaylist(path)
	destination := ""
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if label, ok := parseMarker(line); ok {
			destination = label
			continue
		}
		// #EXTM3U, #EXTINF and anything else we don't understand
		if strings.HasPrefix(line, "#") {
			continue
		}
		pl.Add(music.Song{Path: strings.Trim(line, "\"'"), Destination: destination})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error parsing playlist %s: %w", path, err)
	}
	slog.Debug("Playlist loaded", "path", path, "songs", len(pl.Songs))
	return pl, nil
}

func parseMarker(line string) (string, bool) {
	for _, marker := range []string{destinationMarker, legacyMarker} {
		if rest, ok := strings.CutPrefix(line, marker); ok {
			label := strings.TrimSpace(rest)
			if music.IsRootDestination(label) {
				return "", true
			}
			return label, true
		}
	}
	return "", false
}

// Save writes the playlist grouped by destination, root group first.
func (s *M3UStore) Save(pl *music.Playlist, path string) error {
	var builder strings.Builder
	builder.WriteString(m3uHeader + "\n")

	groups := pl.GroupByDestination()
	for _, group := range groups {
		if group.Destination != music.RootDestination {
			continue
		}
		for _, song := range group.Songs {
			builder.WriteString(song.Path + "\n")
		}
	}
	for _, group := range groups {
		if group.Destination == music.RootDestination {
			continue
		}
		builder.WriteString("\n" + destinationMarker + group.Destination + "\n")
		for _, song := range group.Songs {
			builder.WriteString(song.Path + "\n")
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create playlist directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0644); err != nil {
		return fmt.Errorf("failed to write playlist: %w", err)
	}
	slog.Debug("Playlist saved", "path", path, "songs", len(pl.Songs), "destinations", len(groups))
	return nil
}
