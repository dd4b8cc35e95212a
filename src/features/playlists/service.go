package playlists

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"

	"github.com/contre95/usbdeck/src/features/config"
	"github.com/contre95/usbdeck/src/music"
)

var ErrDestinationNotFound = errors.New("destination not found")

// Service is the domain service for the working playlist.
type Service struct {
	store         music.PlaylistStore
	reader        music.TagReader
	configManager *config.Manager

	mu       sync.RWMutex
	playlist *music.Playlist
}

// SongView is a playlist entry with what the tag reader found in the file.
type SongView struct {
	Index       int                 `json:"index"`
	Path        string              `json:"path"`
	FileName    string              `json:"file_name"`
	Destination string              `json:"destination"`
	Size        int64               `json:"size"`
	Metadata    music.AudioMetadata `json:"metadata"`
}

// NewService creates a new playlists service bound to playlist.path. reader may be nil.
func NewService(store music.PlaylistStore, reader music.TagReader, cfgManager *config.Manager) *Service {
	return &Service{
		store:         store,
		reader:        reader,
		configManager: cfgManager,
		playlist:      music.NewPlaylist(cfgManager.Get().Playlist.Path),
	}
}

// Open loads a playlist file, or starts an empty one bound to path when it does not exist yet.
func Open(store music.PlaylistStore, path string) (*music.Playlist, error) {
	pl, err := store.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("Playlist file not found, starting empty", "path", path)
		return music.NewPlaylist(path), nil
	}
	return pl, err
}

// Load reads the configured playlist file into memory.
func (s *Service) Load() error {
	pl, err := Open(s.store, s.configManager.Get().Playlist.Path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.playlist = pl
	s.mu.Unlock()
	return nil
}

// Save writes the working playlist back to its file.
func (s *Service) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.store.Save(s.playlist, s.playlist.Path); err != nil {
		slog.Error("Failed to save playlist", "path", s.playlist.Path, "error", err)
		return err
	}
	slog.Info("Playlist saved", "path", s.playlist.Path, "songs", len(s.playlist.Songs))
	return nil
}

// Add collects every path and appends the songs. All paths are checked before anything is added.
func (s *Service) Add(paths []string, label string) (int, error) {
	var songs []music.Song
	for _, path := range paths {
		collected, err := CollectAudio(path, label)
		if err != nil {
			return 0, err
		}
		songs = append(songs, collected...)
	}
	s.mu.Lock()
	s.playlist.AddMany(songs)
	s.mu.Unlock()
	slog.Debug("Songs added", "count", len(songs), "destination", label)
	return len(songs), nil
}

// Remove deletes the songs at the given indices.
func (s *Service) Remove(indices []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlist.Remove(indices)
}

// KeepOnly deletes every song not selected.
func (s *Service) KeepOnly(indices []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlist.KeepOnly(indices)
}

// SetDestination moves the selected songs under label.
func (s *Service) SetDestination(indices []int, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlist.SetDestination(indices, label)
}

// RenameDestination renames a destination label.
func (s *Service) RenameDestination(oldLabel, newLabel string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.playlist.Destinations(), oldLabel) {
		return 0, fmt.Errorf("%w: %s", ErrDestinationNotFound, oldLabel)
	}
	return s.playlist.RenameDestination(oldLabel, newLabel), nil
}

// RemoveDestination drops a destination and its songs.
func (s *Service) RemoveDestination(label string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.playlist.Destinations(), label) {
		return 0, fmt.Errorf("%w: %s", ErrDestinationNotFound, label)
	}
	return s.playlist.RemoveDestination(label), nil
}

// Destinations returns the labels in order of first appearance.
func (s *Service) Destinations() []music.DestinationGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playlist.GroupByDestination()
}

// Snapshot freezes the current songs for a copy job.
func (s *Service) Snapshot() ([]music.SongEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playlist.Snapshot(), nil
}

// Songs describes every song. Tag reading is skipped when no reader is configured.
func (s *Service) Songs(ctx context.Context) []SongView {
	s.mu.RLock()
	songs := slices.Clone(s.playlist.Songs)
	s.mu.RUnlock()
	return Describe(ctx, s.reader, songs)
}

// Describe reads sizes and tags for songs.
func Describe(ctx context.Context, reader music.TagReader, songs []music.Song) []SongView {
	views := make([]SongView, len(songs))
	for i, song := range songs {
		meta := music.PlaceholderMetadata(song.Path)
		if reader != nil {
			meta = reader.ReadFileTags(ctx, song.Path)
		}
		dest := song.Destination
		if music.IsRootDestination(dest) {
			dest = music.RootDestination
		}
		views[i] = SongView{
			Index:       i,
			Path:        song.Path,
			FileName:    song.FileName(),
			Destination: dest,
			Size:        song.Size(),
			Metadata:    meta,
		}
	}
	return views
}

// Info reports the playlist size against standard stick capacities.
func (s *Service) Info() music.CapacityReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return music.NewCapacityReport(s.playlist.TotalSize(), s.configManager.Get().USB.Base1024)
}

// Path returns the file the working playlist is bound to.
func (s *Service) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playlist.Path
}

// Len returns the number of songs.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.playlist.Songs)
}
