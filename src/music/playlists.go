package music

import (
	"fmt"
	"slices"
	"strings"
)

// Playlist is the ordered list of songs a user is arranging for a USB drive.
type Playlist struct {
	Path  string
	Songs []Song
}

// DestinationGroup holds the songs sharing one destination label, in playlist order.
type DestinationGroup struct {
	Destination string
	Songs       []Song
}

// NewPlaylist creates an empty playlist bound to a file path.
func NewPlaylist(path string) *Playlist {
	return &Playlist{Path: path}
}

// Add appends a song to the playlist.
func (p *Playlist) Add(song Song) {
	p.Songs = append(p.Songs, song)
}

// AddMany appends songs to the playlist keeping their order.
func (p *Playlist) AddMany(songs []Song) {
	p.Songs = append(p.Songs, songs...)
}

// Remove deletes the songs at the given indices. Out of range indices are ignored.
func (p *Playlist) Remove(indices []int) {
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for i := len(sorted) - 1; i >= 0; i-- {
		idx := sorted[i]
		if idx >= 0 && idx < len(p.Songs) {
			p.Songs = slices.Delete(p.Songs, idx, idx+1)
		}
	}
}

// KeepOnly deletes every song whose index is not selected. An empty selection clears the playlist.
func (p *Playlist) KeepOnly(selected []int) {
	keep := make(map[int]bool, len(selected))
	for _, idx := range selected {
		keep[idx] = true
	}
	kept := make([]Song, 0, len(selected))
	for i, song := range p.Songs {
		if keep[i] {
			kept = append(kept, song)
		}
	}
	p.Songs = kept
}

// SetDestination assigns a destination label to the songs at the given indices.
func (p *Playlist) SetDestination(indices []int, label string) {
	for _, idx := range indices {
		if idx >= 0 && idx < len(p.Songs) {
			p.Songs[idx].Destination = label
		}
	}
}

// RenameDestination moves every song of one destination to another label.
func (p *Playlist) RenameDestination(oldLabel, newLabel string) int {
	renamed := 0
	for i := range p.Songs {
		if p.Songs[i].Destination == oldLabel {
			p.Songs[i].Destination = newLabel
			renamed++
		}
	}
	return renamed
}

// RemoveDestination drops every song grouped under the label.
func (p *Playlist) RemoveDestination(label string) int {
	before := len(p.Songs)
	p.Songs = slices.DeleteFunc(p.Songs, func(s Song) bool {
		return s.Destination == label
	})
	return before - len(p.Songs)
}

// GroupByDestination groups songs by label in order of first appearance.
// Songs without a label are grouped under RootDestination.
func (p *Playlist) GroupByDestination() []DestinationGroup {
	var groups []DestinationGroup
	index := make(map[string]int)
	for _, song := range p.Songs {
		dest := song.Destination
		if IsRootDestination(dest) {
			dest = RootDestination
		}
		i, ok := index[dest]
		if !ok {
			i = len(groups)
			index[dest] = i
			groups = append(groups, DestinationGroup{Destination: dest})
		}
		groups[i].Songs = append(groups[i].Songs, song)
	}
	return groups
}

// Destinations returns the distinct labels in the playlist, in order of first appearance.
func (p *Playlist) Destinations() []string {
	var labels []string
	for _, group := range p.GroupByDestination() {
		labels = append(labels, group.Destination)
	}
	return labels
}

// TotalSize returns the summed size of every readable song file in bytes.
func (p *Playlist) TotalSize() int64 {
	var total int64
	for _, song := range p.Songs {
		total += song.Size()
	}
	return total
}

// Snapshot freezes the current songs into copy job entries.
func (p *Playlist) Snapshot() []SongEntry {
	entries := make([]SongEntry, len(p.Songs))
	for i, song := range p.Songs {
		entries[i] = NewSongEntry(song)
	}
	return entries
}

// Pretty returns a formatted string representation of the playlist for logging/debugging.
func (p *Playlist) Pretty() string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%-30s : %s\n", "Path", p.Path))
	builder.WriteString(fmt.Sprintf("%-30s : %d\n", "Song Count", len(p.Songs)))
	for _, group := range p.GroupByDestination() {
		builder.WriteString(fmt.Sprintf("%s\n", group.Destination))
		for _, song := range group.Songs {
			builder.WriteString(fmt.Sprintf("  %s\n", song.FileName()))
		}
	}
	return builder.String()
}
