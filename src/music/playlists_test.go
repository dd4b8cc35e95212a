package music

import (
	"os"
	"path/filepath"
	"testing"
)

func songs(dests ...string) []Song {
	out := make([]Song, len(dests))
	for i, d := range dests {
		out[i] = Song{Path: filepath.Join("/music", string(rune('a'+i))+".mp3"), Destination: d}
	}
	return out
}

func paths(p *Playlist) []string {
	out := make([]string, len(p.Songs))
	for i, s := range p.Songs {
		out[i] = filepath.Base(s.Path)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPlaylistRemove(t *testing.T) {
	p := NewPlaylist("")
	p.AddMany(songs("", "", "", "", ""))

	p.Remove([]int{3, 0, 3, 42, -1})

	if got, want := paths(p), []string{"b.mp3", "c.mp3", "e.mp3"}; !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPlaylistKeepOnly(t *testing.T) {
	t.Run("KeepsSelection", func(t *testing.T) {
		p := NewPlaylist("")
		p.AddMany(songs("", "", "", ""))
		p.KeepOnly([]int{1, 3})
		if got, want := paths(p), []string{"b.mp3", "d.mp3"}; !equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("EmptySelectionClears", func(t *testing.T) {
		p := NewPlaylist("")
		p.AddMany(songs("", ""))
		p.KeepOnly(nil)
		if len(p.Songs) != 0 {
			t.Errorf("expected empty playlist, got %d songs", len(p.Songs))
		}
	})
}

func TestPlaylistDestinations(t *testing.T) {
	p := NewPlaylist("")
	p.AddMany(songs("Rock", "", "Jazz", "Rock", "/"))

	groups := p.GroupByDestination()
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].Destination != "Rock" || len(groups[0].Songs) != 2 {
		t.Errorf("unexpected first group %+v", groups[0])
	}
	if groups[1].Destination != RootDestination || len(groups[1].Songs) != 2 {
		t.Errorf("expected root group with 2 songs, got %+v", groups[1])
	}

	if got, want := p.Destinations(), []string{"Rock", "/", "Jazz"}; !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if n := p.RenameDestination("Rock", "Metal"); n != 2 {
		t.Errorf("expected 2 renamed songs, got %d", n)
	}
	p.SetDestination([]int{1, 99}, "Metal")
	if p.Songs[1].Destination != "Metal" {
		t.Errorf("expected song 1 to move to Metal, got %q", p.Songs[1].Destination)
	}

	if n := p.RemoveDestination("Metal"); n != 3 {
		t.Errorf("expected 3 removed songs, got %d", n)
	}
	if got, want := paths(p), []string{"c.mp3", "e.mp3"}; !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPlaylistSnapshotAndSize(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp3")
	if err := os.WriteFile(a, make([]byte, 1500), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPlaylist("")
	p.Add(Song{Path: a, Destination: "Rock"})
	p.Add(Song{Path: filepath.Join(dir, "missing.mp3")})

	if size := p.TotalSize(); size != 1500 {
		t.Errorf("expected total size 1500, got %d", size)
	}

	entries := p.Snapshot()
	p.Songs[0].Destination = "changed"
	if entries[0].DestinationLabel != "Rock" || entries[0].FileName != "a.mp3" || entries[0].SourcePath != a {
		t.Errorf("unexpected snapshot entry %+v", entries[0])
	}
}

func TestIsAudioFile(t *testing.T) {
	cases := map[string]bool{
		"song.mp3":  true,
		"SONG.FLAC": true,
		"a.opus":    true,
		"cover.jpg": false,
		"notes":     false,
	}
	for name, want := range cases {
		if got := IsAudioFile(name); got != want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestMetadataPatchIsEmpty(t *testing.T) {
	if !(MetadataPatch{Album: "  "}).IsEmpty() {
		t.Error("expected whitespace-only patch to be empty")
	}
	if (MetadataPatch{Genre: "Rock"}).IsEmpty() {
		t.Error("expected patch with genre to be non-empty")
	}
}
