package music

import (
	"context"
)

// TagReader reads a best-effort metadata record from an audio file.
// Implementations never fail: missing data falls back to PlaceholderMetadata.
type TagReader interface {
	ReadFileTags(ctx context.Context, filePath string) AudioMetadata
}

// TagWriter rewrites the tags of an audio file in place with a metadata patch.
type TagWriter interface {
	Apply(ctx context.Context, filePath string, patch MetadataPatch) error
}

// PlaylistStore persists playlists to disk.
type PlaylistStore interface {
	Load(path string) (*Playlist, error)
	Save(playlist *Playlist, path string) error
}

// CopyHistory stores a row per finished copy job.
type CopyHistory interface {
	Record(ctx context.Context, record CopyRecord) error
	List(ctx context.Context, limit int) ([]CopyRecord, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}
