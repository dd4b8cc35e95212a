package music

import "strings"

// MetadataPatch is applied uniformly to every file copied by a job. Empty fields are left untouched.
type MetadataPatch struct {
	Album     string `json:"album,omitempty"`
	Genre     string `json:"genre,omitempty"`
	Comment   string `json:"comment,omitempty"`
	CoverPath string `json:"cover_path,omitempty"`
}

// IsEmpty reports whether the patch carries nothing to write.
func (p MetadataPatch) IsEmpty() bool {
	return strings.TrimSpace(p.Album) == "" &&
		strings.TrimSpace(p.Genre) == "" &&
		strings.TrimSpace(p.Comment) == "" &&
		strings.TrimSpace(p.CoverPath) == ""
}

// HasCover reports whether a cover image path is set.
func (p MetadataPatch) HasCover() bool {
	return strings.TrimSpace(p.CoverPath) != ""
}
