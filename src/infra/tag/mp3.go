package tag

import (
	"fmt"

	"github.com/bogem/id3v2/v2"
)

// tagID3 rewrites the ID3v2 tag in place. Raw ADTS streams take the same tag ahead of the
// first frame.
func (t *TagWriter) tagID3(filePath, album, genre string, cov *cover) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s for ID3 tagging: %w", filePath, err)
	}
	defer tag.Close()

	if album != "" {
		tag.SetAlbum(album)
	}
	if genre != "" {
		tag.SetGenre(genre)
	}

	if cov != nil {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    cov.mime,
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     cov.data,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save ID3 tags: %w", err)
	}
	return nil
}
