package tag

import (
	"fmt"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
)

// tagFLAC replaces ALBUM, GENRE and the PICTURE blocks of a FLAC file.
func (t *TagWriter) tagFLAC(filePath, album, genre string, cov *cover) error {
	f, err := goflac.ParseFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	var vorbisComment *flacvorbis.MetaDataBlockVorbisComment
	commentIndex := -1
	for idx, meta := range f.Meta {
		if meta.Type == goflac.VorbisComment {
			vorbisComment, err = flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				return fmt.Errorf("failed to parse Vorbis comment: %w", err)
			}
			commentIndex = idx
			break
		}
	}
	if vorbisComment == nil {
		vorbisComment = flacvorbis.New()
	}

	if err := setComment(vorbisComment, flacvorbis.FIELD_ALBUM, album); err != nil {
		return err
	}
	if err := setComment(vorbisComment, flacvorbis.FIELD_GENRE, genre); err != nil {
		return err
	}

	commentMeta := vorbisComment.Marshal()
	if commentIndex >= 0 {
		f.Meta[commentIndex] = &commentMeta
	} else {
		f.Meta = append(f.Meta, &commentMeta)
	}

	if cov != nil {
		pic, err := newPicture(cov)
		if err != nil {
			return err
		}
		kept := f.Meta[:0]
		for _, meta := range f.Meta {
			if meta.Type != goflac.Picture {
				kept = append(kept, meta)
			}
		}
		pictureBlock := pic.Marshal()
		f.Meta = append(kept, &pictureBlock)
	}

	return replaceFile(filePath, func(tmpPath string) error {
		if err := f.Save(tmpPath); err != nil {
			return fmt.Errorf("failed to save FLAC file: %w", err)
		}
		return nil
	})
}

// setComment replaces every value of a field, case-insensitively. An empty value leaves the field untouched.
func setComment(vc *flacvorbis.MetaDataBlockVorbisComment, field, value string) error {
	if value == "" {
		return nil
	}
	removeComment(vc, field)
	if err := vc.Add(field, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", field, err)
	}
	return nil
}

func removeComment(vc *flacvorbis.MetaDataBlockVorbisComment, field string) {
	prefix := strings.ToUpper(field) + "="
	kept := vc.Comments[:0]
	for _, cmt := range vc.Comments {
		if !strings.HasPrefix(strings.ToUpper(cmt), prefix) {
			kept = append(kept, cmt)
		}
	}
	vc.Comments = kept
}

// newPicture builds a front cover PICTURE block.
func newPicture(cov *cover) (*flacpicture.MetadataBlockPicture, error) {
	if cov.mime == "image/jpeg" || cov.mime == "image/png" {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Cover", cov.data, cov.mime)
		if err == nil {
			return pic, nil
		}
	}
	width, height := imageSize(cov.data)
	return &flacpicture.MetadataBlockPicture{
		PictureType: flacpicture.PictureTypeFrontCover,
		MIME:        cov.mime,
		Description: "Cover",
		Width:       width,
		Height:      height,
		ColorDepth:  24,
		ImageData:   cov.data,
	}, nil
}
