package tag

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
)

const (
	vorbisCommentPrefix = "\x03vorbis"
	opusTagsPrefix      = "OpusTags"
	pictureField        = "METADATA_BLOCK_PICTURE"
	legacyCoverField    = "COVERART"
)

// tagOgg rewrites the comment header of an Ogg Vorbis or Ogg Opus file.
func (t *TagWriter) tagOgg(filePath string, f format, album, genre string, cov *cover) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read ogg file: %w", err)
	}

	prefix, framing, headerPackets := vorbisCommentPrefix, true, 2
	if f == formatOpus {
		prefix, framing, headerPackets = opusTagsPrefix, false, 1
	}

	rewritten, err := rewriteOggComment(data, headerPackets, func(packet []byte) ([]byte, error) {
		return editCommentPacket(packet, prefix, framing, album, genre, cov)
	})
	if err != nil {
		return fmt.Errorf("failed to rewrite %s comment header: %w", f, err)
	}

	return replaceFile(filePath, func(tmpPath string) error {
		return os.WriteFile(tmpPath, rewritten, 0644)
	})
}

// editCommentPacket decodes a comment packet body with the FLAC Vorbis comment codec, which shares
// the layout, and applies the patch.
func editCommentPacket(packet []byte, prefix string, framing bool, album, genre string, cov *cover) ([]byte, error) {
	if !bytes.HasPrefix(packet, []byte(prefix)) {
		return nil, fmt.Errorf("unexpected comment packet header %q", packet[:min(len(packet), len(prefix))])
	}
	vc, err := flacvorbis.ParseFromMetaDataBlock(goflac.MetaDataBlock{
		Type: goflac.VorbisComment,
		Data: packet[len(prefix):],
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse comment packet: %w", err)
	}

	if err := setComment(vc, flacvorbis.FIELD_ALBUM, album); err != nil {
		return nil, err
	}
	if err := setComment(vc, flacvorbis.FIELD_GENRE, genre); err != nil {
		return nil, err
	}
	if cov != nil {
		pic, err := newPicture(cov)
		if err != nil {
			return nil, err
		}
		removeComment(vc, pictureField)
		removeComment(vc, legacyCoverField)
		block := pic.Marshal()
		if err := vc.Add(pictureField, base64.StdEncoding.EncodeToString(block.Data)); err != nil {
			return nil, fmt.Errorf("failed to add cover: %w", err)
		}
	}

	var out bytes.Buffer
	out.WriteString(prefix)
	out.Write(vc.Marshal().Data)
	if framing {
		out.WriteByte(0x01)
	}
	return out.Bytes(), nil
}
