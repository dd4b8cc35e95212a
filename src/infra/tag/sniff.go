package tag

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dhowden/tag"
)

// sniffFormat identifies the container of a file with an unknown extension.
func sniffFormat(filePath string) (format, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return formatUnknown, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	_, fileType, err := tag.Identify(file)
	if err != nil {
		return formatUnknown, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, filePath, err)
	}

	switch fileType {
	case tag.MP3:
		return formatMP3, nil
	case tag.M4A, tag.M4B, tag.ALAC:
		return formatMP4, nil
	case tag.FLAC:
		return formatFLAC, nil
	case tag.OGG:
		// Vorbis and Opus share the OGG file type, the identification packet tells them apart.
		head := make([]byte, 64)
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return formatUnknown, err
		}
		n, _ := io.ReadFull(file, head)
		if bytes.Contains(head[:n], []byte("OpusHead")) {
			return formatOpus, nil
		}
		return formatVorbis, nil
	}
	return formatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filePath)
}

// sniffAAC tells a raw ADTS stream, optionally behind an ID3v2 tag, from an MP4 that only
// carries the .aac extension.
func sniffAAC(filePath string) (format, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return formatUnknown, fmt.Errorf("failed to open file: %w", err)
	}
	head := make([]byte, 2)
	_, err = io.ReadFull(file, head)
	file.Close()
	if err == nil && head[0] == 0xFF && head[1]&0xF6 == 0xF0 {
		return formatADTS, nil
	}
	f, err := sniffFormat(filePath)
	if f == formatMP3 {
		// dhowden/tag reports any leading ID3v2 tag as MP3.
		return formatADTS, nil
	}
	return f, err
}
