package tag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zhaarey/go-mp4tag"
)

// tagMP4 rewrites the ilst atoms in place of a sibling copy. Files mp4tag cannot edit, such as
// ones without an ilst box, are remuxed through ffmpeg instead.
func (t *TagWriter) tagMP4(ctx context.Context, filePath, album, genre string, cov *cover) error {
	err := replaceFile(filePath, func(tmpPath string) error {
		if err := copyContents(filePath, tmpPath); err != nil {
			return err
		}
		return writeMP4Atoms(tmpPath, album, genre, cov)
	})
	if err == nil {
		return nil
	}
	slog.Debug("Native MP4 tagging failed, trying ffmpeg", "filePath", filePath, "error", err)
	if ffErr := t.tagMP4FFmpeg(ctx, filePath, album, genre, cov); ffErr != nil {
		return fmt.Errorf("failed to tag %s: %w", filePath, errors.Join(err, ffErr))
	}
	return nil
}

// writeMP4Atoms sets album and genre and replaces every embedded picture with cov.
func writeMP4Atoms(path, album, genre string, cov *cover) error {
	tags := &mp4tag.MP4Tags{Album: album, CustomGenre: genre}
	var dels []string
	if genre != "" {
		// A numeric gnre atom would shadow the free text one on most players.
		dels = append(dels, "genre")
	}
	if cov != nil {
		pic, err := mp4Picture(cov)
		if err != nil {
			return err
		}
		tags.Pictures = []*mp4tag.MP4Picture{pic}
		dels = append(dels, "allpictures")
	}

	mp4, err := mp4tag.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open MP4 %s: %w", path, err)
	}
	defer mp4.Close()
	if err := mp4.Write(tags, dels); err != nil {
		return fmt.Errorf("failed to write MP4 tags: %w", err)
	}
	return nil
}

// mp4Picture maps a cover onto a covr entry. covr only knows JPEG and PNG, anything else is
// re-encoded as PNG.
func mp4Picture(cov *cover) (*mp4tag.MP4Picture, error) {
	switch cov.mime {
	case "image/jpeg":
		return &mp4tag.MP4Picture{Format: mp4tag.ImageTypeJPEG, Data: cov.data}, nil
	case "image/png":
		return &mp4tag.MP4Picture{Format: mp4tag.ImageTypePNG, Data: cov.data}, nil
	}
	img, _, err := image.Decode(bytes.NewReader(cov.data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}
	return &mp4tag.MP4Picture{Format: mp4tag.ImageTypePNG, Data: buf.Bytes()}, nil
}

func copyContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (t *TagWriter) ffmpegPath() string {
	if t.config != nil && t.config.Get().Tools.FFmpeg != "" {
		return t.config.Get().Tools.FFmpeg
	}
	return "ffmpeg"
}

// mp4Args builds the ffmpeg arguments that remux input into output with new tags.
// Audio is stream copied; a cover replaces every previous attached picture.
func mp4Args(input, output, coverPath string, cov *cover, album, genre string) []string {
	args := []string{"-y", "-v", "error", "-i", input}
	if cov != nil {
		args = append(args, "-i", coverPath, "-map", "0:a", "-map", "1", "-c:a", "copy")
		if cov.mime == "image/jpeg" || cov.mime == "image/png" {
			args = append(args, "-c:v", "copy")
		} else {
			args = append(args, "-c:v", "png")
		}
		args = append(args, "-disposition:v:0", "attached_pic")
	} else {
		args = append(args, "-map", "0", "-codec", "copy")
	}
	if album != "" {
		args = append(args, "-metadata", "album="+album)
	}
	if genre != "" {
		args = append(args, "-metadata", "genre="+genre)
	}
	muxer := "ipod"
	if strings.EqualFold(filepath.Ext(input), ".mp4") {
		muxer = "mp4"
	}
	return append(args, "-f", muxer, output)
}

// tagMP4FFmpeg rewrites MP4 atoms by remuxing through ffmpeg.
func (t *TagWriter) tagMP4FFmpeg(ctx context.Context, filePath, album, genre string, cov *cover) error {
	ffmpeg, err := exec.LookPath(t.ffmpegPath())
	if err != nil {
		return fmt.Errorf("ffmpeg is required to tag MP4 files: %w", err)
	}

	var coverPath string
	if cov != nil {
		// The resized bytes are what gets embedded, so ffmpeg reads them from a temp file.
		tmp, err := os.CreateTemp("", "usbdeck-cover-*"+coverExt(cov.mime))
		if err != nil {
			return fmt.Errorf("failed to create cover temp file: %w", err)
		}
		coverPath = tmp.Name()
		defer os.Remove(coverPath)
		_, werr := tmp.Write(cov.data)
		if cerr := tmp.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return fmt.Errorf("failed to write cover temp file: %w", werr)
		}
	}

	return replaceFile(filePath, func(tmpPath string) error {
		cmd := exec.CommandContext(ctx, ffmpeg, mp4Args(filePath, tmpPath, coverPath, cov, album, genre)...)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("ffmpeg failed: %w - %s", err, strings.TrimSpace(string(output)))
		}
		return nil
	})
}

func coverExt(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}
