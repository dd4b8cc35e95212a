package tag

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	_ "image/gif"
)

const defaultQuality = 85

type cover struct {
	data []byte
	mime string
}

// coverMIME derives the MIME type from the cover file extension.
func coverMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".bmp":
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}

// loadCover returns nil when no cover is set or the file does not exist.
func (t *TagWriter) loadCover(path string) (*cover, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	imgData, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Debug("Cover file does not exist, skipping artwork", "coverPath", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cover %s: %w", path, err)
	}
	if len(imgData) == 0 {
		return nil, nil
	}

	mime := coverMIME(path)
	if maxSize := t.coverMaxSize(); maxSize > 0 && (mime == "image/jpeg" || mime == "image/png") {
		resized, err := t.resizeImage(imgData, maxSize)
		if err != nil {
			slog.Warn("Failed to resize cover, embedding original", "coverPath", path, "error", err)
		} else {
			imgData = resized
		}
	}
	return &cover{data: imgData, mime: mime}, nil
}

func (t *TagWriter) coverMaxSize() int {
	if t.config == nil {
		return 0
	}
	return t.config.Get().Cover.MaxSize
}

func (t *TagWriter) coverQuality() int {
	if t.config == nil || t.config.Get().Cover.Quality <= 0 {
		return defaultQuality
	}
	return t.config.Get().Cover.Quality
}

// resizeImage resizes image data to fit within maxSize pixels, maintaining aspect ratio.
// The encoding of the input is kept.
func (t *TagWriter) resizeImage(imgData []byte, maxSize int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return imgData, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= maxSize && height <= maxSize {
		return imgData, nil
	}

	if width > height {
		height = (height * maxSize) / width
		width = maxSize
	} else {
		width = (width * maxSize) / height
		height = maxSize
	}

	resizedImg := resize.Resize(uint(width), uint(height), img, resize.Lanczos3)

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		err = png.Encode(&buf, resizedImg)
	default:
		err = jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: t.coverQuality()})
	}
	if err != nil {
		return imgData, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// imageSize returns the pixel dimensions of an encoded image, zero when it cannot be decoded.
func imageSize(data []byte) (uint32, uint32) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return uint32(cfg.Width), uint32(cfg.Height)
}
