package tag

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/contre95/usbdeck/src/features/config"
	"github.com/contre95/usbdeck/src/music"
	"github.com/dhowden/tag"
	"github.com/mewkiz/flac"
)

// TagReader reads display metadata with dhowden/tag, FLAC stream info and ffprobe.
type TagReader struct {
	config *config.Manager
}

// NewTagReader creates a new TagReader. cfg may be nil.
func NewTagReader(cfg *config.Manager) *TagReader {
	return &TagReader{config: cfg}
}

// ReadFileTags never fails: anything it cannot read keeps the placeholder value.
func (r *TagReader) ReadFileTags(ctx context.Context, filePath string) music.AudioMetadata {
	meta := music.PlaceholderMetadata(filePath)

	if file, err := os.Open(filePath); err == nil {
		tags, err := tag.ReadFrom(file)
		file.Close()
		if err == nil {
			setIfPresent(&meta.Title, tags.Title())
			setIfPresent(&meta.Artist, tags.Artist())
			setIfPresent(&meta.Album, tags.Album())
			setIfPresent(&meta.Genre, tags.Genre())
		} else {
			slog.Debug("No tags found", "filePath", filePath, "error", err)
		}
	}

	var seconds float64
	bitrate := 0
	if strings.EqualFold(filepath.Ext(filePath), ".flac") {
		seconds = flacDuration(filePath)
	}
	if seconds <= 0 {
		seconds, bitrate = r.ffprobe(ctx, filePath)
	}
	if seconds > 0 {
		meta.Duration = int(seconds)
		if bitrate <= 0 {
			if info, err := os.Stat(filePath); err == nil {
				bitrate = int(float64(info.Size()*8) / seconds / 1000)
			}
		}
	}
	meta.Bitrate = bitrate
	return meta
}

func setIfPresent(field *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*field = v
	}
}

// flacDuration computes the length from the STREAMINFO block.
func flacDuration(filePath string) float64 {
	stream, err := flac.Open(filePath)
	if err != nil {
		slog.Debug("Failed to read FLAC stream info", "filePath", filePath, "error", err)
		return 0
	}
	defer stream.Close()
	if stream.Info == nil || stream.Info.SampleRate == 0 {
		return 0
	}
	return float64(stream.Info.NSamples) / float64(stream.Info.SampleRate)
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

func (r *TagReader) ffprobePath() string {
	if r.config != nil && r.config.Get().Tools.FFprobe != "" {
		return r.config.Get().Tools.FFprobe
	}
	return "ffprobe"
}

// ffprobe returns duration in seconds and bitrate in kbps, zero when ffprobe is missing or fails.
func (r *TagReader) ffprobe(ctx context.Context, filePath string) (float64, int) {
	ffprobe, err := exec.LookPath(r.ffprobePath())
	if err != nil {
		return 0, 0
	}
	cmd := exec.CommandContext(ctx, ffprobe, "-v", "quiet", "-print_format", "json", "-show_format", filePath)
	output, err := cmd.Output()
	if err != nil {
		slog.Debug("ffprobe failed", "filePath", filePath, "error", err)
		return 0, 0
	}
	return parseFFprobe(output)
}

func parseFFprobe(output []byte) (float64, int) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return 0, 0
	}
	seconds, _ := strconv.ParseFloat(parsed.Format.Duration, 64)
	bps, _ := strconv.Atoi(parsed.Format.BitRate)
	return seconds, bps / 1000
}
