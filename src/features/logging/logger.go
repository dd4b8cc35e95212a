package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/contre95/usbdeck/src/features/config"
)

// SetupLogger builds the process logger from the logger section of the config.
func SetupLogger(cfg *config.Manager) *slog.Logger {
	return newLogger(os.Stderr, cfg.Get().Logger)
}

func newLogger(w io.Writer, cfg config.Logger) *slog.Logger {
	if !cfg.Enabled {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var formatter log.Formatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "text":
		formatter = log.TextFormatter
	default:
		formatter = log.LogfmtFormatter
	}

	level := log.InfoLevel
	switch cfg.Level {
	case "debug":
		level = log.DebugLevel
	case "warn":
		level = log.WarnLevel
	case "error":
		level = log.ErrorLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "usbdeck",
		Formatter:       formatter,
		Level:           level,
	})

	return slog.New(handler)
}

// JobLogger opens a per-job text log under dir. The returned closer releases the file.
func JobLogger(dir, jobID string) (*slog.Logger, string, io.Closer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logName := fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), jobID)
	logPath := filepath.Join(dir, logName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug})), logPath, logFile, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
