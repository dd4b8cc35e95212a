package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/contre95/usbdeck/src/features/config"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.Logger{Enabled: true, Level: "warn", Format: "logfmt"})

	logger.Info("hidden message")
	logger.Warn("visible message", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Errorf("expected info to be filtered at warn level, got %q", out)
	}
	if !strings.Contains(out, "visible message") || !strings.Contains(out, "key=value") {
		t.Errorf("expected warn record with attributes, got %q", out)
	}
}

func TestNewLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, config.Logger{Enabled: false}).Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestJobLogger(t *testing.T) {
	dir := t.TempDir()
	logger, path, closer, err := JobLogger(dir, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("Copied file", "index", 1)
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Copied file") || !strings.Contains(path, "job-1") {
		t.Errorf("unexpected job log %q at %s", data, path)
	}
}
