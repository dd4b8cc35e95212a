package devices

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Device is a mounted drive candidate under the mount root.
type Device struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Free  uint64 `json:"free"`
	Total uint64 `json:"total"`
}

// UsedPercent returns the share of the drive already in use.
func (d Device) UsedPercent() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Total-d.Free) / float64(d.Total) * 100
}

// Scan lists the directories directly under mountRoot, each with its free and total bytes.
// Hidden entries are skipped.
func Scan(mountRoot string) ([]Device, error) {
	entries, err := os.ReadDir(mountRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read mount root %s: %w", mountRoot, err)
	}

	var devices []Device
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		path := filepath.Join(mountRoot, entry.Name())
		free, total, err := usage(path)
		if err != nil {
			slog.Debug("Failed to stat device", "path", path, "error", err)
		}
		devices = append(devices, Device{Name: entry.Name(), Path: path, Free: free, Total: total})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

// FreeBytes returns the available space at path, 0 when unknown.
func FreeBytes(path string) uint64 {
	free, _, err := usage(path)
	if err != nil {
		return 0
	}
	return free
}
