package devices

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 2 * time.Second

// Watcher keeps the device list under the mount root fresh and emits events when it changes
type Watcher struct {
	watcher       *fsnotify.Watcher
	mountRoot     string
	debounce      time.Duration
	debounceTimer *time.Timer
	mu            sync.Mutex
	devices       []Device
	running       bool
	stopChan      chan struct{}
	eventChan     chan<- DeviceEvent
}

// NewWatcher creates a new device watcher. eventChan may be nil.
func NewWatcher(mountRoot string, eventChan chan<- DeviceEvent) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:   watcher,
		mountRoot: mountRoot,
		debounce:  DefaultDebounce,
		eventChan: eventChan,
		stopChan:  make(chan struct{}),
	}, nil
}

// Start scans the mount root once and begins watching it.
func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("Starting device watcher", "path", w.mountRoot)

	devices, err := Scan(w.mountRoot)
	if err != nil {
		return err
	}
	if err := w.watcher.Add(w.mountRoot); err != nil {
		return err
	}

	w.mu.Lock()
	w.devices = devices
	w.running = true
	w.mu.Unlock()

	go w.watchLoop(ctx)

	slog.Info("Device watcher started successfully", "devices", len(devices))
	return nil
}

// Stop stops the device watcher
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}

	slog.Info("Stopping device watcher")
	w.running = false
	close(w.stopChan)

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}

	w.watcher.Close()
}

// Devices returns the last scanned device list.
func (w *Watcher) Devices() []Device {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.devices)
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Device watcher error", "error", err)

		case <-w.stopChan:
			return

		case <-ctx.Done():
			w.Stop()
			return
		}
	}
}

// handleEvent debounces mounts and unmounts, which usually arrive as bursts.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	slog.Debug("Mount root changed", "path", event.Name, "op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.rescan)
}

func (w *Watcher) rescan() {
	devices, err := Scan(w.mountRoot)
	if err != nil {
		slog.Warn("Failed to rescan devices", "error", err)
		return
	}

	w.mu.Lock()
	previous := w.devices
	w.devices = devices
	w.mu.Unlock()

	for _, event := range diff(previous, devices) {
		slog.Info("Device change detected", "path", event.Path, "type", event.EventType)
		if w.eventChan == nil {
			continue
		}
		select {
		case w.eventChan <- event:
		default:
			slog.Warn("Event channel full, dropping device event", "path", event.Path)
		}
	}
}

func diff(before, after []Device) []DeviceEvent {
	now := time.Now()
	seen := make(map[string]bool, len(before))
	for _, d := range before {
		seen[d.Path] = true
	}
	var events []DeviceEvent
	for _, d := range after {
		if !seen[d.Path] {
			events = append(events, DeviceEvent{Path: d.Path, EventType: DeviceAdded, Timestamp: now})
		}
		delete(seen, d.Path)
	}
	for _, d := range before {
		if seen[d.Path] {
			events = append(events, DeviceEvent{Path: d.Path, EventType: DeviceRemoved, Timestamp: now})
		}
	}
	return events
}
