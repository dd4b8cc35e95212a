package hosting

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/contre95/usbdeck/src/features/config"
	"github.com/contre95/usbdeck/src/features/jobs"
	"github.com/contre95/usbdeck/src/features/metrics"
	"github.com/contre95/usbdeck/src/features/playlists"
	"github.com/contre95/usbdeck/src/infra/devices"
	"github.com/contre95/usbdeck/src/infra/playlist"
)

type staticDevices []devices.Device

func (s staticDevices) Devices() []devices.Device { return s }

func newTestServer(t *testing.T, lister DeviceLister) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	mountRoot := filepath.Join(dir, "media")
	if err := os.MkdirAll(filepath.Join(mountRoot, "STICK"), 0755); err != nil {
		t.Fatal(err)
	}
	cfg := config.NewManager(&config.Config{
		Playlist: config.Playlist{Path: filepath.Join(dir, "list.m3u")},
		USB:      config.USB{MountRoot: mountRoot},
		Database: config.Database{Path: filepath.Join(dir, "usbdeck.db")},
	})
	playlistService := playlists.NewService(playlist.NewM3UStore(), nil, cfg)
	collector := metrics.NewCollector()
	jobService := jobs.NewService(cfg, nil, nil, collector)
	server := NewServer(cfg, filepath.Join(dir, "config.yaml"), playlistService, jobService, metrics.NewService(nil), collector, lister)
	return server, mountRoot
}

func get(t *testing.T, s *Server, target string) (int, string) {
	t.Helper()
	resp, err := s.app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	status, body := get(t, s, "/health")
	if status != 200 || body != "OK" {
		t.Errorf("unexpected health response %d %q", status, body)
	}
}

func TestDevicesScansMountRoot(t *testing.T) {
	s, mountRoot := newTestServer(t, nil)
	status, body := get(t, s, "/devices")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var out struct {
		MountRoot string           `json:"mount_root"`
		Devices   []devices.Device `json:"devices"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatal(err)
	}
	if out.MountRoot != mountRoot || len(out.Devices) != 1 || out.Devices[0].Name != "STICK" {
		t.Errorf("unexpected devices response %+v", out)
	}
}

func TestDevicesFromLister(t *testing.T) {
	s, _ := newTestServer(t, staticDevices{{Name: "A"}, {Name: "B"}})
	_, body := get(t, s, "/devices")
	if !strings.Contains(body, `"name":"A"`) || !strings.Contains(body, `"name":"B"`) {
		t.Errorf("expected watcher devices, got %s", body)
	}
}

func TestStatusPage(t *testing.T) {
	s, _ := newTestServer(t, nil)
	status, body := get(t, s, "/")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	for _, want := range []string{"<h1>usbdeck</h1>", "list.m3u", "No copy jobs.", "STICK"} {
		if !strings.Contains(body, want) {
			t.Errorf("status page is missing %q", want)
		}
	}
}

func TestFeatureRoutesMounted(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, target := range []string{"/jobs/", "/playlist/", "/playlist/info", "/metrics", "/config"} {
		if status, body := get(t, s, target); status != 200 {
			t.Errorf("GET %s: expected 200, got %d: %s", target, status, body)
		}
	}
}

func TestEscapeMarkdown(t *testing.T) {
	bot := &TelegramBot{}
	if got := bot.escapeMarkdown("a_b (1.5)!"); got != `a\_b \(1\.5\)\!` {
		t.Errorf("unexpected escape %q", got)
	}
}
