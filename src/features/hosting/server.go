package hosting

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/contre95/usbdeck/src/features/config"
	"github.com/contre95/usbdeck/src/features/jobs"
	"github.com/contre95/usbdeck/src/features/metrics"
	"github.com/contre95/usbdeck/src/features/playlists"
	"github.com/contre95/usbdeck/src/infra/devices"
	"github.com/contre95/usbdeck/src/music"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

//go:embed views/*.html
var views embed.FS

const statusRefreshSeconds = 5

// DeviceLister reports the mounted devices. The device watcher implements it.
type DeviceLister interface {
	Devices() []devices.Device
}

// Server is the HTTP server for the application.
type Server struct {
	app  *fiber.App
	port uint32
}

// NewServer creates a new HTTP server. deviceLister may be nil, in which case /devices scans usb.mount_root on every request.
func NewServer(cfg *config.Manager, cfgPath string, playlistService *playlists.Service, jobService *jobs.Service, metricsService *metrics.Service, collector *metrics.Collector, deviceLister DeviceLister) *Server {
	templates, err := fs.Sub(views, "views")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(templates), ".html")
	engine.Debug(cfg.Get().Logger.Level == "debug")
	engine.AddFunc("size", func(b int64) string {
		return music.FormatSize(b, cfg.Get().USB.Base1024)
	})
	engine.AddFunc("usize", func(b uint64) string {
		return music.FormatSize(int64(b), cfg.Get().USB.Base1024)
	})

	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("Internal Server Error", "error", err)
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		},
		AppName:               "usbdeck",
		DisableStartupMessage: true,
		EnablePrintRoutes:     cfg.Get().Server.PrintRoutes,
	})

	app.Use(LogAllRequestsMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	listDevices := func() []devices.Device {
		if deviceLister != nil {
			return deviceLister.Devices()
		}
		found, err := devices.Scan(cfg.Get().USB.MountRoot)
		if err != nil {
			slog.Debug("Device scan failed", "mount_root", cfg.Get().USB.MountRoot, "error", err)
		}
		return found
	}

	app.Get("/devices", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"mount_root": cfg.Get().USB.MountRoot,
			"devices":    listDevices(),
		})
	})

	app.Get("/", func(c *fiber.Ctx) error {
		data := fiber.Map{
			"Refresh":      statusRefreshSeconds,
			"PlaylistPath": playlistService.Path(),
			"SongCount":    playlistService.Len(),
			"Capacity":     playlistService.Info(),
			"Destinations": playlistService.Destinations(),
			"Jobs":         jobService.GetJobs(),
			"Devices":      listDevices(),
		}
		if summary, err := metricsService.GetSummary(c.Context()); err == nil {
			data["History"] = summary.Recent
		} else {
			slog.Warn("Failed to load copy history", "error", err)
		}
		return c.Render("status", data)
	})

	config.RegisterRoutes(app, cfg, cfgPath)
	playlists.RegisterRoutes(app, playlistService)
	jobs.RegisterRoutes(app, jobService, playlistService.Snapshot)
	metrics.RegisterRoutes(app, metricsService, collector)

	return &Server{app: app, port: cfg.Get().Server.Port}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.app.Listen(":" + fmt.Sprint(s.port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
