package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contre95/usbdeck/src/features/hosting"
	"github.com/contre95/usbdeck/src/features/jobs"
	"github.com/contre95/usbdeck/src/features/metrics"
	"github.com/contre95/usbdeck/src/features/playlists"
	"github.com/contre95/usbdeck/src/infra/database"
	"github.com/contre95/usbdeck/src/infra/devices"
	"github.com/contre95/usbdeck/src/infra/playlist"
	"github.com/contre95/usbdeck/src/infra/tag"
	"github.com/urfave/cli/v3"
)

const (
	shutdownTimeout = 30 * time.Second
	jobRetention    = 24 * time.Hour
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API, the status page and the Telegram bot",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfgPath := cmd.String("config")
			cfgManager, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfgManager.EnsureDirectories(); err != nil {
				return err
			}
			cfg := cfgManager.Get()

			db, err := database.NewSqliteHistory(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to open job history: %w", err)
			}
			defer db.Close()

			playlistService := playlists.NewService(playlist.NewM3UStore(), tag.NewTagReader(cfgManager), cfgManager)
			if err := playlistService.Load(); err != nil {
				return err
			}

			collector := metrics.NewCollector()
			metricsService := metrics.NewService(db)
			jobService := jobs.NewService(cfgManager, tag.NewTagWriter(cfgManager), db, collector)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var deviceLister hosting.DeviceLister
			deviceEvents := make(chan devices.DeviceEvent, 16)
			watcher, err := devices.NewWatcher(cfg.USB.MountRoot, deviceEvents)
			if err != nil {
				slog.Warn("Device watcher disabled", "mount_root", cfg.USB.MountRoot, "error", err)
			} else if err := watcher.Start(ctx); err != nil {
				slog.Warn("Device watcher disabled", "mount_root", cfg.USB.MountRoot, "error", err)
			} else {
				defer watcher.Stop()
				deviceLister = watcher
				go logDeviceEvents(ctx, deviceEvents)
			}

			var telegramBot *hosting.TelegramBot
			if cfg.Telegram.Enabled {
				telegramBot, err = hosting.NewTelegramBot(cfgManager, playlistService, jobService)
				if err != nil {
					slog.Error("Failed to initialize Telegram bot", "error", err)
				} else {
					jobService.SetNotifier(telegramBot)
					go telegramBot.Start()
					slog.Info("Telegram bot started")
				}
			}

			go cleanupJobs(ctx, jobService)

			server := hosting.NewServer(cfgManager, cfgPath, playlistService, jobService, metricsService, collector, deviceLister)
			serverErr := make(chan error, 1)
			go func() {
				serverErr <- server.Start()
			}()
			slog.Info("Server started. Press Ctrl+C to shut down.", "port", cfg.Server.Port)

			select {
			case <-ctx.Done():
			case err := <-serverErr:
				if err != nil {
					slog.Error("Server stopped", "error", err)
				}
			}
			slog.Info("Shutting down server...")

			if telegramBot != nil {
				telegramBot.Stop()
				slog.Info("Telegram bot stopped")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := jobService.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Copy jobs did not stop in time", "error", err)
			}
			if err := server.Shutdown(); err != nil {
				return fmt.Errorf("failed to shutdown server: %w", err)
			}
			slog.Info("Server gracefully shut down.")
			return nil
		},
	}
}

func logDeviceEvents(ctx context.Context, events <-chan devices.DeviceEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			slog.Info("USB device "+string(event.EventType), "path", event.Path)
		}
	}
}

// cleanupJobs drops finished jobs older than a day from memory. The history keeps them.
func cleanupJobs(ctx context.Context, jobService *jobs.Service) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := jobService.CleanupOldJobs(jobRetention); n > 0 {
				slog.Debug("Cleaned up old jobs", "count", n)
			}
		}
	}
}
