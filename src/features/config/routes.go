package config

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers the routes for the config feature.
func RegisterRoutes(app *fiber.App, configManager *Manager, path string) {
	handler := NewHandler(configManager, path)

	app.Get("/config", handler.GetConfig)
	app.Put("/config/usb", handler.UpdateUSB)
	app.Get("/config/database/download", handler.DownloadDatabase)
}
