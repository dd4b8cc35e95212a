package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
)

// Handler is the handler for the config feature.
type Handler struct {
	configManager *Manager
	path          string
}

// NewHandler creates a new handler for the config feature.
func NewHandler(configManager *Manager, path string) *Handler {
	return &Handler{
		configManager: configManager,
		path:          path,
	}
}

// usbSettings is the subset of settings that can change while serving.
type usbSettings struct {
	Root           *string `json:"root"`
	FATSafeNames   *bool   `json:"fat_safe_names"`
	ASCIINames     *bool   `json:"ascii_names"`
	BandwidthLimit *int    `json:"bandwidth_limit"`
	Base1024       *bool   `json:"base_1024"`
}

// UpdateUSB updates the USB settings in memory and tries to persist them.
func (h *Handler) UpdateUSB(c *fiber.Ctx) error {
	var req usbSettings
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	newConfig := *h.configManager.Get()
	if req.Root != nil {
		newConfig.USB.Root = *req.Root
	}
	if req.FATSafeNames != nil {
		newConfig.USB.FATSafeNames = *req.FATSafeNames
	}
	if req.ASCIINames != nil {
		newConfig.USB.ASCIINames = *req.ASCIINames
	}
	if req.BandwidthLimit != nil {
		newConfig.USB.BandwidthLimit = *req.BandwidthLimit
	}
	if req.Base1024 != nil {
		newConfig.USB.Base1024 = *req.Base1024
	}
	if err := Validate(&newConfig); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	h.configManager.Update(&newConfig)
	slog.Info("Configuration updated in memory")

	// Saving may fail in containerized environments, the in-memory config still applies.
	if err := h.configManager.Save(h.path); err != nil {
		slog.Warn("failed to save config to file", "error", err)
	}
	return c.JSON(newConfig.USB)
}

// GetConfig returns the current configuration in the requested format.
func (h *Handler) GetConfig(c *fiber.Ctx) error {
	format := c.Query("fmt", "yaml")
	slog.Debug("GetConfig handler called", "format", format)

	switch format {
	case "yaml":
		c.Set("Content-Type", "text/yaml")
		return c.SendString(h.configManager.GetYAML())
	case "json":
		c.Set("Content-Type", "application/json")
		return c.SendString(h.configManager.GetJSON())
	default:
		return c.Status(fiber.StatusBadRequest).SendString("Invalid format. Use 'json' or 'yaml'")
	}
}

// DownloadDatabase serves the job history database file for download.
func (h *Handler) DownloadDatabase(c *fiber.Ctx) error {
	dbPath := h.configManager.Get().Database.Path
	if dbPath == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Database path not configured")
	}

	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filepath.Base(dbPath)))
	c.Set("Content-Type", "application/octet-stream")
	return c.SendFile(dbPath)
}
