package playlists

import (
	"errors"
	"log/slog"
	"net/url"

	"github.com/contre95/usbdeck/src/music"
	"github.com/gofiber/fiber/v2"
)

// Handler handles HTTP requests for the working playlist
type Handler struct {
	service *Service
}

// NewHandler creates a new playlists handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type addSongsRequest struct {
	Paths       []string `json:"paths"`
	Destination string   `json:"destination"`
}

type removeSongsRequest struct {
	Indices  []int `json:"indices"`
	KeepOnly bool  `json:"keep_only"`
}

type setDestinationRequest struct {
	Indices []int  `json:"indices"`
	Label   string `json:"label"`
}

type renameDestinationRequest struct {
	Name string `json:"name"`
}

// GetPlaylist lists the songs with their tags.
func (h *Handler) GetPlaylist(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"path":  h.service.Path(),
		"songs": h.service.Songs(c.Context()),
	})
}

// GetInfo returns the capacity report and the destination groups.
func (h *Handler) GetInfo(c *fiber.Ctx) error {
	groups := h.service.Destinations()
	destinations := make([]fiber.Map, len(groups))
	for i, group := range groups {
		var size int64
		for _, song := range group.Songs {
			size += song.Size()
		}
		destinations[i] = fiber.Map{"label": group.Destination, "songs": len(group.Songs), "size": size}
	}
	return c.JSON(fiber.Map{
		"songs":        h.service.Len(),
		"capacity":     h.service.Info(),
		"destinations": destinations,
	})
}

// AddSongs adds files or directories to the playlist.
func (h *Handler) AddSongs(c *fiber.Ctx) error {
	var req addSongsRequest
	if err := c.BodyParser(&req); err != nil || len(req.Paths) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "paths are required"})
	}
	added, err := h.service.Add(req.Paths, req.Destination)
	if err != nil {
		slog.Warn("Failed to add songs", "error", err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"added": added, "songs": h.service.Len()})
}

// RemoveSongs removes the selected songs, or everything but the selection with keep_only.
func (h *Handler) RemoveSongs(c *fiber.Ctx) error {
	var req removeSongsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.KeepOnly {
		h.service.KeepOnly(req.Indices)
	} else {
		h.service.Remove(req.Indices)
	}
	return c.JSON(fiber.Map{"songs": h.service.Len()})
}

// SetDestination assigns a label to the selected songs.
func (h *Handler) SetDestination(c *fiber.Ctx) error {
	var req setDestinationRequest
	if err := c.BodyParser(&req); err != nil || len(req.Indices) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "indices are required"})
	}
	h.service.SetDestination(req.Indices, req.Label)
	return c.JSON(fiber.Map{"destinations": destinationLabels(h.service.Destinations())})
}

// RenameDestination renames the label in the path.
func (h *Handler) RenameDestination(c *fiber.Ctx) error {
	label, err := url.PathUnescape(c.Params("label"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid label"})
	}
	var req renameDestinationRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	renamed, err := h.service.RenameDestination(label, req.Name)
	if err != nil {
		return destinationError(c, err)
	}
	return c.JSON(fiber.Map{"renamed": renamed})
}

// RemoveDestination drops the label in the path and its songs.
func (h *Handler) RemoveDestination(c *fiber.Ctx) error {
	label, err := url.PathUnescape(c.Params("label"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid label"})
	}
	removed, err := h.service.RemoveDestination(label)
	if err != nil {
		return destinationError(c, err)
	}
	return c.JSON(fiber.Map{"removed": removed, "songs": h.service.Len()})
}

// Save writes the playlist file.
func (h *Handler) Save(c *fiber.Ctx) error {
	if err := h.service.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"path": h.service.Path(), "songs": h.service.Len()})
}

func destinationError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrDestinationNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func destinationLabels(groups []music.DestinationGroup) []string {
	labels := make([]string, len(groups))
	for i, group := range groups {
		labels[i] = group.Destination
	}
	return labels
}
