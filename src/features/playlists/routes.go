package playlists

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers the routes for the playlists feature.
func RegisterRoutes(app *fiber.App, service *Service) {
	handler := NewHandler(service)

	playlist := app.Group("/playlist")
	playlist.Get("/", handler.GetPlaylist)
	playlist.Get("/info", handler.GetInfo)
	playlist.Post("/songs", handler.AddSongs)
	playlist.Delete("/songs", handler.RemoveSongs)
	playlist.Post("/destinations", handler.SetDestination)
	playlist.Put("/destinations/:label", handler.RenameDestination)
	playlist.Delete("/destinations/:label", handler.RemoveDestination)
	playlist.Post("/save", handler.Save)
}
