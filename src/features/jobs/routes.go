package jobs

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, service *Service, snapshot SnapshotFunc) {
	handler := NewHandler(service, snapshot)
	jobs := app.Group("/jobs")

	jobs.Get("/", handler.HandleJobList)
	jobs.Post("/copy", handler.HandleStartCopy)
	jobs.Post("/cleanup", handler.HandleCleanupJobs)
	jobs.Post("/clear-finished", handler.HandleClearFinishedJobs)
	jobs.Get("/:id", handler.HandleJobStatus)
	jobs.Get("/:id/logs", handler.HandleJobLogs)
	jobs.Post("/:id/pause", handler.HandlePauseJob)
	jobs.Post("/:id/resume", handler.HandleResumeJob)
	jobs.Post("/:id/cancel", handler.HandleCancelJob)
}
