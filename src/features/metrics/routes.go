package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// RegisterRoutes mounts the Prometheus endpoint and the history summary.
func RegisterRoutes(app *fiber.App, service *Service, collector *Collector) {
	handler := NewHandler(service)
	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))
	app.Get("/metrics/summary", handler.GetSummary)
}
