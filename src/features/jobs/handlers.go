package jobs

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/contre95/usbdeck/src/features/copying"
	"github.com/contre95/usbdeck/src/music"
	"github.com/gofiber/fiber/v2"
)

// SnapshotFunc returns the entries a new copy job should work on.
type SnapshotFunc func() ([]music.SongEntry, error)

type Handler struct {
	service  *Service
	snapshot SnapshotFunc
}

// JobResponse is a wrapper for the Job struct to include API links
type JobResponse struct {
	Job
	Progress int               `json:"progress"`
	Copied   int               `json:"copied"`
	Links    map[string]string `json:"_links"`
}

// CopyRequest is the body of POST /jobs/copy.
type CopyRequest struct {
	Name      string `json:"name"`
	USBRoot   string `json:"usb_root"`
	Album     string `json:"album"`
	Genre     string `json:"genre"`
	Comment   string `json:"comment"`
	CoverPath string `json:"cover_path"`
}

func NewHandler(service *Service, snapshot SnapshotFunc) *Handler {
	return &Handler{service: service, snapshot: snapshot}
}

func (h *Handler) response(c *fiber.Ctx, job Job) *JobResponse {
	baseURL := c.BaseURL()
	return &JobResponse{
		Job:      job,
		Progress: job.Progress(),
		Copied:   job.Copied(),
		Links: map[string]string{
			"self":   fmt.Sprintf("%s/jobs/%s", baseURL, job.ID),
			"logs":   fmt.Sprintf("%s/jobs/%s/logs", baseURL, job.ID),
			"cancel": fmt.Sprintf("%s/jobs/%s/cancel", baseURL, job.ID),
		},
	}
}

func (h *Handler) HandleStartCopy(c *fiber.Ctx) error {
	var req CopyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	entries, err := h.snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	patch := music.MetadataPatch{Album: req.Album, Genre: req.Genre, Comment: req.Comment, CoverPath: req.CoverPath}

	jobID, err := h.service.StartCopy(req.Name, entries, req.USBRoot, patch)
	if err != nil {
		return c.Status(startErrorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID})
}

func startErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrTargetBusy):
		return fiber.StatusConflict
	case errors.Is(err, copying.ErrEmptyPlaylist), errors.Is(err, copying.ErrUSBRootMissing),
		errors.Is(err, copying.ErrUSBRootNotDir), errors.Is(err, copying.ErrUSBRootNotWritable),
		errors.Is(err, ErrNoUSBRoot):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) HandleJobStatus(c *fiber.Ctx) error {
	job, exists := h.service.GetJob(c.Params("id"))
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrJobNotFound.Error()})
	}
	return c.JSON(h.response(c, job))
}

func (h *Handler) HandleJobList(c *fiber.Ctx) error {
	jobs := h.service.GetJobs()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = h.response(c, job)
	}
	return c.JSON(responses)
}

func (h *Handler) HandleJobLogs(c *fiber.Ctx) error {
	job, exists := h.service.GetJob(c.Params("id"))
	if !exists {
		return c.Status(fiber.StatusNotFound).SendString("Job not found")
	}
	if job.LogPath == "" {
		return c.SendString("No logs for this job.")
	}

	logContent, err := os.ReadFile(job.LogPath)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to read log file.")
	}

	if c.Query("color") == "true" {
		c.Set("Content-Type", "text/html")
		return c.SendString("<pre>" + ColorLogContent(string(logContent)) + "</pre>")
	}
	c.Set("Content-Type", "text/plain")
	return c.SendString(string(logContent))
}

func (h *Handler) HandlePauseJob(c *fiber.Ctx) error {
	return h.control(c, h.service.Pause)
}

func (h *Handler) HandleResumeJob(c *fiber.Ctx) error {
	return h.control(c, h.service.Resume)
}

func (h *Handler) HandleCancelJob(c *fiber.Ctx) error {
	return h.control(c, h.service.Cancel)
}

func (h *Handler) control(c *fiber.Ctx, action func(string) error) error {
	jobID := c.Params("id")
	if err := action(jobID); err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, ErrJobNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, ErrJobFinished):
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	job, _ := h.service.GetJob(jobID)
	return c.JSON(h.response(c, job))
}

func (h *Handler) HandleCleanupJobs(c *fiber.Ctx) error {
	removed := h.service.CleanupOldJobs(24 * time.Hour)
	return c.JSON(fiber.Map{"status": "cleanup completed", "removed": removed})
}

func (h *Handler) HandleClearFinishedJobs(c *fiber.Ctx) error {
	removed := h.service.ClearFinishedJobs()
	return c.JSON(fiber.Map{"status": "finished jobs cleared", "removed": removed})
}
