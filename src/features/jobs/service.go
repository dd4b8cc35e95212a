package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/contre95/usbdeck/src/features/config"
	"github.com/contre95/usbdeck/src/features/copying"
	"github.com/contre95/usbdeck/src/features/logging"
	"github.com/contre95/usbdeck/src/music"
	"github.com/google/uuid"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
	ErrTargetBusy  = errors.New("another copy job is already writing to this usb root")
	ErrNoUSBRoot   = errors.New("no usb root given and none configured")
)

const webhookTimeout = 30 * time.Second

// Job is the service-side record of a copy job.
type Job struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	USBRoot   string         `json:"usb_root"`
	Status    copying.Status `json:"status"`
	Index     int            `json:"index"`
	Total     int            `json:"total"`
	Current   string         `json:"current,omitempty"`
	Error     string         `json:"error,omitempty"`
	TagError  string         `json:"tag_error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	LogPath   string         `json:"log_path,omitempty"`

	copyJob *copying.CopyJob
	logger  *slog.Logger
	closer  io.Closer
	done    chan struct{}
}

// Progress returns the completion percentage.
func (j Job) Progress() int {
	if j.Total == 0 {
		return 0
	}
	if j.Status == copying.StatusSucceeded {
		return 100
	}
	return max(j.Index-1, 0) * 100 / j.Total
}

// Copied returns how many entries are known to be fully copied.
func (j Job) Copied() int {
	if j.Status == copying.StatusSucceeded {
		return j.Total
	}
	return max(j.Index-1, 0)
}

// Recorder receives job lifecycle metrics.
type Recorder interface {
	JobStarted()
	FileCopied()
	JobFinished(status string, elapsed time.Duration)
}

// Notifier delivers a short text message about a finished job.
type Notifier interface {
	Notify(text string) error
}

// Service runs copy jobs in the background and keeps their records in memory.
type Service struct {
	config    *config.Manager
	tagWriter music.TagWriter
	history   music.CopyHistory
	recorder  Recorder
	notifier  Notifier

	mu   sync.RWMutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

// NewService creates a new jobs service. history and recorder may be nil.
func NewService(cfg *config.Manager, tagWriter music.TagWriter, history music.CopyHistory, recorder Recorder) *Service {
	return &Service{
		config:    cfg,
		tagWriter: tagWriter,
		history:   history,
		recorder:  recorder,
		jobs:      make(map[string]*Job),
	}
}

// SetNotifier sets where terminal job messages are sent.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// StartCopy validates and starts a copy job. An empty usbRoot falls back to usb.root.
func (s *Service) StartCopy(name string, entries []music.SongEntry, usbRoot string, patch music.MetadataPatch) (string, error) {
	cfg := s.config.Get()
	if usbRoot == "" {
		usbRoot = cfg.USB.Root
	}
	if usbRoot == "" {
		return "", ErrNoUSBRoot
	}
	usbRoot = filepath.Clean(usbRoot)

	job := &Job{
		ID:        uuid.New().String(),
		Name:      name,
		USBRoot:   usbRoot,
		Status:    copying.StatusPending,
		Total:     len(entries),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		done:      make(chan struct{}),
	}
	if job.Name == "" {
		job.Name = fmt.Sprintf("Copy to %s", usbRoot)
	}

	s.mu.Lock()
	if s.isTargetBusy(usbRoot) {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrTargetBusy, usbRoot)
	}
	// Reserve the root before releasing the lock so a concurrent start sees it.
	s.jobs[job.ID] = job
	job.logger = logging.Discard()
	if cfg.Jobs.Log {
		logger, logPath, closer, err := logging.JobLogger(cfg.Jobs.LogPath, job.ID)
		if err != nil {
			delete(s.jobs, job.ID)
			s.mu.Unlock()
			return "", err
		}
		job.logger, job.LogPath, job.closer = logger, logPath, closer
	}
	s.mu.Unlock()

	copyJob := copying.NewCopyJob(entries, usbRoot, patch, s.tagWriter, copying.Options{
		PollInterval:   s.config.PollInterval(),
		EventBuffer:    cfg.Jobs.EventBuffer,
		BytesPerSecond: cfg.USB.BandwidthLimit,
		FATSafeNames:   cfg.USB.FATSafeNames,
		ASCIINames:     cfg.USB.ASCIINames,
		Logger:         job.logger,
	})
	if err := copyJob.Start(context.Background()); err != nil {
		job.logger.Error("Copy job refused", "error", err)
		s.drop(job.ID)
		if job.closer != nil {
			job.closer.Close()
			os.Remove(job.LogPath)
		}
		return "", err
	}

	s.mu.Lock()
	job.copyJob = copyJob
	job.Status = copying.StatusRunning
	job.UpdatedAt = time.Now()
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.JobStarted()
	}
	slog.Info("Copy job started", "id", job.ID, "root", usbRoot, "songs", len(entries))

	s.wg.Add(1)
	go s.watch(job)
	return job.ID, nil
}

// watch drains the job events into its record until the job terminates.
func (s *Service) watch(job *Job) {
	defer s.wg.Done()
	defer close(job.done)
	copyJob := job.copyJob

	for p := range copyJob.Events() {
		s.mu.Lock()
		if job.Index > 0 && s.recorder != nil {
			s.recorder.FileCopied()
		}
		job.Index = p.Index
		job.Current = p.SourcePath
		job.UpdatedAt = time.Now()
		s.mu.Unlock()
		job.logger.Info("Progress", "index", p.Index, "total", p.Total, "file", p.SourcePath)
	}

	res := copyJob.Result()
	state := copyJob.State()

	s.mu.Lock()
	if res.Status == copying.StatusSucceeded && s.recorder != nil && job.Total > 0 {
		s.recorder.FileCopied()
	}
	job.Status = res.Status
	job.Error = res.Message
	if res.Status != copying.StatusFailed {
		job.TagError = state.LastError
	}
	job.UpdatedAt = time.Now()
	snapshot := *job
	notifier := s.notifier
	s.mu.Unlock()

	slog.Info("Copy job finished", "id", job.ID, "status", res.Status, "error", res.Message)
	s.onFinished(snapshot, notifier)
	if job.closer != nil {
		job.closer.Close()
	}
}

func (s *Service) onFinished(job Job, notifier Notifier) {
	elapsed := job.UpdatedAt.Sub(job.CreatedAt)
	if s.recorder != nil {
		s.recorder.JobFinished(string(job.Status), elapsed)
	}
	if s.history != nil {
		record := music.CopyRecord{
			ID:         job.ID,
			Name:       job.Name,
			USBRoot:    job.USBRoot,
			Status:     string(job.Status),
			Copied:     job.Copied(),
			Total:      job.Total,
			Error:      job.Error,
			StartedAt:  job.CreatedAt,
			FinishedAt: job.UpdatedAt,
		}
		if err := s.history.Record(context.Background(), record); err != nil {
			slog.Error("Failed to record copy job", "id", job.ID, "error", err)
		}
	}
	s.executeWebhook(job)
	if notifier != nil {
		if err := notifier.Notify(summary(job)); err != nil {
			slog.Warn("Failed to send job notification", "id", job.ID, "error", err)
		}
	}
}

func summary(job Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s (%d/%d)", statusEmoji(job.Status), job.Name, job.Status, job.Copied(), job.Total)
	if job.Error != "" {
		fmt.Fprintf(&b, "\n%s", job.Error)
	}
	return b.String()
}

func (s *Service) isTargetBusy(usbRoot string) bool {
	for _, job := range s.jobs {
		if job.USBRoot == usbRoot && !job.Status.IsTerminal() {
			return true
		}
	}
	return false
}

func (s *Service) drop(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

// Wait blocks until the job finished and its notifications were delivered.
func (s *Service) Wait(ctx context.Context, jobID string) (Job, error) {
	s.mu.RLock()
	job, exists := s.jobs[jobID]
	s.mu.RUnlock()
	if !exists {
		return Job{}, ErrJobNotFound
	}
	select {
	case <-job.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(job), nil
}

// Pause suspends a job at its next checkpoint.
func (s *Service) Pause(jobID string) error {
	return s.setPaused(jobID, true)
}

// Resume lets a paused job continue.
func (s *Service) Resume(jobID string) error {
	return s.setPaused(jobID, false)
}

func (s *Service) setPaused(jobID string, paused bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	if job.copyJob == nil {
		return ErrJobNotFound
	}
	if job.Status.IsTerminal() {
		return ErrJobFinished
	}
	job.copyJob.SetPaused(paused)
	job.logger.Info("Pause requested", "paused", paused)
	return nil
}

// Cancel asks a job to stop. Cancelling a finished job is a no-op.
func (s *Service) Cancel(jobID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	if job.copyJob != nil {
		job.copyJob.RequestCancel()
	}
	return nil
}

// GetJob returns a snapshot of a job.
func (s *Service) GetJob(jobID string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[jobID]
	if !exists {
		return Job{}, false
	}
	return s.snapshot(job), true
}

// GetJobs returns snapshots of every job, newest first.
func (s *Service) GetJobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, s.snapshot(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// snapshot copies a job, picking up pause transitions that emit no events. Callers hold the lock.
func (s *Service) snapshot(job *Job) Job {
	out := *job
	if job.copyJob != nil && !job.Status.IsTerminal() {
		if state := job.copyJob.State(); state.Status.IsActive() {
			out.Status = state.Status
		}
	}
	return out
}

// ActiveCount returns how many jobs are running or paused.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, job := range s.jobs {
		if !job.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// CleanupOldJobs forgets finished jobs not updated within maxAge and removes their log files.
func (s *Service) CleanupOldJobs(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > maxAge && job.Status.IsTerminal() {
			if job.LogPath != "" {
				os.Remove(job.LogPath)
			}
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// ClearFinishedJobs forgets every finished job, keeping log files.
func (s *Service) ClearFinishedJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.Status.IsTerminal() {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Shutdown cancels active jobs and waits for them to finish or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, job := range s.jobs {
		if job.copyJob != nil {
			job.copyJob.RequestCancel()
		}
	}
	s.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// executeWebhook renders and runs the configured webhook command for a finished job.
// It runs on the job's watcher goroutine so the job log stays open until it returns.
func (s *Service) executeWebhook(job Job) {
	webhooks := s.config.Get().Jobs.Webhooks
	if !webhooks.Enabled || webhooks.Command == "" {
		return
	}

	command, err := renderWebhook(webhooks.Command, job)
	if err != nil {
		job.logger.Error("Failed to render webhook template", "error", err)
		return
	}

	s.executeWebhookCommand(command, job)
}

// renderWebhook fills the command template. String values are single quoted for /bin/sh,
// so templates must not add their own quotes around them.
func renderWebhook(text string, job Job) (string, error) {
	tmpl, err := template.New("webhook").Parse(text)
	if err != nil {
		return "", err
	}
	data := struct {
		Name     string
		Type     string
		Status   string
		Message  string
		Duration string
		USBRoot  string
		Copied   int
		Total    int
	}{
		Name:     shellQuote(job.Name),
		Type:     shellQuote("copy"),
		Status:   shellQuote(string(job.Status)),
		Message:  shellQuote(job.Error),
		Duration: shellQuote(job.UpdatedAt.Sub(job.CreatedAt).Round(time.Second).String()),
		USBRoot:  shellQuote(job.USBRoot),
		Copied:   job.Copied(),
		Total:    job.Total,
	}
	var command strings.Builder
	if err := tmpl.Execute(&command, data); err != nil {
		return "", err
	}
	return command.String(), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (s *Service) executeWebhookCommand(command string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Env = os.Environ()

	if err := cmd.Run(); err != nil {
		job.logger.Error("Webhook execution failed", "command", command, "error", err)
		return
	}
	job.logger.Info("Webhook executed successfully", "command", command)
}
