package copying

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/contre95/usbdeck/src/music"
	"golang.org/x/time/rate"
)

var (
	ErrAlreadyStarted     = errors.New("copy job already started")
	ErrEmptyPlaylist      = errors.New("there are no songs to copy")
	ErrUSBRootMissing     = errors.New("usb root does not exist")
	ErrUSBRootNotDir      = errors.New("usb root is not a directory")
	ErrUSBRootNotWritable = errors.New("usb root is not writable")
	ErrSameFile           = errors.New("source and destination are the same file")
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultEventBuffer  = 16
)

// Options tune a copy job. The zero value is usable.
type Options struct {
	// PollInterval is how often a paused job checks whether it was resumed.
	PollInterval time.Duration
	// EventBuffer is the capacity of the progress channel.
	EventBuffer int
	// BytesPerSecond caps the copy throughput. Zero means unlimited.
	BytesPerSecond int
	FATSafeNames   bool
	ASCIINames     bool
	Logger         *slog.Logger
}

// CopyJob copies a frozen list of songs to a USB root and stamps a metadata patch on each copy.
// A job runs once: after it reaches a terminal state it cannot be restarted.
type CopyJob struct {
	entries   []music.SongEntry
	usbRoot   string
	patch     music.MetadataPatch
	tagWriter music.TagWriter
	resolver  *PathResolver
	limiter   *rate.Limiter
	opts      Options
	logger    *slog.Logger

	started    atomic.Bool
	paused     atomic.Bool
	cancelled  atomic.Bool
	cancelCh   chan struct{}
	cancelOnce sync.Once

	mu      sync.RWMutex
	status  Status
	index   int
	lastErr string

	reporter *reporter
}

// NewCopyJob creates a pending job. The entries slice is copied so later caller edits do not leak in.
// tagWriter may be nil when the patch is empty.
func NewCopyJob(entries []music.SongEntry, usbRoot string, patch music.MetadataPatch, tagWriter music.TagWriter, opts Options) *CopyJob {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	frozen := make([]music.SongEntry, len(entries))
	copy(frozen, entries)

	return &CopyJob{
		entries:   frozen,
		usbRoot:   usbRoot,
		patch:     patch,
		tagWriter: tagWriter,
		resolver:  NewPathResolver(opts.FATSafeNames, opts.ASCIINames, logger),
		limiter:   newLimiter(opts.BytesPerSecond),
		opts:      opts,
		logger:    logger,
		cancelCh:  make(chan struct{}),
		status:    StatusPending,
		reporter:  newReporter(opts.EventBuffer),
	}
}

// Start validates the job inputs and begins copying in the background.
// Validation errors are returned here and leave the job Pending.
func (j *CopyJob) Start(ctx context.Context) error {
	if !j.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if err := j.validate(); err != nil {
		j.started.Store(false)
		return err
	}

	j.setStatus(StatusRunning)
	j.logger.Info("Starting copy job", "root", j.usbRoot, "songs", len(j.entries), "metadata", !j.patch.IsEmpty())

	go func() {
		select {
		case <-ctx.Done():
			j.RequestCancel()
		case <-j.reporter.done:
		}
	}()
	go j.run(context.WithoutCancel(ctx))
	return nil
}

// RequestCancel asks the job to stop at the next checkpoint. Safe to call any number of times, in any state.
func (j *CopyJob) RequestCancel() {
	j.cancelOnce.Do(func() {
		j.cancelled.Store(true)
		close(j.cancelCh)
	})
}

// SetPaused suspends or resumes the job at its next checkpoint.
func (j *CopyJob) SetPaused(paused bool) {
	j.paused.Store(paused)
}

// Events returns the progress channel. It is closed once the job terminates.
func (j *CopyJob) Events() <-chan Progress {
	return j.reporter.events
}

// Done is closed when the job reaches a terminal state.
func (j *CopyJob) Done() <-chan struct{} {
	return j.reporter.done
}

// Result returns the terminal outcome. It is only meaningful after Done is closed.
func (j *CopyJob) Result() Result {
	<-j.reporter.done
	return j.reporter.result
}

// State returns a snapshot of the job state.
func (j *CopyJob) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return State{
		Status:       j.status,
		CurrentIndex: j.index,
		Total:        len(j.entries),
		LastError:    j.lastErr,
	}
}

// USBRoot returns the target root of the job.
func (j *CopyJob) USBRoot() string {
	return j.usbRoot
}

func (j *CopyJob) validate() error {
	if len(j.entries) == 0 {
		return ErrEmptyPlaylist
	}
	info, err := os.Stat(j.usbRoot)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUSBRootMissing, j.usbRoot)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrUSBRootNotDir, j.usbRoot)
	}
	scratch, err := os.CreateTemp(j.usbRoot, ".usbdeck-write-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUSBRootNotWritable, j.usbRoot, err)
	}
	scratch.Close()
	os.Remove(scratch.Name())
	return nil
}

func (j *CopyJob) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("Copy job panicked", "panic", r)
			j.fail(fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	total := len(j.entries)
	withTags := !j.patch.IsEmpty() && j.tagWriter != nil

	for i, entry := range j.entries {
		if j.cancelled.Load() {
			j.cancel()
			return
		}
		if !j.waitWhilePaused() {
			j.cancel()
			return
		}

		j.setIndex(i + 1)
		if !j.reporter.progress(j.cancelCh, Progress{Index: i + 1, Total: total, SourcePath: entry.SourcePath}) {
			j.cancel()
			return
		}

		out, err := j.resolver.Resolve(j.usbRoot, entry.DestinationLabel, entry.FileName)
		if err != nil {
			j.fail(err.Error())
			return
		}

		info, err := copyFile(ctx, entry.SourcePath, out, j.limiter)
		if err != nil {
			j.fail(err.Error())
			return
		}
		if err := preserveModTime(out, info); err != nil {
			j.logger.Warn("Failed to preserve modification time", "file", out, "error", err)
		}
		j.logger.Debug("Copied file", "source", entry.SourcePath, "target", out, "index", i+1, "total", total)

		if withTags {
			if err := j.tagWriter.Apply(ctx, out, j.patch); err != nil {
				j.logger.Warn("Failed to write tags, keeping copied file", "file", out, "error", err)
				j.setLastError(err.Error())
			}
		}
	}

	j.finish(Result{Status: StatusSucceeded})
	j.logger.Info("Copy job finished", "root", j.usbRoot, "songs", total)
}

// waitWhilePaused blocks while the job is paused. It returns false when the job was cancelled.
func (j *CopyJob) waitWhilePaused() bool {
	if !j.paused.Load() {
		return true
	}
	j.setStatus(StatusPaused)
	j.logger.Info("Copy job paused", "index", j.State().CurrentIndex)

	ticker := time.NewTicker(j.opts.PollInterval)
	defer ticker.Stop()
	for j.paused.Load() {
		select {
		case <-j.cancelCh:
			return false
		case <-ticker.C:
		}
	}
	if j.cancelled.Load() {
		return false
	}
	j.setStatus(StatusRunning)
	j.logger.Info("Copy job resumed")
	return true
}

func (j *CopyJob) cancel() {
	j.logger.Info("Copy job cancelled", "index", j.State().CurrentIndex)
	j.finish(Result{Status: StatusCancelled})
}

func (j *CopyJob) fail(message string) {
	j.logger.Error("Copy job failed", "error", message)
	j.setLastError(message)
	j.finish(Result{Status: StatusFailed, Message: message})
}

func (j *CopyJob) finish(res Result) {
	j.mu.Lock()
	if j.status.IsTerminal() {
		j.mu.Unlock()
		return
	}
	j.status = res.Status
	j.mu.Unlock()
	j.reporter.finish(res)
}

func (j *CopyJob) setStatus(status Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.status.IsTerminal() {
		j.status = status
	}
}

func (j *CopyJob) setIndex(index int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if index > j.index {
		j.index = index
	}
}

func (j *CopyJob) setLastError(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastErr = message
}
