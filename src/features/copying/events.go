package copying

import "sync"

// Status is the lifecycle state of a copy job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusSucceeded || s == StatusFailed
}

// IsActive reports whether the job is running or paused.
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusPaused
}

// Progress is emitted right before an entry is copied. Index is 1-based.
type Progress struct {
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	SourcePath string `json:"source_path"`
}

// Result is the terminal outcome of a job. Message is set for failures.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// State is a point-in-time snapshot of a job.
type State struct {
	Status       Status `json:"status"`
	CurrentIndex int    `json:"current_index"`
	Total        int    `json:"total"`
	LastError    string `json:"last_error,omitempty"`
}

// reporter delivers progress events in order and a single terminal result.
type reporter struct {
	events chan Progress
	done   chan struct{}
	once   sync.Once
	result Result
}

func newReporter(buffer int) *reporter {
	if buffer < 1 {
		buffer = 1
	}
	return &reporter{
		events: make(chan Progress, buffer),
		done:   make(chan struct{}),
	}
}

// progress blocks until the event is queued. It gives up and returns false once cancel is closed.
func (r *reporter) progress(cancel <-chan struct{}, p Progress) bool {
	select {
	case r.events <- p:
		return true
	case <-cancel:
		return false
	}
}

// finish stores the terminal result. Only the first call has an effect.
func (r *reporter) finish(res Result) bool {
	first := false
	r.once.Do(func() {
		first = true
		r.result = res
		close(r.done)
		close(r.events)
	})
	return first
}
