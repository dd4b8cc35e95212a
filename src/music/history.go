package music

import (
	"fmt"
	"time"
)

// CopyRecord is the persisted summary of a finished copy job.
type CopyRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	USBRoot    string    `json:"usb_root"`
	Status     string    `json:"status"`
	Copied     int       `json:"copied"`
	Total      int       `json:"total"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Validate validates the record fields.
func (r CopyRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("copy record id cannot be empty")
	}
	if r.Status == "" {
		return fmt.Errorf("copy record status cannot be empty")
	}
	return nil
}

// Elapsed returns how long the job ran.
func (r CopyRecord) Elapsed() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
