package metrics

import (
	"context"
	"log/slog"
	"sort"

	"github.com/contre95/usbdeck/src/music"
)

const recentJobs = 10

// Service summarizes the copy job history.
type Service struct {
	history music.CopyHistory
}

// NewService creates a new metrics service.
func NewService(history music.CopyHistory) *Service {
	return &Service{history: history}
}

// Summary holds the history aggregates for display.
type Summary struct {
	StatusCounts []Metric           `json:"status_counts"`
	TotalJobs    int                `json:"total_jobs"`
	RecentCopied int                `json:"recent_copied"`
	Recent       []music.CopyRecord `json:"recent"`
}

// Metric represents a single metric data point.
type Metric struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// GetSummary reads the history. Partial failures are logged and leave the section empty.
func (s *Service) GetSummary(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	if s.history == nil {
		return summary, nil
	}

	counts, err := s.history.CountByStatus(ctx)
	if err != nil {
		slog.Warn("Failed to count copy jobs", "error", err)
	}
	summary.StatusCounts = convertMapToMetrics(counts)
	for _, m := range summary.StatusCounts {
		summary.TotalJobs += m.Value
	}

	recent, err := s.history.List(ctx, recentJobs)
	if err != nil {
		return nil, err
	}
	summary.Recent = recent
	for _, r := range recent {
		summary.RecentCopied += r.Copied
	}
	return summary, nil
}

// convertMapToMetrics converts a map[string]int to []Metric sorted by key
func convertMapToMetrics(data map[string]int) []Metric {
	metrics := make([]Metric, 0, len(data))
	for key, value := range data {
		metrics = append(metrics, Metric{Key: key, Value: value})
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Key < metrics[j].Key })
	return metrics
}
