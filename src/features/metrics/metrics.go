package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes copy job metrics in the Prometheus format.
// It implements the recorder the jobs service reports to.
type Collector struct {
	registry    *prometheus.Registry
	jobsStarted prometheus.Counter
	jobsDone    *prometheus.CounterVec
	filesCopied prometheus.Counter
	activeJobs  prometheus.Gauge
	duration    *prometheus.HistogramVec
}

// NewCollector creates a collector on its own registry, with the Go and process collectors attached.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usbdeck",
			Name:      "copy_jobs_started_total",
			Help:      "Copy jobs that passed validation and started.",
		}),
		jobsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "usbdeck",
			Name:      "copy_jobs_finished_total",
			Help:      "Copy jobs that reached a terminal state, by status.",
		}, []string{"status"}),
		filesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "usbdeck",
			Name:      "files_copied_total",
			Help:      "Files copied to USB drives.",
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "usbdeck",
			Name:      "copy_jobs_active",
			Help:      "Copy jobs currently running or paused.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "usbdeck",
			Name:      "copy_job_duration_seconds",
			Help:      "Wall time of finished copy jobs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"status"}),
	}
	c.registry.MustRegister(
		c.jobsStarted, c.jobsDone, c.filesCopied, c.activeJobs, c.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) JobStarted() {
	c.jobsStarted.Inc()
	c.activeJobs.Inc()
}

func (c *Collector) FileCopied() {
	c.filesCopied.Inc()
}

func (c *Collector) JobFinished(status string, elapsed time.Duration) {
	c.activeJobs.Dec()
	c.jobsDone.WithLabelValues(status).Inc()
	c.duration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// Handler serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Gatherer returns the underlying registry, mostly for tests.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}
