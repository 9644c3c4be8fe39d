package metrics

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/larivierec/hover-cli/pkg/registrar"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushJob = "hover_cli"

// Recorder tracks the registrar calls made by one invocation. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hover_api_requests_total",
				Help: "Number of requests made to the registrar API.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hover_api_request_duration_seconds",
				Help:    "Latency of registrar API requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	r.registry.MustRegister(r.requests, r.duration)
	return r
}

func (r *Recorder) Observe(operation string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(operation, Outcome(err)).Inc()
	r.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Requests returns the counter for one operation/outcome pair.
func (r *Recorder) Requests(operation, outcome string) prometheus.Counter {
	return r.requests.WithLabelValues(operation, outcome)
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Push sends the collected metrics to a Pushgateway, replacing the
// previous push for the same job.
func (r *Recorder) Push(ctx context.Context, url string) error {
	if r == nil || url == "" {
		return nil
	}
	err := push.New(url, pushJob).Gatherer(r.registry).PushContext(ctx)
	return errors.Wrapf(err, "push metrics to %s", url)
}

func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, registrar.ErrConflict):
		return "conflict"
	case errors.Is(err, registrar.ErrNotFound):
		return "not_found"
	case errors.Is(err, registrar.ErrAuthentication):
		return "unauthorized"
	default:
		return "error"
	}
}
