package web

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vidtube/internal/publish"
)

// Metrics are the publish counters exported on /metrics.
type Metrics struct {
	publishTotal    *prometheus.CounterVec
	publishDuration prometheus.Histogram
}

// RegisterMetrics creates the publish metrics and registers them with reg.
func RegisterMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vidtube_publish_total",
			Help: "Publish attempts by outcome.",
		}, []string{"outcome"}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidtube_publish_duration_seconds",
			Help:    "Time spent in the publish pipeline.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	for _, c := range []prometheus.Collector{m.publishTotal, m.publishDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// outcome labels a publish result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, publish.ErrMissingAsset):
		return "missing_asset"
	case errors.Is(err, publish.ErrThumbnailDerivation):
		return "thumbnail_failed"
	case errors.Is(err, publish.ErrRemoteUpload):
		return "upload_failed"
	case errors.Is(err, publish.ErrPersistence):
		return "persistence_failed"
	default:
		return "error"
	}
}

func (m *Metrics) observePublish(err error, took time.Duration) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(outcome(err)).Inc()
	m.publishDuration.Observe(took.Seconds())
}
