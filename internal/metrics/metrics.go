package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one process. Each instance owns its
// registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	fetchTotal    *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	refreshTotal  *prometheus.CounterVec
	events        prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// New registers the todaycal collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todaycal_feed_fetch_total",
			Help: "Upstream calendar fetches by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "todaycal_feed_fetch_duration_seconds",
			Help:    "Latency of upstream calendar fetches.",
			Buckets: prometheus.DefBuckets,
		}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todaycal_refresh_total",
			Help: "Agenda refresh cycles by result.",
		}, []string{"result"}),
		events: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "todaycal_events",
			Help: "Number of events parsed by the last successful refresh.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "todaycal_last_refresh_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh.",
		}),
	}
	reg.MustRegister(
		m.fetchTotal,
		m.fetchDuration,
		m.refreshTotal,
		m.events,
		m.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveFetch records one upstream fetch. result is one of success,
// not_configured, unreachable, remote_error.
func (m *Metrics) ObserveFetch(result string, elapsed time.Duration) {
	m.fetchTotal.WithLabelValues(result).Inc()
	if elapsed > 0 {
		m.fetchDuration.Observe(elapsed.Seconds())
	}
}

// ObserveRefresh records one refresh cycle. result is one of success,
// failure, superseded.
func (m *Metrics) ObserveRefresh(result string, eventCount int, at time.Time) {
	m.refreshTotal.WithLabelValues(result).Inc()
	if result == "success" {
		m.events.Set(float64(eventCount))
		m.lastSuccess.Set(float64(at.Unix()))
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
