// Package metrics records request outcomes as Prometheus series.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the transport pipeline and the fake API report to.
type Recorder interface {
	RecordRequest(method, outcome string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, string, time.Duration) {}

// Nop discards every observation.
var Nop Recorder = nopRecorder{}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewCollector creates the series under namespace and registers them on reg.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests by method and outcome.",
		}, []string{"method", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(c.requests, c.latency)
	return c
}

// RecordRequest counts one request and observes its latency.
func (c *Collector) RecordRequest(method, outcome string, duration time.Duration) {
	c.requests.WithLabelValues(method, outcome).Inc()
	c.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// StatusOutcome renders an HTTP status as an outcome label.
func StatusOutcome(status int) string {
	return strconv.Itoa(status)
}
