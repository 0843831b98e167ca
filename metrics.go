package main

import (
	"net/http"
	"time"

	"github.com/aquilax/threadboard/reply"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	treeBuilds      prometheus.Counter
	orphansPromoted prometheus.Counter
	replies         *prometheus.CounterVec
	backendFetch    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		treeBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "threadboard_tree_builds_total",
			Help: "Comment trees built from a flat comment list.",
		}),
		orphansPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "threadboard_orphans_promoted_total",
			Help: "Comments shown as roots because their parent was missing.",
		}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadboard_replies_total",
			Help: "Comment and reply submissions by result.",
		}, []string{"result"}),
		backendFetch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threadboard_backend_fetch_seconds",
			Help:    "Time spent reading from the backend.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	m.registry.MustRegister(m.treeBuilds, m.orphansPromoted, m.replies, m.backendFetch)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeBuild(orphans int) {
	m.treeBuilds.Inc()
	m.orphansPromoted.Add(float64(orphans))
}

// observeReply counts a submission outcome; kind 0 is a success.
func (m *Metrics) observeReply(kind reply.Kind) {
	result := "ok"
	if kind != 0 {
		result = kind.String()
	}
	m.replies.WithLabelValues(result).Inc()
}

func (m *Metrics) timeFetch(op string) func() {
	start := time.Now()
	return func() {
		m.backendFetch.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
