// Package metrics provides Prometheus metrics collection for fieldmap.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for fieldmap. A nil *Collector
// ignores every observation.
type Collector struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Engine metrics
	FlattenNodes    prometheus.Histogram
	MappingsApplied prometheus.Counter
	MappingsSkipped *prometheus.CounterVec

	// Batch metrics
	JobsTotal *prometheus.CounterVec
}

// New creates a collector on its own registry. sessions, if non-nil,
// reports the number of live mapping sessions.
func New(sessions func() int) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	c := &Collector{
		registry: reg,
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldmap",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fieldmap",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		FlattenNodes: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "fieldmap",
				Name:      "flatten_nodes",
				Help:      "Number of property nodes produced per flattened document",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		MappingsApplied: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fieldmap",
				Name:      "mappings_applied_total",
				Help:      "Total number of properties renamed by a mapping rule",
			},
		),
		MappingsSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldmap",
				Name:      "mappings_skipped_total",
				Help:      "Total number of mapping rules or properties not written to output",
			},
			[]string{"reason"},
		),
		JobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldmap",
				Name:      "jobs_total",
				Help:      "Total number of batch jobs by final status",
			},
			[]string{"status"},
		),
	}

	if sessions != nil {
		f.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "fieldmap",
				Name:      "sessions_active",
				Help:      "Number of live mapping sessions",
			},
			func() float64 { return float64(sessions()) },
		)
	}
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveFlatten records the size of one flattened document.
func (c *Collector) ObserveFlatten(nodes int) {
	if c == nil {
		return
	}
	c.FlattenNodes.Observe(float64(nodes))
}

// ObserveResolve records the outcome of one output build.
func (c *Collector) ObserveResolve(applied, dropped, collided, unmatched int) {
	if c == nil {
		return
	}
	c.MappingsApplied.Add(float64(applied))
	c.MappingsSkipped.WithLabelValues("dropped").Add(float64(dropped))
	c.MappingsSkipped.WithLabelValues("collided").Add(float64(collided))
	c.MappingsSkipped.WithLabelValues("unmatched").Add(float64(unmatched))
}

// ObserveJob records a finished batch job.
func (c *Collector) ObserveJob(status string) {
	if c == nil {
		return
	}
	c.JobsTotal.WithLabelValues(status).Inc()
}

// Middleware records request counts and durations, labelled by chi route
// pattern so path parameters do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		c.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		c.RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
