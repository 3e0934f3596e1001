// Package metrics provides Prometheus instrumentation for tap-hookdeck.
//
// # Overview
//
// A Collector owns its own registry so that a run, and every test, starts
// from zero. The tap records:
//   - records emitted per stream
//   - pages fetched per stream
//   - HTTP request latency per stream and status code
//   - schema conformance violations per stream and severity
//   - wall time per stream
//
// # Basic Usage
//
//	collector := metrics.NewCollector()
//	collector.RecordPage("requests")
//	collector.RecordRecords("requests", 250)
//
//	timer := metrics.NewTimer()
//	resp, err := client.Do(req)
//	collector.ObserveRequest("requests", resp.StatusCode, timer.Stop())
//
// Serve exposes the registry at /metrics until its context is cancelled.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "tap_hookdeck"

// Severity labels for conformance violations
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Collector groups the tap's Prometheus metrics behind one registry.
type Collector struct {
	registry *prometheus.Registry

	recordsEmitted       *prometheus.CounterVec
	pagesFetched         *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	conformanceViolation *prometheus.CounterVec
	streamDuration       *prometheus.GaugeVec
	startTime            time.Time
}

// NewCollector creates a collector with a fresh registry, including the Go
// runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		recordsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_emitted_total",
				Help:      "Total number of RECORD messages emitted",
			},
			[]string{"stream"},
		),
		pagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_fetched_total",
				Help:      "Total number of API pages fetched",
			},
			[]string{"stream"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of Hookdeck API page requests",
				Buckets:   prometheus.ExponentialBuckets(0.025, 2, 10), // 25ms .. ~12.8s
			},
			[]string{"stream", "status"},
		),
		conformanceViolation: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conformance_violations_total",
				Help:      "Schema conformance violations by severity",
			},
			[]string{"stream", "severity"},
		),
		streamDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_sync_duration_seconds",
				Help:      "Wall time of the last sync of each stream",
			},
			[]string{"stream"},
		),
		startTime: time.Now(),
	}
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// RecordRecords counts emitted records.
func (c *Collector) RecordRecords(stream string, n int) {
	c.recordsEmitted.WithLabelValues(stream).Add(float64(n))
}

// RecordPage counts one fetched page.
func (c *Collector) RecordPage(stream string) {
	c.pagesFetched.WithLabelValues(stream).Inc()
}

// ObserveRequest records the latency of one page request. status 0 means the
// request failed before a response arrived.
func (c *Collector) ObserveRequest(stream string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.requestDuration.WithLabelValues(stream, label).Observe(d.Seconds())
}

// RecordViolations counts conformance violations.
func (c *Collector) RecordViolations(stream, severity string, n int) {
	if n == 0 {
		return
	}
	c.conformanceViolation.WithLabelValues(stream, severity).Add(float64(n))
}

// RecordStreamDuration sets the wall time of a finished stream.
func (c *Collector) RecordStreamDuration(stream string, d time.Duration) {
	c.streamDuration.WithLabelValues(stream).Set(d.Seconds())
}

// RecordsEmitted returns the counter for a stream.
func (c *Collector) RecordsEmitted(stream string) prometheus.Counter {
	return c.recordsEmitted.WithLabelValues(stream)
}

// PagesFetched returns the counter for a stream.
func (c *Collector) PagesFetched(stream string) prometheus.Counter {
	return c.pagesFetched.WithLabelValues(stream)
}

// Violations returns the violation counter for a stream and severity.
func (c *Collector) Violations(stream, severity string) prometheus.Counter {
	return c.conformanceViolation.WithLabelValues(stream, severity)
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
