// Package metrics exposes download progress as Prometheus metrics.
//
// A Collector is fed with the scheduler's notify.Events, so it only ever
// sees copies of scheduler state.
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewCollector(reg)
//	bus.Subscribe(collector.Observe)
//	http.Handle("/metrics", metrics.Handler(reg))
//
// Exported series:
//   - gallery_runs_total{event}: start, pause, stop, retry and complete transitions
//   - gallery_items_total{result}: success, skipped, fetch_failure and save_failure reports
//   - gallery_items_done, gallery_items_total_count: progress of the current run
//   - gallery_run_duration_seconds: time from start to completion
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/handiism/gallery-downloader/internal/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the download metrics.
type Collector struct {
	runs        *prometheus.CounterVec
	items       *prometheus.CounterVec
	done        prometheus.Gauge
	total       prometheus.Gauge
	runDuration prometheus.Histogram

	mu        sync.Mutex
	startedAt time.Time
	now       func() time.Time
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_runs_total",
			Help: "Scheduler run transitions by event",
		}, []string{"event"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_items_total",
			Help: "Item results reported by the executor",
		}, []string{"result"}),
		done: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gallery_items_done",
			Help: "Items done in the current run",
		}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gallery_items_total_count",
			Help: "Items in the current list",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gallery_run_duration_seconds",
			Help:    "Time from a fresh start to run completion in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		now: time.Now,
	}

	reg.MustRegister(c.runs, c.items, c.done, c.total, c.runDuration)
	return c
}

// Observe records one event. It has the notify.Handler signature.
func (c *Collector) Observe(ev notify.Event) {
	switch ev.Kind {
	case notify.KindStart:
		c.runs.WithLabelValues("start").Inc()
		c.mu.Lock()
		if c.startedAt.IsZero() {
			c.startedAt = c.now()
		}
		c.mu.Unlock()
	case notify.KindPause:
		c.runs.WithLabelValues("pause").Inc()
	case notify.KindStop:
		c.runs.WithLabelValues("stop").Inc()
		c.mu.Lock()
		c.startedAt = time.Time{}
		c.mu.Unlock()
	case notify.KindRetryScheduled:
		c.runs.WithLabelValues("retry").Inc()
	case notify.KindComplete:
		c.runs.WithLabelValues("complete").Inc()
		c.mu.Lock()
		if !c.startedAt.IsZero() {
			c.runDuration.Observe(c.now().Sub(c.startedAt).Seconds())
			c.startedAt = time.Time{}
		}
		c.mu.Unlock()
	case notify.KindSuccess:
		if ev.Skipped {
			c.items.WithLabelValues("skipped").Inc()
		} else {
			c.items.WithLabelValues("success").Inc()
		}
	case notify.KindFetchError:
		c.items.WithLabelValues("fetch_failure").Inc()
	case notify.KindSaveError:
		c.items.WithLabelValues("save_failure").Inc()
	default:
		return
	}

	if ev.Total > 0 {
		c.done.Set(float64(ev.Done))
		c.total.Set(float64(ev.Total))
	}
}

// Handler serves the metrics registered with g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
