// Package metrics exposes stage counters on a private Prometheus registry.
//
// All helper methods accept a nil *Registry, so components can record
// unconditionally whether or not metrics are wired.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersIngested    prometheus.Counter
	ChunksProcessed   prometheus.Counter
	ChunksEmpty       prometheus.Counter
	DuplicatesRemoved prometheus.Counter
	RecordsParsed     prometheus.Counter
	RecordsSkipped    prometheus.Counter
	CommuteRows       *prometheus.CounterVec
	GeocodeCache      *prometheus.CounterVec
	StageRuns         *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	JobsRunning       prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	ingested := prometheus.NewCounter(prometheus.CounterOpts{Name: "tutorder_orders_ingested_total"})
	chunks := prometheus.NewCounter(prometheus.CounterOpts{Name: "tutorder_chunks_processed_total"})
	chunksEmpty := prometheus.NewCounter(prometheus.CounterOpts{Name: "tutorder_chunks_empty_total"})
	removed := prometheus.NewCounter(prometheus.CounterOpts{Name: "tutorder_duplicates_removed_total"})
	parsed := prometheus.NewCounter(prometheus.CounterOpts{Name: "tutorder_records_parsed_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "tutorder_records_skipped_total"})
	commuteRows := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "tutorder_commute_rows_total"}, []string{"outcome"})
	geocodeCache := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "tutorder_geocode_cache_total"}, []string{"result"})
	stageRuns := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "tutorder_stage_runs_total"}, []string{"stage", "result"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tutorder_stage_duration_seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})
	jobsRunning := prometheus.NewGauge(prometheus.GaugeOpts{Name: "tutorder_jobs_running"})

	r.MustRegister(ingested, chunks, chunksEmpty, removed, parsed, skipped,
		commuteRows, geocodeCache, stageRuns, stageDuration, jobsRunning)
	return &Registry{
		reg:               r,
		OrdersIngested:    ingested,
		ChunksProcessed:   chunks,
		ChunksEmpty:       chunksEmpty,
		DuplicatesRemoved: removed,
		RecordsParsed:     parsed,
		RecordsSkipped:    skipped,
		CommuteRows:       commuteRows,
		GeocodeCache:      geocodeCache,
		StageRuns:         stageRuns,
		StageDuration:     stageDuration,
		JobsRunning:       jobsRunning,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Gatherer exposes the registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveStage records one finished stage run.
func (r *Registry) ObserveStage(stage string, start time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.StageRuns.WithLabelValues(stage, result).Inc()
	r.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// AddIngested counts one processed chunk and the orders it produced.
func (r *Registry) AddIngested(orders int) {
	if r == nil {
		return
	}
	r.ChunksProcessed.Inc()
	if orders == 0 {
		r.ChunksEmpty.Inc()
	}
	r.OrdersIngested.Add(float64(orders))
}

func (r *Registry) AddDuplicatesRemoved(n int) {
	if r == nil {
		return
	}
	r.DuplicatesRemoved.Add(float64(n))
}

func (r *Registry) AddEnriched(parsed, skipped int) {
	if r == nil {
		return
	}
	r.RecordsParsed.Add(float64(parsed))
	r.RecordsSkipped.Add(float64(skipped))
}

// AddCommuteRow counts a row by outcome: "ok", "unresolvable" or "error".
func (r *Registry) AddCommuteRow(outcome string) {
	if r == nil {
		return
	}
	r.CommuteRows.WithLabelValues(outcome).Inc()
}

// AddGeocodeCache counts a cache lookup as "hit" or "miss".
func (r *Registry) AddGeocodeCache(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.GeocodeCache.WithLabelValues(result).Inc()
}

func (r *Registry) JobStarted() {
	if r == nil {
		return
	}
	r.JobsRunning.Inc()
}

func (r *Registry) JobFinished() {
	if r == nil {
		return
	}
	r.JobsRunning.Dec()
}
