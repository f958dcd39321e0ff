// Package metrics exposes Prometheus collectors for the refresh cycle.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds all Prometheus metrics for BtcInsight.
type Metrics struct {
	Registry *prometheus.Registry

	FetchTotal       *prometheus.CounterVec // labels: source, op, result
	CacheTotal       *prometheus.CounterVec // labels: result
	InferenceTotal   *prometheus.CounterVec // labels: result
	InferenceDur     prometheus.Histogram
	PipelineDur      prometheus.Histogram
	DiagnosticsTotal *prometheus.CounterVec // labels: kind
	LastPrice        prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btcinsight_fetch_total",
			Help: "External data fetches by source, operation and result.",
		}, []string{"source", "op", "result"}),
		CacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btcinsight_cache_total",
			Help: "Series cache lookups by result.",
		}, []string{"result"}),
		InferenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btcinsight_inference_total",
			Help: "LLM inference calls by result.",
		}, []string{"result"}),
		InferenceDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "btcinsight_inference_duration_seconds",
			Help:    "LLM inference latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 10},
		}),
		PipelineDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "btcinsight_pipeline_duration_seconds",
			Help:    "End-to-end refresh latency.",
			Buckets: prometheus.DefBuckets,
		}),
		DiagnosticsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btcinsight_diagnostics_total",
			Help: "Refresh failures surfaced to the user, by kind.",
		}, []string{"kind"}),
		LastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "btcinsight_last_price",
			Help: "Latest price seen by the pipeline.",
		}),
	}
	m.Registry.MustRegister(
		m.FetchTotal, m.CacheTotal, m.InferenceTotal, m.InferenceDur,
		m.PipelineDur, m.DiagnosticsTotal, m.LastPrice,
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveFetch counts one external fetch.
func (m *Metrics) ObserveFetch(source, op string, err error) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(source, op, result(err)).Inc()
}

// ObserveCache counts one cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	r := "miss"
	if hit {
		r = "hit"
	}
	m.CacheTotal.WithLabelValues(r).Inc()
}

// ObserveInference records one inference call.
func (m *Metrics) ObserveInference(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.InferenceTotal.WithLabelValues(result(err)).Inc()
	m.InferenceDur.Observe(d.Seconds())
}

// ObservePipeline records one refresh.
func (m *Metrics) ObservePipeline(d time.Duration, price float64, diagnostics []string) {
	if m == nil {
		return
	}
	m.PipelineDur.Observe(d.Seconds())
	if price > 0 {
		m.LastPrice.Set(price)
	}
	for _, k := range diagnostics {
		m.DiagnosticsTotal.WithLabelValues(k).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
