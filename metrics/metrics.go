// Package metrics exposes relay and model-call metrics in the Prometheus
// text format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "relay"

// Request outcomes.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusEmpty = "empty"
)

// Metrics holds the collectors, all registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	InFlight        prometheus.Gauge

	ProviderCalls   *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec

	Critiques     prometheus.Counter
	Regenerations prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Connections handled, by outcome.",
		}, []string{"status"}),

		// Conversations take several model calls, so buckets reach minutes.
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from reading a request to closing its connection.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),

		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Connections currently being handled.",
		}),

		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Model calls, by model and outcome.",
		}, []string{"model", "outcome"}),

		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Latency of single model calls.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model"}),

		Critiques: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correction_critiques_total",
			Help:      "Correction rounds whose critique call completed.",
		}),

		Regenerations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correction_regenerations_total",
			Help:      "Correction rounds whose critique triggered a regeneration.",
		}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one handled connection.
func (m *Metrics) ObserveRequest(status string, d time.Duration, critiques, regenerations int) {
	m.Requests.WithLabelValues(status).Inc()
	if status != StatusEmpty {
		m.RequestDuration.Observe(d.Seconds())
	}
	m.Critiques.Add(float64(critiques))
	m.Regenerations.Add(float64(regenerations))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

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

	logger.Info("Metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
