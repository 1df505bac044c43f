// Package metrics exposes the bot's Prometheus collectors and the HTTP
// endpoint that serves them. All methods are safe on a nil *Metrics.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreconfig "github.com/m3rciful/musicbot/core/config"
	"github.com/m3rciful/musicbot/core/logger"
)

const namespace = "musicbot"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	updates          *prometheus.CounterVec
	handlerDuration  *prometheus.HistogramVec
	orderTransitions *prometheus.CounterVec
	generationCalls  *prometheus.CounterVec
}

// New registers the collectors plus the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		updates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates received, by kind.",
		}, []string{"kind"}),
		handlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Handler latency, by handler and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "status"}),
		orderTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Orders entering a status.",
		}, []string{"status"}),
		generationCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_calls_total",
			Help:      "Generation API calls, by operation and outcome.",
		}, []string{"op", "outcome"}),
	}
}

// WatchDB exports connection pool statistics of db.
func (m *Metrics) WatchDB(db *sql.DB, name string) {
	if m == nil || db == nil {
		return
	}
	m.reg.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// IncUpdate counts one inbound update.
func (m *Metrics) IncUpdate(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

// ObserveHandler records a handler run.
func (m *Metrics) ObserveHandler(handler, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(handler, status).Observe(d.Seconds())
}

// OrderTransition counts an order entering status.
func (m *Metrics) OrderTransition(status string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(status).Inc()
}

// GenerationCall counts one generation API call.
func (m *Metrics) GenerationCall(op, outcome string) {
	if m == nil {
		return
	}
	m.generationCalls.WithLabelValues(op, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Serve runs the exporter until ctx is done. It returns immediately when no
// listen address is configured.
func Serve(ctx context.Context, cfg coreconfig.MetricsConfig, m *Metrics) error {
	if m == nil || cfg.Listen == "" {
		return nil
	}
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "metrics", "listen", slog.String("addr", cfg.Listen), slog.String("path", path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error(ctx, "metrics", "listen", slog.String("status", "fail"), logger.Err(err))
		return err
	}
}
