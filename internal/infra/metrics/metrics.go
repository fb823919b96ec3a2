package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	SyncArticlesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_articles_created_total",
		Help: "Созданные при синхронизации статьи",
	}, []string{"folder"})
	SyncArticlesUpdated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_articles_updated_total",
		Help: "Обновлённые при синхронизации статьи",
	}, []string{"folder"})
	SyncArticlesDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_articles_deleted_total",
		Help: "Мягко удалённые при синхронизации статьи",
	}, []string{"folder"})
	SyncErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_errors_total",
		Help: "Ошибки сессий синхронизации",
	})
	SyncDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_duration_seconds",
		Help:    "Длительность полной сессии синхронизации",
		Buckets: prometheus.DefBuckets,
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		SyncArticlesCreated,
		SyncArticlesUpdated,
		SyncArticlesDeleted,
		SyncErrors,
		SyncDurationSeconds,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveFolderSync записывает итоги обработки одной папки.
func ObserveFolderSync(folder string, created, updated, deleted int) {
	SyncArticlesCreated.WithLabelValues(folder).Add(float64(created))
	SyncArticlesUpdated.WithLabelValues(folder).Add(float64(updated))
	SyncArticlesDeleted.WithLabelValues(folder).Add(float64(deleted))
}
