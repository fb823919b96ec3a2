package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"memoro-sync/internal/adapters/instapaper"
	"memoro-sync/internal/adapters/repo"
	"memoro-sync/internal/domain"
	"memoro-sync/internal/infra/cache"
	"memoro-sync/internal/infra/config"
	"memoro-sync/internal/infra/db"
	"memoro-sync/internal/infra/log"
	"memoro-sync/internal/infra/metrics"
	syncusecase "memoro-sync/internal/usecase/sync"
)

// syncGuardTTL гасит повторные триггеры: ключ живёт минуту после
// запуска сессии, и всё это окно новые запросы получают 409.
const syncGuardTTL = time.Minute

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	service := syncusecase.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter, cfg.Limits.SyncPage)

	var guard domain.Cache
	if cfg.RedisAddr != "" {
		guard = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	factory := func(creds domain.Credentials) (domain.BookmarkClient, error) {
		clientCfg := instapaper.Config{
			ConsumerKey:    cfg.Instapaper.ConsumerID,
			ConsumerSecret: cfg.Instapaper.ConsumerSecret,
			BaseURL:        cfg.Instapaper.BaseURL,
			Timeout:        cfg.Instapaper.Timeout,
		}
		if creds.Valid() {
			return instapaper.NewClientWithCredentials(clientCfg, creds)
		}
		return instapaper.NewClient(clientCfg)
	}

	r := chi.NewRouter()

	r.Post("/api/v1/reading/sync", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req syncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.User == "" {
			writeError(w, http.StatusBadRequest, "user is required")
			return
		}

		params := syncusecase.SessionParams{
			DiaryUser:  req.User,
			Username:   req.Username,
			Password:   req.Password,
			WithCounts: req.WithCounts,
		}
		run := func() (syncusecase.Result, error) {
			return service.Run(r.Context(), factory, params)
		}

		var result syncusecase.Result
		var runErr error
		if guard != nil {
			started := false
			onceErr := guard.Once("reading:sync:"+req.User, syncGuardTTL, func() error {
				started = true
				result, runErr = run()
				return runErr
			})
			if !started {
				if onceErr != nil {
					logger.Error().Err(onceErr).Str("user", req.User).Msg("api: замок синхронизации недоступен")
					writeError(w, http.StatusInternalServerError, "sync guard failed")
					return
				}
				writeError(w, http.StatusConflict, "sync recently triggered")
				return
			}
		} else {
			result, runErr = run()
		}
		if runErr != nil {
			logger.Error().Err(runErr).Str("user", req.User).Msg("api: синхронизация не удалась")
			writeError(w, http.StatusBadGateway, "sync failed")
			return
		}
		writeJSON(w, syncResponse{
			SessionID: result.SessionID,
			State:     string(result.State),
			Created:   result.Created,
			Updated:   result.Updated,
			Deleted:   result.Deleted,
		})
	})

	r.Post("/api/v1/reading/associate", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req associateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.User == "" {
			writeError(w, http.StatusBadRequest, "user is required")
			return
		}
		linked, err := service.AssociateAll(r.Context(), req.User)
		if err != nil {
			logger.Error().Err(err).Str("user", req.User).Msg("api: пересмотр привязок не удался")
			writeError(w, http.StatusInternalServerError, "associate failed")
			return
		}
		writeJSON(w, map[string]int{"linked": linked})
	})

	r.Get("/api/v1/reading/counts", func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("user")
		if user == "" {
			writeError(w, http.StatusBadRequest, "user is required")
			return
		}
		totals, err := service.Totals(r.Context(), user)
		if err != nil {
			logger.Error().Err(err).Str("user", user).Msg("api: счётчики недоступны")
			writeError(w, http.StatusInternalServerError, "counts failed")
			return
		}
		writeJSON(w, map[string]int{
			"read":     totals.Read,
			"unread":   totals.Unread,
			"archived": totals.Archived,
			"starred":  totals.Starred,
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "db unavailable")
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	metrics.StartServer(ctx, componentLogger(logger, "metrics"), ":9090")
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("api: старт")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type syncRequest struct {
	User       string `json:"user"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	WithCounts bool   `json:"with_counts"`
}

type syncResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Deleted   int    `json:"deleted"`
}

type associateRequest struct {
	User string `json:"user"`
}

func componentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg})
}
