package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/qbeka/matchmaking-nat/internal/app/migrate"
	"github.com/qbeka/matchmaking-nat/internal/app/pipeline"
	"github.com/qbeka/matchmaking-nat/internal/embedding"
	httpx "github.com/qbeka/matchmaking-nat/internal/http"
	"github.com/qbeka/matchmaking-nat/internal/progress"
	"github.com/qbeka/matchmaking-nat/internal/repository"
	"github.com/qbeka/matchmaking-nat/internal/repository/memory"
	"github.com/qbeka/matchmaking-nat/internal/repository/postgres"
	"github.com/qbeka/matchmaking-nat/internal/review"
	"github.com/qbeka/matchmaking-nat/internal/service/match"
	"github.com/qbeka/matchmaking-nat/internal/ws"
	"github.com/qbeka/matchmaking-nat/pkg/config"
	"github.com/qbeka/matchmaking-nat/pkg/logger"
)

func main() {
	cfg := config.LoadServerConfig()
	log := logger.New("matchd", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	matchCfg, prof, err := pipeline.Build(pipeline.FromServer(cfg))
	if err != nil {
		log.Error("invalid match configuration", "error", err)
		os.Exit(1)
	}
	log.Info("match profile loaded", "profile", prof.Name, "team_size", matchCfg.Formation.DesiredSize)

	checks := map[string]httpx.HealthCheck{}

	var store repository.Store
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		runner, err := migrate.New(pool, dsn, cfg.MigrationsDir, log)
		if err != nil {
			log.Error("failed to configure migrations", "error", err)
			os.Exit(1)
		}
		defer runner.Close()
		if err := runner.Ping(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		repo := postgres.New(pool)
		checks["database"] = repo.Ping
		store = repo
	} else {
		log.Warn("DATABASE_URL not set, runs are kept in memory")
		store = memory.New()
	}

	var rdb redis.UniversalClient
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPass, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable", "addr", addr, "error", err)
			_ = client.Close()
		} else {
			rdb = client
			defer client.Close()
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}

	hub := ws.NewHub(cfg.ProgressBuffer)
	defer hub.Close()

	sinks := progress.Multi{progress.NewHub(hub), progress.Log{Logger: log}}
	if rdb != nil {
		sinks = append(sinks, progress.NewRedis(rdb, ""))
	}
	if url := strings.TrimSpace(cfg.NATSURL); url != "" {
		nc, err := nats.Connect(url, nats.Name("matchd"))
		if err != nil {
			log.Warn("nats unavailable", "url", url, "error", err)
		} else {
			defer func() {
				if err := nc.Drain(); err != nil {
					log.Warn("nats drain failed", "error", err)
				}
			}()
			sinks = append(sinks, progress.NewNATS(nc, ""))
		}
	}
	sink := progress.NewAsync(sinks, cfg.ProgressBuffer, log)

	opts := []match.Option{
		match.WithProgress(sink),
		match.WithMetrics(match.NewMetrics(prometheus.DefaultRegisterer)),
	}
	if key := strings.TrimSpace(cfg.OpenAIKey); key != "" {
		embedder, err := embedding.NewOpenAI(key, cfg.OpenAIBaseURL, cfg.OpenAIEmbeddingModel)
		if err != nil {
			log.Warn("embedding provider unavailable", "error", err)
		} else {
			var provider embedding.Provider = embedder
			if rdb != nil {
				provider = embedding.NewCached(embedder, rdb, embedder.Model(), cfg.EmbeddingCacheTTL, log)
			}
			opts = append(opts, match.WithEmbedder(provider))
		}
		reviewer, err := review.NewOpenAI(key, cfg.OpenAIBaseURL, cfg.OpenAIReviewModel)
		if err != nil {
			log.Warn("review provider unavailable", "error", err)
		} else {
			opts = append(opts, match.WithReviewer(reviewer))
		}
	}
	svc := match.New(store, matchCfg, log, opts...)

	limiter := httpx.NewMemoryRateLimiter()
	if rdb != nil {
		limiter = httpx.NewRedisRateLimiter(rdb, log)
	}

	router := httpx.NewRouter(httpx.Options{
		Logger:  log,
		Match:   svc,
		Hub:     hub,
		Limiter: limiter,
		Auth: httpx.AuthConfig{
			Secret:     cfg.JWTSecret,
			APIKeyHash: cfg.APIKeyHash,
			TokenTTL:   cfg.AccessTokenTTL,
		},
		RateLimit:    cfg.RateLimitPerMinute,
		Registerer:   prometheus.DefaultRegisterer,
		Gatherer:     prometheus.DefaultGatherer,
		HealthChecks: checks,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("matchd starting", "addr", cfg.Addr, "env", cfg.Environment)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		if err := sink.Close(shutdownCtx); err != nil {
			log.Warn("progress flush incomplete", "error", err, "dropped", sink.Dropped())
		}
		log.Info("matchd stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
