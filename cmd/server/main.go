package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pulsedash.app/harvester/common/id"
	"pulsedash.app/harvester/common/logger"
	"pulsedash.app/harvester/common/otel"
	"pulsedash.app/harvester/core/config"
	"pulsedash.app/harvester/internal/extract"
	"pulsedash.app/harvester/internal/fetch"
	"pulsedash.app/harvester/internal/http/handler"
	"pulsedash.app/harvester/internal/http/middleware"
	httprouter "pulsedash.app/harvester/internal/http/router"
	"pulsedash.app/harvester/internal/pipeline"
	"pulsedash.app/harvester/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "harvester starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	jobs, err := buildStore(ctx, cfg.Store)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize job store", "error", err)
		os.Exit(1)
	}

	fetcher := fetch.NewClient(fetch.Config{
		BaseURL: cfg.Fetch.BaseURL,
		APIKey:  cfg.Fetch.APIKey,
		Country: cfg.Fetch.Country,
		Timeout: cfg.Fetch.Timeout,
	})
	if !cfg.Fetch.Enabled() {
		slog.WarnContext(ctx, "no fetch api key configured, real-mode jobs will degrade to fallback data")
	}

	extractor, err := buildExtractor(ctx, cfg.OpenAI)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize extractor", "error", err)
		os.Exit(1)
	}

	runner := pipeline.NewRunner()
	orchestrator := pipeline.NewOrchestrator(jobs, fetcher, extractor, pipeline.Config{
		ItemDelay:     cfg.Pipeline.ItemDelay,
		FallbackDelay: cfg.Pipeline.FallbackDelay,
		DefaultLimit:  cfg.Pipeline.DefaultLimit,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, jobs, runner, orchestrator)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	// In-flight jobs are cancelled rather than silently leaked.
	if err := runner.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "runner shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func buildStore(ctx context.Context, cfg config.StoreConfig) (store.JobStore, error) {
	if !cfg.RedisEnabled() {
		slog.InfoContext(ctx, "using in-memory job store (process lifetime only)")
		return store.NewMemoryStore(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "using redis job store", "ttl", cfg.JobTTL)
	return store.NewRedisStore(client, cfg.JobTTL), nil
}

func buildExtractor(ctx context.Context, cfg config.OpenAIConfig) (extract.FieldExtractor, error) {
	if !cfg.Enabled() {
		slog.WarnContext(ctx, "no openai api key configured, extraction will return empty records")
		return extract.NewExtractor(nil), nil
	}

	llm, err := extract.NewOpenAIClient(extract.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, err
	}
	return extract.NewExtractor(llm), nil
}

func setupRouter(cfg config.Config, jobs store.JobStore, runner *pipeline.Runner, orchestrator *pipeline.Orchestrator) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger
	// logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, handler.NewJobHandler(jobs, runner, orchestrator))

	return router
}
