package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	aahttp "github.com/taskfolio/autoassess/internal/adapter/http"
	"github.com/taskfolio/autoassess/internal/adapter/litellm"
	aanats "github.com/taskfolio/autoassess/internal/adapter/nats"
	"github.com/taskfolio/autoassess/internal/adapter/natskv"
	"github.com/taskfolio/autoassess/internal/adapter/otel"
	"github.com/taskfolio/autoassess/internal/adapter/postgres"
	"github.com/taskfolio/autoassess/internal/adapter/ristretto"
	"github.com/taskfolio/autoassess/internal/adapter/tiered"
	"github.com/taskfolio/autoassess/internal/adapter/workflowexec"
	"github.com/taskfolio/autoassess/internal/config"
	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/logger"
	"github.com/taskfolio/autoassess/internal/resilience"
	"github.com/taskfolio/autoassess/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"models", len(cfg.Scoring.Models),
	)

	ctx := context.Background()

	shutdownOtel := otel.InitTracer(cfg.Logging.Service)
	defer func() { _ = shutdownOtel(ctx) }()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	nc, err := aanats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = nc.Close() }()

	kv, err := nc.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.ResolverTTL)
	if err != nil {
		return fmt.Errorf("nats kv: %w", err)
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	resolverCache := tiered.New(l1, natskv.New(kv), cfg.Cache.ResolverTTL).
		WithObserver(func(ctx context.Context, level string, hit bool) {
			if hit {
				metrics.ResolverHits.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
				return
			}
			metrics.ResolverMisses.Add(ctx, 1)
		})

	// --- Outbound clients ---

	llmClient := litellm.NewClient(cfg.LLMGateway.URL, cfg.LLMGateway.APIKey)
	llmClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	wfClient := workflowexec.NewClient(cfg.WorkflowExec.URL, cfg.WorkflowExec.APIKey, cfg.WorkflowExec.Timeout)
	wfClient.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	// --- Services ---

	models, err := buildModelConfigs(cfg.Scoring.Models)
	if err != nil {
		return fmt.Errorf("scoring models: %w", err)
	}
	metaModel, err := buildModelConfig(cfg.Scoring.MetaModel)
	if err != nil {
		return fmt.Errorf("meta model: %w", err)
	}
	fallbackModel, err := buildModelConfig(cfg.Scoring.FallbackModel)
	if err != nil {
		return fmt.Errorf("fallback model: %w", err)
	}

	store := postgres.NewStore(pool)
	resolver := service.NewResolver(wfClient, store, resolverCache, cfg.Cache.ResolverTTL, cfg.Scoring.TaskCap)
	scorer := service.NewScorer(llmClient, int64(cfg.Scoring.MaxConcurrency), metrics)
	metaScorer := service.NewMetaScorer(llmClient, metaModel, fallbackModel)
	pipeline := service.NewScoreService(resolver, scorer, metaScorer, models, metrics)
	feasibility := service.NewFeasibilityService(store, pipeline, cfg.Feasibility.StaleDays, metrics)
	autocomplete := service.NewAutocompleteService(store, resolver, cfg.Autocomplete.MaxAge, cfg.Autocomplete.ResultCap, metrics)

	// --- HTTP ---

	handlers := &aahttp.Handlers{
		Scores:       pipeline,
		Feasibility:  feasibility,
		Autocomplete: autocomplete,
	}

	r := chi.NewRouter()
	r.Use(aahttp.CORS(cfg.Server.CORSOrigin))
	r.Use(aahttp.RequestID)
	r.Use(aahttp.Logger)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler(cfg, llmClient))

	aahttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Scoring calls can hold a request open for several minutes.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func buildModelConfigs(models []config.ScoringModel) ([]scoring.ModelConfig, error) {
	configs := make([]scoring.ModelConfig, 0, len(models))
	for _, m := range models {
		cfg, err := buildModelConfig(m)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func buildModelConfig(m config.ScoringModel) (scoring.ModelConfig, error) {
	return scoring.NewModelConfig(m.Model, m.Provider, m.PromptName, m.Timeout)
}

// healthHandler reports service status and the configured upstreams.
func healthHandler(cfg *config.Config, llmClient *litellm.Client) http.HandlerFunc {
	type healthStatus struct {
		Status     string `json:"status"`
		LLMGateway string `json:"llm_gateway"`
		NATS       string `json:"nats"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status:     "ok",
			LLMGateway: cfg.LLMGateway.URL,
			NATS:       cfg.NATS.URL,
		}
		if ok, err := llmClient.Health(r.Context()); err != nil || !ok {
			status.Status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
