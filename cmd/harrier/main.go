// Harrier - Fraud decisions with an explainable escalation path.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/model"
	"github.com/opensource-finance/harrier/internal/reason"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/risk"
	"github.com/opensource-finance/harrier/internal/velocity"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"approve_threshold", cfg.Decision.ApproveThreshold,
		"deny_threshold", cfg.Decision.DenyThreshold,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Velocity Service
	velocitySvc := velocity.NewService(repo, cacheImpl)
	slog.Info("velocity service initialized")

	// Initialize Risk Evaluator with configured category weights
	policy := risk.DefaultPolicy()
	if len(cfg.Risk.Weights) > 0 {
		policy = policy.WithWeights(cfg.Risk.Weights)
	}
	evaluator, err := risk.NewEvaluator(policy)
	if err != nil {
		slog.Error("failed to initialize risk evaluator", "error", err)
		os.Exit(1)
	}

	// Load custom signals from database (no hardcoded defaults - configure via API)
	if err := loadSignalsFromDatabase(ctx, repo, evaluator); err != nil {
		slog.Error("failed to load custom signals", "error", err)
		os.Exit(1)
	}
	slog.Info("risk evaluator initialized", "signals_count", evaluator.SignalsCount())

	// Initialize Decision pipeline: scorer -> router -> coordinator
	scorer := model.NewClient(cfg.Model)
	slog.Info("model client initialized", "url", cfg.Model.URL)

	router, err := decision.NewRouter(cfg.Decision)
	if err != nil {
		slog.Error("failed to initialize decision router", "error", err)
		os.Exit(1)
	}

	engine := reason.NewHTTPEngine(cfg.Reasoning)
	coordinator := decision.NewCoordinator(evaluator, engine, cfg.Decision.ReasoningTimeout)
	slog.Info("escalation coordinator initialized",
		"reasoning_url", cfg.Reasoning.URL,
		"timeout", cfg.Decision.ReasoningTimeout,
	)

	service := decision.NewService(scorer, router, coordinator, velocitySvc, repo, cacheImpl, busImpl)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HARRIER_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, service)

		tenantIDs := []string{}
		if envTenants := os.Getenv("HARRIER_TENANTS"); envTenants != "" {
			for _, id := range strings.Split(envTenants, ",") {
				if id = strings.TrimSpace(id); id != "" {
					tenantIDs = append(tenantIDs, id)
				}
			}
		}

		if err := asyncWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, service, evaluator, repo, cacheImpl, busImpl, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

// applyEnvOverrides lets deployments point at their model and reasoning
// services without a config file.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("HARRIER_MODEL_URL"); v != "" {
		cfg.Model.URL = v
	}
	if v := os.Getenv("HARRIER_REASONING_URL"); v != "" {
		cfg.Reasoning.URL = v
	}
	if v := os.Getenv("HARRIER_REASONING_MODEL"); v != "" {
		cfg.Reasoning.Model = v
	}
	if v := os.Getenv("HARRIER_REASONING_API_KEY"); v != "" {
		cfg.Reasoning.APIKey = v
	}
	if v := os.Getenv("HARRIER_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
}

// loadSignalsFromDatabase loads custom CEL signals into the evaluator.
// All signals must be configured via POST /signals API - no hardcoded defaults.
func loadSignalsFromDatabase(ctx context.Context, repo domain.Repository, evaluator *risk.Evaluator) error {
	configs, err := repo.ListSignalConfigs(ctx, api.GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list signals from database", "error", err)
		return nil // Start with no custom signals - they can be added via API
	}

	if len(configs) > 0 {
		slog.Info("loading custom signals from database", "count", len(configs))
		return evaluator.ReloadSignals(configs)
	}

	slog.Info("no custom signals in database - configure via POST /signals API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 HARRIER                  ║")
	fmt.Println("  ║       Fraud Decision Pipeline             ║")
	fmt.Println("  ║    Every edge case gets a reason.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /review                     - Review a transaction")
	fmt.Println("    POST /review/async               - Queue a review")
	fmt.Println("    GET  /decisions/{id}             - Get decision by ID")
	fmt.Println("    GET  /transactions/{id}          - Get transaction by ID")
	fmt.Println("    GET  /transactions/{id}/decision - Latest decision for a transaction")
	fmt.Println("    GET  /signals                    - List custom risk signals")
	fmt.Println("    POST /signals                    - Create a custom risk signal")
	fmt.Println("    POST /signals/reload             - Hot-reload signals from database")
	fmt.Println("    GET  /health                     - Health check")
	fmt.Println("    GET  /metrics                    - Prometheus metrics")
	fmt.Println()
}
