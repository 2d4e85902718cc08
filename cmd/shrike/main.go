// Shrike - Product scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.commerce
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

	"github.com/opensource-commerce/shrike/internal/api"
	"github.com/opensource-commerce/shrike/internal/bus"
	"github.com/opensource-commerce/shrike/internal/cache"
	"github.com/opensource-commerce/shrike/internal/domain"
	"github.com/opensource-commerce/shrike/internal/repository"
	"github.com/opensource-commerce/shrike/internal/rules"
	"github.com/opensource-commerce/shrike/internal/velocity"
	"github.com/opensource-commerce/shrike/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("SHRIKE_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting shrike",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("SHRIKE_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
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

	// Initialize Velocity Service (per-source ingest counting)
	velocitySvc := velocity.NewService(repo, cacheImpl)
	slog.Info("velocity service initialized")

	// Initialize Exclusion Rule Engine with the source counter
	engine, err := rules.NewEngine(velocitySvc.GetSourceCountGetter(), 100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Tenants to serve, comma-separated (async worker + startup rules)
	tenantIDs := parseTenants(os.Getenv("SHRIKE_TENANTS"))

	// Load exclusion rules from database (no hardcoded defaults -
	// configure via POST /exclusions)
	if err := loadExclusionRules(ctx, repo, engine, tenantIDs); err != nil {
		slog.Error("failed to load exclusion rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("SHRIKE_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, cacheImpl, engine, velocitySvc)

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, velocitySvc, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("shrike is ready",
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

	slog.Info("shrike shutdown complete")
}

// parseTenants splits the SHRIKE_TENANTS list.
func parseTenants(raw string) []string {
	if raw == "" {
		return nil
	}
	var tenants []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tenants = append(tenants, t)
		}
	}
	return tenants
}

// loadExclusionRules loads the configured tenants' stored rules into
// the engine at startup. A fresh install starts with an empty set.
func loadExclusionRules(ctx context.Context, repo domain.Repository, engine *rules.Engine, tenantIDs []string) error {
	total := 0
	for _, tenantID := range tenantIDs {
		stored, err := repo.ListExclusionRules(ctx, tenantID)
		if err != nil {
			slog.Warn("failed to list exclusion rules", "tenant_id", tenantID, "error", err)
			continue
		}
		if err := engine.LoadRules(stored); err != nil {
			return err
		}
		total += len(stored)
	}

	if total == 0 {
		slog.Info("no exclusion rules in database - configure via POST /exclusions")
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🐦 SHRIKE                   ║")
	fmt.Println("  ║       Product Scoring Engine              ║")
	fmt.Println("  ║    Every listing earns its place.         ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score                    - Score a product")
	fmt.Println("    GET  /scores/{id}              - Get score by ID")
	fmt.Println("    GET  /products/{id}            - Get product by ID")
	fmt.Println("    GET  /products/{id}/score      - Latest score for a product")
	fmt.Println("    POST /products/{id}/rescore    - Rescore with current settings")
	fmt.Println("    GET  /products/scored          - List scored products")
	fmt.Println("    GET  /exclusions               - List exclusion rules")
	fmt.Println("    POST /exclusions               - Create an exclusion rule")
	fmt.Println("    DELETE /exclusions/{id}        - Delete an exclusion rule")
	fmt.Println("    POST /exclusions/reload        - Hot-reload rules from database")
	fmt.Println("    GET  /settings                 - Get scoring settings")
	fmt.Println("    PUT  /settings                 - Update scoring settings")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
