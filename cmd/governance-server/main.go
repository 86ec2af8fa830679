// Package main provides the governance server entry point. It hosts the
// version ledger, approval workflow, authority resolution, and coverage
// endpoints under a single process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sparcc/governance/pkg/governance"
	"github.com/sparcc/governance/pkg/sweeper"
	"github.com/sparcc/governance/pkg/tenancy"
)

func main() {
	var (
		listenAddr  string
		configPath  string
		matrixPath  string
		dbType      string
		dbDSN       string
		tenancyMode string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&configPath, "config", "/config/governance.yaml", "Path to governance config (committees, thresholds, sequences)")
	flag.StringVar(&matrixPath, "requirement-matrix", "", "Path to requirement matrix YAML (coverage disabled if empty)")
	flag.StringVar(&dbType, "db-type", "sqlite", "Database type (sqlite, postgres, or mysql)")
	flag.StringVar(&dbDSN, "db-dsn", "governance.db", "Database connection string")
	flag.StringVar(&tenancyMode, "tenancy-mode", "single", "Tenancy mode (single or tenant)")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	// Set up structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting governance server",
		"listen", listenAddr,
		"config", configPath,
		"dbType", dbType,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := governance.LoadGovernanceConfig(configPath)
	if err != nil {
		glog.Fatalf("Failed to load governance config: %v", err)
	}
	thresholds, err := cfg.ResolveThresholds()
	if err != nil {
		glog.Fatalf("Invalid threshold table: %v", err)
	}
	logger.Info("loaded governance config",
		"committees", len(cfg.Committees),
		"thresholds", len(thresholds),
		"sequences", len(cfg.Sequences),
	)

	gormDB, err := setupDatabase(dbType, dbDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	auditStore := governance.NewAuditStore(gormDB)
	ledger := governance.NewVersionLedger(gormDB, auditStore)
	resolver := governance.NewAuthorityResolver(thresholds)
	workflow := governance.NewApprovalWorkflow(gormDB, resolver, cfg, auditStore)

	for _, m := range []interface{ AutoMigrate() error }{
		ledger.Store(), workflow.Store(), auditStore,
	} {
		if err := m.AutoMigrate(); err != nil {
			glog.Fatalf("Failed to migrate database: %v", err)
		}
	}

	var coverage *governance.CoverageResolver
	if matrixPath != "" {
		matrix, err := governance.LoadRequirementMatrix(matrixPath)
		if err != nil {
			glog.Fatalf("Failed to load requirement matrix: %v", err)
		}
		coverage = governance.NewCoverageResolver(matrix)
		logger.Info("loaded requirement matrix",
			"requirements", len(matrix.Requirements),
			"digest", matrix.Digest()[:12],
		)
	} else {
		logger.Info("no requirement matrix configured, coverage endpoints disabled")
	}

	orchestrator := governance.NewGovernanceOrchestrator(gormDB, ledger, workflow, coverage)

	sweep := sweeper.New(workflow.Store(), auditStore, sweeper.ConfigFromEnv(), logger)
	go sweep.Run(ctx)

	mode := tenancy.ModeSingle
	if tenancyMode == string(tenancy.ModeTenant) {
		mode = tenancy.ModeTenant
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Tenant-ID", "X-User-Principal", "X-User-Role"},
		MaxAge:         300,
	}))
	router.Use(tenancy.NewMiddleware(mode))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Mount("/api/governance/v1alpha1", governance.NewRouter(orchestrator, resolver, auditStore))

	logger.Info("governance server ready", "listen", listenAddr)

	// Create HTTP server with graceful shutdown
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("governance server stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	switch dbType {
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), gormCfg)
	case "postgres":
		return gorm.Open(postgres.Open(dsn), gormCfg)
	case "mysql":
		return gorm.Open(mysql.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("unknown database type %q (expected sqlite, postgres, or mysql)", dbType)
	}
}
