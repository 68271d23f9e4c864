package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/facture-btp-bfa/internal/config"
	"github.com/boddenberg/facture-btp-bfa/internal/domain"
	"github.com/boddenberg/facture-btp-bfa/internal/handler"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/artifacts"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/memstore"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/observability"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/resilience"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/spreadsheet"
	"github.com/boddenberg/facture-btp-bfa/internal/infra/supabase"
	"github.com/boddenberg/facture-btp-bfa/internal/port"
	"github.com/boddenberg/facture-btp-bfa/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Duration("breaker_timeout", cfg.BreakerTimeout),
		zap.Duration("workspace_ttl", cfg.WorkspaceTTL),
		zap.Duration("export_ttl", cfg.ExportTTL),
		zap.Bool("export_archive", cfg.ArchiveEnabled()),
	)

	ctx := context.Background()

	// --- Tracing ---
	shutdown, err := observability.InitTracer(ctx, observability.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Backend ---
	var (
		store    port.FactureStore
		provider port.AuthProvider
		backend  handler.Pinger
	)
	if cfg.UseSupabase {
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
			zap.String("facture_table", cfg.FactureTable),
		)
		guard := resilience.NewGuard("supabase", resilience.Config{
			MaxConcurrency: cfg.MaxConcurrency,
			BreakerTimeout: cfg.BreakerTimeout,
		})
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			guard,
			logger,
		)
		store = supabase.NewFactureStore(client, cfg.FactureTable)
		provider = supabase.NewAuth(client, cfg.SupabaseJWTSecret)
		backend = client
	} else {
		logger.Warn("USE_SUPABASE=false: running on the in-memory dev store, data is lost on restart")
		var opts []memstore.Option
		if cfg.DevSeed {
			opts = append(opts, memstore.WithSeed())
		}
		mem := memstore.New(cfg.DevJWTSecret, logger, opts...)
		store = mem
		provider = mem
	}

	// --- Export artifacts ---
	memArtifacts := artifacts.NewMemoryStore(cfg.ExportTTL)
	defer memArtifacts.Close()

	var artifactStore port.ArtifactStore = memArtifacts
	if cfg.ArchiveEnabled() {
		s3Client, err := artifacts.NewS3Client(ctx, artifacts.S3Config{
			Bucket:    cfg.ExportS3Bucket,
			Region:    cfg.ExportS3Region,
			Endpoint:  cfg.ExportS3Endpoint,
			AccessKey: cfg.ExportS3AccessKey,
			SecretKey: cfg.ExportS3SecretKey,
		})
		if err != nil {
			logger.Fatal("failed to init export archive", zap.Error(err))
		}
		artifactStore = artifacts.NewTiered(memArtifacts, artifacts.NewS3Store(s3Client, cfg.ExportS3Bucket, logger))
		logger.Info("export archive enabled", zap.String("bucket", cfg.ExportS3Bucket))
	}

	// --- Services ---
	exporter := spreadsheet.NewExporter(domain.ExportFileName, logger)
	workspaces := service.NewWorkspaces(store, exporter, artifactStore, cfg.WorkspaceTTL, time.Now, metrics, logger)
	defer workspaces.Close()

	authSvc := service.NewAuthService(provider, workspaces, logger)

	// --- Router ---
	router := handler.NewRouter(workspaces, authSvc, backend, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
