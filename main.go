package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"token_sales/api"
	"token_sales/internal/config"
	"token_sales/internal/dispatch"
	"token_sales/internal/journal"
	"token_sales/internal/logging"
	"token_sales/internal/observability"
	"token_sales/internal/sales"
	"token_sales/internal/store/leveldb"
	"token_sales/internal/store/postgres"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the node configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (sales.Storage, error) {
	switch cfg.Backend {
	case config.BackendLevelDB:
		return leveldb.Open(cfg.Path)
	case config.BackendPostgres:
		return postgres.Open(ctx, cfg.DSN, logger)
	default:
		return sales.NewLocalStorage(), nil
	}
}

// applySeed credits the balances in the seed file unless the ledger already
// recorded this exact file.
func applySeed(ctx context.Context, service *sales.Service, path string, logger *zap.Logger) error {
	seed, err := config.LoadSeed(path)
	if err != nil {
		return err
	}
	grants := make([]sales.Grant, 0, len(seed.Balances))
	for _, b := range seed.Balances {
		grants = append(grants, sales.Grant{Owner: b.Owner, Mint: b.Mint, Amount: b.Amount})
	}
	applied, err := service.Seed(ctx, seed.ID, grants)
	if err != nil {
		return err
	}
	if !applied {
		logger.Info("seed file already applied", zap.String("seed_id", seed.ID.String()))
		return nil
	}
	logger.Info("seeded ledger balances", zap.Int("entries", len(grants)), zap.String("seed_id", seed.ID.String()))
	return nil
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	storage, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	service := sales.NewService(storage, sales.NewEngine(cfg.ProgramKey()), logger)

	// A nil *journal.Journal must not reach the interface field.
	var events api.EventLister
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			return err
		}
		defer j.Close()
		service.SetEmitter(j)
		events = j
	} else {
		logger.Info("event journal disabled")
	}

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, service, cfg.SeedFile, logger); err != nil {
			return err
		}
	}

	metrics := observability.Settlement()
	dispatcher := dispatch.New(service, logger, dispatch.WithRecorder(metrics))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.InitRoutes(router, api.Dependencies{
		Service:     service,
		Dispatcher:  dispatcher,
		Journal:     events,
		Logger:      logger,
		RateLimit:   cfg.RateLimit,
		Throttler:   metrics,
		ServiceName: cfg.Tracing.ServiceName,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("settlement node listening",
			zap.String("address", cfg.ListenAddress),
			zap.String("program_id", cfg.ProgramID),
			zap.String("storage", cfg.Storage.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error trying to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
