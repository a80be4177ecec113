// Package main is the entry point for the Omegafolio portfolio rebalancing
// service. It wires the databases, repositories and services, starts the
// HTTP server, and runs scheduled rebalances and backups in the background.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/omegafolio/internal/clients/yahoo"
	"github.com/aristath/omegafolio/internal/config"
	"github.com/aristath/omegafolio/internal/database"
	"github.com/aristath/omegafolio/internal/modules/charts"
	chartshandlers "github.com/aristath/omegafolio/internal/modules/charts/handlers"
	"github.com/aristath/omegafolio/internal/modules/marketdata"
	"github.com/aristath/omegafolio/internal/modules/optimization"
	"github.com/aristath/omegafolio/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/omegafolio/internal/modules/portfolio/handlers"
	"github.com/aristath/omegafolio/internal/modules/rebalancing"
	rebalancinghandlers "github.com/aristath/omegafolio/internal/modules/rebalancing/handlers"
	"github.com/aristath/omegafolio/internal/modules/universe"
	universehandlers "github.com/aristath/omegafolio/internal/modules/universe/handlers"
	"github.com/aristath/omegafolio/internal/reliability"
	"github.com/aristath/omegafolio/internal/scheduler"
	"github.com/aristath/omegafolio/internal/server"
	"github.com/aristath/omegafolio/internal/solver"
	"github.com/aristath/omegafolio/pkg/logger"
)

const priceCacheMaxAge = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Omegafolio")

	// Databases
	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "universe.db"),
		Name:    "universe",
		Profile: database.ProfileStandard,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open universe database")
	}
	defer universeDB.Close()

	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Name:    "portfolio",
		Profile: database.ProfileLedger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Name:    "cache",
		Profile: database.ProfileCache,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	databases := []*database.DB{universeDB, portfolioDB, cacheDB}
	for _, db := range databases {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	// Repositories
	instrumentRepo := universe.NewInstrumentRepository(universeDB.Conn(), log)
	portfolioRepo := portfolio.NewPortfolioRepository(portfolioDB.Conn(), log)
	rebalanceRepo := portfolio.NewRebalanceRepository(portfolioDB.Conn(), log)
	priceCache := marketdata.NewCacheRepository(cacheDB.Conn(), priceCacheMaxAge, log)

	// Services
	universeService := universe.NewService(instrumentRepo, log)
	if err := universeService.EnsureSeeded(cfg.DefaultUniverse); err != nil {
		log.Fatal().Err(err).Str("universe", cfg.DefaultUniverse).Msg("Failed to seed default universe")
	}

	yahooClient := yahoo.NewClient(log)
	marketdataService := marketdata.NewService(yahooClient, priceCache, log)

	registry := optimization.NewRegistry()
	registry.Register("omega", optimization.NewOmegaOptimizer(solver.NewBranchAndBound(), log))

	rebalancingService := rebalancing.NewService(
		rebalancing.Config{
			WindowStart: cfg.WindowStart,
			WindowEnd:   cfg.WindowEnd,
			Timeout:     cfg.RebalanceTimeout,
		},
		marketdataService, registry, universeService, portfolioRepo, rebalanceRepo, log,
	)
	runManager := rebalancing.NewRunManager(rebalancingService, log)
	chartService := charts.NewService(rebalanceRepo, log)

	// Backups are optional, enabled by credentials in the environment
	var backupService *reliability.BackupService
	if cfg.BackupEnabled() {
		r2Client, err := reliability.NewR2Client(
			context.Background(),
			cfg.BackupEndpoint, cfg.BackupAccessKey, cfg.BackupSecretKey, cfg.BackupBucket,
			log,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup client")
		}
		backupService = reliability.NewBackupService(r2Client, databases, cfg.DataDir, log)
		log.Info().Str("bucket", cfg.BackupBucket).Msg("Backups enabled")
	} else {
		log.Info().Msg("Backups disabled, no bucket configured")
	}

	// Scheduler
	sched := scheduler.New(log)
	if cfg.RebalanceCron != "" {
		job := rebalancing.NewAutoRebalanceJob(rebalancingService, portfolioRepo, log)
		if err := sched.AddJob(cfg.RebalanceCron, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to register rebalance job")
		}
	}
	if backupService != nil && cfg.BackupCron != "" {
		if err := sched.AddJob(cfg.BackupCron, reliability.NewBackupJob(backupService, 30, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	}
	if err := sched.AddJob("@hourly", reliability.NewWALCheckpointJob(databases, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register WAL checkpoint job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:     log,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		PortfolioHandlers: portfoliohandlers.NewHandler(
			portfolioRepo, rebalanceRepo, universeService, registry, cfg.DefaultUniverse, log,
		),
		RebalancingHandlers: rebalancinghandlers.NewHandler(runManager, log),
		UniverseHandlers:    universehandlers.NewHandler(universeService, log),
		ChartsHandlers:      chartshandlers.NewHandler(chartService, log),
		SystemHandlers:      server.NewSystemHandlers(databases, backupService, log),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal().Err(err).Msg("HTTP server failed")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Omegafolio stopped")
}
