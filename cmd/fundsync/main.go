package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fundsync/internal/api"
	"fundsync/internal/cache"
	"fundsync/internal/config"
	"fundsync/internal/database"
	"fundsync/internal/logging"
	"fundsync/internal/monitoring"
	"fundsync/internal/pipeline"
	"fundsync/internal/scheduler"
	"fundsync/internal/storage"
	"fundsync/internal/venue"
	"fundsync/internal/venue/binance"
	"fundsync/internal/venue/bybit"
	"fundsync/internal/venue/hyperliquid"
	"fundsync/internal/venue/mexc"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger.WithField("env", cfg.App.Env).Info("starting fundsync")

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to create migrator")
	}
	if err := migrator.Up(); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}

	cacher, err := cache.NewCacher(&cfg.Redis)
	if err != nil {
		logger.WithError(err).Warn("cache unavailable, falling back to memory")
		cacher = cache.NewMemoryCache()
	}

	venues := storage.NewVenueRepository(db)
	history := storage.NewHistoryRepository(db)
	online := storage.NewOnlineRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := venues.EnsureSeeded(ctx, logger); err != nil {
		logger.WithError(err).Fatal("failed to seed venues")
	}

	metrics := monitoring.NewMetrics()

	rateLimiter := venue.NewRateLimiter(cacher, time.Second)
	rateLimiter.AddLimit(binance.EndpointFundingRate, time.Second, 20)
	rateLimiter.AddLimit(binance.EndpointExchangeInfo, 10*time.Second, 2)
	rateLimiter.AddLimit(binance.EndpointFundingInfo, 10*time.Second, 2)
	rateLimiter.AddLimit(bybit.EndpointFundingHistory, time.Second, 50)
	rateLimiter.AddLimit(bybit.EndpointInstrumentsInfo, 10*time.Second, 5)
	rateLimiter.AddLimit(mexc.EndpointFundingHistory, time.Second, 20)
	rateLimiter.AddLimit(mexc.EndpointContractDetail, 10*time.Second, 2)

	adapters := []venue.Adapter{
		binance.NewAdapter(binance.NewClient("", rateLimiter)),
		bybit.NewAdapter(bybit.NewClient("", rateLimiter)),
		hyperliquid.NewAdapter(hyperliquid.NewClient("", rateLimiter)),
		mexc.NewAdapter(mexc.NewClient("", rateLimiter)),
	}

	sched := scheduler.New(logger)
	for _, adapter := range adapters {
		code := string(adapter.Code())

		historyPipeline := pipeline.NewHistoryPipeline(adapter, venues, history, logger, metrics)
		if err := sched.AddJob(code+"_history", cfg.Scheduler.HistoryCronFor(code), historyPipeline.Run); err != nil {
			logger.WithError(err).Fatal("failed to schedule history job")
		}

		onlinePipeline := pipeline.NewOnlinePipeline(adapter, venues, online, logger, metrics)
		if err := sched.AddJob(code+"_online", cfg.Scheduler.OnlineCronFor(code), onlinePipeline.Run); err != nil {
			logger.WithError(err).Fatal("failed to schedule online job")
		}
	}

	handlers := api.NewHandlers(venues, history, online, cacher, logger)
	server := api.NewServer(cfg, handlers, sched, db, metrics, logger)

	sched.Start()
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("shutting down")

	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http server shutdown failed")
	}
}
