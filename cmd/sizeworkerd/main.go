package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/config"
	"github.com/mapborders/partitioner/internal/pkg/logger"
	"github.com/mapborders/partitioner/internal/repository/postgres"
	"github.com/mapborders/partitioner/internal/repository/postgresosm"
	"github.com/mapborders/partitioner/internal/worker"
	"github.com/mapborders/partitioner/internal/worker/sizecount"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Worker.Enabled {
		fmt.Println("worker is disabled in configuration. Set WORKER_ENABLED=true to enable.")
		os.Exit(0)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting size-counting worker",
		zap.Float64("max_envelope_area_km2", cfg.Worker.MaxEnvelopeAreaKm2))

	bordersDB, err := postgres.New(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to borders database", zap.Error(err))
	}
	defer bordersDB.Close()

	osmDB, err := postgresosm.New(&cfg.OSMDB, log)
	if err != nil {
		log.Fatal("failed to connect to osm database", zap.Error(err))
	}
	defer osmDB.Close()

	healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bordersDB.Health(healthCtx); err != nil {
		log.Fatal("borders database health check failed", zap.Error(err))
	}
	if err := osmDB.Health(healthCtx); err != nil {
		log.Fatal("osm database health check failed", zap.Error(err))
	}

	borderStore := postgres.NewBorderRepository(bordersDB, cfg.Store)
	osmGateway := postgresosm.NewOsmRepository(osmDB, cfg.Store, log)

	sizeWorker := sizecount.New(borderStore, osmGateway, cfg.Worker.MaxEnvelopeAreaKm2, cfg.Worker.StatusPath, log)

	manager := worker.NewManager(log)
	manager.Register(sizeWorker)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := manager.Start(ctx); err != nil {
		log.Fatal("failed to start workers", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("received shutdown signal")

	stop()
	if err := manager.Stop(); err != nil {
		log.Error("error stopping workers", zap.Error(err))
	}

	log.Info("size-counting worker shutdown complete")
}
