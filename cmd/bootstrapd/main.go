package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/config"
	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/pkg/logger"
	"github.com/mapborders/partitioner/internal/predictor"
	"github.com/mapborders/partitioner/internal/repository/postgres"
	"github.com/mapborders/partitioner/internal/repository/postgresosm"
	"github.com/mapborders/partitioner/internal/repository/spatial"
	"github.com/mapborders/partitioner/internal/usecase"
	"github.com/mapborders/partitioner/internal/usecase/bootstrap"
	"github.com/mapborders/partitioner/internal/usecase/manipulator"
	"github.com/mapborders/partitioner/internal/usecase/partition"
)

// bootstrapd runs one-shot country seeding (component G): for every
// country named on the command line (or every country in the declarative
// CountryPlan table when none are named), copy its polygon and descend its
// ladder. Countries run one after another with no enclosing transaction:
// each write autocommits, so when a country fails the error is logged, the
// rows already written for it stay in place, and the next country runs.
func main() {
	var countries stringList
	flag.Var(&countries, "country", "country name to bootstrap (repeatable); defaults to every entry in the country plan table")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

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
	splittingStore := postgres.NewSplittingRepository(bordersDB, cfg.Store)
	osmGateway := postgresosm.NewOsmRepository(osmDB, cfg.Store, log)
	spatialGateway := spatial.NewGateway(bordersDB.DB, log)

	bounds := domain.FeatureBounds{
		CityPopulationSum: cfg.Predictor.CityPopulationBound,
		LandAreaKm2:       cfg.Predictor.LandAreaBound,
		CityCount:         cfg.Predictor.CityCountBound,
		HamletCount:       cfg.Predictor.HamletCountBound,
		CoastlineLengthKm: cfg.Predictor.CoastlineLengthBound,
	}
	features := usecase.NewFeatureExtractor(spatialGateway, osmGateway, bounds)
	sizePredictor := predictor.New(cfg.Predictor)

	engine := partition.NewEngine(osmGateway, spatialGateway, features, sizePredictor, splittingStore)
	manip := manipulator.New(borderStore, spatialGateway, features, sizePredictor)
	runner := bootstrap.New(osmGateway, borderStore, features, sizePredictor, engine, manip, log, cfg.Bootstrap.AutoDivideCoverageRatio)

	targets := countries
	if len(targets) == 0 {
		for name := range bootstrap.CountryPlan {
			targets = append(targets, name)
		}
		sort.Strings(targets)
	}

	var failed []string
	for _, name := range targets {
		plan, _ := bootstrap.PlanFor(name)
		runID := uuid.NewString()
		runLog := log.With(zap.String("run_id", runID), zap.String("country", name))
		runLog.Info("bootstrapping country", zap.Ints("levels", plan.Levels))
		if err := runner.Run(context.Background(), name, plan, cfg.Partition.MwmSizeThreshold); err != nil {
			runLog.Error("country bootstrap failed", zap.Error(err))
			failed = append(failed, name)
			continue
		}
	}

	if len(failed) > 0 {
		log.Error("bootstrap completed with failures", zap.Strings("failed", failed))
		os.Exit(1)
	}
	log.Info("bootstrap complete", zap.Int("countries", len(targets)))
}

// stringList collects repeated -country flags.
type stringList []string

func (s *stringList) String() string { return fmt.Sprintf("%v", *s) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
