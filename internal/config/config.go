package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates every process-level control named in the external
// interfaces section: store connection, table overrides, predictor asset
// paths and bounds, worker/bootstrap tuning, and logging.
type Config struct {
	Database   DatabaseConfig
	OSMDB      DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Log        LogConfig
	Store      StoreConfig
	Predictor  PredictorConfig
	Partition  PartitionConfig
	Worker     WorkerConfig
	Bootstrap  BootstrapConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	BBoxCacheTTL time.Duration
}

type LogConfig struct {
	Level string
}

// StoreConfig carries the table-name overrides and read-only flag named in
// spec §6's process-level controls.
type StoreConfig struct {
	ReadOnly         bool
	BordersTable     string
	OsmTable         string
	OsmPlacesTable   string
	LandPolygonsTable string
	CoastlineTable   string
	TilesTable       string
	BackupTable      string
	AutosplitTable   string
	SmallKm2         float64
}

// PredictorConfig carries the size model asset locations and per-feature
// bounds. ModelPath/ScalerPath may be local filesystem paths or s3://
// URIs, dispatched by internal/predictor/asset.
type PredictorConfig struct {
	ModelPath            string
	ScalerPath           string
	CityPopulationBound  float64
	LandAreaBound        float64
	CityCountBound       float64
	HamletCountBound     float64
	CoastlineLengthBound float64
}

// PartitionConfig holds the golden-splitting size threshold in kilobytes.
type PartitionConfig struct {
	MwmSizeThreshold float64
}

// WorkerConfig tunes the background size-counting worker (component I).
type WorkerConfig struct {
	Enabled           bool
	PollInterval      time.Duration
	MaxEnvelopeAreaKm2 float64
	StatusPath        string
	PidPath           string
	LogPath           string
}

// BootstrapConfig tunes the country-bootstrap routine (component G).
type BootstrapConfig struct {
	AutoDivideCoverageRatio float64
	JOSMForceMulti          bool
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			DBName:          viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSLMODE"),
			MaxConns:        viper.GetInt("DB_MAX_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(viper.GetInt("DB_CONN_MAX_LIFETIME")) * time.Second,
			ConnMaxIdleTime: time.Duration(viper.GetInt("DB_CONN_MAX_IDLE_TIME")) * time.Second,
		},
		OSMDB: DatabaseConfig{
			Host:            viper.GetString("OSMDB_HOST"),
			Port:            viper.GetInt("OSMDB_PORT"),
			User:            viper.GetString("OSMDB_USER"),
			Password:        viper.GetString("OSMDB_PASSWORD"),
			DBName:          viper.GetString("OSMDB_NAME"),
			SSLMode:         viper.GetString("OSMDB_SSLMODE"),
			MaxConns:        viper.GetInt("OSMDB_MAX_CONNS"),
			MaxIdleConns:    viper.GetInt("OSMDB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(viper.GetInt("OSMDB_CONN_MAX_LIFETIME")) * time.Second,
			ConnMaxIdleTime: time.Duration(viper.GetInt("OSMDB_CONN_MAX_IDLE_TIME")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Cache: CacheConfig{
			BBoxCacheTTL: time.Duration(viper.GetInt("BBOX_CACHE_TTL")) * time.Second,
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Store: StoreConfig{
			ReadOnly:          viper.GetBool("READ_ONLY"),
			BordersTable:      viper.GetString("BORDERS_TABLE"),
			OsmTable:          viper.GetString("OSM_TABLE"),
			OsmPlacesTable:    viper.GetString("OSM_PLACES_TABLE"),
			LandPolygonsTable: viper.GetString("LAND_POLYGONS_TABLE"),
			CoastlineTable:    viper.GetString("COASTLINE_TABLE"),
			TilesTable:        viper.GetString("TILES_TABLE"),
			BackupTable:       viper.GetString("BACKUP_TABLE"),
			AutosplitTable:    viper.GetString("AUTOSPLIT_TABLE"),
			SmallKm2:          viper.GetFloat64("SMALL_KM2"),
		},
		Predictor: PredictorConfig{
			ModelPath:            viper.GetString("MODEL_PATH"),
			ScalerPath:           viper.GetString("SCALER_PATH"),
			CityPopulationBound:  viper.GetFloat64("MODEL_LIMIT_CITY_POPULATION_SUM"),
			LandAreaBound:        viper.GetFloat64("MODEL_LIMIT_LAND_AREA_KM2"),
			CityCountBound:       viper.GetFloat64("MODEL_LIMIT_CITY_COUNT"),
			HamletCountBound:     viper.GetFloat64("MODEL_LIMIT_HAMLET_COUNT"),
			CoastlineLengthBound: viper.GetFloat64("MODEL_LIMIT_COASTLINE_LENGTH_KM"),
		},
		Partition: PartitionConfig{
			MwmSizeThreshold: viper.GetFloat64("MWM_SIZE_THRESHOLD"),
		},
		Worker: WorkerConfig{
			Enabled:            viper.GetBool("WORKER_ENABLED"),
			PollInterval:       time.Duration(viper.GetInt("WORKER_POLL_INTERVAL_SECONDS")) * time.Second,
			MaxEnvelopeAreaKm2: viper.GetFloat64("WORKER_MAX_ENVELOPE_AREA_KM2"),
			StatusPath:         viper.GetString("DAEMON_STATUS_PATH"),
			PidPath:            viper.GetString("DAEMON_PID_PATH"),
			LogPath:            viper.GetString("DAEMON_LOG_PATH"),
		},
		Bootstrap: BootstrapConfig{
			AutoDivideCoverageRatio: viper.GetFloat64("BOOTSTRAP_AUTO_DIVIDE_COVERAGE_RATIO"),
			JOSMForceMulti:          viper.GetBool("JOSM_FORCE_MULTI"),
		},
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.OSMDB.MaxConns == 0 {
		cfg.OSMDB.MaxConns = 10
	}
	if cfg.OSMDB.MaxIdleConns == 0 {
		cfg.OSMDB.MaxIdleConns = 5
	}
	if cfg.Cache.BBoxCacheTTL == 0 {
		cfg.Cache.BBoxCacheTTL = 60 * time.Second
	}
	if cfg.Store.BordersTable == "" {
		cfg.Store.BordersTable = "borders"
	}
	if cfg.Store.OsmTable == "" {
		cfg.Store.OsmTable = "osm_borders"
	}
	if cfg.Store.OsmPlacesTable == "" {
		cfg.Store.OsmPlacesTable = "osm_places"
	}
	if cfg.Store.LandPolygonsTable == "" {
		cfg.Store.LandPolygonsTable = "land_polygons"
	}
	if cfg.Store.CoastlineTable == "" {
		cfg.Store.CoastlineTable = "coastlines"
	}
	if cfg.Store.TilesTable == "" {
		cfg.Store.TilesTable = "tiles"
	}
	if cfg.Store.BackupTable == "" {
		cfg.Store.BackupTable = "borders_backup"
	}
	if cfg.Store.AutosplitTable == "" {
		cfg.Store.AutosplitTable = "splitting"
	}
	if cfg.Store.SmallKm2 == 0 {
		cfg.Store.SmallKm2 = 10
	}
	if cfg.Predictor.CityPopulationBound == 0 {
		cfg.Predictor.CityPopulationBound = 20_000_000
	}
	if cfg.Predictor.LandAreaBound == 0 {
		cfg.Predictor.LandAreaBound = 2_000_000
	}
	if cfg.Predictor.CityCountBound == 0 {
		cfg.Predictor.CityCountBound = 2000
	}
	if cfg.Predictor.HamletCountBound == 0 {
		cfg.Predictor.HamletCountBound = 20000
	}
	if cfg.Predictor.CoastlineLengthBound == 0 {
		cfg.Predictor.CoastlineLengthBound = 50000
	}
	if cfg.Partition.MwmSizeThreshold == 0 {
		cfg.Partition.MwmSizeThreshold = 70 * 1024
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 10 * time.Second
	}
	if cfg.Worker.MaxEnvelopeAreaKm2 == 0 {
		cfg.Worker.MaxEnvelopeAreaKm2 = 5_000_000
	}
	if cfg.Bootstrap.AutoDivideCoverageRatio == 0 {
		cfg.Bootstrap.AutoDivideCoverageRatio = 0.99
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode,
	)
}

func (c *Config) GetOSMDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.OSMDB.Host, c.OSMDB.Port, c.OSMDB.User,
		c.OSMDB.Password, c.OSMDB.DBName, c.OSMDB.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
