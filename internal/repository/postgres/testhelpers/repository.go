package testhelpers

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/config"
	"github.com/mapborders/partitioner/internal/domain/repository"
	"github.com/mapborders/partitioner/internal/repository/postgres"
	"github.com/mapborders/partitioner/internal/repository/spatial"
)

// NewDBForTest creates a postgres.DB with test database and logger
func NewDBForTest(db *sqlx.DB, logger *zap.Logger) *postgres.DB {
	return postgres.NewDBForTest(db, logger)
}

// NewBorderRepositoryForTest creates a BorderStore against a test database.
func NewBorderRepositoryForTest(db *sqlx.DB, logger *zap.Logger, tables config.StoreConfig) repository.BorderStore {
	pgDB := NewDBForTest(db, logger)
	return postgres.NewBorderRepository(pgDB, tables)
}

// NewSpatialGatewayForTest creates a SpatialGateway against a test database.
func NewSpatialGatewayForTest(db *sqlx.DB, logger *zap.Logger) repository.SpatialGateway {
	return spatial.NewGateway(db, logger)
}
