package repository

import (
	"context"

	"github.com/mapborders/partitioner/internal/domain"
)

// SplittingRepository is the autosplit table: one batch of cluster rows per
// (region, next level, size threshold), replaced atomically on every run.
type SplittingRepository interface {
	// ReplaceClusters deletes the previous run's rows for the same
	// (regionID, nextLevel, sizeThresholdKB) key and inserts clusters in a
	// single transaction.
	ReplaceClusters(ctx context.Context, regionID int64, nextLevel int, sizeThresholdKB float64, clusters []domain.SplittingCluster) error

	// Clusters returns the most recently persisted clusters for the key.
	Clusters(ctx context.Context, regionID int64, nextLevel int, sizeThresholdKB float64) ([]domain.SplittingCluster, error)
}
