package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/config"
	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/domain/repository"
	pkgerrors "github.com/mapborders/partitioner/internal/pkg/errors"
)

// splittingRepository is the autosplit table, replaced wholesale per golden
// splitting run: auto_split.py's save_splitting_to_db deletes the previous
// run's rows for the same key before inserting the new clusters.
type splittingRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
	table  string
}

func NewSplittingRepository(db *DB, tables config.StoreConfig) repository.SplittingRepository {
	table := tables.AutosplitTable
	if table == "" {
		table = "splitting"
	}
	return &splittingRepository{db: db.DB, logger: db.logger, table: table}
}

func (r *splittingRepository) storeErr(op string, err error) error {
	r.logger.Error("splitting store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, pkgerrors.ErrSpatialStoreError)
}

func (r *splittingRepository) ReplaceClusters(ctx context.Context, regionID int64, nextLevel int, sizeThresholdKB float64, clusters []domain.SplittingCluster) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return r.storeErr("replace_clusters_begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE osm_border_id = $1 AND next_level = $2 AND size_threshold = $3
	`, r.table), regionID, nextLevel, sizeThresholdKB)
	if err != nil {
		return r.storeErr("replace_clusters_delete", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (osm_border_id, id, subregion_ids, geom, next_level, size_threshold, predicted_size)
		VALUES ($1, $2, $3, ST_GeomFromWKB($4, 4326), $5, $6, $7)
	`, r.table)
	for _, c := range clusters {
		_, err = tx.ExecContext(ctx, insert,
			regionID, c.RepresentativeID, c.SubregionIDs, c.Geom,
			nextLevel, sizeThresholdKB, c.PredictedSizeKB,
		)
		if err != nil {
			return r.storeErr("replace_clusters_insert", err)
		}
	}
	return tx.Commit()
}

func (r *splittingRepository) Clusters(ctx context.Context, regionID int64, nextLevel int, sizeThresholdKB float64) ([]domain.SplittingCluster, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, subregion_ids, ST_AsBinary(geom), predicted_size
		FROM %s
		WHERE osm_border_id = $1 AND next_level = $2 AND size_threshold = $3
		ORDER BY id
	`, r.table), regionID, nextLevel, sizeThresholdKB)
	if err != nil {
		return nil, r.storeErr("clusters", err)
	}
	defer rows.Close()

	var out []domain.SplittingCluster
	for rows.Next() {
		c := domain.SplittingCluster{RegionID: regionID, NextLevel: nextLevel, SizeThresholdKB: sizeThresholdKB}
		if err := rows.Scan(&c.RepresentativeID, &c.SubregionIDs, &c.Geom, &c.PredictedSizeKB); err != nil {
			return nil, r.storeErr("clusters_scan", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
