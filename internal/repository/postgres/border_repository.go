package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/config"
	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/domain/repository"
	pkgerrors "github.com/mapborders/partitioner/internal/pkg/errors"
)

// freeIDCeiling is the boundary below which ids are considered locally
// synthesized rather than borrowed from an OSM relation id.
const freeIDCeiling = -1_000_000_000

type borderRepository struct {
	db          *sqlx.DB
	logger      *zap.Logger
	table       string
	osmTable    string
	backupTable string
	readOnly    bool
}

func NewBorderRepository(db *DB, tables config.StoreConfig) repository.BorderStore {
	table := tables.BordersTable
	if table == "" {
		table = "borders"
	}
	osmTable := tables.OsmTable
	if osmTable == "" {
		osmTable = "osm_borders"
	}
	backupTable := tables.BackupTable
	if backupTable == "" {
		backupTable = "borders_backup"
	}
	return &borderRepository{
		db:          db.DB,
		logger:      db.logger,
		table:       table,
		osmTable:    osmTable,
		backupTable: backupTable,
		readOnly:    tables.ReadOnly,
	}
}

// guardMutation refuses a write when the store was configured read-only,
// per spec §6's read_only control. Snapshot/ListSnapshots/DeleteSnapshot
// are left unguarded: they operate on the backup table, not the borders
// tree itself.
func (r *borderRepository) guardMutation() error {
	if r.readOnly {
		return pkgerrors.ErrForbidden
	}
	return nil
}

func (r *borderRepository) storeErr(op string, err error) error {
	r.logger.Error("border store operation failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, pkgerrors.ErrSpatialStoreError)
}

func (r *borderRepository) scanRegion(scanner interface {
	Scan(dest ...interface{}) error
}) (*domain.Region, error) {
	var reg domain.Region
	var geom []byte
	err := scanner.Scan(
		&reg.ID, &reg.Name, &geom, &reg.ParentID, &reg.Disabled,
		&reg.Modified, &reg.CountK, &reg.MwmSizeEst, &reg.Comment,
	)
	if err != nil {
		return nil, err
	}
	reg.Geom = geom
	return &reg, nil
}

const regionColumns = `id, name, ST_AsBinary(geom), parent_id, disabled, modified, count_k, mwm_size_est, cmnt`

func (r *borderRepository) Get(ctx context.Context, id int64) (*domain.Region, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, regionColumns, r.table)
	row := r.db.QueryRowContext(ctx, query, id)
	reg, err := r.scanRegion(row)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, r.storeErr("get", err)
	}
	return reg, nil
}

func (r *borderRepository) Children(ctx context.Context, id int64) ([]*domain.Region, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE parent_id = $1 ORDER BY name`, regionColumns, r.table)
	return r.queryRegions(ctx, "children", query, id)
}

func (r *borderRepository) Parent(ctx context.Context, id int64) (*domain.Region, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE id = (SELECT parent_id FROM %s WHERE id = $1)
	`, regionColumns, r.table, r.table)
	row := r.db.QueryRowContext(ctx, query, id)
	reg, err := r.scanRegion(row)
	if err == sql.ErrNoRows {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, r.storeErr("parent", err)
	}
	return reg, nil
}

// Predecessors walks parent_id from id up to the root, nearest ancestor
// first, one hop per round trip.
func (r *borderRepository) Predecessors(ctx context.Context, id int64) ([]*domain.Region, error) {
	var out []*domain.Region
	current := id
	for {
		reg, err := r.Parent(ctx, current)
		if err == pkgerrors.ErrNotFound {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
		current = reg.ID
	}
	return out, nil
}

func (r *borderRepository) InBBox(ctx context.Context, bbox domain.BBox, level domain.SimplifyLevel) ([]*domain.Region, error) {
	geomExpr := "geom"
	if tol := level.Tolerance(); tol > 0 {
		geomExpr = fmt.Sprintf("ST_SimplifyPreserveTopology(geom, %f)", tol)
	}
	query := fmt.Sprintf(`
		SELECT id, name, ST_AsBinary(%s), parent_id, disabled, modified, count_k, mwm_size_est, cmnt
		FROM %s
		WHERE geom && ST_MakeEnvelope($1, $2, $3, $4, 4326)
	`, geomExpr, r.table)
	return r.queryRegions(ctx, "in_bbox", query, bbox.West, bbox.South, bbox.East, bbox.North)
}

func (r *borderRepository) queryRegions(ctx context.Context, op, query string, args ...interface{}) ([]*domain.Region, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.storeErr(op, err)
	}
	defer rows.Close()

	var out []*domain.Region
	for rows.Next() {
		reg, err := r.scanRegion(rows)
		if err != nil {
			return nil, r.storeErr(op+"_scan", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (r *borderRepository) Create(ctx context.Context, region *domain.Region) error {
	if err := r.guardMutation(); err != nil {
		return err
	}
	var existing int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(1) FROM %s WHERE id = $1`, r.table), region.ID).Scan(&existing)
	if err != nil {
		return r.storeErr("create_check", err)
	}
	if existing > 0 {
		return pkgerrors.ErrConflict
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, geom, parent_id, disabled, modified, count_k, mwm_size_est, cmnt)
		VALUES ($1, $2, ST_GeomFromWKB($3, 4326), $4, $5, now(), $6, $7, $8)
	`, r.table)
	_, err = r.db.ExecContext(ctx, query,
		region.ID, region.Name, region.Geom, region.ParentID, region.Disabled,
		region.CountK, region.MwmSizeEst, region.Comment,
	)
	if err != nil {
		return r.storeErr("create", err)
	}
	return nil
}

func (r *borderRepository) UpdateGeom(ctx context.Context, id int64, geom []byte) error {
	if err := r.guardMutation(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s SET geom = ST_GeomFromWKB($1, 4326), modified = now(), count_k = -1
		WHERE id = $2
	`, r.table)
	res, err := r.db.ExecContext(ctx, query, geom, id)
	if err != nil {
		return r.storeErr("update_geom", err)
	}
	return r.requireRowsAffected(res, "update_geom")
}

func (r *borderRepository) UpdateMeta(ctx context.Context, id int64, meta domain.RegionMeta) error {
	if err := r.guardMutation(); err != nil {
		return err
	}
	sets := []string{"modified = now()"}
	args := []interface{}{}
	argN := 1
	add := func(col string, val interface{}) {
		argN++
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
	}
	if meta.Name != nil {
		add("name", *meta.Name)
	}
	if meta.Disabled != nil {
		add("disabled", *meta.Disabled)
	}
	if meta.Comment != nil {
		add("cmnt", *meta.Comment)
	}
	if meta.ParentID != nil {
		add("parent_id", *meta.ParentID)
	}

	setClause := sets[0]
	for _, s := range sets[1:] {
		setClause += ", " + s
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, r.table, setClause)
	res, err := r.db.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return r.storeErr("update_meta", err)
	}
	return r.requireRowsAffected(res, "update_meta")
}

func (r *borderRepository) requireRowsAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return r.storeErr(op+"_rows_affected", err)
	}
	if n == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

func (r *borderRepository) Delete(ctx context.Context, id int64) error {
	if err := r.guardMutation(); err != nil {
		return err
	}
	var childCount int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(1) FROM %s WHERE parent_id = $1`, r.table), id).Scan(&childCount)
	if err != nil {
		return r.storeErr("delete_check_children", err)
	}
	if childCount > 0 {
		return pkgerrors.ErrHasChildren
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		return r.storeErr("delete", err)
	}
	return r.requireRowsAffected(res, "delete")
}

// AllocateFreeID returns one less than the current minimum id strictly
// below freeIDCeiling, or freeIDCeiling-1 if the table has no such row yet.
func (r *borderRepository) AllocateFreeID(ctx context.Context) (int64, error) {
	var minID sql.NullInt64
	query := fmt.Sprintf(`SELECT min(id) FROM %s WHERE id < %d`, r.table, freeIDCeiling)
	if err := r.db.QueryRowContext(ctx, query).Scan(&minID); err != nil {
		return 0, r.storeErr("allocate_free_id", err)
	}
	if !minID.Valid {
		return freeIDCeiling - 1, nil
	}
	return minID.Int64 - 1, nil
}

func (r *borderRepository) Snapshot(ctx context.Context, label string) error {
	var maxLabel sql.NullString
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT max(backup) FROM %s`, r.backupTable)).Scan(&maxLabel)
	if err != nil {
		return r.storeErr("snapshot_check", err)
	}
	if maxLabel.Valid && maxLabel.String == label {
		return pkgerrors.ErrRetry
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (backup, id, name, parent_id, geom, disabled, count_k, modified, cmnt, mwm_size_est)
		SELECT $1, id, name, parent_id, geom, disabled, count_k, modified, cmnt, mwm_size_est
		FROM %s
	`, r.backupTable, r.table)
	_, err = r.db.ExecContext(ctx, query, label)
	if err != nil {
		return r.storeErr("snapshot", err)
	}
	return nil
}

func (r *borderRepository) Restore(ctx context.Context, label string) error {
	if err := r.guardMutation(); err != nil {
		return err
	}
	var count int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(1) FROM %s WHERE backup = $1`, r.backupTable), label).Scan(&count)
	if err != nil {
		return r.storeErr("restore_check", err)
	}
	if count == 0 {
		return pkgerrors.ErrNotFound
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return r.storeErr("restore_begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, r.table)); err != nil {
		return r.storeErr("restore_delete", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, parent_id, geom, disabled, count_k, modified, cmnt, mwm_size_est)
		SELECT id, name, parent_id, geom, disabled, count_k, modified, cmnt, mwm_size_est
		FROM %s WHERE backup = $1
	`, r.table, r.backupTable)
	if _, err := tx.ExecContext(ctx, query, label); err != nil {
		return r.storeErr("restore_insert", err)
	}
	if err := tx.Commit(); err != nil {
		return r.storeErr("restore_commit", err)
	}
	return nil
}

func (r *borderRepository) ListSnapshots(ctx context.Context) ([]domain.BackupSnapshot, error) {
	query := fmt.Sprintf(`SELECT backup, count(1) FROM %s GROUP BY backup ORDER BY backup DESC`, r.backupTable)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, r.storeErr("list_snapshots", err)
	}
	defer rows.Close()

	var out []domain.BackupSnapshot
	for rows.Next() {
		var s domain.BackupSnapshot
		if err := rows.Scan(&s.Label, &s.RowCount); err != nil {
			return nil, r.storeErr("list_snapshots_scan", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *borderRepository) DeleteSnapshot(ctx context.Context, label string) error {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE backup = $1`, r.backupTable), label)
	if err != nil {
		return r.storeErr("delete_snapshot", err)
	}
	return r.requireRowsAffected(res, "delete_snapshot")
}

// FindPotentialParents returns ancestors whose area is larger than the
// child's and whose intersection with the child covers at least half the
// child's area, ordered by increasing parent area.
func (r *borderRepository) FindPotentialParents(ctx context.Context, id int64) ([]*domain.Region, error) {
	query := fmt.Sprintf(`
		SELECT p.id, p.name, ST_AsBinary(p.geom), p.parent_id, p.disabled,
		       p.modified, p.count_k, p.mwm_size_est, p.cmnt
		FROM %s p, %s c
		WHERE c.id = $1
			AND ST_Intersects(p.geom, c.geom)
			AND ST_Area(geography(p.geom)) > ST_Area(geography(c.geom))
			AND ST_Area(ST_Intersection(geography(p.geom), geography(c.geom))) >=
				0.5 * ST_Area(geography(c.geom))
		ORDER BY ST_Area(geography(p.geom))
	`, r.table, r.table)
	return r.queryRegions(ctx, "find_potential_parents", query, id)
}

// FindStaleRegion mirrors the daemon's two-stage no_count_queries: regions
// crossing the antimeridian compute a tiny geodesic area against a huge
// envelope, so the envelope-area cap keeps a handful of huge countries from
// starving the rest of the queue.
func (r *borderRepository) FindStaleRegion(ctx context.Context, maxEnvelopeAreaKm2 float64) (*domain.Region, error) {
	queryFor := func(condition string) string {
		return fmt.Sprintf(`
			SELECT id, name FROM (
				SELECT id, name,
					ST_Area(geography(geom))/1000000.0 AS area,
					ST_Area(geography(ST_Envelope(geom)))/1000000.0 AS env_area
				FROM %s
				WHERE %s
			) q
			WHERE area <> 'NaN'::double precision AND area <= env_area AND env_area < $1
			LIMIT 1
		`, r.table, condition)
	}

	var id sql.NullInt64
	var name sql.NullString
	err := r.db.QueryRowContext(ctx, queryFor("count_k < 0"), maxEnvelopeAreaKm2).Scan(&id, &name)
	if err == sql.ErrNoRows {
		err = r.db.QueryRowContext(ctx, queryFor("count_k IS NULL"), maxEnvelopeAreaKm2).Scan(&id, &name)
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, r.storeErr("find_stale_region", err)
	}
	return r.Get(ctx, id.Int64)
}

func (r *borderRepository) UpdateCountK(ctx context.Context, id int64, countK int64) error {
	if err := r.guardMutation(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s SET count_k = $1 WHERE id = $2
	`, r.table)
	res, err := r.db.ExecContext(ctx, query, countK, id)
	if err != nil {
		return r.storeErr("update_count_k", err)
	}
	return r.requireRowsAffected(res, "update_count_k")
}

func (r *borderRepository) UpdateMwmSizeEst(ctx context.Context, id int64, kilobytes float64) error {
	if err := r.guardMutation(); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET mwm_size_est = $1 WHERE id = $2`, r.table)
	res, err := r.db.ExecContext(ctx, query, kilobytes, id)
	if err != nil {
		return r.storeErr("update_mwm_size_est", err)
	}
	return r.requireRowsAffected(res, "update_mwm_size_est")
}

func (r *borderRepository) AssignToLowestParent(ctx context.Context, id int64) error {
	if err := r.guardMutation(); err != nil {
		return err
	}
	parents, err := r.FindPotentialParents(ctx, id)
	if err != nil {
		return err
	}
	if len(parents) == 0 {
		return pkgerrors.ErrNotFound
	}
	lowest := parents[0]
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET parent_id = $1, modified = now() WHERE id = $2`, r.table),
		lowest.ID, id,
	)
	if err != nil {
		return r.storeErr("assign_to_lowest_parent", err)
	}
	return r.requireRowsAffected(res, "assign_to_lowest_parent")
}
